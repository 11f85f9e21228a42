package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"

	"github.com/five82/kxapi/internal/config"
	"github.com/five82/kxapi/internal/kerbalx"
	"github.com/five82/kxapi/internal/logging"
	"github.com/five82/kxapi/internal/login"
	"github.com/five82/kxapi/internal/session"
	"github.com/five82/kxapi/internal/telemetry"
	"github.com/five82/kxapi/internal/tokenstore"
	"github.com/five82/kxapi/internal/ui"
)

// Identity of the built-in client used for login and the CLI.
const (
	ClientName    = "KerbalXAPI"
	ClientVersion = "0.1.0"
)

// Options configure New.
type Options struct {
	ConfigPath string
	LogLevel   string    // overrides the config value when set
	LogOutput  io.Writer // nil uses the configured log file, else stderr
	Prompter   login.Prompter
	HTTPClient *http.Client
}

// Runtime is the wired set of components for one process.
type Runtime struct {
	Config    config.Config
	Log       *logrus.Logger
	Session   *session.Session
	Tokens    *tokenstore.Store
	Metrics   *telemetry.Metrics
	Transport *kerbalx.Transport
	Registry  *kerbalx.Registry
	Client    *kerbalx.Client
	Login     *login.Orchestrator
	Prompter  login.Prompter

	registry *prometheus.Registry
	logFile  io.Closer
}

// New loads configuration and builds every component.
func New(opts Options) (*Runtime, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if !knownTheme(cfg.Theme) {
		return nil, fmt.Errorf("unknown theme %q (want one of %s)", cfg.Theme, strings.Join(ui.ThemeNames(), ", "))
	}

	level := cfg.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	out := opts.LogOutput
	var logFile io.Closer
	if out == nil {
		out = os.Stderr
		if path := cfg.LogPath(); path != "" {
			f, err := logging.OpenFile(path)
			if err != nil {
				return nil, err
			}
			out, logFile = f, f
		}
	}
	log, err := logging.New(level, out)
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("init logging: %w", err)
	}

	tokens, err := tokenstore.New(cfg.TokenPath())
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("init token store: %w", err)
	}

	reg := prometheus.NewRegistry()
	metrics := telemetry.New(reg)
	sess := session.New(cfg.BaseURL())
	transport := kerbalx.NewTransport(sess, kerbalx.TransportOptions{
		HTTPClient: opts.HTTPClient,
		Timeout:    cfg.RequestTimeout,
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
		Logger:     log,
		Observer:   metrics,
		Tokens:     tokens,
	})
	registry := kerbalx.NewRegistry(transport, kerbalx.RegistryOptions{
		Tokens:      tokens,
		GameVersion: cfg.GameVersion,
		Logger:      log,
	})
	client := registry.Register(kerbalx.NewIdentity(ClientName, ClientVersion))

	prompter := opts.Prompter
	if prompter == nil {
		prompter = ui.TerminalPrompter{Theme: cfg.Theme}
	}

	log.WithFields(logrus.Fields{
		"component": "app",
		"profile":   cfg.Profile,
		"base_url":  sess.BaseURL(),
	}).Debug("runtime ready")

	return &Runtime{
		Config:    cfg,
		Log:       log,
		Session:   sess,
		Tokens:    tokens,
		Metrics:   metrics,
		Transport: transport,
		Registry:  registry,
		Client:    client,
		Login:     login.New(client, prompter, log),
		Prompter:  prompter,
		registry:  reg,
		logFile:   logFile,
	}, nil
}

func knownTheme(name string) bool {
	for _, n := range ui.ThemeNames() {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Close releases the log file, if one was opened.
func (r *Runtime) Close() error {
	if r.logFile == nil {
		return nil
	}
	return r.logFile.Close()
}

// EnsureLoggedIn runs the login sequence for the built-in client and waits
// for its outcome.
func (r *Runtime) EnsureLoggedIn(ctx context.Context) (bool, error) {
	return r.Login.Wait(ctx, r.Client.Identity())
}

// PendingError consumes the session error and renders it, or returns "".
func (r *Runtime) PendingError() string {
	err, ok := r.Session.ConsumeError()
	if !ok {
		return ""
	}
	return ui.RenderError(err, ui.MessageOptions{
		UpgradeURL: r.Session.URLTo("KXAPI/" + r.Client.Identity().Name),
		Theme:      r.Config.Theme,
	})
}

// WriteMetrics writes the metrics gathered so far in the Prometheus text
// exposition format.
func (r *Runtime) WriteMetrics(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}
