package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/scott-cotton/cli"

	"github.com/five82/kxapi/internal/app"
	"github.com/five82/kxapi/internal/kerbalx"
	"github.com/five82/kxapi/internal/logging"
	"github.com/five82/kxapi/internal/ui"
)

const usageText = `kxapi - KerbalX command line client

Usage:
  kxapi [-config path] [-log-level level] <command> [opts]

Commands:
  login [-u user -p pass]          Log in with the saved token, or prompt
  logout                           Forget the saved token
  status [-metrics]                Show profile, base URL and login state
  crafts [-list mine|queue|past|favourites]
                                   List craft
  download [-o file] <id>          Download a craft file
  ping [-wait] [-every seconds]    Check that KerbalX is reachable
  probe <url>                      Print the Content-Type of an image URL
  logs [-n lines]                  Show the end of the configured log file`

const testConnectionPath = "api/test_connection"

type rootConfig struct {
	Main *cli.Command

	ConfigPath string `cli:"name=config desc='config file (default ~/.config/kxapi/config.toml)'"`
	LogLevel   string `cli:"name=log-level desc='log level: debug, info, warn, error'"`

	base app.Options
	rt   *app.Runtime
}

// Root returns the kxapi command tree.
func Root() *cli.Command {
	return newRoot(app.Options{})
}

func newRoot(base app.Options) *cli.Command {
	cfg := &rootConfig{base: base}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Main, "kxapi").
		WithSynopsis("kxapi [opts] command [opts]").
		WithDescription(usageText).
		WithOpts(opts...).
		WithRun(cfg.run).
		WithSubs(
			LoginCommand(cfg),
			LogoutCommand(cfg),
			StatusCommand(cfg),
			CraftsCommand(cfg),
			DownloadCommand(cfg),
			PingCommand(cfg),
			ProbeCommand(cfg),
			LogsCommand(cfg),
		)
}

func (cfg *rootConfig) run(cc *cli.Context, args []string) error {
	args, err := cfg.Main.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return cli.ErrNoCommandProvided
	}
	sub := cfg.Main.FindSub(cc, args[0])
	if sub == nil {
		return fmt.Errorf("%w: %q not found", cli.ErrNoSuchCommand, args[0])
	}
	err = sub.Run(cc, args[1:])
	if cfg.rt != nil {
		if msg := cfg.rt.PendingError(); msg != "" {
			fmt.Fprintln(cc.Err, msg)
		}
		cfg.rt.Close()
		cfg.rt = nil
	}
	if errors.Is(err, cli.ErrUsage) {
		sub.Usage(cc, err)
		return cli.ExitCodeErr(sub.Exit(cc, err))
	}
	return err
}

// runtime builds the app runtime on first use.
func (cfg *rootConfig) runtime() (*app.Runtime, error) {
	if cfg.rt != nil {
		return cfg.rt, nil
	}
	opts := cfg.base
	if cfg.ConfigPath != "" {
		opts.ConfigPath = cfg.ConfigPath
	}
	if cfg.LogLevel != "" {
		opts.LogLevel = cfg.LogLevel
	}
	rt, err := app.New(opts)
	if err != nil {
		return nil, err
	}
	cfg.rt = rt
	return rt, nil
}

type loginConfig struct {
	*cli.Command
	root *rootConfig

	Username string `cli:"name=u aliases=user desc='KerbalX username'"`
	Password string `cli:"name=p aliases=password desc='KerbalX password'"`
}

// LoginCommand returns the login subcommand.
func LoginCommand(root *rootConfig) *cli.Command {
	cfg := &loginConfig{root: root}
	opts, _ := cli.StructOpts(cfg)
	return cli.NewCommandAt(&cfg.Command, "login").
		WithSynopsis("login [-u user -p pass] - Log in to KerbalX").
		WithOpts(opts...).
		WithRun(cfg.run)
}

func (cfg *loginConfig) run(cc *cli.Context, args []string) error {
	if _, err := cfg.Parse(cc, args); err != nil {
		return err
	}
	if (cfg.Username == "") != (cfg.Password == "") {
		return fmt.Errorf("%w: -u and -p must be given together", cli.ErrUsage)
	}
	rt, err := cfg.root.runtime()
	if err != nil {
		return err
	}

	if cfg.Username != "" {
		resp, err := rt.Client.Login(cc.Go, cfg.Username, cfg.Password)
		if err != nil {
			return err
		}
		if !resp.OK() {
			return fmt.Errorf("login failed (status %d)", resp.Status)
		}
	} else {
		ok, err := rt.EnsureLoggedIn(cc.Go)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cc.Out, "Login cancelled")
			return nil
		}
	}
	fmt.Fprintln(cc.Out, ui.RenderSuccess("Logged in as "+rt.Client.Username(), rt.Config.Theme))
	return nil
}

type logoutConfig struct {
	*cli.Command
	root *rootConfig
}

// LogoutCommand returns the logout subcommand.
func LogoutCommand(root *rootConfig) *cli.Command {
	cfg := &logoutConfig{root: root}
	return cli.NewCommandAt(&cfg.Command, "logout").
		WithSynopsis("logout - Forget the saved KerbalX token").
		WithRun(cfg.run)
}

func (cfg *logoutConfig) run(cc *cli.Context, args []string) error {
	if _, err := cfg.Parse(cc, args); err != nil {
		return err
	}
	rt, err := cfg.root.runtime()
	if err != nil {
		return err
	}
	rt.Client.Logout()
	fmt.Fprintln(cc.Out, "Logged out of KerbalX")
	return nil
}

type statusConfig struct {
	*cli.Command
	root *rootConfig

	Metrics bool `cli:"name=metrics desc='print request metrics'"`
}

// StatusCommand returns the status subcommand.
func StatusCommand(root *rootConfig) *cli.Command {
	cfg := &statusConfig{root: root}
	opts, _ := cli.StructOpts(cfg)
	return cli.NewCommandAt(&cfg.Command, "status").
		WithSynopsis("status [-metrics] - Show profile and login state").
		WithOpts(opts...).
		WithRun(cfg.run)
}

func (cfg *statusConfig) run(cc *cli.Context, args []string) error {
	if _, err := cfg.Parse(cc, args); err != nil {
		return err
	}
	rt, err := cfg.root.runtime()
	if err != nil {
		return err
	}
	if _, err := rt.Client.LoginWithToken(cc.Go); err != nil {
		return err
	}

	fmt.Fprintf(cc.Out, "Profile:  %s\n", rt.Config.Profile)
	fmt.Fprintf(cc.Out, "Base URL: %s\n", rt.Session.BaseURL())
	fmt.Fprintf(cc.Out, "Token:    %s\n", rt.Tokens.Path())
	if rt.Client.LoggedIn() {
		fmt.Fprintf(cc.Out, "Login:    logged in as %s\n", rt.Client.Username())
	} else {
		fmt.Fprintln(cc.Out, "Login:    logged out")
	}
	if cfg.Metrics {
		fmt.Fprintln(cc.Out)
		return rt.WriteMetrics(cc.Out)
	}
	return nil
}

type craftsConfig struct {
	*cli.Command
	root *rootConfig

	List string `cli:"name=list aliases=l default=mine desc='which list: mine, queue, past, favourites'"`
}

// CraftsCommand returns the crafts subcommand.
func CraftsCommand(root *rootConfig) *cli.Command {
	cfg := &craftsConfig{root: root}
	opts, _ := cli.StructOpts(cfg)
	return cli.NewCommandAt(&cfg.Command, "crafts").
		WithSynopsis("crafts [-list mine|queue|past|favourites] - List craft").
		WithOpts(opts...).
		WithRun(cfg.run)
}

type craftFetcher func(context.Context) (kerbalx.CraftList, int, error)

// fetcherFor maps a list name onto the client operation that reads it.
func fetcherFor(c *kerbalx.Client, list string) (craftFetcher, bool) {
	switch strings.ToLower(strings.TrimSpace(list)) {
	case "", "mine":
		return c.FetchUsersCraft, true
	case "queue":
		return c.FetchDownloadQueue, true
	case "past":
		return c.FetchPastDownloads, true
	case "favourites", "favorites":
		return c.FetchFavouriteCraft, true
	default:
		return nil, false
	}
}

func (cfg *craftsConfig) run(cc *cli.Context, args []string) error {
	if _, err := cfg.Parse(cc, args); err != nil {
		return err
	}
	rt, err := cfg.root.runtime()
	if err != nil {
		return err
	}
	fetch, ok := fetcherFor(rt.Client, cfg.List)
	if !ok {
		return fmt.Errorf("%w: unknown list %q", cli.ErrUsage, cfg.List)
	}

	ok, err = rt.EnsureLoggedIn(cc.Go)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("login required")
	}

	list, status, err := fetch(cc.Go)
	if err != nil {
		return err
	}
	if list == nil {
		return fmt.Errorf("craft list unavailable (status %d)", status)
	}
	if len(list) == 0 {
		fmt.Fprintln(cc.Out, "No craft found")
		return nil
	}
	ids := make([]int, 0, len(list))
	for id := range list {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		c := list[id]
		fmt.Fprintf(cc.Out, "%-8d %-32s %-8s %s\n", id, c["name"], c["version"], c["url"])
	}
	return nil
}

type downloadConfig struct {
	*cli.Command
	root *rootConfig

	Out string `cli:"name=o desc='write the craft to this file instead of stdout'"`
}

// DownloadCommand returns the download subcommand.
func DownloadCommand(root *rootConfig) *cli.Command {
	cfg := &downloadConfig{root: root}
	opts, _ := cli.StructOpts(cfg)
	return cli.NewCommandAt(&cfg.Command, "download").
		WithSynopsis("download [-o file] <id> - Download a craft").
		WithOpts(opts...).
		WithRun(cfg.run)
}

func (cfg *downloadConfig) run(cc *cli.Context, args []string) error {
	args, err := cfg.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: download requires one craft id", cli.ErrUsage)
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: invalid craft id %q", cli.ErrUsage, args[0])
	}
	rt, err := cfg.root.runtime()
	if err != nil {
		return err
	}
	if _, err := rt.Client.LoginWithToken(cc.Go); err != nil {
		return err
	}

	resp, err := rt.Client.DownloadCraft(cc.Go, id)
	if err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("download failed (status %d)", resp.Status)
	}
	if cfg.Out == "" {
		_, err := fmt.Fprint(cc.Out, resp.Body)
		return err
	}
	if err := os.WriteFile(cfg.Out, []byte(resp.Body), 0o644); err != nil {
		return fmt.Errorf("write craft: %w", err)
	}
	fmt.Fprintf(cc.Out, "Saved craft %d to %s\n", id, cfg.Out)
	return nil
}

type pingConfig struct {
	*cli.Command
	root *rootConfig

	Wait  bool    `cli:"name=wait aliases=w desc='keep retrying until KerbalX answers'"`
	Every float64 `cli:"name=every default=2 desc='seconds between reachability checks with -wait'"`
}

// PingCommand returns the ping subcommand.
func PingCommand(root *rootConfig) *cli.Command {
	cfg := &pingConfig{root: root}
	opts, _ := cli.StructOpts(cfg)
	return cli.NewCommandAt(&cfg.Command, "ping").
		WithSynopsis("ping [-wait] [-every seconds] - Check that KerbalX is reachable").
		WithOpts(opts...).
		WithRun(cfg.run)
}

func (cfg *pingConfig) run(cc *cli.Context, args []string) error {
	if _, err := cfg.Parse(cc, args); err != nil {
		return err
	}
	if cfg.Every <= 0 {
		return fmt.Errorf("%w: -every must be positive", cli.ErrUsage)
	}
	rt, err := cfg.root.runtime()
	if err != nil {
		return err
	}
	ctx := cc.Go

	answered := make(chan int, 1)
	start := time.Now()
	probeURL := rt.Client.URLTo(testConnectionPath)
	call := rt.Client.Send(ctx, kerbalx.Get(probeURL), func(_ string, status int) {
		answered <- status
	})
	if _, err := call.Wait(ctx); err != nil {
		if !cfg.Wait || !errors.Is(err, kerbalx.ErrConnectionFailed) {
			return err
		}
		if msg := rt.PendingError(); msg != "" {
			fmt.Fprintln(cc.Err, msg)
		}
		fmt.Fprintln(cc.Out, "KerbalX unreachable, waiting...")
		every := time.Duration(cfg.Every * float64(time.Second))
		app.StartRetrier(ctx, rt.Transport, probeURL, every, rt.Log)
	}
	select {
	case status := <-answered:
		fmt.Fprintf(cc.Out, "KerbalX answered %d in %s\n", status, time.Since(start).Round(time.Millisecond))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type probeConfig struct {
	*cli.Command
	root *rootConfig
}

// ProbeCommand returns the probe subcommand.
func ProbeCommand(root *rootConfig) *cli.Command {
	cfg := &probeConfig{root: root}
	return cli.NewCommandAt(&cfg.Command, "probe").
		WithSynopsis("probe <url> - Print the Content-Type of an image URL").
		WithRun(cfg.run)
}

func (cfg *probeConfig) run(cc *cli.Context, args []string) error {
	args, err := cfg.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: probe requires one url", cli.ErrUsage)
	}
	rt, err := cfg.root.runtime()
	if err != nil {
		return err
	}
	var contentType string
	call := rt.Client.VerifyImageURL(cc.Go, args[0], func(ct string) { contentType = ct })
	if _, err := call.Wait(cc.Go); err != nil {
		return err
	}
	if contentType == "" {
		contentType = "(none)"
	}
	fmt.Fprintln(cc.Out, contentType)
	if !strings.HasPrefix(contentType, "image/") {
		return errors.New("url does not point at an image")
	}
	return nil
}

type logsConfig struct {
	*cli.Command
	root *rootConfig

	Lines int `cli:"name=n aliases=lines default=50 desc='number of lines to show (0 for all)'"`
}

// LogsCommand returns the logs subcommand.
func LogsCommand(root *rootConfig) *cli.Command {
	cfg := &logsConfig{root: root}
	opts, _ := cli.StructOpts(cfg)
	return cli.NewCommandAt(&cfg.Command, "logs").
		WithSynopsis("logs [-n lines] - Show the end of the log file").
		WithOpts(opts...).
		WithRun(cfg.run)
}

func (cfg *logsConfig) run(cc *cli.Context, args []string) error {
	if _, err := cfg.Parse(cc, args); err != nil {
		return err
	}
	rt, err := cfg.root.runtime()
	if err != nil {
		return err
	}
	path := rt.Config.LogPath()
	if path == "" {
		return errors.New("no log_file configured; logs go to stderr")
	}
	lines, err := logging.Tail(path, cfg.Lines)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(cc.Out, line)
	}
	return nil
}
