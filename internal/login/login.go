package login

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/five82/kxapi/internal/kerbalx"
	"github.com/five82/kxapi/internal/logging"
)

// ErrPromptCancelled is returned by a Prompter when the user abandons it.
var ErrPromptCancelled = errors.New("login cancelled")

const failedLoginMessage = "Login failed! You forgot your password didn't you?"

// State is a step of the login sequence.
type State int

const (
	StateIdle State = iota
	StateCheckingToken
	StateNeedsCredentials
	StateCredentialsSubmitted
	StateAuthenticated
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCheckingToken:
		return "checking_token"
	case StateNeedsCredentials:
		return "needs_credentials"
	case StateCredentialsSubmitted:
		return "credentials_submitted"
	case StateAuthenticated:
		return "authenticated"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Authenticator is the part of *kerbalx.Client the orchestrator drives.
type Authenticator interface {
	LoggedIn() bool
	LoginWithToken(ctx context.Context) (kerbalx.Response, error)
	Login(ctx context.Context, username, password string) (kerbalx.Response, error)
}

var _ Authenticator = (*kerbalx.Client)(nil)

// Credentials are what the user typed into the prompt.
type Credentials struct {
	Username string
	Password string
}

// PromptRequest describes one showing of the credential prompt.
type PromptRequest struct {
	Attempt int
	Failed  bool
	Message string
}

// Prompter asks the user for credentials.
type Prompter interface {
	Prompt(ctx context.Context, req PromptRequest) (Credentials, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, req PromptRequest) (Credentials, error)

// Prompt calls f.
func (f PrompterFunc) Prompt(ctx context.Context, req PromptRequest) (Credentials, error) {
	return f(ctx, req)
}

type waiter struct {
	key  string
	seq  uint64
	fn   func(ok bool)
	stop func() bool
}

// Orchestrator runs at most one login sequence at a time and releases every
// caller waiting on it together.
type Orchestrator struct {
	auth     Authenticator
	prompter Prompter
	log      logrus.FieldLogger

	mu      sync.Mutex
	state   State
	running bool
	cancel  context.CancelFunc
	seq     uint64
	waiters []waiter
}

// New builds an orchestrator that validates tokens and logs in through auth.
func New(auth Authenticator, prompter Prompter, logger logrus.FieldLogger) *Orchestrator {
	return &Orchestrator{
		auth:     auth,
		prompter: prompter,
		log:      logging.OrDiscard(logger).WithField("component", "login"),
	}
}

// State reports the current step.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Login calls fn(true) once the session is authenticated, or fn(false) if
// the user cancels the prompt. When already logged in fn runs before Login
// returns. Each identity holds at most one pending fn; a second call for the
// same identity replaces the first and keeps its place in the queue.
//
// When ctx ends only this caller's fn is dropped. The sequence itself stops
// once no caller is left waiting on it.
func (o *Orchestrator) Login(ctx context.Context, id kerbalx.Identity, fn func(ok bool)) {
	if fn == nil {
		fn = func(bool) {}
	}
	if o.auth.LoggedIn() {
		fn(true)
		return
	}

	o.mu.Lock()
	o.seq++
	seq := o.seq
	o.register(waiter{
		key:  id.Key(),
		seq:  seq,
		fn:   fn,
		stop: context.AfterFunc(ctx, func() { o.drop(seq) }),
	})
	if o.running {
		o.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.running = true
	o.cancel = cancel
	o.state = StateCheckingToken
	o.mu.Unlock()

	go o.run(runCtx)
}

// Wait is the blocking form of Login.
func (o *Orchestrator) Wait(ctx context.Context, id kerbalx.Identity) (bool, error) {
	result := make(chan bool, 1)
	o.Login(ctx, id, func(ok bool) { result <- ok })
	select {
	case ok := <-result:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (o *Orchestrator) register(w waiter) {
	for i, existing := range o.waiters {
		if existing.key == w.key {
			o.log.WithField("client", w.key).Debug("replacing pending login callback")
			existing.stop()
			o.waiters[i] = w
			return
		}
	}
	o.waiters = append(o.waiters, w)
}

// drop removes the waiter registered as seq. The running sequence is
// cancelled when nobody is left waiting on it.
func (o *Orchestrator) drop(seq uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, w := range o.waiters {
		if w.seq == seq {
			o.waiters = append(o.waiters[:i], o.waiters[i+1:]...)
			o.log.WithField("client", w.key).Debug("caller stopped waiting for login")
			break
		}
	}
	if o.running && len(o.waiters) == 0 && o.cancel != nil {
		o.log.Debug("no callers left, abandoning login")
		o.cancel()
	}
}

func (o *Orchestrator) run(ctx context.Context) {
	resp, err := o.auth.LoginWithToken(ctx)
	if err == nil && resp.Status == http.StatusOK {
		o.finish(true)
		return
	}
	if err != nil {
		o.log.WithError(err).Warn("token login failed")
	}

	req := PromptRequest{Attempt: 1}
	for {
		o.setState(StateNeedsCredentials)
		creds, err := o.prompter.Prompt(ctx, req)
		if err != nil {
			if !errors.Is(err, ErrPromptCancelled) {
				o.log.WithError(err).Warn("credential prompt failed")
			}
			o.log.Info("login cancelled")
			o.finish(false)
			return
		}

		o.setState(StateCredentialsSubmitted)
		resp, err := o.auth.Login(ctx, creds.Username, creds.Password)
		if err == nil && resp.Status == http.StatusOK {
			o.finish(true)
			return
		}
		if ctx.Err() != nil {
			o.finish(false)
			return
		}
		o.setState(StateFailed)
		msg := failedLoginMessage
		if err != nil {
			o.log.WithError(err).Warn("login request failed")
			msg = err.Error()
		}
		req = PromptRequest{Attempt: req.Attempt + 1, Failed: true, Message: msg}
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) finish(ok bool) {
	o.mu.Lock()
	waiters := o.waiters
	o.waiters = nil
	o.running = false
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	if ok {
		o.state = StateAuthenticated
	} else {
		o.state = StateIdle
	}
	o.mu.Unlock()

	o.log.WithFields(logrus.Fields{"ok": ok, "waiters": len(waiters)}).Info("login sequence finished")
	for _, w := range waiters {
		w.stop()
		w.fn(ok)
	}
}
