package kerbalx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/five82/kxapi/internal/logging"
	"github.com/five82/kxapi/internal/session"
)

const defaultRequestTimeout = 30 * time.Second

// ResultFunc receives the raw body and status of a delivered call.
type ResultFunc func(body string, status int)

// Response is the body and status of a finished call.
type Response struct {
	Body   string
	Status int
}

// OK reports a 200 response.
func (r Response) OK() bool {
	return r.Status == http.StatusOK
}

// Observer receives per-call measurements.
type Observer interface {
	ObserveRequest(method, outcome string, elapsed time.Duration)
	ObserveSessionError(kind string)
}

// TokenRemover deletes the persisted token on a forced logout.
type TokenRemover interface {
	Delete() error
}

// TransportOptions configures NewTransport. Zero values pick defaults.
type TransportOptions struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	// RateLimit caps requests per second; zero or negative is unlimited.
	RateLimit float64
	RateBurst int
	Logger    logrus.FieldLogger
	Observer  Observer
	Tokens    TokenRemover
}

// Transport sends requests asynchronously and applies the response
// classification to the session it was built with.
type Transport struct {
	sess     *session.Session
	http     *http.Client
	limiter  *rate.Limiter
	log      logrus.FieldLogger
	observer Observer
	tokens   TokenRemover

	mu     sync.Mutex
	failed *retained
}

type retained struct {
	req  Request
	fn   ResultFunc
	opts sendOptions
}

// NewTransport builds a Transport bound to sess.
func NewTransport(sess *session.Session, opts TransportOptions) *Transport {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst < 1 {
		burst = 1
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Transport{
		sess:     sess,
		http:     client,
		limiter:  rate.NewLimiter(limit, burst),
		log:      logging.OrDiscard(opts.Logger).WithField("component", "transport"),
		observer: observer,
		tokens:   opts.Tokens,
	}
}

// Session returns the session this transport mutates.
func (t *Transport) Session() *session.Session {
	return t.sess
}

type sendOptions struct {
	showAuthErrors bool
}

func defaultSendOptions() sendOptions {
	return sendOptions{showAuthErrors: true}
}

// SendOption adjusts a single Send call.
type SendOption func(*sendOptions)

// SuppressAuthErrors delivers a 401 to the caller instead of logging the
// session out. Login and token authentication use it.
func SuppressAuthErrors() SendOption {
	return func(o *sendOptions) {
		o.showAuthErrors = false
	}
}

// Call is the handle for one in-flight request. It resolves exactly once.
type Call struct {
	done    chan struct{}
	resp    Response
	outcome Outcome
	err     error
}

func newCall() *Call {
	return &Call{done: make(chan struct{})}
}

func resolvedCall(resp Response, outcome Outcome, err error) *Call {
	c := newCall()
	c.finish(resp, outcome, err)
	return c
}

// CompletedCall returns a Call that has already resolved with resp and err.
// It lets stand-ins for Transport hand back finished calls.
func CompletedCall(resp Response, outcome Outcome, err error) *Call {
	return resolvedCall(resp, outcome, err)
}

func (c *Call) finish(resp Response, outcome Outcome, err error) {
	c.resp = resp
	c.outcome = outcome
	c.err = err
	close(c.done)
}

// Done is closed once the call has resolved and any callback has returned.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the call resolves or ctx ends.
func (c *Call) Wait(ctx context.Context) (Response, error) {
	select {
	case <-c.done:
		return c.resp, c.err
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Response is valid after Done is closed.
func (c *Call) Response() Response {
	<-c.done
	return c.resp
}

// Err is valid after Done is closed.
func (c *Call) Err() error {
	<-c.done
	return c.err
}

// Outcome is valid after Done is closed.
func (c *Call) Outcome() Outcome {
	<-c.done
	return c.outcome
}

// Send transmits req on a new goroutine. fn runs on that goroutine when the
// response is delivered; it is not called for connection failures,
// unsuppressed 401s or 426s, which resolve the returned Call with an error.
func (t *Transport) Send(ctx context.Context, req Request, fn ResultFunc, opts ...SendOption) *Call {
	o := defaultSendOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return t.send(ctx, req, fn, o)
}

// Do sends req and waits for its response.
func (t *Transport) Do(ctx context.Context, req Request, opts ...SendOption) (Response, error) {
	return t.Send(ctx, req, nil, opts...).Wait(ctx)
}

func (t *Transport) send(ctx context.Context, req Request, fn ResultFunc, o sendOptions) *Call {
	httpReq, err := req.build(ctx)
	if err != nil {
		return resolvedCall(Response{}, OutcomeRejected, fmt.Errorf("build request: %w", err))
	}
	call := newCall()
	go t.transmit(ctx, req, httpReq, fn, o, call)
	return call
}

func (t *Transport) transmit(ctx context.Context, req Request, httpReq *http.Request, fn ResultFunc, o sendOptions, call *Call) {
	log := t.log.WithFields(logrus.Fields{
		"request_id": req.ID(),
		"method":     req.Method(),
		"url":        req.URL(),
	})
	start := time.Now()

	if err := t.limiter.Wait(ctx); err != nil {
		log.WithError(err).Debug("request abandoned before sending")
		t.observer.ObserveRequest(req.Method(), string(OutcomeCancelled), time.Since(start))
		call.finish(Response{}, OutcomeCancelled, err)
		return
	}

	log.Info("sending request")
	resp, err := t.http.Do(httpReq)
	var body []byte
	if err == nil {
		body, err = io.ReadAll(resp.Body)
		_ = resp.Body.Close()
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.WithError(err).Debug("request cancelled")
			t.observer.ObserveRequest(req.Method(), string(OutcomeCancelled), time.Since(start))
			call.finish(Response{}, OutcomeCancelled, ctxErr)
			return
		}
		log.WithError(err).Warn("request failed")
		t.setError(session.ConnectionFailed())
		t.retain(req, fn, o)
		t.observer.ObserveRequest(req.Method(), string(OutcomeConnectionFailed), time.Since(start))
		call.finish(Response{}, OutcomeConnectionFailed, fmt.Errorf("%w: %v", ErrConnectionFailed, err))
		return
	}

	result := Response{Body: string(body), Status: resp.StatusCode}
	c := classify(resp.StatusCode, result.Body, o.showAuthErrors)
	log.WithFields(logrus.Fields{
		"status":  resp.StatusCode,
		"outcome": c.outcome,
	}).Info("request returned")

	if !c.sessionErr.IsZero() {
		t.setError(c.sessionErr)
	}
	if c.logout {
		t.forceLogout(log)
	}
	t.observer.ObserveRequest(req.Method(), string(c.outcome), time.Since(start))

	var callErr error
	switch c.outcome {
	case OutcomeUnauthorized:
		callErr = ErrAuthFailed
	case OutcomeUpgradeRequired:
		callErr = &UpgradeRequiredError{Message: c.sessionErr.Message}
	}
	if c.deliver && fn != nil {
		fn(result.Body, result.Status)
	}
	call.finish(result, c.outcome, callErr)
}

func (t *Transport) setError(err session.Error) {
	t.sess.SetError(err)
	t.observer.ObserveSessionError(err.Kind.String())
}

func (t *Transport) forceLogout(log logrus.FieldLogger) {
	t.sess.ClearAuth()
	if t.tokens == nil {
		return
	}
	if err := t.tokens.Delete(); err != nil {
		log.WithError(err).Warn("failed to delete token after authorization failure")
	}
	log.Info("logged out after authorization failure")
}

func (t *Transport) retain(req Request, fn ResultFunc, o sendOptions) {
	t.mu.Lock()
	t.failed = &retained{req: req.clone(), fn: fn, opts: o}
	t.mu.Unlock()
}

// CanRetry reports whether a request that failed to connect is held.
func (t *Transport) CanRetry() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed != nil
}

// Retry resends the held request with its original callback. The held
// request is released whether or not the resend succeeds.
func (t *Transport) Retry(ctx context.Context) (*Call, error) {
	t.mu.Lock()
	failed := t.failed
	t.failed = nil
	t.mu.Unlock()
	if failed == nil {
		return nil, ErrNothingToRetry
	}
	t.log.WithField("request_id", failed.req.ID()).Info("retrying failed request")
	return t.send(ctx, failed.req, failed.fn, failed.opts), nil
}

// Probe issues a HEAD to rawURL and passes the Content-Type header to fn.
// Status codes are not classified and the session is never touched; a
// failed probe passes "".
func (t *Transport) Probe(ctx context.Context, rawURL string, fn func(contentType string)) *Call {
	req := Head(rawURL)
	httpReq, err := req.build(ctx)
	if err != nil {
		if fn != nil {
			fn("")
		}
		return resolvedCall(Response{}, OutcomeRejected, fmt.Errorf("build request: %w", err))
	}
	call := newCall()
	go func() {
		log := t.log.WithFields(logrus.Fields{"request_id": req.ID(), "url": rawURL})
		log.Debug("probing url")
		resp, err := t.http.Do(httpReq)
		if err != nil {
			log.WithError(err).Debug("probe failed")
			if fn != nil {
				fn("")
			}
			outcome := OutcomeConnectionFailed
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				outcome = OutcomeCancelled
			}
			call.finish(Response{}, outcome, err)
			return
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if fn != nil {
			fn(resp.Header.Get("Content-Type"))
		}
		call.finish(Response{Status: resp.StatusCode}, OutcomeDelivered, nil)
	}()
	return call
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, string, time.Duration) {}
func (nopObserver) ObserveSessionError(string)                   {}
