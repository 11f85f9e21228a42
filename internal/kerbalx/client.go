package kerbalx

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/five82/kxapi/internal/session"
)

// Client issues KerbalX requests on behalf of one registered identity.
type Client struct {
	id       Identity
	registry *Registry
	log      logrus.FieldLogger
}

// Identity returns the identity the client was registered with.
func (c *Client) Identity() Identity {
	return c.id
}

// Session returns the shared session.
func (c *Client) Session() *session.Session {
	return c.registry.Session()
}

// URLTo resolves path against the session's base URL.
func (c *Client) URLTo(path string) string {
	return c.Session().URLTo(path)
}

// LoggedIn reports whether the shared session holds a token.
func (c *Client) LoggedIn() bool {
	return c.Session().LoggedIn()
}

// LoggedOut is the negation of LoggedIn.
func (c *Client) LoggedOut() bool {
	return c.Session().LoggedOut()
}

// Username returns the display name of the logged in user.
func (c *Client) Username() string {
	return c.Session().Username()
}

// HasErrors reports whether a session error is waiting to be shown.
func (c *Client) HasErrors() bool {
	return c.Session().HasError()
}

// Send attaches the client headers to req and dispatches it. The token is
// attached when present.
func (c *Client) Send(ctx context.Context, req Request, fn ResultFunc, opts ...SendOption) *Call {
	prepared, err := c.prepare(req)
	if err != nil {
		c.log.WithError(err).Warn("request not sent")
		return resolvedCall(Response{}, OutcomeRejected, err)
	}
	return c.registry.transport.Send(ctx, prepared, fn, opts...)
}

// Do is the blocking form of Send.
func (c *Client) Do(ctx context.Context, req Request, opts ...SendOption) (Response, error) {
	return c.Send(ctx, req, nil, opts...).Wait(ctx)
}

// SendAuthorized is Send for endpoints that need a logged in user. It fails
// with ErrUnauthenticated before anything is sent when no token is held.
func (c *Client) SendAuthorized(ctx context.Context, req Request, fn ResultFunc, opts ...SendOption) *Call {
	prepared, err := c.authorize(req)
	if err != nil {
		c.log.WithError(err).Warn("request not sent")
		return resolvedCall(Response{}, OutcomeRejected, err)
	}
	return c.registry.transport.Send(ctx, prepared, fn, opts...)
}

func (c *Client) doAuthorized(ctx context.Context, req Request) (Response, error) {
	return c.SendAuthorized(ctx, req, nil).Wait(ctx)
}

func (c *Client) prepare(req Request) (Request, error) {
	if !c.id.Valid() {
		return req, ErrClientInfoMissing
	}
	headers := [][2]string{
		{HeaderClient, c.id.Name},
		{HeaderClientVersion, c.id.Version},
	}
	if v := c.registry.gameVersion; v != "" {
		headers = append(headers, [2]string{HeaderGameVersion, v})
	}
	if c.id.Signature != "" {
		headers = append(headers, [2]string{HeaderClientSignature, c.id.Signature})
	}
	if token := c.Session().Token(); token != "" {
		headers = append(headers, [2]string{TokenHeader, token})
	}
	var err error
	for _, h := range headers {
		if req, err = req.WithHeader(h[0], h[1]); err != nil {
			return req, err
		}
	}
	return req, nil
}

func (c *Client) authorize(req Request) (Request, error) {
	prepared, err := c.prepare(req)
	if err != nil {
		return req, err
	}
	return prepared.WithHeader(TokenHeader, c.Session().Token())
}
