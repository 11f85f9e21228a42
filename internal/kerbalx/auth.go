package kerbalx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	loginPath        = "api/login"
	authenticatePath = "api/authenticate"
)

type authResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Login exchanges a username and password for a token. On 200 the session
// is authenticated and the token persisted; any other status is returned
// untouched for the caller to interpret. A 200 without a token is an error
// and leaves the session logged out.
func (c *Client) Login(ctx context.Context, username, password string) (Response, error) {
	c.log.WithField("username", username).Info("logging into KerbalX")
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	resp, err := c.Do(ctx, Post(c.URLTo(loginPath), form), SuppressAuthErrors())
	if err != nil || resp.Status != http.StatusOK {
		return resp, err
	}
	var payload authResponse
	if err := json.Unmarshal([]byte(resp.Body), &payload); err != nil {
		return resp, fmt.Errorf("decode login response: %w", err)
	}
	if strings.TrimSpace(payload.Token) == "" {
		return resp, fmt.Errorf("decode login response: %w", ErrMissingToken)
	}
	c.Session().SetAuth(payload.Token, payload.Username)
	if tokens := c.registry.tokens; tokens != nil {
		if err := tokens.Save(payload.Token); err != nil {
			c.log.WithError(err).Warn("failed to persist token")
		}
	}
	c.log.WithField("username", payload.Username).Info("logged in")
	return resp, nil
}

// LoginWithToken authenticates with the persisted token. With no readable
// token it returns status 401 without contacting KerbalX.
func (c *Client) LoginWithToken(ctx context.Context) (Response, error) {
	unauthorized := Response{Status: http.StatusUnauthorized}
	tokens := c.registry.tokens
	if tokens == nil {
		return unauthorized, nil
	}
	token, err := tokens.Load()
	if err != nil {
		c.log.WithError(err).Debug("no usable token")
		return unauthorized, nil
	}

	c.log.Info("logging into KerbalX with token")
	form := url.Values{}
	form.Set("token", token)
	resp, err := c.Do(ctx, Post(c.URLTo(authenticatePath), form), SuppressAuthErrors())
	if err != nil {
		return resp, err
	}
	if resp.Status != http.StatusOK {
		c.log.WithField("status", resp.Status).Info("login token is invalid")
		return resp, nil
	}
	var payload authResponse
	if err := json.Unmarshal([]byte(resp.Body), &payload); err != nil {
		return resp, fmt.Errorf("decode authenticate response: %w", err)
	}
	c.Session().SetAuth(token, payload.Username)
	c.log.WithField("username", payload.Username).Info("logged in")
	return resp, nil
}

// Logout clears the session and deletes the persisted token. It always
// reports status 200.
func (c *Client) Logout() Response {
	c.Session().ClearAuth()
	if tokens := c.registry.tokens; tokens != nil {
		if err := tokens.Delete(); err != nil {
			c.log.WithError(err).Warn("failed to delete token")
		}
	}
	c.log.Info("logged out of KerbalX")
	return Response{Status: http.StatusOK}
}
