package kerbalx

import "context"

// TestConnection checks that KerbalX is reachable and accepts this client.
func (c *Client) TestConnection(ctx context.Context) (Response, error) {
	return c.Do(ctx, Get(c.URLTo("api/test_connection")))
}

// DismissUpdateNotification stops KerbalX offering the current update.
func (c *Client) DismissUpdateNotification(ctx context.Context) (Response, error) {
	return c.doAuthorized(ctx, Post(c.URLTo("api/dismiss_update_notification"), nil))
}

// DeferredDownloadsEnabled reports the user's deferred download setting.
func (c *Client) DeferredDownloadsEnabled(ctx context.Context) (Response, error) {
	return c.doAuthorized(ctx, Get(c.URLTo("api/deferred_downloads_enabled")))
}

// EnableDeferredDownloads turns deferred downloads on.
func (c *Client) EnableDeferredDownloads(ctx context.Context) (Response, error) {
	return c.doAuthorized(ctx, Post(c.URLTo("api/enable_deferred_downloads"), nil))
}

// CheckForUpdates asks whether a newer client release is available.
func (c *Client) CheckForUpdates(ctx context.Context) (Response, error) {
	return c.Do(ctx, Get(c.URLTo("api/mod_update_available")))
}

// VerifyImageURL passes the Content-Type of rawURL to fn. The URL may
// point anywhere; no KerbalX headers are sent.
func (c *Client) VerifyImageURL(ctx context.Context, rawURL string, fn func(contentType string)) *Call {
	return c.registry.transport.Probe(ctx, rawURL, fn)
}
