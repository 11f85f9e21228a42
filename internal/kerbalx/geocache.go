package kerbalx

import (
	"context"
	"fmt"
	"net/http"
)

func geoCachePath(id int) string {
	return fmt.Sprintf("api/geo_caches/%d", id)
}

// FetchGeoCacheList lists all geo caches.
func (c *Client) FetchGeoCacheList(ctx context.Context) (Response, error) {
	return c.Do(ctx, Get(c.URLTo("api/geo_caches.json")))
}

// SearchGeoCaches runs a geo cache search.
func (c *Client) SearchGeoCaches(ctx context.Context, params Multipart) (Response, error) {
	return c.Do(ctx, PostMultipart(c.URLTo("api/geo_caches/search"), params))
}

// FetchGeoCache fetches one geo cache.
func (c *Client) FetchGeoCache(ctx context.Context, id int) (Response, error) {
	return c.Do(ctx, Get(c.URLTo(geoCachePath(id))))
}

// UploadGeoCache creates a geo cache.
func (c *Client) UploadGeoCache(ctx context.Context, data Multipart) (Response, error) {
	return c.doAuthorized(ctx, PostMultipart(c.URLTo("api/geo_caches"), data))
}

// UpdateGeoCache replaces a geo cache, sent as PUT.
func (c *Client) UpdateGeoCache(ctx context.Context, id int, data Multipart) (Response, error) {
	req := PostMultipart(c.URLTo(geoCachePath(id)), data).WithMethod(http.MethodPut)
	return c.doAuthorized(ctx, req)
}

// DestroyGeoCache deletes a geo cache with a bodyless DELETE.
func (c *Client) DestroyGeoCache(ctx context.Context, id int) (Response, error) {
	req := Post(c.URLTo(geoCachePath(id)), nil).WithMethod(http.MethodDelete)
	return c.doAuthorized(ctx, req)
}
