package kerbalx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// CraftAttributes are the fields kept when flattening a craft list.
var CraftAttributes = []string{
	"id", "name", "version", "url", "type", "part_count", "crew_capacity",
	"cost", "mass", "stages", "created_at", "updated_at", "description",
}

// CraftList maps a craft id to its attributes rendered as strings.
type CraftList map[int]map[string]string

// Clone returns a deep copy.
func (l CraftList) Clone() CraftList {
	if l == nil {
		return nil
	}
	out := make(CraftList, len(l))
	for id, attrs := range l {
		cp := make(map[string]string, len(attrs))
		for k, v := range attrs {
			cp[k] = v
		}
		out[id] = cp
	}
	return out
}

// FlattenCraftList decodes a JSON array of craft records. Attributes that
// are absent or null are left out of a record; records without a numeric
// id are skipped.
func FlattenCraftList(body string) (CraftList, error) {
	var records []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &records); err != nil {
		return nil, err
	}
	list := make(CraftList, len(records))
	for _, rec := range records {
		id, ok := craftID(rec["id"])
		if !ok {
			continue
		}
		attrs := make(map[string]string, len(CraftAttributes))
		for _, name := range CraftAttributes {
			if v, ok := attrString(rec[name]); ok {
				attrs[name] = v
			}
		}
		list[id] = attrs
	}
	return list, nil
}

func craftID(raw json.RawMessage) (int, bool) {
	s, ok := attrString(raw)
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return id, true
}

func attrString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}
	return string(raw), true
}

// FetchDownloadQueue lists the craft queued for download.
func (c *Client) FetchDownloadQueue(ctx context.Context) (CraftList, int, error) {
	return c.fetchCraftList(ctx, "api/download_queue.json")
}

// FetchPastDownloads lists previously downloaded craft.
func (c *Client) FetchPastDownloads(ctx context.Context) (CraftList, int, error) {
	return c.fetchCraftList(ctx, "api/past_downloads.json")
}

// FetchFavouriteCraft lists the user's favourited craft.
func (c *Client) FetchFavouriteCraft(ctx context.Context) (CraftList, int, error) {
	return c.fetchCraftList(ctx, "api/favourite_craft.json")
}

// FetchUsersCraft lists the user's own craft.
func (c *Client) FetchUsersCraft(ctx context.Context) (CraftList, int, error) {
	return c.fetchCraftList(ctx, "api/user_craft.json")
}

// FetchExistingCraft refreshes the shared user craft cache read by
// UserCraft. The cache is only replaced on 200.
func (c *Client) FetchExistingCraft(ctx context.Context) (int, error) {
	list, status, err := c.fetchCraftList(ctx, "api/existing_craft.json")
	if err != nil || status != http.StatusOK {
		return status, err
	}
	c.registry.setUserCraft(list)
	return status, nil
}

// UserCraft returns a copy of the cache filled by FetchExistingCraft.
func (c *Client) UserCraft() CraftList {
	return c.registry.userCraftCopy()
}

// fetchCraftList returns a nil list for any status other than 200.
func (c *Client) fetchCraftList(ctx context.Context, path string) (CraftList, int, error) {
	resp, err := c.doAuthorized(ctx, Get(c.URLTo(path)))
	if err != nil {
		return nil, resp.Status, err
	}
	if resp.Status != http.StatusOK {
		return nil, resp.Status, nil
	}
	list, err := FlattenCraftList(resp.Body)
	if err != nil {
		return nil, resp.Status, fmt.Errorf("decode craft list: %w", err)
	}
	return list, resp.Status, nil
}

// RemoveFromQueue drops a craft from the download queue.
func (c *Client) RemoveFromQueue(ctx context.Context, id int) (Response, error) {
	return c.doAuthorized(ctx, Get(c.URLTo(fmt.Sprintf("api/remove_from_queue/%d", id))))
}

// DownloadCraft fetches a craft file.
func (c *Client) DownloadCraft(ctx context.Context, id int) (Response, error) {
	return c.Do(ctx, Get(c.URLTo(fmt.Sprintf("api/craft/%d", id))))
}

// UploadCraft publishes a new craft.
func (c *Client) UploadCraft(ctx context.Context, craft Multipart) (Response, error) {
	return c.doAuthorized(ctx, PostMultipart(c.URLTo("api/craft"), craft))
}

// UpdateCraft replaces an existing craft. The multipart body is attached as
// a POST and sent as PUT.
func (c *Client) UpdateCraft(ctx context.Context, id int, craft Multipart) (Response, error) {
	req := PostMultipart(c.URLTo(fmt.Sprintf("api/craft/%d", id)), craft).WithMethod(http.MethodPut)
	return c.doAuthorized(ctx, req)
}

// LookupParts asks KerbalX which mods provide the listed parts.
func (c *Client) LookupParts(ctx context.Context, parts Multipart) (Response, error) {
	return c.Do(ctx, PostMultipart(c.URLTo("api/lookup_parts"), parts))
}
