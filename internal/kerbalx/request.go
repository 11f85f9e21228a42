package kerbalx

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Header names understood by KerbalX.
const (
	TokenHeader           = "token"
	HeaderClient          = "MODCLIENT"
	HeaderClientVersion   = "MODCLIENTVERSION"
	HeaderClientSignature = "MODCLIENTSIGNATURE"
	HeaderGameVersion     = "KSPVERSION"
	HeaderRequestID       = "X-Request-Id"
)

const formContentType = "application/x-www-form-urlencoded"

// Multipart is a pre-built multipart/form-data body.
type Multipart struct {
	ContentType string
	Body        []byte
}

// File is one file part of a multipart payload.
type File struct {
	Field string
	Name  string
	Data  []byte
}

// NewMultipart encodes fields (in key order) followed by files.
func NewMultipart(fields map[string]string, files ...File) (Multipart, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, fields[k]); err != nil {
			return Multipart{}, fmt.Errorf("write field %q: %w", k, err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Name)
		if err != nil {
			return Multipart{}, fmt.Errorf("create file part %q: %w", f.Field, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return Multipart{}, fmt.Errorf("write file part %q: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return Multipart{}, fmt.Errorf("close multipart: %w", err)
	}
	return Multipart{ContentType: w.FormDataContentType(), Body: buf.Bytes()}, nil
}

// Request describes one outbound call. Values are immutable: every With*
// method returns a modified copy.
type Request struct {
	id     string
	method string
	url    string
	header http.Header
	body   []byte
}

func newRequest(method, rawURL string) Request {
	return Request{
		id:     uuid.NewString(),
		method: method,
		url:    rawURL,
		header: http.Header{},
	}
}

// Get builds a bodyless GET.
func Get(rawURL string) Request {
	return newRequest(http.MethodGet, rawURL)
}

// Head builds a GET and switches the verb to HEAD.
func Head(rawURL string) Request {
	return Get(rawURL).WithMethod(http.MethodHead)
}

// Post builds a form-encoded POST. A nil form yields a GET-shaped request
// whose method is then set to POST.
func Post(rawURL string, form url.Values) Request {
	if form == nil {
		return Get(rawURL).WithMethod(http.MethodPost)
	}
	r := newRequest(http.MethodPost, rawURL)
	r.body = []byte(form.Encode())
	r.header.Set("Content-Type", formContentType)
	return r
}

// PostMultipart builds a POST carrying mp. Combine with WithMethod for PUT.
func PostMultipart(rawURL string, mp Multipart) Request {
	r := newRequest(http.MethodPost, rawURL)
	r.body = bytes.Clone(mp.Body)
	if mp.ContentType != "" {
		r.header.Set("Content-Type", mp.ContentType)
	}
	return r
}

// WithMethod overrides the wire verb, leaving body and headers alone.
func (r Request) WithMethod(method string) Request {
	c := r.clone()
	c.method = strings.ToUpper(strings.TrimSpace(method))
	return c
}

// WithHeader sets key to value, replacing any prior value. Setting the
// auth header to an empty value fails with ErrUnauthenticated.
func (r Request) WithHeader(key, value string) (Request, error) {
	if strings.EqualFold(key, TokenHeader) && value == "" {
		return r, ErrUnauthenticated
	}
	c := r.clone()
	c.header.Set(key, value)
	return c, nil
}

// ID returns the per-request correlation id.
func (r Request) ID() string { return r.id }

// Method returns the wire verb.
func (r Request) Method() string { return r.method }

// URL returns the target URL.
func (r Request) URL() string { return r.url }

// Header returns the value of key, matched case-insensitively.
func (r Request) Header(key string) string { return r.header.Get(key) }

// Body returns a copy of the payload.
func (r Request) Body() []byte { return bytes.Clone(r.body) }

// HasBody reports whether a payload is attached.
func (r Request) HasBody() bool { return len(r.body) > 0 }

func (r Request) clone() Request {
	c := r
	c.header = r.header.Clone()
	if c.header == nil {
		c.header = http.Header{}
	}
	c.body = bytes.Clone(r.body)
	return c
}

func (r Request) build(ctx context.Context) (*http.Request, error) {
	switch r.method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodHead:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, r.method)
	}
	var body *bytes.Reader
	if len(r.body) > 0 {
		body = bytes.NewReader(r.body)
	}
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, r.method, r.url, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, r.method, r.url, nil)
	}
	if err != nil {
		return nil, err
	}
	req.Header = r.header.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}
	req.Header.Set("Accept", "application/json")
	if r.id != "" {
		req.Header.Set(HeaderRequestID, r.id)
	}
	return req, nil
}
