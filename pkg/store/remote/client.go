package remote

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/httputil"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/store"
)

// Default client settings.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultAttempts = 3
	retryDelay      = 200 * time.Millisecond
	maxRetryDelay   = 5 * time.Second
)

// ClientOptions configures [NewClient].
type ClientOptions struct {
	Timeout  time.Duration // per operation, including retries
	Attempts int
	HTTP     *http.Client
	// RunID is sent as the request ID of every request, so server logs can
	// be matched to a client run.
	RunID string
}

// WithDefaults fills unset fields.
func (o ClientOptions) WithDefaults() ClientOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Attempts <= 0 {
		o.Attempts = DefaultAttempts
	}
	if o.HTTP == nil {
		o.HTTP = httputil.NewClient(o.Timeout)
	}
	return o
}

// Client is a [store.Store] backed by a remote server.
type Client struct {
	name string
	base string
	opts ClientOptions
}

var _ store.Store = (*Client)(nil)

// NewClient creates a client for the server at baseURL.
func NewClient(name, baseURL string, opts ClientOptions) (*Client, error) {
	if err := errors.ValidateURL(baseURL); err != nil {
		return nil, err
	}
	return &Client{name: name, base: strings.TrimSuffix(baseURL, "/"), opts: opts.WithDefaults()}, nil
}

// Name implements [store.Store].
func (c *Client) Name() string { return c.name }

// Close implements [store.Store].
func (c *Client) Close() error { return nil }

// do performs one request with retries and returns the body and response
// header of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, http.Header, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var (
		data   []byte
		header http.Header
	)
	backoff := httputil.Backoff{Attempts: c.opts.Attempts, Delay: retryDelay, MaxDelay: maxRetryDelay}
	err := httputil.Retry(ctx, backoff, func(int) error {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rd)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "build request")
		}
		if c.opts.RunID != "" {
			req.Header.Set(HeaderRequestID, c.opts.RunID)
		}
		resp, err := c.opts.HTTP.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return errors.Wrap(errors.ErrCodeTimeout, err, "%s: %s %s", c.name, method, path)
			}
			return &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "%s: %s %s", c.name, method, path)}
		}
		defer resp.Body.Close()
		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "%s: read response", c.name)}
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			data, header = payload, resp.Header
			return nil
		}
		rerr := c.responseError(resp.StatusCode, payload)
		if httputil.IsRetryableStatus(resp.StatusCode) {
			return &httputil.RetryableError{Err: rerr, After: httputil.RetryAfter(resp.Header)}
		}
		return rerr
	})
	if stderrors.Is(err, context.DeadlineExceeded) && errors.GetCode(err) == "" {
		err = errors.Wrap(errors.ErrCodeTimeout, err, "%s: %s %s", c.name, method, path)
	}
	return data, header, err
}

func (c *Client) responseError(status int, payload []byte) error {
	var er errorResponse
	if json.Unmarshal(payload, &er) == nil && er.Code != "" {
		return errors.New(er.Code, "%s: %s", c.name, er.Message)
	}
	code := errors.ErrCodeNetwork
	switch {
	case status == http.StatusNotFound:
		code = errors.ErrCodeNotFound
	case status == http.StatusTooManyRequests:
		code = errors.ErrCodeRateLimited
	}
	return errors.New(code, "%s: unexpected status %d", c.name, status)
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, v any) error {
	data, _, err := c.do(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "%s: decode %s", c.name, path)
	}
	return nil
}

func refQuery(r ref.Reference) url.Values { return url.Values{"ref": {r.Repr()}} }

func packageQuery(p ref.PackageReference) url.Values { return url.Values{"pref": {p.Repr()}} }

// Exists implements [store.Store].
func (c *Client) Exists(ctx context.Context, r ref.Reference) (string, bool, error) {
	var resp existsResponse
	err := c.getJSON(ctx, "/v1/recipe/exists", refQuery(r), &resp)
	return resp.Revision, resp.Found, err
}

// ListRevisions implements [store.Store].
func (c *Client) ListRevisions(ctx context.Context, r ref.Reference) ([]string, error) {
	var revs []string
	err := c.getJSON(ctx, "/v1/recipe/revisions", refQuery(r), &revs)
	return revs, err
}

// List implements [store.Store].
func (c *Client) List(ctx context.Context, name string) ([]ref.Reference, error) {
	var raw []string
	if err := c.getJSON(ctx, "/v1/recipes/"+url.PathEscape(name), nil, &raw); err != nil {
		return nil, err
	}
	out := make([]ref.Reference, 0, len(raw))
	for _, s := range raw {
		r, err := ref.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("%s: listing for %s: %w", c.name, name, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Fetch implements [store.Store].
func (c *Client) Fetch(ctx context.Context, r ref.Reference) ([]byte, ref.Reference, error) {
	data, h, err := c.do(ctx, http.MethodGet, "/v1/recipe", refQuery(r), nil)
	if err != nil {
		return nil, ref.Reference{}, err
	}
	return data, r.WithRevision(h.Get(HeaderRevision)), nil
}

// Put implements [store.Store].
func (c *Client) Put(ctx context.Context, r ref.Reference, data []byte) (string, error) {
	return c.put(ctx, "/v1/recipe", refQuery(r), data)
}

func (c *Client) put(ctx context.Context, path string, q url.Values, data []byte) (string, error) {
	if data == nil {
		data = []byte{}
	}
	body, _, err := c.do(ctx, http.MethodPut, path, q, data)
	if err != nil {
		return "", err
	}
	var resp putResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errors.Wrap(errors.ErrCodeNetwork, err, "%s: decode upload response", c.name)
	}
	return resp.Revision, nil
}

// ExistsPackage implements [store.Store].
func (c *Client) ExistsPackage(ctx context.Context, p ref.PackageReference) (string, bool, error) {
	var resp existsResponse
	err := c.getJSON(ctx, "/v1/package/exists", packageQuery(p), &resp)
	return resp.Revision, resp.Found, err
}

// ListPackages implements [store.Store].
func (c *Client) ListPackages(ctx context.Context, r ref.Reference) ([]string, error) {
	var ids []string
	err := c.getJSON(ctx, "/v1/packages", refQuery(r), &ids)
	return ids, err
}

// FetchPackage implements [store.Store].
func (c *Client) FetchPackage(ctx context.Context, p ref.PackageReference) ([]byte, ref.PackageReference, error) {
	data, h, err := c.do(ctx, http.MethodGet, "/v1/package", packageQuery(p), nil)
	if err != nil {
		return nil, ref.PackageReference{}, err
	}
	return data, p.WithRevision(h.Get(HeaderRevision)), nil
}

// PutPackage implements [store.Store].
func (c *Client) PutPackage(ctx context.Context, p ref.PackageReference, data []byte) (string, error) {
	return c.put(ctx, "/v1/package", packageQuery(p), data)
}

// RemovePackage implements [store.Store].
func (c *Client) RemovePackage(ctx context.Context, p ref.PackageReference) error {
	_, _, err := c.do(ctx, http.MethodDelete, "/v1/package", packageQuery(p), nil)
	return err
}
