// Package transport implements the HTTP half of the git smart protocol v2
// transport (C1): the GET /info/refs capability probe and the POST
// /git-upload-pack command exchange, both pkt-line framed.
//
// Grounded on protocol/client/rawclient.go (base-URL handling, default
// headers), smartinfo.go (info/refs GET shape), and uploadpack.go (the
// upload-pack POST shape), trimmed to what a read-only v2 client needs:
// no ReceivePack, no basic/token auth options (spec §1 Non-goals: "support
// beyond what the underlying transport offers" — an http.Client configured
// by the caller already carries proxy/TLS/auth concerns). Retries are
// layered in via retry.Do rather than hand-rolled per call, grounded on
// protocol/client/http_retrier.go's GET/POST distinction.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nanoci/shalo/ciclient/errs"
	"github.com/nanoci/shalo/log"
	"github.com/nanoci/shalo/retry"
)

// Transport issues the two request shapes protocol-v2 needs against one
// repository's base URL.
type Transport struct {
	base      *url.URL
	client    *http.Client
	userAgent string
}

// Option configures a Transport at construction time.
type Option func(*Transport)

// WithHTTPClient overrides the default *http.Client (e.g. to set a
// deadline-wide Timeout or a custom Transport for TLS/proxy config).
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.client = c }
}

// WithUserAgent overrides the default User-Agent header value.
func WithUserAgent(ua string) Option {
	return func(t *Transport) { t.userAgent = ua }
}

// New constructs a Transport for repoURL, which must be an http(s) URL.
func New(repoURL string, opts ...Option) (*Transport, error) {
	if repoURL == "" {
		return nil, fmt.Errorf("transport: repository URL cannot be empty")
	}

	u, err := url.Parse(repoURL)
	if err != nil {
		return nil, fmt.Errorf("transport: parsing url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("transport: only http(s) URLs are supported, got %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	t := &Transport{
		base:      u,
		client:    &http.Client{},
		userAgent: "shalo/0",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Transport) addDefaultHeaders(req *http.Request) {
	req.Header.Set("Git-Protocol", "version=2")
	req.Header.Set("User-Agent", t.userAgent)
}

// InfoRefs issues GET /info/refs?service=<service> and returns the raw
// response body (the capability advertisement pkt-lines).
func (t *Transport) InfoRefs(ctx context.Context, service string) ([]byte, error) {
	u := t.base.JoinPath("info/refs")
	query := make(url.Values)
	query.Set("service", service)
	u.RawQuery = query.Encode()

	logger := log.FromContext(ctx)
	logger.Debug("info/refs request", "url", u.String(), "service", service)

	return retry.Do(ctx, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, &errs.TransportError{Op: "GET info/refs", Err: err}
		}
		t.addDefaultHeaders(req)
		return t.do(req, "GET info/refs")
	})
}

// UploadPack issues POST /git-upload-pack with body as the pkt-line framed
// command (ls-refs or fetch) and returns the raw response body.
func (t *Transport) UploadPack(ctx context.Context, body []byte) ([]byte, error) {
	u := t.base.JoinPath("git-upload-pack").String()

	logger := log.FromContext(ctx)
	logger.Debug("upload-pack request", "url", u, "requestSize", len(body))

	return retry.Do(ctx, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
		if err != nil {
			return nil, &errs.TransportError{Op: "POST git-upload-pack", Err: err}
		}
		req.Header.Set("Content-Type", "application/x-git-upload-pack-request")
		t.addDefaultHeaders(req)
		return t.do(req, "POST git-upload-pack")
	})
}

func (t *Transport) do(req *http.Request, op string) ([]byte, error) {
	res, err := t.client.Do(req)
	if err != nil {
		return nil, &errs.TransportError{Op: op, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &errs.TransportError{Op: op, StatusCode: res.StatusCode}
	}

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &errs.TransportError{Op: op, Err: err}
	}
	return respBody, nil
}
