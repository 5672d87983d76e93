package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"audiogen/internal/api"
	"audiogen/internal/logging"
)

const maxDocumentBytes = 1 << 20

// Document is a fetched metadata document plus its Last-Modified time. The
// time is zero when the server omits or garbles the header.
type Document struct {
	Ref          string
	Metadata     api.Metadata
	LastModified time.Time
}

// Result is one outcome of FetchAll.
type Result struct {
	Ref      string
	Document Document
	Err      error
}

// Client reads documents relative to a server base URL.
type Client struct {
	base        *url.URL
	http        *http.Client
	concurrency int
	logger      *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithConcurrency bounds the number of parallel fetches in FetchAll.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "metadata")
	}
}

// NewClient builds a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, api.Wrap(api.ErrConfiguration, "metadata", "new client", "invalid server url", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, api.Wrap(api.ErrConfiguration, "metadata", "new client", fmt.Sprintf("server url %q needs scheme and host", baseURL), nil)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	c := &Client{
		base:        base,
		http:        &http.Client{Timeout: timeout},
		concurrency: 4,
		logger:      logging.NewComponentLogger(nil, "metadata"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Resolve turns a server reference into an absolute URL.
func (c *Client) Resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", api.Wrap(api.ErrFetch, "metadata", "resolve", "empty reference", nil)
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", api.Wrap(api.ErrFetch, "metadata", "resolve", fmt.Sprintf("invalid reference %q", ref), err)
	}
	return c.base.ResolveReference(parsed).String(), nil
}

// Fetch downloads and decodes one metadata document.
func (c *Client) Fetch(ctx context.Context, ref string) (Document, error) {
	resp, err := c.get(ctx, ref, "application/json")
	if err != nil {
		return Document{}, err
	}
	defer resp.Body.Close()

	var meta api.Metadata
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDocumentBytes)).Decode(&meta); err != nil {
		return Document{}, api.Wrap(api.ErrFetch, "metadata", "decode", ref, err)
	}

	doc := Document{Ref: ref, Metadata: meta}
	if header := resp.Header.Get("Last-Modified"); header != "" {
		if parsed, err := http.ParseTime(header); err == nil {
			doc.LastModified = parsed
		} else {
			c.logger.Debug("ignoring unparsable last-modified",
				logging.String("ref", ref),
				logging.String("value", header),
			)
		}
	}
	return doc, nil
}

// FetchAll fetches every reference with bounded concurrency. Results keep the
// input order; failures are reported per entry and never cancel siblings.
func (c *Client) FetchAll(ctx context.Context, refs []string) []Result {
	results := make([]Result, len(refs))
	var group errgroup.Group
	group.SetLimit(c.concurrency)
	for i, ref := range refs {
		group.Go(func() error {
			doc, err := c.Fetch(ctx, ref)
			results[i] = Result{Ref: ref, Document: doc, Err: err}
			return nil
		})
	}
	_ = group.Wait()
	return results
}

// Download saves the referenced file to dest and returns the bytes written.
// The file is written to a temporary sibling first and renamed on success.
func (c *Client) Download(ctx context.Context, ref, dest string) (int64, error) {
	resp, err := c.get(ctx, ref, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create download directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	written, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmpName)
		return 0, api.Wrap(api.ErrFetch, "metadata", "download", ref, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("finalize download: %w", err)
	}
	return written, nil
}

func (c *Client) get(ctx context.Context, ref, accept string) (*http.Response, error) {
	endpoint, err := c.Resolve(ref)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, api.Wrap(api.ErrFetch, "metadata", "request", ref, err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, api.Wrap(api.ErrFetch, "metadata", "get", ref, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, api.Wrap(api.ErrFetch, "metadata", "get", fmt.Sprintf("%s returned status %d", ref, resp.StatusCode), nil)
	}
	return resp, nil
}
