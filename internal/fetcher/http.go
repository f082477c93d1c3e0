package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/campusdata/enrich-cli/internal/resilience"
)

// maxBodyBytes caps how much of a response is read. Institution pages and
// API payloads are small; anything larger is junk.
const maxBodyBytes = 4 << 20

// HTTPOptions configures the HTTP client.
type HTTPOptions struct {
	UserAgent string
	Timeout   time.Duration
}

// HTTPClient implements Client using net/http. Each call is a single
// attempt: retryable failures are surfaced as TransientError so the
// resilience layer can classify them.
type HTTPClient struct {
	client *http.Client
	opts   HTTPOptions
}

// NewHTTPClient creates an HTTPClient with the given options.
func NewHTTPClient(opts HTTPOptions) *HTTPClient {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "enrich-cli/1.0"
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPClient{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts: opts,
	}
}

func (c *HTTPClient) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", eris.Wrapf(err, "fetcher: get %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("fetcher: http %d from %s", resp.StatusCode, rawURL)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, "", resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", eris.Wrapf(err, "fetcher: read body from %s", rawURL)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (c *HTTPClient) Get(ctx context.Context, rawURL string) ([]byte, error) {
	body, _, err := c.fetch(ctx, rawURL)
	return body, err
}

func (c *HTTPClient) GetJSON(ctx context.Context, rawURL string, out any) error {
	body, _, err := c.fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "fetcher: decode json from %s", rawURL)
	}
	return nil
}

func (c *HTTPClient) GetHTML(ctx context.Context, rawURL string) (string, error) {
	body, contentType, err := c.fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return decodeCharset(body, contentType)
}

// decodeCharset converts a response body to UTF-8 based on the charset
// parameter of the Content-Type header. Unknown or absent charsets fall
// back to passing the bytes through unchanged.
func decodeCharset(body []byte, contentType string) (string, error) {
	if contentType == "" {
		return string(body), nil
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return string(body), nil
	}
	cs := strings.ToLower(params["charset"])
	if cs == "" || cs == "utf-8" || cs == "utf8" {
		return string(body), nil
	}

	enc, err := htmlindex.Get(cs)
	if err != nil {
		return string(body), nil
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: decode charset %q", cs)
	}
	return string(decoded), nil
}
