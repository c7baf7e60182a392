// Package dandiapi implements the archive gateway over a DANDI-compatible
// REST API.
//
// The client is stateless: every call maps to one or more HTTP requests
// and nothing is cached between calls. List endpoints return Django page
// envelopes; the pagers here follow the envelope's next URL one page at a
// time, so an abandoned drain costs nothing beyond the pages already
// fetched.
//
// Errors follow the vfs taxonomy: HTTP 404 becomes ErrNotFound, any other
// failure becomes ErrUpstream. Transport errors and 5xx responses are
// retried with exponential backoff before surfacing.
package dandiapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/time/rate"

	"github.com/marmos91/dandifs/internal/logger"
	"github.com/marmos91/dandifs/pkg/vfs"
)

const (
	// DefaultAPIURL is the public DANDI archive API.
	DefaultAPIURL = "https://api.dandiarchive.org/api"

	// DefaultZarrBucket is the public bucket holding zarr chunk trees.
	DefaultZarrBucket = "dandiarchive"

	defaultTimeout         = 30 * time.Second
	defaultRetryMaxElapsed = 1 * time.Minute
)

// Config carries the archive client settings.
type Config struct {
	// APIURL is the API base, e.g. https://api.dandiarchive.org/api.
	APIURL string

	// Token is sent as "Authorization: token <value>" when non-empty.
	Token string

	// ZarrBucket is the object store bucket zarr assets point into.
	ZarrBucket string

	// Timeout bounds each metadata request end to end. Blob downloads are
	// bounded by their context instead.
	Timeout time.Duration

	// RetryMaxElapsed bounds the total time spent retrying one request.
	RetryMaxElapsed time.Duration

	// RequestsPerSecond caps the sustained request rate against the
	// service, downloads and retries included. Zero leaves the rate
	// uncapped.
	RequestsPerSecond float64

	// RequestBurst is the token bucket size when a rate cap is set.
	// Zero derives the burst from the rate.
	RequestBurst int
}

// Metrics observes archive API traffic. Implementations must be safe for
// concurrent use.
type Metrics interface {
	// RecordRequest records one completed request by operation name.
	RecordRequest(operation string, duration time.Duration, err error)

	// RecordRetry records one retry attempt for an operation.
	RecordRetry(operation string)
}

type noopMetrics struct{}

func (noopMetrics) RecordRequest(operation string, duration time.Duration, err error) {}
func (noopMetrics) RecordRetry(operation string)                                      {}

// Client talks to a DANDI-compatible archive API. It implements
// vfs.Archive and is safe for concurrent use.
type Client struct {
	base       *url.URL
	token      string
	zarrBucket string
	retryMax   time.Duration
	metrics    Metrics

	// limiter paces every outbound request when a rate cap is set.
	limiter *rate.Limiter

	// api carries a hard timeout; download deliberately does not, long
	// blob streams are bounded by their context.
	api      *http.Client
	download *http.Client
}

// New builds an archive client. Pass nil metrics for no-op observability.
func New(cfg Config, m Metrics) (*Client, error) {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.ZarrBucket == "" {
		cfg.ZarrBucket = DefaultZarrBucket
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryMaxElapsed <= 0 {
		cfg.RetryMaxElapsed = defaultRetryMaxElapsed
	}
	if m == nil {
		m = noopMetrics{}
	}

	base, err := url.Parse(cfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("parsing archive api url %q: %w", cfg.APIURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("archive api url %q: scheme must be http or https", cfg.APIURL)
	}
	base.Path = strings.TrimSuffix(base.Path, "/")

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.RequestBurst
		if burst <= 0 {
			burst = int(cfg.RequestsPerSecond)
			if burst < 1 {
				burst = 1
			}
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		base:       base,
		token:      cfg.Token,
		zarrBucket: cfg.ZarrBucket,
		retryMax:   cfg.RetryMaxElapsed,
		metrics:    m,
		limiter:    limiter,
		api:        &http.Client{Timeout: cfg.Timeout},
		download:   &http.Client{},
	}, nil
}

// throttle blocks until the rate cap grants a slot. Each retry attempt
// takes its own slot, so retries cannot exceed the cap either.
func (c *Client) throttle(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// endpoint joins path parts onto the API base with the trailing slash the
// service expects.
func (c *Client) endpoint(parts ...string) string {
	u := *c.base
	u.Path = path.Join(append([]string{u.Path}, parts...)...) + "/"
	return u.String()
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
}

// getJSON fetches rawurl and decodes the response body into out, retrying
// transient failures.
func (c *Client) getJSON(ctx context.Context, operation, rawurl string, out any) error {
	start := time.Now()
	err := c.withRetry(ctx, operation, func() error {
		if err := c.throttle(ctx); err != nil {
			return backoff.Permanent(vfs.NewUpstream(requestPath(rawurl), err))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
		if err != nil {
			return backoff.Permanent(vfs.NewUpstream(requestPath(rawurl), err))
		}
		c.authorize(req)

		resp, err := c.api.Do(req)
		if err != nil {
			return vfs.NewUpstream(requestPath(rawurl), err)
		}
		defer resp.Body.Close()

		if err := classifyStatus(resp, rawurl); err != nil {
			return err
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(vfs.NewUpstream(requestPath(rawurl), fmt.Errorf("decoding response: %w", err)))
		}
		return nil
	})
	c.metrics.RecordRequest(operation, time.Since(start), err)
	return err
}

// withRetry runs attempt under exponential backoff. Permanent errors and
// context cancellation stop the retry loop immediately.
func (c *Client) withRetry(ctx context.Context, operation string, attempt func() error) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.retryMax

	notify := func(err error, wait time.Duration) {
		c.metrics.RecordRetry(operation)
		logger.Warn("archive %s failed, retrying in %s: %v", operation, wait, err)
	}

	return backoff.RetryNotify(attempt, backoff.WithContext(b, ctx), notify)
}

// classifyStatus translates a non-2xx response into the error taxonomy.
// 404 and other 4xx are permanent; 5xx stays retryable.
func classifyStatus(resp *http.Response, rawurl string) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return backoff.Permanent(vfs.NewNotFound(requestPath(rawurl)))
	case resp.StatusCode >= 500:
		return vfs.NewUpstream(requestPath(rawurl), statusError(resp))
	default:
		return backoff.Permanent(vfs.NewUpstream(requestPath(rawurl), statusError(resp)))
	}
}

// statusError captures the status line and a short body excerpt.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	excerpt := strings.TrimSpace(string(body))
	if excerpt == "" {
		return fmt.Errorf("archive returned %s", resp.Status)
	}
	return fmt.Errorf("archive returned %s: %s", resp.Status, excerpt)
}

// requestPath reduces a request URL to its path for error reporting.
func requestPath(rawurl string) string {
	if u, err := url.Parse(rawurl); err == nil {
		return u.Path
	}
	return rawurl
}

// listEnvelope is the Django pagination wrapper every list endpoint uses.
type listEnvelope struct {
	Count    int             `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
	Results  json.RawMessage `json:"results"`
}

// fetchPage retrieves one envelope page and returns the raw results along
// with the next page URL, empty when the listing is exhausted.
func (c *Client) fetchPage(ctx context.Context, operation, pageURL string) (json.RawMessage, string, error) {
	var env listEnvelope
	if err := c.getJSON(ctx, operation, pageURL, &env); err != nil {
		return nil, "", err
	}
	next := ""
	if env.Next != nil {
		next = *env.Next
	}
	return env.Results, next, nil
}

var _ vfs.Archive = (*Client)(nil)
