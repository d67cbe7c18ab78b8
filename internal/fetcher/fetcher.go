package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pfrederiksen/pydocs/internal/config"
	"github.com/pfrederiksen/pydocs/internal/httpcache"
	"github.com/pfrederiksen/pydocs/internal/logger"
)

var (
	ErrRelativeURL      = errors.New("URL is not absolute")
	ErrUnexpectedStatus = errors.New("unexpected status code")
)

// Response is a fetched page, either live or served from the cache.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
	FromCache  bool
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Fetcher performs cached GET requests against documentation sites
type Fetcher struct {
	client  *resty.Client
	cache   httpcache.Cache
	log     *logger.Logger
	metrics *logger.Metrics
}

// Option configures a Fetcher.
type Option func(*Fetcher)

func WithLogger(l *logger.Logger) Option {
	return func(f *Fetcher) { f.log = l }
}

func WithMetrics(m *logger.Metrics) Option {
	return func(f *Fetcher) { f.metrics = m }
}

func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.client.SetTimeout(d) }
}

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.client.SetHeader("User-Agent", ua) }
}

// New creates a Fetcher backed by cache. The cache is owned by the caller.
func New(cache httpcache.Cache, opts ...Option) *Fetcher {
	f := &Fetcher{
		client: resty.New().
			SetTimeout(config.DefaultTimeout).
			SetHeader("User-Agent", config.UserAgent),
		cache:   cache,
		log:     logger.Default(),
		metrics: logger.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// RequestOption adds query parameters or headers to a single request.
type RequestOption func(*request)

type request struct {
	params  url.Values
	headers map[string]string
}

func WithParam(key, value string) RequestOption {
	return func(r *request) { r.params.Add(key, value) }
}

func WithHeader(key, value string) RequestOption {
	return func(r *request) { r.headers[key] = value }
}

// Get fetches rawURL through the cache.
//
// A nil result means the page could not be reached (connection error,
// timeout, DNS failure, or a URL that is not absolute). The failure has
// already been logged; callers skip this unit of work and carry on. HTTP error
// statuses are not failures here: the response is returned as-is, but only
// 2xx responses are cached.
func (f *Fetcher) Get(ctx context.Context, rawURL string, opts ...RequestOption) *Response {
	req := request{params: url.Values{}, headers: map[string]string{}}
	for _, opt := range opts {
		opt(&req)
	}

	if err := checkAbsolute(rawURL); err != nil {
		f.log.Error("fetch failed", logger.Fields{"url": rawURL}, err)
		f.metrics.IncrCounter("fetch.failed")
		return nil
	}

	key, err := httpcache.Key(http.MethodGet, rawURL, req.params)
	if err != nil {
		f.log.Error("fetch failed", logger.Fields{"url": rawURL}, err)
		f.metrics.IncrCounter("fetch.failed")
		return nil
	}

	entry, ok, err := f.cache.Get(ctx, key)
	if err != nil {
		f.log.Warn("cache read failed", logger.Fields{"url": rawURL, "error": err.Error()})
	}
	if ok {
		f.metrics.IncrCounter("fetch.cache_hit")
		f.log.Debug("cache hit", logger.Fields{"url": rawURL})
		return &Response{
			URL:        rawURL,
			StatusCode: entry.StatusCode,
			Header:     entry.Header,
			Body:       entry.Body,
			FromCache:  true,
		}
	}

	start := time.Now()
	res, err := f.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(req.params).
		SetHeaders(req.headers).
		Get(rawURL)
	if err != nil {
		f.log.Error("fetch failed", logger.Fields{"url": rawURL}, err)
		f.metrics.IncrCounter("fetch.failed")
		return nil
	}
	f.metrics.IncrCounter("fetch.live")
	f.metrics.RecordTiming("fetch.live", time.Since(start))

	resp := &Response{
		URL:        rawURL,
		StatusCode: res.StatusCode(),
		Header:     res.Header(),
		Body:       res.Body(),
	}

	if !res.IsSuccess() {
		f.log.Warn("unexpected status code", logger.Fields{"url": rawURL, "status": res.StatusCode()})
		return resp
	}

	err = f.cache.Set(ctx, key, &httpcache.Entry{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
		StoredAt:   time.Now().UTC(),
	})
	if err != nil {
		f.log.Warn("cache write failed", logger.Fields{"url": rawURL, "error": err.Error()})
	}

	return resp
}

// Download performs a live GET that never reads from or writes to the cache.
// There is no retry: any failure is returned to the caller.
func (f *Fetcher) Download(ctx context.Context, rawURL string) ([]byte, error) {
	if err := checkAbsolute(rawURL); err != nil {
		return nil, err
	}

	res, err := f.client.R().
		SetContext(ctx).
		Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", rawURL, err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("downloading %s: %w: %d", rawURL, ErrUnexpectedStatus, res.StatusCode())
	}

	f.metrics.IncrCounter("fetch.download")
	return res.Body(), nil
}

// ClearCache drops every cached response.
func (f *Fetcher) ClearCache(ctx context.Context) error {
	if err := f.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clearing response cache: %w", err)
	}
	f.log.Info("response cache cleared", nil)
	return nil
}

func checkAbsolute(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parsing URL: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrRelativeURL, rawURL)
	}
	return nil
}
