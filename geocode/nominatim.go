package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/datavis-fr/geobatch/core"
)

const (
	DefaultEndpoint  = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "geobatch/1.0 (+https://github.com/datavis-fr/geobatch)"

	tracerName      = "github.com/datavis-fr/geobatch/geocode"
	maxResponseSize = 1 << 20
)

// ClientConfig configures a NominatimClient. Zero values take the defaults,
// except Retry: a zero RetryPolicy disables retries.
type ClientConfig struct {
	Endpoint          string
	UserAgent         string
	RequestsPerSecond float64 // default 1, the public instance's policy
	Burst             int     // default 1
	Timeout           time.Duration
	Retry             core.RetryPolicy
}

// Option customizes a NominatimClient.
type Option func(*NominatimClient)

// WithHTTPClient replaces the instrumented default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(n *NominatimClient) { n.httpClient = c }
}

// WithTracer sets the tracer used for lookup spans.
func WithTracer(t trace.Tracer) Option {
	return func(n *NominatimClient) { n.tracer = t }
}

// WithLimiter shares a limiter between clients hitting the same instance.
func WithLimiter(l *rate.Limiter) Option {
	return func(n *NominatimClient) { n.limiter = l }
}

// WithLogger sets the client logger.
func WithLogger(l core.Logger) Option {
	return func(n *NominatimClient) { n.logger = l }
}

// NominatimClient is a Geocoder backed by the Nominatim search API.
// It is safe for concurrent use; all callers share one rate limiter.
type NominatimClient struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      core.RetryPolicy
	tracer     trace.Tracer
	logger     core.Logger
}

var _ Geocoder = (*NominatimClient)(nil)

// StatusError is an unexpected HTTP status from the upstream.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("geocode: unexpected status %s", e.Status)
}

// nominatimResult is one element of the search response. Coordinates are strings on the wire.
type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatimClient creates a client for cfg.Endpoint.
func NewNominatimClient(cfg ClientConfig, opts ...Option) (*NominatimClient, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("geocode: invalid endpoint %q", endpoint)
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &NominatimClient{
		endpoint:  strings.TrimRight(endpoint, "/"),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		retry:   cfg.Retry,
		tracer:  otel.Tracer(tracerName),
		logger:  core.NewDefaultLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Geocode returns the best match for query.
// Transport errors, 429 and 5xx are retried under the client's RetryPolicy.
// Other statuses, malformed bodies and empty results fail at once.
func (c *NominatimClient) Geocode(ctx context.Context, query string) (Location, error) {
	ctx, span := c.tracer.Start(ctx, "nominatim.Geocode",
		trace.WithAttributes(attribute.String("query", query)))
	defer span.End()

	if strings.TrimSpace(query) == "" {
		span.RecordError(ErrEmptyQuery)
		span.SetStatus(codes.Error, ErrEmptyQuery.Error())
		return Location{}, ErrEmptyQuery
	}

	attempt := 0
	loc, err := backoff.RetryWithData(func() (Location, error) {
		attempt++
		loc, err := c.search(ctx, query)
		if err != nil {
			c.logger.Debug("nominatim lookup attempt failed",
				core.F("query", query),
				core.F("attempt", attempt),
				core.F("error", err.Error()),
			)
		}
		return loc, err
	}, c.retry.NewBackOff(ctx))
	span.SetAttributes(attribute.Int("attempts", attempt))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Location{}, err
	}

	span.SetAttributes(
		attribute.Float64("lat", loc.Lat),
		attribute.Float64("lon", loc.Lon),
	)
	return loc, nil
}

// search performs one request. Non-retryable errors are wrapped with backoff.Permanent.
func (c *NominatimClient) search(ctx context.Context, query string) (Location, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Location{}, backoff.Permanent(fmt.Errorf("rate limiter wait failed: %w", err))
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/search?"+params.Encode(), nil)
	if err != nil {
		return Location{}, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Location{}, backoff.Permanent(fmt.Errorf("nominatim request: %w", err))
		}
		return Location{}, fmt.Errorf("nominatim request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused by the retry.
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return Location{}, fmt.Errorf("%w: %s", ErrRateLimited, resp.Status)
	case resp.StatusCode >= http.StatusInternalServerError:
		return Location{}, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	case resp.StatusCode != http.StatusOK:
		return Location{}, backoff.Permanent(&StatusError{StatusCode: resp.StatusCode, Status: resp.Status})
	}

	var results []nominatimResult
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&results); err != nil {
		return Location{}, backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	if len(results) == 0 {
		return Location{}, backoff.Permanent(fmt.Errorf("%w: %q", ErrNotFound, query))
	}

	return parseResult(results[0])
}

func parseResult(r nominatimResult) (Location, error) {
	lat, err := strconv.ParseFloat(r.Lat, 64)
	if err != nil {
		return Location{}, backoff.Permanent(fmt.Errorf("invalid lat %q: %w", r.Lat, err))
	}
	lon, err := strconv.ParseFloat(r.Lon, 64)
	if err != nil {
		return Location{}, backoff.Permanent(fmt.Errorf("invalid lon %q: %w", r.Lon, err))
	}
	return Location{Lat: lat, Lon: lon, DisplayName: r.DisplayName}, nil
}
