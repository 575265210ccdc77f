package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"solana-call-tracker/internal/observability"
)

// maxBodyBytes bounds provider response bodies.
const maxBodyBytes = 8 << 20

var (
	errRateLimited = errors.New("rate limited")
	errNotFound    = errors.New("not found")
)

// httpDoer performs paced GET requests against one provider and decodes
// JSON responses. A 429 is retried a fixed number of times with a fixed
// delay; every other failure is returned to the adapter on the first try.
type httpDoer struct {
	provider string
	client   *http.Client
	limiter  *rate.Limiter
	headers  map[string]string
	retries  int
	delay    time.Duration
	tracer   trace.Tracer
	log      debugLogger
}

func newHTTPDoer(provider string, opts Options, headers map[string]string) *httpDoer {
	burst := int(opts.RatePerSecond)
	if burst < 1 {
		burst = 1
	}
	return &httpDoer{
		provider: provider,
		client:   opts.HTTPClient,
		limiter:  rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst),
		headers:  headers,
		retries:  opts.RateLimitRetries,
		delay:    opts.RateLimitDelay,
		tracer:   opts.Tracer,
		log:      debugLogger{logger: opts.Logger, prefix: "[" + provider + "]", debug: opts.Debug},
	}
}

// getJSON issues GET url and decodes the body into out.
func (d *httpDoer) getJSON(ctx context.Context, spanName, url string, out interface{}) error {
	ctx, span := d.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("provider", d.provider),
	))
	defer span.End()

	start := time.Now()
	err := d.get(ctx, url, out)
	observability.RecordProviderRequest(d.provider, outcome(err), time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (d *httpDoer) get(ctx context.Context, url string, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.delay):
			}
		}

		if err := d.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}

		body, err := d.do(ctx, url)
		if errors.Is(err, errRateLimited) {
			lastErr = err
			d.log.Debugf("429 on attempt %d for %s", attempt+1, url)
			continue
		}
		if err != nil {
			return err
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w after %d retries", lastErr, d.retries)
}

func (d *httpDoer) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range d.headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, errRateLimited):
		return "rate_limited"
	case errors.Is(err, errNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
