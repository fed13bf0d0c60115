package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/yegors/flightrec/internal/metrics"
	"github.com/yegors/flightrec/pkg/logger"
)

// Policy bounds how hard a Requester tries
type Policy struct {
	Timeout           time.Duration // per attempt
	MaxRetries        int           // retries after the first attempt
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	RequestsPerSecond float64 // 0 disables pacing
}

// DefaultPolicy returns the policy used when nothing is configured
func DefaultPolicy() Policy {
	return Policy{
		Timeout:        30 * time.Second,
		MaxRetries:     5,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Requester performs GET requests against one upstream source with bounded
// retry on transient failures (503, 429, transport errors).
type Requester struct {
	source     string
	httpClient *http.Client
	policy     Policy
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *logger.Logger
}

// NewRequester creates a requester for the named source
func NewRequester(source string, policy Policy, log *logger.Logger) *Requester {
	limit := rate.Inf
	if policy.RequestsPerSecond > 0 {
		limit = rate.Limit(policy.RequestsPerSecond)
	}

	r := &Requester{
		source:     source,
		httpClient: &http.Client{Timeout: policy.Timeout},
		policy:     policy,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     log.Named(source + "-http"),
	}

	r.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        source,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(policy.MaxRetries+1)*2
		},
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, ErrNotFound) {
				return true
			}
			var se *StatusError
			return errors.As(err, &se) && se.Code < 500
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("Circuit breaker state change",
				logger.String("source", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		},
	})

	return r
}

// Get fetches url and returns the response body of a 2xx response.
// It returns ErrNotFound for 404, a *StatusError for other non-success
// codes and ErrUnavailable once the retry budget is exhausted.
func (r *Requester) Get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := r.backoff(attempt)
			metrics.UpstreamRetries.WithLabelValues(r.source).Inc()
			r.logger.Info("Retrying upstream request",
				logger.String("url", url),
				logger.Int("attempt", attempt),
				logger.Duration("backoff", backoff))

			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, err := r.breaker.Execute(func() ([]byte, error) {
			return r.do(ctx, url, header)
		})
		switch {
		case err == nil:
			metrics.UpstreamRequests.WithLabelValues(r.source, "ok").Inc()
			if attempt > 0 {
				r.logger.Info("Upstream request succeeded after retries",
					logger.String("url", url),
					logger.Int("attempts_needed", attempt+1))
			}
			return body, nil
		case errors.Is(err, ErrNotFound):
			metrics.UpstreamRequests.WithLabelValues(r.source, "not_found").Inc()
			return nil, err
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.UpstreamRequests.WithLabelValues(r.source, "rejected").Inc()
			return nil, fmt.Errorf("%w: %s circuit open: %v", ErrUnavailable, r.source, err)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case isTransient(err):
			metrics.UpstreamRequests.WithLabelValues(r.source, "unavailable").Inc()
			lastErr = err
			r.logger.Warn("Upstream temporarily unavailable, may retry",
				logger.String("url", url),
				logger.Error(err),
				logger.Int("attempt", attempt+1),
				logger.Int("max_attempts", r.policy.MaxRetries+1))
			continue
		default:
			metrics.UpstreamRequests.WithLabelValues(r.source, "error").Inc()
			return nil, err
		}
	}

	r.logger.Error("All upstream attempts failed",
		logger.String("url", url),
		logger.Error(lastErr),
		logger.Int("max_attempts", r.policy.MaxRetries+1))
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, r.policy.MaxRetries+1, lastErr)
}

// backoff returns the exponential delay before the given retry attempt
func (r *Requester) backoff(attempt int) time.Duration {
	d := r.policy.InitialBackoff << uint(attempt-1)
	if d <= 0 || (r.policy.MaxBackoff > 0 && d > r.policy.MaxBackoff) {
		d = r.policy.MaxBackoff
	}
	return d
}

func (r *Requester) do(ctx context.Context, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	r.logger.Debug("Request url", logger.String("url", url))

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &transientError{err: fmt.Errorf("failed to execute request: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &transientError{err: fmt.Errorf("failed to read response body: %w", err)}
		}
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusServiceUnavailable, resp.StatusCode == http.StatusTooManyRequests:
		return nil, &transientError{err: &StatusError{Code: resp.StatusCode, URL: url}}
	default:
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, &StatusError{Code: resp.StatusCode, URL: url, Body: string(preview)}
	}
}
