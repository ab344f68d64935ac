package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/goliatone/go-bdpay/core"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
)

// RetryingAdapter resends a request when the inner adapter fails to reach
// the gateway or the gateway answers 5xx. Other responses are returned as
// received.
type RetryingAdapter struct {
	Inner    core.TransportAdapter
	Attempts int
	Delay    time.Duration
	Logger   core.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

type RetryOption func(*RetryingAdapter)

func WithRetryAttempts(attempts int) RetryOption {
	return func(a *RetryingAdapter) {
		if attempts > 0 {
			a.Attempts = attempts
		}
	}
}

func WithRetryDelay(delay time.Duration) RetryOption {
	return func(a *RetryingAdapter) {
		if delay >= 0 {
			a.Delay = delay
		}
	}
}

func WithRetryLogger(logger core.Logger) RetryOption {
	return func(a *RetryingAdapter) {
		if logger != nil {
			a.Logger = logger
		}
	}
}

// WithRetryConfig applies defaults.retry_attempts and defaults.retry_delay.
func WithRetryConfig(cfg core.DefaultsConfig) RetryOption {
	return func(a *RetryingAdapter) {
		if cfg.RetryAttempts > 0 {
			a.Attempts = cfg.RetryAttempts
		}
		if cfg.RetryDelayMillis >= 0 {
			a.Delay = time.Duration(cfg.RetryDelayMillis) * time.Millisecond
		}
	}
}

func NewRetryingAdapter(inner core.TransportAdapter, opts ...RetryOption) *RetryingAdapter {
	adapter := &RetryingAdapter{
		Inner:    inner,
		Attempts: DefaultRetryAttempts,
		Delay:    DefaultRetryDelay,
		Logger:   glog.Nop(),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	return adapter
}

func (a *RetryingAdapter) Kind() string {
	if a == nil || a.Inner == nil {
		return KindREST
	}
	return a.Inner.Kind()
}

func (a *RetryingAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.Inner == nil {
		return core.TransportResponse{}, failure(nil, goerrors.CategoryInternal, "transport: retrying adapter requires an inner adapter", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	attempts := a.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := a.sleep
	if sleep == nil {
		sleep = sleepContext
	}
	logger := glog.Ensure(a.Logger)

	var (
		resp core.TransportResponse
		err  error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err = a.Inner.Do(ctx, req)
		if err == nil && resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}
		if err != nil && !retryable(err) {
			return resp, err
		}
		if attempt == attempts || ctx.Err() != nil {
			break
		}
		logger.Warn("BDPay API request retry",
			"method", req.Method,
			"url", req.URL,
			"attempt", attempt,
			"status_code", resp.StatusCode,
			"error", err,
		)
		if sleepErr := sleep(ctx, a.Delay); sleepErr != nil {
			if err == nil {
				return resp, nil
			}
			return resp, err
		}
	}
	return resp, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ core.TransportAdapter = (*RetryingAdapter)(nil)
