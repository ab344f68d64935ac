package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-bdpay/core"
	goerrors "github.com/goliatone/go-errors"
)

const KindREST = "rest"

const (
	DefaultUserAgent                   = "go-bdpay"
	defaultRESTClientTimeout           = 30 * time.Second
	defaultRESTResponseBodyLimit int64 = 10 << 20
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RESTAdapter sends JSON requests to the BDPay open API over net/http.
type RESTAdapter struct {
	Client               HTTPDoer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
}

type RESTOption func(*RESTAdapter)

func WithHTTPClient(client HTTPDoer) RESTOption {
	return func(a *RESTAdapter) {
		if client != nil {
			a.Client = client
		}
	}
}

// WithClientTimeout replaces the default client with one bounded by timeout.
func WithClientTimeout(timeout time.Duration) RESTOption {
	return func(a *RESTAdapter) {
		if timeout > 0 {
			a.Client = &http.Client{Timeout: timeout}
		}
	}
}

func WithDefaultHeader(key, value string) RESTOption {
	return func(a *RESTAdapter) {
		if key = strings.TrimSpace(key); key != "" {
			a.DefaultHeaders[key] = value
		}
	}
}

func WithMaxResponseBodyBytes(limit int64) RESTOption {
	return func(a *RESTAdapter) {
		if limit > 0 {
			a.MaxResponseBodyBytes = limit
		}
	}
}

func NewRESTAdapter(opts ...RESTOption) *RESTAdapter {
	adapter := &RESTAdapter{
		Client: &http.Client{Timeout: defaultRESTClientTimeout},
		DefaultHeaders: map[string]string{
			"Accept":     "application/json",
			"User-Agent": DefaultUserAgent,
		},
		MaxResponseBodyBytes: defaultRESTResponseBodyLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	return adapter
}

func (*RESTAdapter) Kind() string {
	return KindREST
}

func (a *RESTAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.Client == nil {
		return core.TransportResponse{}, failure(nil, goerrors.CategoryInternal, "transport: rest adapter requires an http client", map[string]any{"adapter": KindREST})
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.TrimSpace(strings.ToUpper(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	target, err := buildURL(req.URL, req.Query)
	if err != nil {
		return core.TransportResponse{}, err
	}

	requestCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, method, target, bytes.NewReader(req.Body))
	if err != nil {
		return core.TransportResponse{}, failure(err, goerrors.CategoryBadInput, "transport: create http request", map[string]any{"adapter": KindREST, "method": method, "url": target})
	}
	applyHeaders(httpReq.Header, a.DefaultHeaders)
	applyHeaders(httpReq.Header, req.Headers)
	if req.Idempotency != "" {
		httpReq.Header.Set("Idempotency-Key", req.Idempotency)
	}

	startedAt := time.Now().UTC()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		return core.TransportResponse{}, failure(err, goerrors.CategoryExternal, "transport: execute http request", map[string]any{"adapter": KindREST, "method": method, "url": target})
	}
	defer httpRes.Body.Close()

	limit := resolveResponseBodyLimit(req.MaxResponseBodyBytes, a.MaxResponseBodyBytes)
	body, err := io.ReadAll(io.LimitReader(httpRes.Body, limit+1))
	if err != nil {
		return core.TransportResponse{}, failure(err, goerrors.CategoryExternal, "transport: read response body", map[string]any{"adapter": KindREST, "status_code": httpRes.StatusCode})
	}
	if int64(len(body)) > limit {
		return core.TransportResponse{}, failure(nil, goerrors.CategoryExternal, fmt.Sprintf("transport: response body exceeds limit of %d bytes", limit), map[string]any{
			"adapter":          KindREST,
			"status_code":      httpRes.StatusCode,
			"response_limit_b": limit,
		})
	}

	return core.TransportResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Body:       body,
		Metadata: map[string]any{
			"duration_ms": time.Since(startedAt).Milliseconds(),
			"kind":        KindREST,
		},
	}, nil
}

func buildURL(raw string, params map[string]string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", failure(nil, goerrors.CategoryBadInput, "transport: request url is required", map[string]any{"adapter": KindREST})
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", failure(err, goerrors.CategoryBadInput, "transport: invalid request url", map[string]any{"adapter": KindREST, "url": raw})
	}
	if len(params) > 0 {
		query := parsed.Query()
		for key, value := range params {
			if key = strings.TrimSpace(key); key != "" {
				query.Set(key, value)
			}
		}
		parsed.RawQuery = query.Encode()
	}
	return parsed.String(), nil
}

func applyHeaders(dst http.Header, headers map[string]string) {
	for key, value := range headers {
		if key = strings.TrimSpace(key); key != "" {
			dst.Set(key, strings.TrimSpace(value))
		}
	}
}

func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

func resolveResponseBodyLimit(requestLimit int64, adapterLimit int64) int64 {
	if requestLimit > 0 {
		return requestLimit
	}
	if adapterLimit > 0 {
		return adapterLimit
	}
	return defaultRESTResponseBodyLimit
}

var _ core.TransportAdapter = (*RESTAdapter)(nil)
