package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-bdpay/security"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	HeaderMerchantCode = "X-Merchant-Code"
	HeaderPublicKey    = "X-Public-Key"
	HeaderSignature    = "X-BDPay-Signature"
)

// Client signs and sends requests to the BDPay open API for one configured
// environment.
type Client struct {
	config          Config
	active          EnvironmentConfig
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	transport       TransportAdapter
	codec           *security.Codec
	now             func() time.Time
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	builder := defaultClientBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("bdpay", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("bdpay"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = time.Now
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	if err := finalConfig.ValidateCredentials(); err != nil {
		return nil, err
	}
	if builder.transport == nil {
		return nil, ConfigurationError("BDPay transport adapter is not configured", nil)
	}

	active := finalConfig.Active()
	codec := builder.codec
	if codec == nil {
		codec, err = security.NewCodecFromStrings(active.SecretKey, active.VerificationKey())
		if err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
	}

	return &Client{
		config:          finalConfig,
		active:          active,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		transport:       builder.transport,
		codec:           codec,
		now:             builder.now,
	}, nil
}

func (c *Client) Config() Config {
	return c.config
}

func (c *Client) Environment() string {
	return c.config.EnvironmentName()
}

func (c *Client) MerchantCode() string {
	return c.active.MerchantCode
}

func (c *Client) BaseURL() string {
	return c.active.BaseURL
}

func (c *Client) Codec() *security.Codec {
	return c.codec
}

func (c *Client) Logger() Logger {
	return c.logger
}

func (c *Client) LoggerProvider() LoggerProvider {
	return c.loggerProvider
}

func (c *Client) MetricsRecorder() MetricsRecorder {
	return c.metricsRecorder
}

// GenerateSignature signs data with the merchant private key.
func (c *Client) GenerateSignature(data map[string]any) (string, error) {
	return c.codec.Sign(data)
}

// VerifySignature checks a gateway signature. It never returns an error;
// every failure is reported as false.
func (c *Client) VerifySignature(signature string, data map[string]any) bool {
	return c.codec.Verify(signature, data)
}

// Request sends a call to endpoint. Data for POST, PUT and PATCH is signed
// and sent as a JSON body; other methods send it as the query string.
func (c *Client) Request(ctx context.Context, method string, endpoint string, data map[string]any) (result map[string]any, err error) {
	startedAt := time.Now()
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	url := c.fullURL(endpoint)
	statusCode := 0
	defer func() {
		c.observeOperation(ctx, startedAt, "api_request", err, map[string]any{
			"method":      method,
			"endpoint":    endpoint,
			"status_code": statusCode,
		})
	}()

	payload := cloneFields(data)
	req := TransportRequest{
		Method:  method,
		URL:     url,
		Headers: c.defaultHeaders(),
		Timeout: c.config.Defaults.Timeout(),
	}
	if hasBody(method) {
		if len(payload) > 0 {
			signature, signErr := c.codec.Sign(payload)
			if signErr != nil {
				return nil, signErr
			}
			payload[security.FieldSign] = signature
		}
		body, encodeErr := json.Marshal(payload)
		if encodeErr != nil {
			return nil, InternalError(encodeErr, "core: encode request body", map[string]any{"endpoint": endpoint})
		}
		req.Body = body
	} else if len(payload) > 0 {
		req.Query = make(map[string]string, len(payload))
		for key, value := range payload {
			if value == nil {
				continue
			}
			req.Query[key] = security.Stringify(value)
		}
	}

	if c.config.Logging.Enabled {
		c.log(ctx, c.config.Logging.Level, "BDPay API Request", map[string]any{
			"method":      method,
			"url":         url,
			"data":        RedactSensitiveMap(payload),
			"environment": c.Environment(),
		})
	}

	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		return nil, ProviderError(err, "BDPay API request failed", 0, "", nil)
	}
	statusCode = resp.StatusCode

	decoded, decodeErr := decodeJSONObject(resp.Body)
	if c.config.Logging.Enabled {
		c.log(ctx, c.config.Logging.Level, "BDPay API Response", map[string]any{
			"status_code": resp.StatusCode,
			"response":    decoded,
			"environment": c.Environment(),
		})
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := fmt.Sprintf("BDPay API responded with status %d", resp.StatusCode)
		if text, ok := decoded["message"].(string); ok && strings.TrimSpace(text) != "" {
			message = text
		}
		errorCode := ""
		if code, ok := decoded["error_code"]; ok && code != nil {
			errorCode = security.Stringify(code)
		}
		return nil, ProviderError(nil, message, resp.StatusCode, errorCode, decoded)
	}
	if decodeErr != nil {
		return nil, ProviderError(decodeErr, "BDPay API returned an invalid JSON body", resp.StatusCode, "", nil)
	}
	return decoded, nil
}

func (c *Client) defaultHeaders() map[string]string {
	return map[string]string{
		"Content-Type":     "application/json",
		"Accept":           "application/json",
		HeaderMerchantCode: c.active.MerchantCode,
		HeaderPublicKey:    c.active.PublicKey,
	}
}

func (c *Client) fullURL(endpoint string) string {
	return strings.TrimRight(c.active.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

func (c *Client) timestamp() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}

// DecodePayload decodes a JSON object keeping numbers as json.Number so
// signatures see the exact digits that were sent.
func DecodePayload(body []byte) (map[string]any, error) {
	return decodeJSONObject(body)
}

func decodeJSONObject(body []byte) (map[string]any, error) {
	out := map[string]any{}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return out, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()
	if err := decoder.Decode(&out); err != nil {
		return map[string]any{}, err
	}
	return out, nil
}
