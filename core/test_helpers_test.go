package core

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"maps"
	"sync"
	"testing"
	"time"
)

var (
	testKeysOnce    sync.Once
	testPrivateBody string
	testPublicBody  string
	testKeysErr     error
)

func testKeyBodies(t *testing.T) (string, string) {
	t.Helper()
	testKeysOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 1024)
		if err != nil {
			testKeysErr = err
			return
		}
		privateDER, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			testKeysErr = err
			return
		}
		publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			testKeysErr = err
			return
		}
		testPrivateBody = base64.StdEncoding.EncodeToString(privateDER)
		testPublicBody = base64.StdEncoding.EncodeToString(publicDER)
	})
	if testKeysErr != nil {
		t.Fatalf("generate test keys: %v", testKeysErr)
	}
	return testPrivateBody, testPublicBody
}

func testConfig(t *testing.T) Config {
	t.Helper()
	privateBody, publicBody := testKeyBodies(t)
	cfg := DefaultConfig()
	cfg.API.Sandbox.MerchantCode = "test_merchant_code"
	cfg.API.Sandbox.PublicKey = publicBody
	cfg.API.Sandbox.SecretKey = privateBody
	cfg.Webhook.PaymentCallbackURL = "https://merchant.test/webhooks/payment"
	cfg.Webhook.DisbursementCallbackURL = "https://merchant.test/webhooks/disbursement"
	return cfg
}

var testNow = time.Date(2025, 3, 4, 5, 6, 7, 0, time.FixedZone("WIB", 7*60*60))

func newTestClient(t *testing.T, transport *recordingTransport, opts ...Option) *Client {
	t.Helper()
	base := []Option{WithTransport(transport), WithClock(func() time.Time { return testNow })}
	client, err := NewClient(testConfig(t), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

type recordingTransport struct {
	mu       sync.Mutex
	requests []TransportRequest
	response TransportResponse
	err      error
}

func newRecordingTransport(status int, body map[string]any) *recordingTransport {
	encoded, _ := json.Marshal(body)
	return &recordingTransport{response: TransportResponse{StatusCode: status, Body: encoded}}
}

func (t *recordingTransport) Kind() string { return "recording" }

func (t *recordingTransport) Do(_ context.Context, req TransportRequest) (TransportResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, req)
	if t.err != nil {
		return TransportResponse{}, t.err
	}
	return t.response, nil
}

func (t *recordingTransport) last(tb testing.TB) TransportRequest {
	tb.Helper()
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.requests) == 0 {
		tb.Fatalf("expected at least one transport request")
	}
	return t.requests[len(t.requests)-1]
}

func decodeBody(t *testing.T, body []byte) map[string]any {
	t.Helper()
	decoded, err := DecodePayload(body)
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return decoded
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: maps.Clone(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: maps.Clone(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFields(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFields(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFields(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func (l *captureLogger) find(msg string) (capturedLog, bool) {
	for _, record := range l.snapshot() {
		if record.msg == msg {
			return record, true
		}
	}
	return capturedLog{}, false
}
