package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	Idempotency          string
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type InboundRequest struct {
	ProviderID string
	Surface    string
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Body       map[string]any
	Metadata   map[string]any
}

type InboundHandler interface {
	Surface() string
	Handle(ctx context.Context, req InboundRequest) (InboundResult, error)
}

// IdempotencyClaimStore guards inbound deliveries against concurrent or
// repeated processing of the same key.
type IdempotencyClaimStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (claimID string, accepted bool, err error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, retryAt time.Time) error
}

// DeadLetter is a callback delivery whose processing failed.
type DeadLetter struct {
	ProviderID     string
	Surface        string
	IdempotencyKey string
	Headers        map[string]string
	Body           []byte
	Error          string
	FailedAt       time.Time
}

type DeadLetterSink interface {
	Send(ctx context.Context, letter DeadLetter) error
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type CommandMessage interface {
	Type() string
}

// StatusChange describes one applied ledger transition.
type StatusChange struct {
	Transaction Transaction
	Previous    TransactionStatus
	Created     bool
	OccurredAt  time.Time
}

// StatusObserver is notified after a ledger transition is persisted.
type StatusObserver interface {
	OnStatusChange(ctx context.Context, change StatusChange) error
}

// Gateway is the outbound surface of the BDPay client used by commands and
// queries.
type Gateway interface {
	CreateVA(ctx context.Context, req PaymentRequest) (map[string]any, error)
	CreatePaymentLink(ctx context.Context, req PaymentRequest) (map[string]any, error)
	CreateStaticVA(ctx context.Context, req StaticVARequest) (map[string]any, error)
	GetPaymentStatus(ctx context.Context, orderID string) (map[string]any, error)
	CreateDisbursement(ctx context.Context, req DisbursementRequest) (map[string]any, error)
	GetDisbursementStatus(ctx context.Context, orderID string) (map[string]any, error)
	GetBalance(ctx context.Context) (map[string]any, error)
}
