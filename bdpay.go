package bdpay

import (
	"time"

	"github.com/goliatone/go-bdpay/core"
	"github.com/goliatone/go-bdpay/transport"
)

type Config = core.Config
type Option = core.Option
type Client = core.Client

type Transaction = core.Transaction
type TransactionKind = core.TransactionKind
type TransactionStatus = core.TransactionStatus
type TransactionFilter = core.TransactionFilter
type TransactionStore = core.TransactionStore

type PaymentRequest = core.PaymentRequest
type StaticVARequest = core.StaticVARequest
type DisbursementRequest = core.DisbursementRequest

const (
	KindPayment      = core.TransactionKindPayment
	KindDisbursement = core.TransactionKindDisbursement
)

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorFactory    = core.WithErrorFactory
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithTransport       = core.WithTransport
	WithCodec           = core.WithCodec
	WithClock           = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// NewClient builds a client that sends requests over the REST adapter with
// the configured timeout and retry settings. A WithTransport option
// replaces that adapter.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	all := make([]Option, 0, len(opts)+1)
	all = append(all, core.WithTransport(DefaultTransport(cfg.Defaults)))
	all = append(all, opts...)
	return core.NewClient(cfg, all...)
}

// DefaultTransport is the REST adapter wrapped in the retrying adapter.
func DefaultTransport(defaults core.DefaultsConfig) core.TransportAdapter {
	timeout := time.Duration(defaults.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(core.DefaultConfig().Defaults.TimeoutSeconds) * time.Second
	}
	rest := transport.NewRESTAdapter(transport.WithClientTimeout(timeout))
	return transport.NewRetryingAdapter(rest, transport.WithRetryConfig(defaults))
}
