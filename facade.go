package bdpay

import (
	"fmt"

	"github.com/goliatone/go-bdpay/adapters/gocommand"
	bdpaycmd "github.com/goliatone/go-bdpay/command"
	"github.com/goliatone/go-bdpay/core"
	"github.com/goliatone/go-bdpay/ledger"
	bdpayquery "github.com/goliatone/go-bdpay/query"
	"github.com/goliatone/go-bdpay/webhooks"
	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
)

type Commands struct {
	CreateVirtualAccount *bdpaycmd.CreateVirtualAccountCommand
	CreatePaymentLink    *bdpaycmd.CreatePaymentLinkCommand
	CreateStaticVA       *bdpaycmd.CreateStaticVACommand
	CreateDisbursement   *bdpaycmd.CreateDisbursementCommand
	ReconcileWebhook     *bdpaycmd.ReconcileWebhookCommand
	SyncStatus           *bdpaycmd.SyncStatusCommand
}

type Queries struct {
	GetPaymentStatus      *bdpayquery.GetPaymentStatusQuery
	GetDisbursementStatus *bdpayquery.GetDisbursementStatusQuery
	GetBalance            *bdpayquery.GetBalanceQuery
	GetTransaction        *bdpayquery.GetTransactionQuery
	ListTransactions      *bdpayquery.ListTransactionsQuery
}

// Facade ties a gateway to a transaction ledger and exposes the resulting
// commands, queries and callback handlers.
type Facade struct {
	gateway    core.Gateway
	ledger     *ledger.Ledger
	reconciler *webhooks.Reconciler
	commands   Commands
	queries    Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	ledgerOptions     []ledger.Option
	reconcilerOptions []webhooks.ReconcilerOption
}

func WithLedgerOptions(opts ...ledger.Option) FacadeOption {
	return func(options *facadeOptions) {
		options.ledgerOptions = append(options.ledgerOptions, opts...)
	}
}

func WithReconcilerOptions(opts ...webhooks.ReconcilerOption) FacadeOption {
	return func(options *facadeOptions) {
		options.reconcilerOptions = append(options.reconcilerOptions, opts...)
	}
}

func NewFacade(gateway core.Gateway, store core.TransactionStore, opts ...FacadeOption) (*Facade, error) {
	if gateway == nil {
		return nil, fmt.Errorf("bdpay: gateway is required")
	}
	if store == nil {
		return nil, fmt.Errorf("bdpay: transaction store is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	txLedger, err := ledger.New(store, cfg.ledgerOptions...)
	if err != nil {
		return nil, err
	}
	reconciler, err := webhooks.NewReconciler(txLedger, cfg.reconcilerOptions...)
	if err != nil {
		return nil, err
	}

	facade := &Facade{gateway: gateway, ledger: txLedger, reconciler: reconciler}
	facade.commands = Commands{
		CreateVirtualAccount: bdpaycmd.NewCreateVirtualAccountCommand(gateway, txLedger),
		CreatePaymentLink:    bdpaycmd.NewCreatePaymentLinkCommand(gateway, txLedger),
		CreateStaticVA:       bdpaycmd.NewCreateStaticVACommand(gateway),
		CreateDisbursement:   bdpaycmd.NewCreateDisbursementCommand(gateway, txLedger),
		ReconcileWebhook:     bdpaycmd.NewReconcileWebhookCommand(reconciler),
		SyncStatus:           bdpaycmd.NewSyncStatusCommand(gateway, txLedger),
	}
	facade.queries = Queries{
		GetPaymentStatus:      bdpayquery.NewGetPaymentStatusQuery(gateway),
		GetDisbursementStatus: bdpayquery.NewGetDisbursementStatusQuery(gateway),
		GetBalance:            bdpayquery.NewGetBalanceQuery(gateway),
		GetTransaction:        bdpayquery.NewGetTransactionQuery(store),
		ListTransactions:      bdpayquery.NewListTransactionsQuery(store),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Gateway() core.Gateway {
	if f == nil {
		return nil
	}
	return f.gateway
}

func (f *Facade) Ledger() *ledger.Ledger {
	if f == nil {
		return nil
	}
	return f.ledger
}

func (f *Facade) Reconciler() *webhooks.Reconciler {
	if f == nil {
		return nil
	}
	return f.reconciler
}

// InboundHandlers returns synchronous callback handlers for the payment and
// disbursement surfaces.
func (f *Facade) InboundHandlers() []core.InboundHandler {
	if f == nil || f.reconciler == nil {
		return nil
	}
	return []core.InboundHandler{
		webhooks.NewHandler(core.TransactionKindPayment, f.reconciler),
		webhooks.NewHandler(core.TransactionKindDisbursement, f.reconciler),
	}
}

// AsyncInboundHandlers returns callback handlers that queue each callback
// on enqueuer and acknowledge it. A JobRunner over the same queue applies
// them through Reconciler.
func (f *Facade) AsyncInboundHandlers(enqueuer core.JobEnqueuer) []core.InboundHandler {
	if f == nil || enqueuer == nil {
		return nil
	}
	return []core.InboundHandler{
		webhooks.NewAsyncHandler(core.TransactionKindPayment, enqueuer),
		webhooks.NewAsyncHandler(core.TransactionKindDisbursement, enqueuer),
	}
}

// Subscribe registers the facade's commands and queries on registry and
// subscribes them on the go-command dispatcher. A nil registry gets a fresh
// one. Callers release the returned subscriptions on shutdown.
func (f *Facade) Subscribe(registry *command.Registry) ([]commanddispatcher.Subscription, error) {
	if f == nil || f.ledger == nil {
		return nil, fmt.Errorf("bdpay: facade is not configured")
	}
	adapter := gocommand.NewRegistryAdapter(registry)
	subs, err := gocommand.RegisterHandlers(adapter, gocommand.Handlers{
		Gateway:      f.gateway,
		Ledger:       f.ledger,
		Reconciler:   f.reconciler,
		Transactions: f.ledger.Store(),
	})
	if err != nil {
		return nil, err
	}
	if err := adapter.Initialize(); err != nil {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
		return nil, err
	}
	return subs, nil
}
