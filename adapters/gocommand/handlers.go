package gocommand

import (
	bdpaycmd "github.com/goliatone/go-bdpay/command"
	"github.com/goliatone/go-bdpay/core"
	bdpayquery "github.com/goliatone/go-bdpay/query"
	"github.com/goliatone/go-bdpay/webhooks"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
)

// LedgerRecorder is satisfied by *ledger.Ledger.
type LedgerRecorder interface {
	bdpaycmd.PendingRecorder
	webhooks.Recorder
}

// Handlers lists the collaborators the bdpay commands and queries run on.
// Nil collaborators leave their handlers unregistered.
type Handlers struct {
	Gateway      core.Gateway
	Ledger       LedgerRecorder
	Reconciler   bdpaycmd.CallbackProcessor
	Transactions bdpayquery.TransactionReader
}

// RegisterHandlers registers and subscribes every bdpay command and query
// the collaborators allow. On failure the subscriptions made so far are
// released.
func RegisterHandlers(adapter *RegistryAdapter, h Handlers) (subs []commanddispatcher.Subscription, err error) {
	if adapter == nil || adapter.registry == nil {
		return nil, errNoRegistry
	}
	defer func() {
		if err != nil {
			for _, sub := range subs {
				sub.Unsubscribe()
			}
			subs = nil
		}
	}()
	add := func(sub commanddispatcher.Subscription, regErr error) {
		if err != nil {
			return
		}
		if regErr != nil {
			err = regErr
			return
		}
		subs = append(subs, sub)
	}

	var pending bdpaycmd.PendingRecorder
	if h.Ledger != nil {
		pending = h.Ledger
	}
	if h.Gateway != nil {
		add(RegisterCommand[bdpaycmd.CreateVirtualAccountMessage](adapter, bdpaycmd.NewCreateVirtualAccountCommand(h.Gateway, pending)))
		add(RegisterCommand[bdpaycmd.CreatePaymentLinkMessage](adapter, bdpaycmd.NewCreatePaymentLinkCommand(h.Gateway, pending)))
		add(RegisterCommand[bdpaycmd.CreateStaticVAMessage](adapter, bdpaycmd.NewCreateStaticVACommand(h.Gateway)))
		add(RegisterCommand[bdpaycmd.CreateDisbursementMessage](adapter, bdpaycmd.NewCreateDisbursementCommand(h.Gateway, pending)))
		add(RegisterQuery[bdpayquery.GetPaymentStatusMessage, map[string]any](adapter, bdpayquery.NewGetPaymentStatusQuery(h.Gateway)))
		add(RegisterQuery[bdpayquery.GetDisbursementStatusMessage, map[string]any](adapter, bdpayquery.NewGetDisbursementStatusQuery(h.Gateway)))
		add(RegisterQuery[bdpayquery.GetBalanceMessage, map[string]any](adapter, bdpayquery.NewGetBalanceQuery(h.Gateway)))
		if h.Ledger != nil {
			add(RegisterCommand[bdpaycmd.SyncStatusMessage](adapter, bdpaycmd.NewSyncStatusCommand(h.Gateway, h.Ledger)))
		}
	}
	if h.Reconciler != nil {
		add(RegisterCommand[bdpaycmd.ReconcileWebhookMessage](adapter, bdpaycmd.NewReconcileWebhookCommand(h.Reconciler)))
	}
	if h.Transactions != nil {
		add(RegisterQuery[bdpayquery.GetTransactionMessage, core.Transaction](adapter, bdpayquery.NewGetTransactionQuery(h.Transactions)))
		add(RegisterQuery[bdpayquery.ListTransactionsMessage, bdpayquery.TransactionPage](adapter, bdpayquery.NewListTransactionsQuery(h.Transactions)))
	}
	return subs, err
}
