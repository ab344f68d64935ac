package query

import (
	"github.com/goliatone/go-bdpay/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[GetPaymentStatusMessage, map[string]any]      = (*GetPaymentStatusQuery)(nil)
	_ gocmd.Querier[GetDisbursementStatusMessage, map[string]any] = (*GetDisbursementStatusQuery)(nil)
	_ gocmd.Querier[GetBalanceMessage, map[string]any]            = (*GetBalanceQuery)(nil)
	_ gocmd.Querier[GetTransactionMessage, core.Transaction]      = (*GetTransactionQuery)(nil)
	_ gocmd.Querier[ListTransactionsMessage, TransactionPage]     = (*ListTransactionsQuery)(nil)

	_ StatusReader      = core.Gateway(nil)
	_ TransactionReader = core.TransactionStore(nil)
)
