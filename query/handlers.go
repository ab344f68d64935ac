package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-bdpay/core"
)

// StatusReader is the read side of core.Gateway.
type StatusReader interface {
	GetPaymentStatus(ctx context.Context, orderID string) (map[string]any, error)
	GetDisbursementStatus(ctx context.Context, orderID string) (map[string]any, error)
	GetBalance(ctx context.Context) (map[string]any, error)
}

type TransactionReader interface {
	FindByOrder(ctx context.Context, orderID string, kind core.TransactionKind) (core.Transaction, error)
	Get(ctx context.Context, id string) (core.Transaction, error)
	List(ctx context.Context, filter core.TransactionFilter) ([]core.Transaction, int, error)
}

type TransactionPage struct {
	Items  []core.Transaction
	Total  int
	Limit  int
	Offset int
}

type GetPaymentStatusQuery struct {
	reader StatusReader
}

func NewGetPaymentStatusQuery(reader StatusReader) *GetPaymentStatusQuery {
	return &GetPaymentStatusQuery{reader: reader}
}

func (q *GetPaymentStatusQuery) Query(ctx context.Context, msg GetPaymentStatusMessage) (map[string]any, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: payment status reader is required")
	}
	return q.reader.GetPaymentStatus(ctx, strings.TrimSpace(msg.OrderID))
}

type GetDisbursementStatusQuery struct {
	reader StatusReader
}

func NewGetDisbursementStatusQuery(reader StatusReader) *GetDisbursementStatusQuery {
	return &GetDisbursementStatusQuery{reader: reader}
}

func (q *GetDisbursementStatusQuery) Query(ctx context.Context, msg GetDisbursementStatusMessage) (map[string]any, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: disbursement status reader is required")
	}
	return q.reader.GetDisbursementStatus(ctx, strings.TrimSpace(msg.OrderID))
}

type GetBalanceQuery struct {
	reader StatusReader
}

func NewGetBalanceQuery(reader StatusReader) *GetBalanceQuery {
	return &GetBalanceQuery{reader: reader}
}

func (q *GetBalanceQuery) Query(ctx context.Context, _ GetBalanceMessage) (map[string]any, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: balance reader is required")
	}
	return q.reader.GetBalance(ctx)
}

type GetTransactionQuery struct {
	reader TransactionReader
}

func NewGetTransactionQuery(reader TransactionReader) *GetTransactionQuery {
	return &GetTransactionQuery{reader: reader}
}

func (q *GetTransactionQuery) Query(ctx context.Context, msg GetTransactionMessage) (core.Transaction, error) {
	if q == nil || q.reader == nil {
		return core.Transaction{}, queryDependencyError("query: transaction reader is required")
	}
	if id := strings.TrimSpace(msg.ID); id != "" {
		return q.reader.Get(ctx, id)
	}
	return q.reader.FindByOrder(ctx, strings.TrimSpace(msg.OrderID), msg.Kind)
}

type ListTransactionsQuery struct {
	reader TransactionReader
}

func NewListTransactionsQuery(reader TransactionReader) *ListTransactionsQuery {
	return &ListTransactionsQuery{reader: reader}
}

func (q *ListTransactionsQuery) Query(ctx context.Context, msg ListTransactionsMessage) (TransactionPage, error) {
	if q == nil || q.reader == nil {
		return TransactionPage{}, queryDependencyError("query: transaction reader is required")
	}
	items, total, err := q.reader.List(ctx, msg.Filter)
	if err != nil {
		return TransactionPage{}, err
	}
	return TransactionPage{
		Items:  items,
		Total:  total,
		Limit:  msg.Filter.Limit,
		Offset: msg.Filter.Offset,
	}, nil
}
