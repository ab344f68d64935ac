package ledger

import (
	"github.com/goliatone/go-bdpay/core"
)

// TransitionPolicy decides whether a record may move from one status to
// another.
type TransitionPolicy interface {
	Allow(record core.Transaction, next core.TransactionStatus) error
}

// PermissiveTransitionPolicy accepts every transition. The last callback to
// arrive wins.
type PermissiveTransitionPolicy struct{}

func (PermissiveTransitionPolicy) Allow(core.Transaction, core.TransactionStatus) error {
	return nil
}

// RejectRegressionPolicy refuses moves out of a terminal status, except
// re-applying the same status.
type RejectRegressionPolicy struct{}

func (RejectRegressionPolicy) Allow(record core.Transaction, next core.TransactionStatus) error {
	if !record.Status.Terminal() || record.Status == next {
		return nil
	}
	return core.StaleTransitionError(record.OrderID, record.Status, next)
}

// TransitionPolicyFunc adapts a function to TransitionPolicy.
type TransitionPolicyFunc func(record core.Transaction, next core.TransactionStatus) error

func (f TransitionPolicyFunc) Allow(record core.Transaction, next core.TransactionStatus) error {
	if f == nil {
		return nil
	}
	return f(record, next)
}
