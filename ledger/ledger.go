package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-bdpay/core"
	"github.com/goliatone/go-bdpay/security"
	glog "github.com/goliatone/go-logger/glog"
)

// Ledger keeps one transaction record per order and kind, and applies the
// statuses reported by gateway callbacks.
type Ledger struct {
	store  core.TransactionStore
	policy TransitionPolicy
	logger core.Logger
	now    func() time.Time

	mu        sync.RWMutex
	observers []core.StatusObserver
}

type Option func(*Ledger)

func WithTransitionPolicy(policy TransitionPolicy) Option {
	return func(l *Ledger) {
		if policy != nil {
			l.policy = policy
		}
	}
}

func WithObservers(observers ...core.StatusObserver) Option {
	return func(l *Ledger) {
		for _, observer := range observers {
			if observer != nil {
				l.observers = append(l.observers, observer)
			}
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func New(store core.TransactionStore, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger: transaction store is required")
	}
	l := &Ledger{
		store:  store,
		policy: PermissiveTransitionPolicy{},
		logger: glog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l, nil
}

// Observe registers an observer notified after every applied transition.
func (l *Ledger) Observe(observer core.StatusObserver) {
	if l == nil || observer == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, observer)
}

func (l *Ledger) Store() core.TransactionStore {
	return l.store
}

// FindOrCreate returns the record for orderID and kind, creating a pending
// record seeded from payload when none exists. An existing record is
// returned unchanged.
func (l *Ledger) FindOrCreate(
	ctx context.Context,
	orderID string,
	kind core.TransactionKind,
	payload map[string]any,
) (core.Transaction, error) {
	record, _, err := l.findOrCreate(ctx, orderID, kind, payload)
	return record, err
}

// ApplyStatus moves record to status and stores raw as the latest gateway
// response.
func (l *Ledger) ApplyStatus(
	ctx context.Context,
	record core.Transaction,
	status core.TransactionStatus,
	raw map[string]any,
) (core.Transaction, error) {
	return l.applyStatus(ctx, record, status, raw, false)
}

// Reconcile runs FindOrCreate and ApplyStatus for one callback payload.
func (l *Ledger) Reconcile(
	ctx context.Context,
	orderID string,
	kind core.TransactionKind,
	status core.TransactionStatus,
	payload map[string]any,
) (core.Transaction, error) {
	record, created, err := l.findOrCreate(ctx, orderID, kind, payload)
	if err != nil {
		return core.Transaction{}, err
	}
	return l.applyStatus(ctx, record, status, payload, created)
}

func (l *Ledger) findOrCreate(
	ctx context.Context,
	orderID string,
	kind core.TransactionKind,
	payload map[string]any,
) (core.Transaction, bool, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return core.Transaction{}, false, core.MissingOrderIDError(nil)
	}
	if !kind.Valid() {
		return core.Transaction{}, false, core.ValidationError(fmt.Sprintf("ledger: unsupported transaction type %q", kind))
	}

	existing, err := l.store.FindByOrder(ctx, orderID, kind)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.Transaction{}, false, err
	}

	created, err := l.store.Create(ctx, l.seed(orderID, kind, payload))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, core.ErrDuplicateRecord) {
		return core.Transaction{}, false, err
	}

	// Another delivery created the row first.
	winner, findErr := l.store.FindByOrder(ctx, orderID, kind)
	if findErr != nil {
		return core.Transaction{}, false, findErr
	}
	return winner, false, nil
}

func (l *Ledger) seed(orderID string, kind core.TransactionKind, payload map[string]any) core.Transaction {
	now := l.now().UTC()
	currency := stringField(payload, "currency")
	if currency == "" {
		currency = core.DefaultCurrency
	}
	return core.Transaction{
		OrderID:          orderID,
		TransactionID:    stringField(payload, "transaction_id"),
		Kind:             kind,
		Status:           core.TransactionStatusPending,
		Amount:           core.ParsePayloadAmount(payload["amount"]),
		Currency:         currency,
		CustomerName:     stringField(payload, "customer_name"),
		CustomerEmail:    stringField(payload, "customer_email"),
		CustomerPhone:    stringField(payload, "customer_phone"),
		RecipientName:    stringField(payload, "recipient_name"),
		RecipientAccount: stringField(payload, "recipient_account"),
		BankCode:         stringField(payload, "bank_code"),
		Description:      stringField(payload, "description"),
		RequestData:      core.CloneFields(payload),
		ResponseData:     core.CloneFields(payload),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (l *Ledger) applyStatus(
	ctx context.Context,
	record core.Transaction,
	status core.TransactionStatus,
	raw map[string]any,
	created bool,
) (core.Transaction, error) {
	if err := l.policy.Allow(record, status); err != nil {
		return record, err
	}

	previous := record.Status
	next := record.Clone()
	now := l.now().UTC()
	next.Status = status
	next.ResponseData = core.CloneFields(raw)
	next.UpdatedAt = now
	if status == core.TransactionStatusSuccess && next.PaidAt == nil {
		paidAt := now
		next.PaidAt = &paidAt
	}
	if value := stringField(raw, "va_number"); value != "" {
		next.VANumber = value
	}
	if value := stringField(raw, "payment_link"); value != "" {
		next.PaymentLink = value
	}
	if value := stringField(raw, "payment_method"); value != "" {
		next.PaymentMethod = value
	}

	updated, err := l.store.Update(ctx, next)
	if err != nil {
		return record, err
	}

	l.notify(ctx, core.StatusChange{
		Transaction: updated.Clone(),
		Previous:    previous,
		Created:     created,
		OccurredAt:  now,
	})
	return updated, nil
}

// notify runs observers after the update is stored. Observer failures are
// logged and do not undo the transition.
func (l *Ledger) notify(ctx context.Context, change core.StatusChange) {
	l.mu.RLock()
	observers := append([]core.StatusObserver(nil), l.observers...)
	l.mu.RUnlock()

	for _, observer := range observers {
		if err := observer.OnStatusChange(ctx, change); err != nil {
			l.logger.Warn("ledger status observer failed",
				"order_id", change.Transaction.OrderID,
				"type", string(change.Transaction.Kind),
				"status", string(change.Transaction.Status),
				"error", err.Error(),
			)
		}
	}
}

func stringField(payload map[string]any, key string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(security.Stringify(value))
}
