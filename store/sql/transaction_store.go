package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bdpay/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TransactionStore persists ledger rows in bdpay_transactions. The unique
// (order_id, type) index turns concurrent creates into DuplicateRecordError.
type TransactionStore struct {
	db   *bun.DB
	repo repository.Repository[*transactionRecord]
	Now  func() time.Time
}

func NewTransactionStore(db *bun.DB) (*TransactionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*transactionRecord](db, transactionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid transaction repository wiring: %w", err)
		}
	}
	return &TransactionStore{
		db:   db,
		repo: repo,
		Now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *TransactionStore) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if s == nil || s.repo == nil {
		return core.Transaction{}, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	tx.OrderID = strings.TrimSpace(tx.OrderID)
	if tx.OrderID == "" {
		return core.Transaction{}, core.MissingOrderIDError(nil)
	}
	if strings.TrimSpace(tx.ID) == "" {
		tx.ID = uuid.NewString()
	}
	now := s.now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	if tx.UpdatedAt.IsZero() {
		tx.UpdatedAt = tx.CreatedAt
	}

	created, err := s.repo.Create(ctx, newTransactionRecord(tx))
	if err != nil {
		// The insert may have lost a race on (order_id, type); report it as a
		// duplicate whenever the row is now visible.
		if _, findErr := s.FindByOrder(ctx, tx.OrderID, tx.Kind); findErr == nil {
			return core.Transaction{}, core.DuplicateRecordError(tx.OrderID, tx.Kind)
		}
		if isUniqueViolation(err) {
			return core.Transaction{}, core.DuplicateRecordError(tx.OrderID, tx.Kind)
		}
		return core.Transaction{}, err
	}
	return created.toDomain(), nil
}

func (s *TransactionStore) FindByOrder(ctx context.Context, orderID string, kind core.TransactionKind) (core.Transaction, error) {
	if s == nil || s.db == nil {
		return core.Transaction{}, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	record := &transactionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.order_id = ?", strings.TrimSpace(orderID)).
		Where("?TableAlias.type = ?", string(kind)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, core.NotFoundError(orderID, kind)
		}
		return core.Transaction{}, err
	}
	return record.toDomain(), nil
}

func (s *TransactionStore) Get(ctx context.Context, id string) (core.Transaction, error) {
	if s == nil || s.db == nil {
		return core.Transaction{}, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	record := &transactionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, core.NotFoundError(id, "")
		}
		return core.Transaction{}, err
	}
	return record.toDomain(), nil
}

// Update rewrites the mutable columns of an existing row. Order, kind,
// creation time and a stored paid_at stay as first written.
func (s *TransactionStore) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if s == nil || s.db == nil {
		return core.Transaction{}, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	var out core.Transaction
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, dbTx bun.Tx) error {
		current := &transactionRecord{}
		query := dbTx.NewSelect().Model(current)
		if id := strings.TrimSpace(tx.ID); id != "" {
			query = query.Where("?TableAlias.id = ?", id)
		} else {
			query = query.
				Where("?TableAlias.order_id = ?", strings.TrimSpace(tx.OrderID)).
				Where("?TableAlias.type = ?", string(tx.Kind))
		}
		if err := query.Limit(1).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return core.NotFoundError(tx.OrderID, tx.Kind)
			}
			return err
		}

		next := newTransactionRecord(tx)
		next.ID = current.ID
		next.OrderID = current.OrderID
		next.Kind = current.Kind
		next.CreatedAt = current.CreatedAt
		if current.PaidAt != nil {
			next.PaidAt = current.PaidAt
		}
		if next.UpdatedAt.IsZero() {
			next.UpdatedAt = s.now()
		}
		if _, err := dbTx.NewUpdate().
			Model(next).
			ExcludeColumn("id", "order_id", "type", "created_at").
			Value("paid_at", "COALESCE(paid_at, ?)", next.PaidAt).
			Where("id = ?", current.ID).
			Exec(ctx); err != nil {
			return err
		}
		out = next.toDomain()
		return nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}

// List returns one page ordered newest first plus the total match count.
func (s *TransactionStore) List(ctx context.Context, filter core.TransactionFilter) ([]core.Transaction, int, error) {
	if s == nil || s.repo == nil {
		return nil, 0, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
	}
	if filter.Kind != "" {
		selectors = append(selectors, repository.SelectBy("type", "=", string(filter.Kind)))
	}
	if filter.Status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", string(filter.Status)))
	}
	if filter.Limit > 0 {
		selectors = append(selectors, repository.SelectPaginate(filter.Limit, max(filter.Offset, 0)))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, 0, err
	}
	items := make([]core.Transaction, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return items, total, nil
}

func (s *TransactionStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
