package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-bdpay/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const transactionCacheKeyPrefix = "go-bdpay::transaction::v1"

// CachedTransactionStore serves reads from a repository cache and drops the
// affected keys on every write.
type CachedTransactionStore struct {
	base  core.TransactionStore
	cache repositorycache.CacheService
}

func NewCachedTransactionStore(
	base core.TransactionStore,
	cacheService repositorycache.CacheService,
) (*CachedTransactionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base transaction store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: transaction cache service is required")
	}
	return &CachedTransactionStore{base: base, cache: cacheService}, nil
}

// TransactionOrderCacheKey is go-bdpay::transaction::v1::<kind>::<order_id>.
func TransactionOrderCacheKey(orderID string, kind core.TransactionKind) string {
	return strings.Join([]string{
		transactionCacheKeyPrefix,
		url.PathEscape(string(kind)),
		url.PathEscape(strings.TrimSpace(orderID)),
	}, "::")
}

// TransactionIDCacheKey is go-bdpay::transaction::v1::id::<id>.
func TransactionIDCacheKey(id string) string {
	return strings.Join([]string{transactionCacheKeyPrefix, "id", url.PathEscape(strings.TrimSpace(id))}, "::")
}

func (s *CachedTransactionStore) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := s.ready(); err != nil {
		return core.Transaction{}, err
	}
	created, err := s.base.Create(ctx, tx)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.invalidate(ctx, created); err != nil {
		return core.Transaction{}, err
	}
	return created.Clone(), nil
}

func (s *CachedTransactionStore) FindByOrder(ctx context.Context, orderID string, kind core.TransactionKind) (core.Transaction, error) {
	if err := s.ready(); err != nil {
		return core.Transaction{}, err
	}
	found, err := repositorycache.GetOrFetch(ctx, s.cache, TransactionOrderCacheKey(orderID, kind), func(ctx context.Context) (core.Transaction, error) {
		fetched, fetchErr := s.base.FindByOrder(ctx, orderID, kind)
		if fetchErr != nil {
			return core.Transaction{}, fetchErr
		}
		return fetched.Clone(), nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return found.Clone(), nil
}

func (s *CachedTransactionStore) Get(ctx context.Context, id string) (core.Transaction, error) {
	if err := s.ready(); err != nil {
		return core.Transaction{}, err
	}
	found, err := repositorycache.GetOrFetch(ctx, s.cache, TransactionIDCacheKey(id), func(ctx context.Context) (core.Transaction, error) {
		fetched, fetchErr := s.base.Get(ctx, id)
		if fetchErr != nil {
			return core.Transaction{}, fetchErr
		}
		return fetched.Clone(), nil
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return found.Clone(), nil
}

func (s *CachedTransactionStore) Update(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := s.ready(); err != nil {
		return core.Transaction{}, err
	}
	updated, err := s.base.Update(ctx, tx)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.invalidate(ctx, updated); err != nil {
		return core.Transaction{}, err
	}
	return updated.Clone(), nil
}

// List is not cached; pages go stale too easily.
func (s *CachedTransactionStore) List(ctx context.Context, filter core.TransactionFilter) ([]core.Transaction, int, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}
	return s.base.List(ctx, filter)
}

func (s *CachedTransactionStore) invalidate(ctx context.Context, tx core.Transaction) error {
	if err := s.cache.Delete(ctx, TransactionOrderCacheKey(tx.OrderID, tx.Kind)); err != nil {
		return err
	}
	if strings.TrimSpace(tx.ID) != "" {
		return s.cache.Delete(ctx, TransactionIDCacheKey(tx.ID))
	}
	return nil
}

func (s *CachedTransactionStore) ready() error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached transaction store is not configured")
	}
	return nil
}

var _ core.TransactionStore = (*CachedTransactionStore)(nil)
