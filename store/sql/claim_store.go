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

const (
	claimStatusProcessing = "processing"
	claimStatusRetryReady = "retry_ready"
	claimStatusComplete   = "complete"

	defaultClaimLease = 10 * time.Minute
)

// ClaimStore is a core.IdempotencyClaimStore backed by bdpay_webhook_claims,
// shared by every process that points at the same database.
type ClaimStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookClaimRecord]
	Now  func() time.Time
}

func NewClaimStore(db *bun.DB) (*ClaimStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookClaimRecord](db, webhookClaimHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook claim repository wiring: %w", err)
		}
	}
	return &ClaimStore{
		db:   db,
		repo: repo,
		Now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *ClaimStore) Claim(ctx context.Context, key string, lease time.Duration) (string, bool, error) {
	if s == nil || s.db == nil {
		return "", false, fmt.Errorf("sqlstore: claim store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, fmt.Errorf("sqlstore: claim key is required")
	}
	if lease <= 0 {
		lease = defaultClaimLease
	}

	var (
		claimID  string
		accepted bool
	)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := s.now()
		leaseEnd := now.Add(lease)

		current := &webhookClaimRecord{}
		err := tx.NewSelect().
			Model(current).
			Where("?TableAlias.claim_key = ?", key).
			Limit(1).
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if errors.Is(err, sql.ErrNoRows) {
			record := &webhookClaimRecord{
				ID:             uuid.NewString(),
				ClaimKey:       key,
				ClaimID:        uuid.NewString(),
				Status:         claimStatusProcessing,
				Attempts:       1,
				LeaseExpiresAt: &leaseEnd,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if _, err := s.repo.CreateTx(ctx, tx, record); err != nil {
				if isUniqueViolation(err) {
					return nil
				}
				return err
			}
			claimID = record.ClaimID
			accepted = true
			return nil
		}

		if claimBlocked(current, now) {
			return nil
		}

		nextClaim := uuid.NewString()
		if _, err := tx.NewUpdate().
			Model((*webhookClaimRecord)(nil)).
			Set("claim_id = ?", nextClaim).
			Set("status = ?", claimStatusProcessing).
			Set("attempts = attempts + 1").
			Set("lease_expires_at = ?", leaseEnd).
			Set("retry_at = NULL").
			Set("updated_at = ?", now).
			Where("id = ?", current.ID).
			Where("claim_id = ?", current.ClaimID).
			Exec(ctx); err != nil {
			return err
		}
		claimID = nextClaim
		accepted = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return claimID, accepted, nil
}

func (s *ClaimStore) Complete(ctx context.Context, claimID string) error {
	return s.settle(ctx, claimID, func(record *webhookClaimRecord, now time.Time) *bun.UpdateQuery {
		lease := defaultClaimLease
		if record.LeaseExpiresAt != nil && record.LeaseExpiresAt.After(record.UpdatedAt) {
			lease = record.LeaseExpiresAt.Sub(record.UpdatedAt)
		}
		return s.db.NewUpdate().
			Model((*webhookClaimRecord)(nil)).
			Set("status = ?", claimStatusComplete).
			Set("lease_expires_at = ?", now.Add(lease)).
			Set("retry_at = NULL").
			Set("updated_at = ?", now)
	})
}

func (s *ClaimStore) Fail(ctx context.Context, claimID string, cause error, retryAt time.Time) error {
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	return s.settle(ctx, claimID, func(_ *webhookClaimRecord, now time.Time) *bun.UpdateQuery {
		if retryAt.IsZero() {
			retryAt = now
		}
		return s.db.NewUpdate().
			Model((*webhookClaimRecord)(nil)).
			Set("status = ?", claimStatusRetryReady).
			Set("retry_at = ?", retryAt.UTC()).
			Set("lease_expires_at = NULL").
			Set("last_error = ?", lastError).
			Set("updated_at = ?", now)
	})
}

// Attempts reports how many times key has been claimed.
func (s *ClaimStore) Attempts(ctx context.Context, key string) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: claim store is not configured")
	}
	record := &webhookClaimRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.claim_key = ?", strings.TrimSpace(key)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return record.Attempts, nil
}

// Purge removes completed claims whose suppression window has ended.
func (s *ClaimStore) Purge(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: claim store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*webhookClaimRecord)(nil)).
		Where("status = ?", claimStatusComplete).
		Where("lease_expires_at <= ?", s.now()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *ClaimStore) settle(ctx context.Context, claimID string, build func(*webhookClaimRecord, time.Time) *bun.UpdateQuery) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: claim store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("sqlstore: claim id is required")
	}
	current := &webhookClaimRecord{}
	err := s.db.NewSelect().
		Model(current).
		Where("?TableAlias.claim_id = ?", claimID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if current.Status != claimStatusProcessing {
		return nil
	}
	_, err = build(current, s.now()).
		Where("claim_id = ?", claimID).
		Where("status = ?", claimStatusProcessing).
		Exec(ctx)
	return err
}

func (s *ClaimStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func claimBlocked(record *webhookClaimRecord, now time.Time) bool {
	switch record.Status {
	case claimStatusComplete, claimStatusProcessing:
		return record.LeaseExpiresAt != nil && now.Before(*record.LeaseExpiresAt)
	case claimStatusRetryReady:
		return record.RetryAt != nil && now.Before(*record.RetryAt)
	}
	return false
}

var _ core.IdempotencyClaimStore = (*ClaimStore)(nil)
