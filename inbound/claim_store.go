package inbound

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type claimStatus string

const (
	claimStatusProcessing claimStatus = "processing"
	claimStatusRetryReady claimStatus = "retry_ready"
	claimStatusComplete   claimStatus = "complete"
)

type claimEntry struct {
	status   claimStatus
	claimID  string
	attempts int
	ttl      time.Duration
	leaseEnd time.Time
	retryAt  time.Time
}

// InMemoryClaimStore is a process-local core.IdempotencyClaimStore. A
// completed key suppresses repeats until its TTL elapses; a failed key can
// be claimed again from its retry time.
type InMemoryClaimStore struct {
	mu      sync.Mutex
	entries map[string]claimEntry
	claims  map[string]string
	Now     func() time.Time
}

func NewInMemoryClaimStore() *InMemoryClaimStore {
	return &InMemoryClaimStore{
		entries: map[string]claimEntry{},
		claims:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *InMemoryClaimStore) Claim(_ context.Context, key string, lease time.Duration) (string, bool, error) {
	if s == nil {
		return "", false, inboundInternal("inbound: idempotency store is nil", nil)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, inboundBadInput("inbound: idempotency key is required", nil)
	}
	if lease <= 0 {
		lease = DefaultKeyTTL
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(now)

	entry, exists := s.entries[key]
	if exists {
		switch entry.status {
		case claimStatusComplete, claimStatusProcessing:
			if now.Before(entry.leaseEnd) {
				return "", false, nil
			}
		case claimStatusRetryReady:
			if now.Before(entry.retryAt) {
				return "", false, nil
			}
		}
		delete(s.claims, entry.claimID)
	}

	claimID := uuid.NewString()
	entry.status = claimStatusProcessing
	entry.claimID = claimID
	entry.attempts++
	entry.ttl = lease
	entry.leaseEnd = now.Add(lease)
	entry.retryAt = time.Time{}
	s.entries[key] = entry
	s.claims[claimID] = key
	return claimID, true, nil
}

func (s *InMemoryClaimStore) Complete(_ context.Context, claimID string) error {
	return s.settle(claimID, func(entry *claimEntry, now time.Time) {
		entry.status = claimStatusComplete
		entry.leaseEnd = now.Add(entry.ttl)
		entry.retryAt = time.Time{}
	})
}

func (s *InMemoryClaimStore) Fail(_ context.Context, claimID string, _ error, retryAt time.Time) error {
	return s.settle(claimID, func(entry *claimEntry, now time.Time) {
		if retryAt.IsZero() {
			retryAt = now
		}
		entry.status = claimStatusRetryReady
		entry.retryAt = retryAt.UTC()
		entry.leaseEnd = time.Time{}
	})
}

// Attempts reports how many times key has been claimed.
func (s *InMemoryClaimStore) Attempts(key string) int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[strings.TrimSpace(key)].attempts
}

func (s *InMemoryClaimStore) settle(claimID string, apply func(*claimEntry, time.Time)) error {
	if s == nil {
		return inboundInternal("inbound: idempotency store is nil", nil)
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return inboundBadInput("inbound: claim id is required", nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.claims[claimID]
	if !ok {
		return nil
	}
	delete(s.claims, claimID)
	entry, exists := s.entries[key]
	if !exists || entry.claimID != claimID || entry.status != claimStatusProcessing {
		return nil
	}
	if entry.ttl <= 0 {
		entry.ttl = DefaultKeyTTL
	}
	apply(&entry, s.now())
	s.entries[key] = entry
	return nil
}

func (s *InMemoryClaimStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *InMemoryClaimStore) evictExpiredLocked(now time.Time) {
	for key, entry := range s.entries {
		if entry.status == claimStatusComplete && !now.Before(entry.leaseEnd) {
			delete(s.claims, entry.claimID)
			delete(s.entries, key)
		}
	}
}
