package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-bdpay/core"
	"github.com/goliatone/go-logger/glog"
	"github.com/redis/go-redis/v9"
)

const defaultDeadLetterList = "failed-webhooks"

type deadLetterRecord struct {
	ProviderID     string            `json:"provider_id"`
	Surface        string            `json:"surface"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Headers        map[string]string `json:"headers,omitempty"`
	Body           string            `json:"body"`
	Error          string            `json:"error"`
	FailedAt       time.Time         `json:"failed_at"`
}

// DeadLetterQueue keeps failed webhook deliveries in a capped Redis list,
// newest first, so they can be inspected and replayed.
type DeadLetterQueue struct {
	client   redis.UniversalClient
	logger   core.Logger
	listName string
	maxLen   int64
}

type DeadLetterOption func(*DeadLetterQueue)

func WithDeadLetterLogger(logger core.Logger) DeadLetterOption {
	return func(q *DeadLetterQueue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

func WithDeadLetterList(prefix, name string) DeadLetterOption {
	return func(q *DeadLetterQueue) {
		prefix = strings.TrimSpace(prefix)
		name = strings.TrimSpace(name)
		if prefix != "" && name != "" {
			q.listName = prefix + ":" + name
		}
	}
}

// WithMaxLen trims the list to the newest n entries on every push.
func WithMaxLen(n int64) DeadLetterOption {
	return func(q *DeadLetterQueue) {
		if n > 0 {
			q.maxLen = n
		}
	}
}

func NewDeadLetterQueue(client redis.UniversalClient, opts ...DeadLetterOption) (*DeadLetterQueue, error) {
	if client == nil {
		return nil, fmt.Errorf("redisstore: client is required")
	}
	queue := &DeadLetterQueue{
		client:   client,
		logger:   glog.Nop(),
		listName: DefaultKeyPrefix + ":" + defaultDeadLetterList,
		maxLen:   1000,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(queue)
		}
	}
	return queue, nil
}

func (q *DeadLetterQueue) Send(ctx context.Context, letter core.DeadLetter) error {
	if q == nil || q.client == nil {
		return fmt.Errorf("redisstore: dead letter queue is not configured")
	}
	if letter.FailedAt.IsZero() {
		letter.FailedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(deadLetterRecord{
		ProviderID:     letter.ProviderID,
		Surface:        letter.Surface,
		IdempotencyKey: letter.IdempotencyKey,
		Headers:        letter.Headers,
		Body:           string(letter.Body),
		Error:          letter.Error,
		FailedAt:       letter.FailedAt.UTC(),
	})
	if err != nil {
		q.logger.Error("failed to marshal dead letter", "surface", letter.Surface, "error", err)
		return err
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, q.listName, payload)
		pipe.LTrim(ctx, q.listName, 0, q.maxLen-1)
		return nil
	})
	if err != nil {
		q.logger.Error("failed to store dead letter", "list", q.listName, "error", err)
		return err
	}
	q.logger.Warn("webhook delivery moved to dead letter queue",
		"surface", letter.Surface,
		"idempotency_key", letter.IdempotencyKey,
	)
	return nil
}

// List returns up to limit entries, newest first.
func (q *DeadLetterQueue) List(ctx context.Context, limit int64) ([]core.DeadLetter, error) {
	if q == nil || q.client == nil {
		return nil, fmt.Errorf("redisstore: dead letter queue is not configured")
	}
	if limit <= 0 {
		limit = q.maxLen
	}
	raw, err := q.client.LRange(ctx, q.listName, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	letters := make([]core.DeadLetter, 0, len(raw))
	for _, item := range raw {
		var record deadLetterRecord
		if err := json.Unmarshal([]byte(item), &record); err != nil {
			q.logger.Warn("skipping unreadable dead letter", "error", err)
			continue
		}
		letters = append(letters, core.DeadLetter{
			ProviderID:     record.ProviderID,
			Surface:        record.Surface,
			IdempotencyKey: record.IdempotencyKey,
			Headers:        record.Headers,
			Body:           []byte(record.Body),
			Error:          record.Error,
			FailedAt:       record.FailedAt,
		})
	}
	return letters, nil
}

func (q *DeadLetterQueue) Len(ctx context.Context) (int64, error) {
	if q == nil || q.client == nil {
		return 0, fmt.Errorf("redisstore: dead letter queue is not configured")
	}
	return q.client.LLen(ctx, q.listName).Result()
}

var _ core.DeadLetterSink = (*DeadLetterQueue)(nil)
