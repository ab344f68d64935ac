package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-bdpay/core"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestClaimStore_ClaimCompleteAndRetry(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	store, err := NewClaimStore(client)
	require.NoError(t, err)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	store.Now = func() time.Time { return now }
	const key = "bdpay:payment:abc"

	claimID, accepted, err := store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, accepted)
	require.NotEmpty(t, claimID)

	_, accepted, err = store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, accepted, "in-flight key must be rejected")

	require.NoError(t, store.Fail(ctx, claimID, errors.New("boom"), now.Add(30*time.Second)))
	_, accepted, err = store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, accepted, "key must wait for its retry time")

	now = now.Add(30 * time.Second)
	secondID, accepted, err := store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, accepted)
	assert.NotEqual(t, claimID, secondID)

	attempts, err := store.Attempts(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	require.NoError(t, store.Complete(ctx, secondID))
	_, accepted, err = store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, accepted, "completed key must be suppressed")

	mr.FastForward(61 * time.Second)
	_, accepted, err = store.Claim(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, accepted, "expired key must be claimable again")
}

func TestClaimStore_StaleClaimIDIsIgnored(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	store, err := NewClaimStore(client, WithKeyPrefix("test"))
	require.NoError(t, err)

	claimID, accepted, err := store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, accepted)
	require.NoError(t, store.Complete(ctx, claimID))

	// A second settle of the same claim must not reopen the key.
	require.NoError(t, store.Fail(ctx, claimID, errors.New("late"), time.Time{}))
	_, accepted, err = store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, accepted)

	require.NoError(t, store.Complete(ctx, "unknown-claim"))
	assert.Error(t, store.Complete(ctx, " "))
	_, _, err = store.Claim(ctx, "", time.Minute)
	assert.Error(t, err)

	keys, err := client.Keys(ctx, "test:claim:*").Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"test:claim:k"}, keys)
}

func TestClaimStore_LeaseExpiryReleasesStuckClaim(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	store, err := NewClaimStore(client)
	require.NoError(t, err)

	first, accepted, err := store.Claim(ctx, "stuck", 5*time.Second)
	require.NoError(t, err)
	require.True(t, accepted)

	mr.FastForward(6 * time.Second)
	second, accepted, err := store.Claim(ctx, "stuck", 5*time.Second)
	require.NoError(t, err)
	require.True(t, accepted)

	// The first worker finishing late must not settle the new claim.
	require.NoError(t, store.Complete(ctx, first))
	require.NoError(t, store.Fail(ctx, second, errors.New("retry"), time.Time{}))
	_, accepted, err = store.Claim(ctx, "stuck", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, accepted)
}

func TestDeadLetterQueue_SendListAndTrim(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	queue, err := NewDeadLetterQueue(client, WithMaxLen(2))
	require.NoError(t, err)

	for _, key := range []string{"one", "two", "three"} {
		require.NoError(t, queue.Send(ctx, core.DeadLetter{
			ProviderID:     "bdpay",
			Surface:        "payment",
			IdempotencyKey: key,
			Headers:        map[string]string{core.HeaderSignature: "sig"},
			Body:           []byte(`{"order_id":"` + key + `"}`),
			Error:          "db down",
		}))
	}

	length, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, length)

	letters, err := queue.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, letters, 2)
	assert.Equal(t, "three", letters[0].IdempotencyKey)
	assert.Equal(t, `{"order_id":"three"}`, string(letters[0].Body))
	assert.Equal(t, "sig", letters[0].Headers[core.HeaderSignature])
	assert.False(t, letters[0].FailedAt.IsZero())
	assert.Equal(t, "two", letters[1].IdempotencyKey)
}

func TestDeadLetterQueue_CustomList(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestClient(t)
	queue, err := NewDeadLetterQueue(client, WithDeadLetterList("shop", "dlq"))
	require.NoError(t, err)
	require.NoError(t, queue.Send(ctx, core.DeadLetter{Surface: "disbursement"}))
	assert.True(t, mr.Exists("shop:dlq"))

	_, err = NewDeadLetterQueue(nil)
	assert.Error(t, err)
}
