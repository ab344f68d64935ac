package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// keyedRecord is a bun model with a string UUID primary key and a natural
// key column used as the repository identifier. Methods tolerate nil
// receivers.
type keyedRecord interface {
	recordID() string
	setRecordID(id string)
	naturalKey() string
}

func (r *transactionRecord) recordID() string {
	if r == nil {
		return ""
	}
	return r.ID
}

func (r *transactionRecord) setRecordID(id string) {
	if r != nil {
		r.ID = id
	}
}

func (r *transactionRecord) naturalKey() string {
	if r == nil {
		return ""
	}
	return r.OrderID
}

func (r *webhookClaimRecord) recordID() string {
	if r == nil {
		return ""
	}
	return r.ID
}

func (r *webhookClaimRecord) setRecordID(id string) {
	if r != nil {
		r.ID = id
	}
}

func (r *webhookClaimRecord) naturalKey() string {
	if r == nil {
		return ""
	}
	return r.ClaimKey
}

func transactionHandlers() repository.ModelHandlers[*transactionRecord] {
	return modelHandlers(func() *transactionRecord { return &transactionRecord{} }, "order_id")
}

func webhookClaimHandlers() repository.ModelHandlers[*webhookClaimRecord] {
	return modelHandlers(func() *webhookClaimRecord { return &webhookClaimRecord{} }, "claim_key")
}

func modelHandlers[T keyedRecord](newRecord func() T, identifier string) repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			parsed, err := uuid.Parse(strings.TrimSpace(record.recordID()))
			if err != nil {
				return uuid.Nil
			}
			return parsed
		},
		SetID: func(record T, id uuid.UUID) {
			record.setRecordID(id.String())
		},
		GetIdentifier: func() string { return identifier },
		GetIdentifierValue: func(record T) string {
			return strings.TrimSpace(record.naturalKey())
		},
	}
}
