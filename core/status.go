package core

import "strings"

var providerStatuses = map[string]TransactionStatus{
	"success":    TransactionStatusSuccess,
	"paid":       TransactionStatusSuccess,
	"completed":  TransactionStatusSuccess,
	"pending":    TransactionStatusPending,
	"processing": TransactionStatusPending,
	"failed":     TransactionStatusFailed,
	"error":      TransactionStatusFailed,
	"rejected":   TransactionStatusFailed,
	"expired":    TransactionStatusExpired,
	"timeout":    TransactionStatusExpired,
	"cancelled":  TransactionStatusCancelled,
	"canceled":   TransactionStatusCancelled,
}

// MapStatus translates the gateway status vocabulary, case-insensitively.
// Unknown values map to pending.
func MapStatus(providerStatus string) TransactionStatus {
	if status, ok := providerStatuses[strings.ToLower(strings.TrimSpace(providerStatus))]; ok {
		return status
	}
	return TransactionStatusPending
}
