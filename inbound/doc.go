// Package inbound receives BDPay callbacks over HTTP.
//
// Every request is verified against the X-BDPay-Signature header before any
// handler runs. Deliveries are then claimed in a core.IdempotencyClaimStore
// so a gateway retry of an already processed body is acknowledged without
// touching the ledger again. Handler failures release the claim, leaving the
// callback retryable.
package inbound
