// Package webhooks reconciles BDPay payment and disbursement callbacks into
// the transaction ledger.
//
// Callbacks are processed inline by Handler, or queued by AsyncHandler and
// drained by JobRunner with exponential retry and dead-lettering.
package webhooks
