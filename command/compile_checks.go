package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[CreateVirtualAccountMessage] = (*CreateVirtualAccountCommand)(nil)
	_ gocmd.Commander[CreatePaymentLinkMessage]    = (*CreatePaymentLinkCommand)(nil)
	_ gocmd.Commander[CreateStaticVAMessage]       = (*CreateStaticVACommand)(nil)
	_ gocmd.Commander[CreateDisbursementMessage]   = (*CreateDisbursementCommand)(nil)
	_ gocmd.Commander[ReconcileWebhookMessage]     = (*ReconcileWebhookCommand)(nil)
	_ gocmd.Commander[SyncStatusMessage]           = (*SyncStatusCommand)(nil)
)
