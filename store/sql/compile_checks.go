package sqlstore

import "github.com/goliatone/go-bdpay/core"

var (
	_ core.TransactionStore      = (*TransactionStore)(nil)
	_ core.IdempotencyClaimStore = (*ClaimStore)(nil)
	_ core.StoreProvider         = (*RepositoryFactory)(nil)
)
