package entitlement

import (
	"context"
	"time"
)

// Store persists accounts outside of a transaction. Transactional reads and
// writes go through store.Tx.
type Store interface {
	GetAccount(ctx context.Context, userID string) (*Account, error)
	CreateAccount(ctx context.Context, a *Account) error
	FindAccountsByCustomerID(ctx context.Context, customerID string) ([]*Account, error)

	// ListStaleAccounts returns accounts whose persisted paid tier is backed
	// by a subscription whose end date is at or before now.
	ListStaleAccounts(ctx context.Context, now time.Time, limit int) ([]*Account, error)
}
