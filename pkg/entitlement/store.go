package entitlement

import (
	"context"

	"github.com/google/uuid"
)

// Store persists entitlement records. Each account holds exactly one
// record, so AccountID is the primary key. Save must replace the whole
// record; implementations never merge fields.
type Store interface {
	// Get returns the record for an account.
	// Returns ErrEntitlementNotFound if none exists.
	Get(ctx context.Context, accountID uuid.UUID) (*Entitlement, error)

	// Save creates or wholesale-overwrites the account's record.
	Save(ctx context.Context, ent *Entitlement) error
}
