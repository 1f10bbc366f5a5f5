package processor

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/billingkit/pkg/pg"
)

// PGDirectory stores customer-to-account links in the customer_accounts
// table. Link is an upsert so a repeated checkout for the same customer
// refreshes the mapping instead of failing.
type PGDirectory struct {
	pool *pgxpool.Pool
}

// NewPGDirectory creates a directory backed by the given pool.
// Panics if pool is nil.
func NewPGDirectory(pool *pgxpool.Pool) *PGDirectory {
	if pool == nil {
		panic("processor: pgxpool is required")
	}
	return &PGDirectory{pool: pool}
}

func (d *PGDirectory) Link(ctx context.Context, customerRef string, accountID uuid.UUID) error {
	if customerRef == "" {
		return errors.Join(ErrDirectoryFailure, errors.New("empty customer reference"))
	}
	_, err := d.pool.Exec(ctx, `
		INSERT INTO customer_accounts (customer_ref, account_id, linked_at)
		VALUES ($1, $2, now())
		ON CONFLICT (customer_ref) DO UPDATE SET
			account_id = EXCLUDED.account_id,
			linked_at  = EXCLUDED.linked_at`,
		customerRef, accountID,
	)
	if err != nil {
		return errors.Join(ErrDirectoryFailure, err)
	}
	return nil
}

func (d *PGDirectory) Lookup(ctx context.Context, customerRef string) (uuid.UUID, error) {
	var accountID uuid.UUID
	err := d.pool.QueryRow(ctx,
		`SELECT account_id FROM customer_accounts WHERE customer_ref = $1`,
		customerRef,
	).Scan(&accountID)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return uuid.Nil, ErrUnknownCustomer
		}
		return uuid.Nil, errors.Join(ErrDirectoryFailure, err)
	}
	return accountID, nil
}

// MemoryDirectory is an in-memory CustomerDirectory for tests.
type MemoryDirectory struct {
	mu    sync.RWMutex
	links map[string]uuid.UUID
}

// NewMemoryDirectory creates an empty in-memory directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{links: make(map[string]uuid.UUID)}
}

func (d *MemoryDirectory) Link(_ context.Context, customerRef string, accountID uuid.UUID) error {
	if customerRef == "" {
		return errors.Join(ErrDirectoryFailure, errors.New("empty customer reference"))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.links[customerRef] = accountID
	return nil
}

func (d *MemoryDirectory) Lookup(_ context.Context, customerRef string) (uuid.UUID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.links[customerRef]
	if !ok {
		return uuid.Nil, ErrUnknownCustomer
	}
	return id, nil
}
