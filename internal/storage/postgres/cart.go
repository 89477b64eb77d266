package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kirana/internal/domain/cart"
)

const (
	getCartSnapshotSQL = `SELECT document FROM cart_snapshots WHERE key = $1`

	upsertCartSnapshotSQL = `INSERT INTO cart_snapshots (key, document, total, line_count, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (key) DO UPDATE
		SET document = EXCLUDED.document,
			total = EXCLUDED.total,
			line_count = EXCLUDED.line_count,
			updated_at = EXCLUDED.updated_at`
)

var _ cart.SnapshotStore = (*CartRepository)(nil)

// CartRepository implements cart.SnapshotStore backed by PostgreSQL. The
// total and line count are denormalized next to the document for reporting.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Load implements cart.SnapshotStore.
func (r *CartRepository) Load(ctx context.Context, key string) (cart.Snapshot, error) {
	var doc []byte
	if err := r.pool.QueryRow(ctx, getCartSnapshotSQL, key).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.Snapshot{}, cart.ErrNoSnapshot
		}
		return cart.Snapshot{}, errors.Wrapf(err, "get cart snapshot %q", key)
	}
	return cart.DecodeSnapshot(doc)
}

// Save implements cart.SnapshotStore.
func (r *CartRepository) Save(ctx context.Context, key string, snap cart.Snapshot) error {
	_, err := r.pool.Exec(ctx, upsertCartSnapshotSQL,
		key,
		cart.EncodeSnapshot(snap),
		snap.Total(),
		len(snap.Lines),
	)
	if err != nil {
		return errors.Wrapf(err, "save cart snapshot %q", key)
	}
	return nil
}

// Ping checks the pool.
func (r *CartRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
