package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// DefaultKey is the fixed namespace key the cart document is stored under.
const DefaultKey = "cart-storage"

// ErrNoSnapshot is returned by SnapshotStore.Load when nothing is stored
// under the key.
var ErrNoSnapshot = errors.New("no cart snapshot")

// SnapshotStore is durable storage for whole cart snapshots.
type SnapshotStore interface {
	Load(ctx context.Context, key string) (Snapshot, error)
	Save(ctx context.Context, key string, snap Snapshot) error
}

var _ Observer = (*Persister)(nil)

// Persister saves every cart snapshot it observes. Saving is best-effort:
// failures are logged and the in-memory cart stays authoritative.
type Persister struct {
	store SnapshotStore
	key   string
}

// NewPersister returns a Persister writing under key.
func NewPersister(store SnapshotStore, key string) *Persister {
	if key == "" {
		key = DefaultKey
	}
	return &Persister{store: store, key: key}
}

// CartChanged implements Observer.
func (p *Persister) CartChanged(ctx context.Context, snap Snapshot) {
	if err := p.store.Save(ctx, p.key, snap); err != nil {
		zctx.From(ctx).Warn("Persist cart",
			zap.String("key", p.key),
			zap.Int("lines", len(snap.Lines)),
			zap.Error(err),
		)
	}
}

// Restore rehydrates a Store from the snapshot under key and wires a
// Persister for subsequent mutations. A missing or unreadable snapshot
// yields an empty cart; only the latter is logged.
func Restore(ctx context.Context, store SnapshotStore, key string) *Store {
	p := NewPersister(store, key)
	lg := zctx.From(ctx)

	snap, err := store.Load(ctx, p.key)
	switch {
	case errors.Is(err, ErrNoSnapshot):
		lg.Info("No persisted cart, starting empty", zap.String("key", p.key))
	case err != nil:
		lg.Warn("Discarding unreadable cart snapshot", zap.String("key", p.key), zap.Error(err))
		snap = Snapshot{}
	default:
		lg.Info("Restored cart", zap.String("key", p.key), zap.Int("lines", len(snap.Lines)))
	}

	return NewStore(snap.Lines, p)
}
