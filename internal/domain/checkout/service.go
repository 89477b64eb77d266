package checkout

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kirana/internal/domain/cart"
)

// Service hands the live cart off to the store's chat.
type Service struct {
	store    *cart.Store
	exporter *Exporter
}

// NewService creates a checkout Service.
func NewService(store *cart.Store, exporter *Exporter) *Service {
	return &Service{store: store, exporter: exporter}
}

// Handoff exports the current cart and, on success, clears it. Export and
// clear happen as one cart operation. Nothing is cleared when the cart is
// empty or the details are invalid.
func (s *Service) Handoff(ctx context.Context, d DeliveryDetails) (*Handoff, error) {
	var (
		h    *Handoff
		snap cart.Snapshot
	)
	err := s.store.Checkout(ctx, func(cur cart.Snapshot) error {
		var err error
		h, err = s.exporter.Export(cur.Lines, cur.Total(), d)
		snap = cur
		return err
	})
	if err != nil {
		return nil, err
	}

	zctx.From(ctx).Info("Checkout handed off",
		zap.Int("lines", len(snap.Lines)),
		zap.String("total", snap.Total().StringFixed(2)),
	)
	return h, nil
}
