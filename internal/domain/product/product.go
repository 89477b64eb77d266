package product

import (
	"context"

	"github.com/shopspring/decimal"
)

// Product is a purchasable catalog item after projection. Every field is
// populated; zero-availability products never reach this type's consumers.
type Product struct {
	ID                string
	Name              string
	Price             decimal.Decimal
	Description       string
	ImageURL          string
	AvailableQuantity int
}

// Available reports whether the product may be shown in the catalog.
func (p Product) Available() bool {
	return p.AvailableQuantity > 0
}

// Source lists the currently available products. Implementations may fail
// (network, credentials); callers treat the catalog as empty until a retry
// succeeds.
type Source interface {
	ListAvailable(ctx context.Context) ([]Product, error)
}
