// Package handler serves the storefront pages and its JSON API.
package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/kirana/internal/catalog"
	"github.com/xenking/kirana/internal/domain/cart"
	"github.com/xenking/kirana/internal/domain/checkout"
	"github.com/xenking/kirana/internal/domain/product"
)

// Catalog is the read side of the catalog loader used by the handlers.
type Catalog interface {
	State() catalog.State
	Lookup(id string) (product.Product, error)
	Refresh(ctx context.Context) error
}

var _ Catalog = (*catalog.Loader)(nil)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// MinimumOrder is advertised on the landing page.
	MinimumOrder decimal.Decimal
	// ServiceArea is the delivery area shown on the landing page.
	ServiceArea string
}

// Handler serves every storefront route on top of the catalog, the cart
// and checkout.
type Handler struct {
	cfg      Config
	catalog  Catalog
	cart     *cart.Store
	checkout *checkout.Service
	pages    *pages

	mutations metric.Int64Counter
}

// New constructs a Handler.
func New(
	cfg Config,
	cat Catalog,
	store *cart.Store,
	svc *checkout.Service,
	mp metric.MeterProvider,
) (*Handler, error) {
	p, err := parsePages()
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}
	mutations, err := mp.Meter("github.com/xenking/kirana/internal/handler").Int64Counter(
		"kirana.cart.mutations",
		metric.WithDescription("Cart mutations by operation"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create counter")
	}
	return &Handler{
		cfg:       cfg,
		catalog:   cat,
		cart:      store,
		checkout:  svc,
		pages:     p,
		mutations: mutations,
	}, nil
}

// Register mounts all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Landing)
	mux.HandleFunc("GET /products", h.Products)
	mux.HandleFunc("POST /products/refresh", h.RefreshProducts)
	mux.HandleFunc("GET /checkout", h.Checkout)
	mux.HandleFunc("POST /checkout", h.PlaceOrder)

	mux.HandleFunc("POST /cart/add", h.formMutation(opAdd))
	mux.HandleFunc("POST /cart/increase", h.formMutation(opIncrease))
	mux.HandleFunc("POST /cart/decrease", h.formMutation(opDecrease))
	mux.HandleFunc("POST /cart/remove", h.formMutation(opRemove))
	mux.HandleFunc("POST /cart/clear", h.formMutation(opClear))

	mux.HandleFunc("GET /api/products", h.APIProducts)
	mux.HandleFunc("POST /api/products/refresh", h.APIRefreshProducts)
	mux.HandleFunc("GET /api/cart", h.APICart)
	mux.HandleFunc("POST /api/cart/items", h.APIAddItem)
	mux.HandleFunc("POST /api/cart/items/{id}/increase", h.apiMutation(opIncrease))
	mux.HandleFunc("POST /api/cart/items/{id}/decrease", h.apiMutation(opDecrease))
	mux.HandleFunc("DELETE /api/cart/items/{id}", h.apiMutation(opRemove))
	mux.HandleFunc("DELETE /api/cart", h.apiMutation(opClear))
	mux.HandleFunc("POST /api/checkout", h.APICheckout)
}

type op string

const (
	opAdd      op = "add"
	opIncrease op = "increase"
	opDecrease op = "decrease"
	opRemove   op = "remove"
	opClear    op = "clear"
)

// apply runs o against the cart. Only add and increase need the product:
// it is taken from the catalog, or from the cart line when the catalog no
// longer has it. Decrease and remove on unknown ids are no-ops.
func (h *Handler) apply(ctx context.Context, o op, id string) error {
	switch o {
	case opAdd, opIncrease:
		if id == "" {
			return errMissingProductID
		}
		p, err := h.resolve(id)
		if err != nil {
			return err
		}
		if o == opAdd {
			h.cart.AddToCart(ctx, p)
		} else {
			h.cart.IncreaseQuantity(ctx, p)
		}
	case opDecrease:
		h.cart.DecreaseQuantity(ctx, id)
	case opRemove:
		h.cart.RemoveFromCart(ctx, id)
	case opClear:
		h.cart.ClearCart(ctx)
	default:
		return errors.Errorf("unknown cart operation %q", o)
	}
	h.mutations.Add(ctx, 1, metric.WithAttributes(attribute.String("op", string(o))))
	return nil
}

func (h *Handler) resolve(id string) (product.Product, error) {
	p, err := h.catalog.Lookup(id)
	if err == nil {
		return p, nil
	}
	if l, ok := h.cart.LineFor(id); ok {
		return l.Product, nil
	}
	return product.Product{}, err
}
