package handler

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kirana/internal/catalog"
	"github.com/xenking/kirana/internal/domain/checkout"
)

//go:embed templates/*.html
var templateFS embed.FS

type pages struct {
	landing  *template.Template
	products *template.Template
	checkout *template.Template
}

func parsePages() (*pages, error) {
	funcs := template.FuncMap{"inr": checkout.FormatINR}
	parse := func(name string) (*template.Template, error) {
		return template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
	}

	var (
		p   pages
		err error
	)
	if p.landing, err = parse("landing.html"); err != nil {
		return nil, err
	}
	if p.products, err = parse("products.html"); err != nil {
		return nil, err
	}
	if p.checkout, err = parse("checkout.html"); err != nil {
		return nil, err
	}
	return &p, nil
}

type cartBadge struct {
	LineCount int
	Total     decimal.Decimal
}

type landingView struct {
	Cart         cartBadge
	MinimumOrder decimal.Decimal
	ServiceArea  string
}

type productView struct {
	ID                string
	Name              string
	Description       string
	ImageURL          string
	Price             decimal.Decimal
	AvailableQuantity int
	Quantity          int
	Subtotal          decimal.Decimal
}

type productsView struct {
	Cart        cartBadge
	Status      string
	Message     string
	Query       string
	ReturnTo    string
	CatalogSize int
	Products    []productView
}

type lineView struct {
	Name     string
	Quantity int
	Subtotal string
}

type checkoutView struct {
	Cart       cartBadge
	Lines      []lineView
	Total      string
	Details    checkout.DeliveryDetails
	Error      string
	BlockTypes []string
	Blocks     []string
}

func (h *Handler) badge() cartBadge {
	return cartBadge{LineCount: h.cart.LineCount(), Total: h.cart.TotalPrice()}
}

// Landing renders the landing page.
func (h *Handler) Landing(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, h.pages.landing, landingView{
		Cart:         h.badge(),
		MinimumOrder: h.cfg.MinimumOrder,
		ServiceArea:  h.cfg.ServiceArea,
	})
}

// Products renders the catalog with per-product cart controls.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	st := h.catalog.State()
	query := r.URL.Query().Get("q")

	view := productsView{
		Cart:        h.badge(),
		Status:      st.Status.String(),
		Message:     st.Message,
		Query:       query,
		ReturnTo:    r.URL.RequestURI(),
		CatalogSize: len(st.Products),
	}
	for _, p := range catalog.Search(st.Products, query) {
		pv := productView{
			ID:                p.ID,
			Name:              p.Name,
			Description:       p.Description,
			ImageURL:          p.ImageURL,
			Price:             p.Price,
			AvailableQuantity: p.AvailableQuantity,
		}
		if l, ok := h.cart.LineFor(p.ID); ok {
			pv.Quantity = l.Quantity
			pv.Subtotal = p.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		}
		view.Products = append(view.Products, pv)
	}
	h.render(w, r, http.StatusOK, h.pages.products, view)
}

// RefreshProducts retries the catalog fetch and returns to the catalog.
func (h *Handler) RefreshProducts(w http.ResponseWriter, r *http.Request) {
	h.refresh(r)
	http.Redirect(w, r, "/products", http.StatusSeeOther)
}

// Checkout renders the order summary and delivery form. An empty cart sends
// the shopper back to the catalog.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.cart.LineCount() == 0 {
		http.Redirect(w, r, "/products", http.StatusSeeOther)
		return
	}
	h.renderCheckout(w, r, http.StatusOK, checkout.DeliveryDetails{}, "")
}

// PlaceOrder validates the delivery form, hands the cart off and redirects
// to the chat deep link.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderCheckout(w, r, http.StatusBadRequest, checkout.DeliveryDetails{}, "Invalid form submission")
		return
	}
	d := checkout.DeliveryDetails{
		Name:      r.PostForm.Get("name"),
		BlockType: r.PostForm.Get("blockType"),
		Block:     r.PostForm.Get("block"),
		Flat:      r.PostForm.Get("flat"),
	}

	handoff, err := h.checkout.Handoff(r.Context(), d)
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		http.Redirect(w, r, "/products", http.StatusSeeOther)
	case err != nil:
		code, msg := mapError(err)
		if code == http.StatusInternalServerError {
			zctx.From(r.Context()).Error("Checkout", zap.Error(err))
		}
		h.renderCheckout(w, r, code, d, msg)
	default:
		http.Redirect(w, r, handoff.URL, http.StatusSeeOther)
	}
}

func (h *Handler) renderCheckout(w http.ResponseWriter, r *http.Request, code int, d checkout.DeliveryDetails, msg string) {
	snap := h.cart.Snapshot()
	view := checkoutView{
		Cart:       h.badge(),
		Total:      snap.Total().StringFixed(2),
		Details:    d,
		Error:      msg,
		BlockTypes: checkout.BlockTypes,
		Blocks:     checkout.Blocks,
	}
	for _, l := range snap.Lines {
		view.Lines = append(view.Lines, lineView{
			Name:     l.Product.Name,
			Quantity: l.Quantity,
			Subtotal: l.Subtotal().StringFixed(2),
		})
	}
	h.render(w, r, code, h.pages.checkout, view)
}

// formMutation applies o with the product_id form value and redirects back
// to return_to.
func (h *Handler) formMutation(o op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			writeError(w, r, errInvalidBody)
			return
		}
		if err := h.apply(r.Context(), o, r.PostForm.Get("product_id")); err != nil {
			code, msg := mapError(err)
			http.Error(w, msg, code)
			return
		}
		http.Redirect(w, r, safeReturn(r.PostForm.Get("return_to")), http.StatusSeeOther)
	}
}

// safeReturn allows only local absolute paths as redirect targets.
// Browsers read a backslash as a slash, so "/\host" is off-site too.
func safeReturn(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") ||
		strings.ContainsAny(target, "\\\r\n\t") {
		return "/products"
	}
	u, err := url.Parse(target)
	if err != nil || u.Host != "" || u.Scheme != "" {
		return "/products"
	}
	return target
}

// refresh reloads the shared catalog. The fetch is not cancelled with the
// request.
func (h *Handler) refresh(r *http.Request) {
	// The loader logs failures and records them in its state.
	if err := h.catalog.Refresh(context.WithoutCancel(r.Context())); err != nil && !errors.Is(err, catalog.ErrStale) {
		zctx.From(r.Context()).Debug("Catalog refresh failed", zap.Error(err))
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, code int, t *template.Template, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		zctx.From(r.Context()).Error("Render page", zap.String("page", t.Name()), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = buf.WriteTo(w)
}
