package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kirana/internal/catalog"
	"github.com/xenking/kirana/internal/domain/cart"
	"github.com/xenking/kirana/internal/domain/checkout"
	"github.com/xenking/kirana/internal/domain/product"
)

const maxBodyBytes = 64 << 10

// APIProducts returns the catalog state, filtered by the q parameter.
func (h *Handler) APIProducts(w http.ResponseWriter, r *http.Request) {
	h.writeCatalog(w, r.URL.Query().Get("q"))
}

// APIRefreshProducts re-fetches the catalog and returns the new state.
// A failed fetch is reported in the body, not as an HTTP error.
func (h *Handler) APIRefreshProducts(w http.ResponseWriter, r *http.Request) {
	h.refresh(r)
	h.writeCatalog(w, "")
}

func (h *Handler) writeCatalog(w http.ResponseWriter, query string) {
	st := h.catalog.State()
	products := catalog.Search(st.Products, query)

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(st.Status.String()) })
		if st.Message != "" {
			e.Field("message", func(e *jx.Encoder) { e.Str(st.Message) })
		}
		e.Field("products", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, p := range products {
					qty := 0
					if l, ok := h.cart.LineFor(p.ID); ok {
						qty = l.Quantity
					}
					e.Obj(func(e *jx.Encoder) {
						encodeProductFields(e, p)
						e.Field("inCart", func(e *jx.Encoder) { e.Int(qty) })
					})
				}
			})
		})
	})
	writeJSON(w, http.StatusOK, e)
}

// APICart returns the cart.
func (h *Handler) APICart(w http.ResponseWriter, _ *http.Request) {
	h.writeCart(w, http.StatusOK)
}

// APIAddItem adds the product named by {"productId": ...} to the cart.
func (h *Handler) APIAddItem(w http.ResponseWriter, r *http.Request) {
	id, err := decodeProductID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.apply(r.Context(), opAdd, id); err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, http.StatusOK)
}

func (h *Handler) apiMutation(o op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.apply(r.Context(), o, r.PathValue("id")); err != nil {
			writeError(w, r, err)
			return
		}
		h.writeCart(w, http.StatusOK)
	}
}

// APICheckout hands the cart off and returns the composed message and link.
func (h *Handler) APICheckout(w http.ResponseWriter, r *http.Request) {
	d, err := decodeDeliveryDetails(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	handoff, err := h.checkout.Handoff(r.Context(), d)
	if err != nil {
		writeError(w, r, err)
		return
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("message", func(e *jx.Encoder) { e.Str(handoff.Message) })
		e.Field("url", func(e *jx.Encoder) { e.Str(handoff.URL) })
	})
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) writeCart(w http.ResponseWriter, code int) {
	snap := h.cart.Snapshot()

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range snap.Lines {
					encodeLine(e, l)
				}
			})
		})
		e.Field("total", func(e *jx.Encoder) { e.Num(jx.Num(snap.Total().StringFixed(2))) })
		e.Field("lineCount", func(e *jx.Encoder) { e.Int(len(snap.Lines)) })
	})
	writeJSON(w, code, e)
}

func encodeLine(e *jx.Encoder, l cart.Line) {
	e.Obj(func(e *jx.Encoder) {
		encodeProductFields(e, l.Product)
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
		e.Field("subtotal", func(e *jx.Encoder) { e.Num(jx.Num(l.Subtotal().StringFixed(2))) })
	})
}

func encodeProductFields(e *jx.Encoder, p product.Product) {
	e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
	e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
	e.Field("price", func(e *jx.Encoder) { e.Num(jx.Num(p.Price.String())) })
	e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
	e.Field("imageUrl", func(e *jx.Encoder) { e.Str(p.ImageURL) })
	e.Field("availableQuantity", func(e *jx.Encoder) { e.Int(p.AvailableQuantity) })
}

func readBody(r *http.Request) (*jx.Decoder, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		zctx.From(r.Context()).Debug("Read body", zap.Error(err))
		return nil, errInvalidBody
	}
	return jx.DecodeBytes(data), nil
}

func decodeProductID(r *http.Request) (string, error) {
	d, err := readBody(r)
	if err != nil {
		return "", err
	}
	var id string
	err = d.Obj(func(d *jx.Decoder, key string) error {
		if key != "productId" {
			return d.Skip()
		}
		var err error
		id, err = d.Str()
		return err
	})
	if err != nil {
		zctx.From(r.Context()).Debug("Bad add-item body", zap.Error(err))
		return "", errInvalidBody
	}
	if id == "" {
		return "", errMissingProductID
	}
	return id, nil
}

func decodeDeliveryDetails(r *http.Request) (checkout.DeliveryDetails, error) {
	d, err := readBody(r)
	if err != nil {
		return checkout.DeliveryDetails{}, err
	}
	var details checkout.DeliveryDetails
	err = d.Obj(func(d *jx.Decoder, key string) error {
		var target *string
		switch key {
		case "name":
			target = &details.Name
		case "blockType":
			target = &details.BlockType
		case "block":
			target = &details.Block
		case "flat":
			target = &details.Flat
		default:
			return d.Skip()
		}
		v, err := d.Str()
		*target = v
		return err
	})
	if err != nil {
		zctx.From(r.Context()).Debug("Bad checkout body", zap.Error(err))
		return checkout.DeliveryDetails{}, errInvalidBody
	}
	return details, nil
}
