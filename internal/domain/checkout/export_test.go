package checkout

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kirana/internal/domain/cart"
	"github.com/xenking/kirana/internal/domain/product"
)

func validDetails() DeliveryDetails {
	return DeliveryDetails{Name: "Asha", BlockType: BlockTypeRuby, Block: "C", Flat: "304"}
}

func testLines() []cart.Line {
	return []cart.Line{
		{Product: product.Product{ID: "a", Name: "Toor Dal", Price: decimal.RequireFromString("149.5")}, Quantity: 2},
		{Product: product.Product{ID: "b", Name: "Milk & Curd", Price: decimal.RequireFromString("30")}, Quantity: 1},
	}
}

func TestNewExporter(t *testing.T) {
	tests := []struct {
		name    string
		contact string
		want    string
		wantErr bool
	}{
		{name: "digits", contact: "919876543210", want: "919876543210"},
		{name: "formatted", contact: "+91 98765-43210", want: "919876543210"},
		{name: "empty", contact: "", wantErr: true},
		{name: "letters", contact: "call-me", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewExporter(tt.contact)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidContact)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Contact())
		})
	}
}

func TestExport_Message(t *testing.T) {
	e, err := NewExporter("919876543210")
	require.NoError(t, err)

	h, err := e.Export(testLines(), decimal.RequireFromString("329"), validDetails())
	require.NoError(t, err)

	want := "\n🛒 Order Details:\n" +
		"Toor Dal x 2\n" +
		"Milk & Curd x 1\n" +
		"\n💰 Total: ₹329.00\n" +
		"\n👤 Customer Details:\n" +
		"Name: Asha\n" +
		"Block: Ruby Block - C\n" +
		"Flat: 304\n"
	assert.Equal(t, want, h.Message)
}

func TestExport_URL(t *testing.T) {
	e, err := NewExporter("919876543210")
	require.NoError(t, err)

	h, err := e.Export(testLines(), decimal.RequireFromString("329"), validDetails())
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(h.URL, "https://wa.me/919876543210?text="))
	text := strings.TrimPrefix(h.URL, "https://wa.me/919876543210?text=")
	assert.NotContains(t, text, "+")
	assert.NotContains(t, text, " ")
	assert.Contains(t, text, "%20")
	assert.Contains(t, text, "%26", "ampersand in a product name is escaped")

	u, err := url.Parse(h.URL)
	require.NoError(t, err)
	assert.Equal(t, h.Message, u.Query().Get("text"))
}

func TestExport_Errors(t *testing.T) {
	e, err := NewExporter("919876543210")
	require.NoError(t, err)

	_, err = e.Export(nil, decimal.Zero, validDetails())
	require.ErrorIs(t, err, ErrEmptyCart)

	d := validDetails()
	d.Flat = "  "
	_, err = e.Export(testLines(), decimal.NewFromInt(1), d)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "flat", fe.Field)
}

func TestEncodeComponent(t *testing.T) {
	assert.Equal(t, "a%20b", encodeComponent("a b"))
	assert.Equal(t, "-_.!~*'()", encodeComponent("-_.!~*'()"))
	assert.Equal(t, "%0A%E2%82%B9", encodeComponent("\n₹"))
	assert.Equal(t, "%3F%26%3D%2B%2F", encodeComponent("?&=+/"))
}

func TestService_Handoff(t *testing.T) {
	ctx := context.Background()
	e, err := NewExporter("919876543210")
	require.NoError(t, err)

	store := cart.NewStore(testLines())
	svc := NewService(store, e)

	_, err = svc.Handoff(ctx, DeliveryDetails{})
	require.Error(t, err)
	assert.Equal(t, 2, store.LineCount(), "failed handoff keeps the cart")

	h, err := svc.Handoff(ctx, validDetails())
	require.NoError(t, err)
	assert.Contains(t, h.Message, "Total: ₹329.00")
	assert.Zero(t, store.LineCount())

	_, err = svc.Handoff(ctx, validDetails())
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestService_HandoffConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	e, err := NewExporter("919876543210")
	require.NoError(t, err)

	store := cart.NewStore(nil)
	svc := NewService(store, e)
	p := product.Product{ID: "a", Name: "Toor Dal", Price: decimal.NewFromInt(1)}
	const adds = 5000

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range adds {
			store.AddToCart(ctx, p)
		}
	}()

	exported := 0
	handoff := func() {
		h, err := svc.Handoff(ctx, validDetails())
		if errors.Is(err, ErrEmptyCart) {
			return
		}
		require.NoError(t, err)
		const prefix = "Toor Dal x "
		rest := h.Message[strings.Index(h.Message, prefix)+len(prefix):]
		n, err := strconv.Atoi(rest[:strings.IndexByte(rest, '\n')])
		require.NoError(t, err)
		exported += n
	}
	for finished := false; !finished; {
		select {
		case <-done:
			finished = true
		default:
			handoff()
		}
	}
	handoff()

	assert.Equal(t, adds, exported)
	assert.Zero(t, store.Units())
}
