// Package checkout turns the cart into an outbound WhatsApp order message.
package checkout

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kirana/internal/domain/cart"
)

// BaseURL is the WhatsApp click-to-chat endpoint.
const BaseURL = "https://wa.me/"

// Sentinel errors for export.
var (
	ErrEmptyCart      = errors.New("cart is empty")
	ErrInvalidContact = errors.New("whatsapp contact must be digits")
)

// Handoff is the result of a checkout: the composed message and the deep
// link that opens it in a chat with the store.
type Handoff struct {
	Message string
	URL     string
}

// Exporter composes order messages addressed to a fixed contact.
type Exporter struct {
	contact string
}

// NewExporter returns an Exporter for contact, an international phone number.
// Spaces, dashes and a leading plus sign are dropped.
func NewExporter(contact string) (*Exporter, error) {
	normalized := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '+':
			return -1
		}
		return r
	}, contact)
	if normalized == "" {
		return nil, ErrInvalidContact
	}
	for _, r := range normalized {
		if r < '0' || r > '9' {
			return nil, ErrInvalidContact
		}
	}
	return &Exporter{contact: normalized}, nil
}

// Contact returns the normalized contact number.
func (e *Exporter) Contact() string { return e.contact }

// Export builds the handoff for lines. total is rendered with exactly two
// decimals.
func (e *Exporter) Export(lines []cart.Line, total decimal.Decimal, d DeliveryDetails) (*Handoff, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	d = d.Normalize()

	var b strings.Builder
	b.WriteString("\n🛒 Order Details:\n")
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Product.Name)
		b.WriteString(" x ")
		b.WriteString(strconv.Itoa(l.Quantity))
	}
	b.WriteString("\n\n💰 Total: ₹")
	b.WriteString(total.StringFixed(2))
	b.WriteString("\n\n👤 Customer Details:\n")
	b.WriteString("Name: " + d.Name + "\n")
	b.WriteString("Block: " + d.BlockType + " - " + d.Block + "\n")
	b.WriteString("Flat: " + d.Flat + "\n")

	msg := b.String()
	return &Handoff{
		Message: msg,
		URL:     BaseURL + e.contact + "?text=" + encodeComponent(msg),
	}, nil
}

// encodeComponent percent-encodes s as a URI component: every byte except
// unreserved marks is escaped, and spaces become %20.
func encodeComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
