// Package catalog turns raw CMS records into the storefront's product list
// and tracks the catalog state shown to the shopper.
package catalog

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xenking/kirana/internal/domain/product"
)

// Defaults applied when a raw record lacks a field.
const (
	DefaultName      = "Unnamed Product"
	PlaceholderImage = "/placeholder-image.png"
)

// Entry is a raw catalog record. Optional fields are nil when the CMS
// omitted them.
type Entry struct {
	ID     string
	Fields Fields
}

// Fields holds the optional content fields of a product record.
type Fields struct {
	Name              *string
	Description       *string
	Price             *decimal.Decimal
	AvailableQuantity *int
	Image             *Asset
}

// Asset is a resolved media asset.
type Asset struct {
	Title string
	File  *AssetFile
}

// AssetFile locates the binary of an asset. URL is usually protocol-relative
// ("//images.ctfassets.net/...").
type AssetFile struct {
	URL         string
	ContentType string
}

// Project converts a raw record into a fully populated Product.
func Project(e Entry) product.Product {
	p := product.Product{
		ID:       e.ID,
		Name:     DefaultName,
		Price:    decimal.Zero,
		ImageURL: imageURL(e.Fields.Image),
	}
	if f := e.Fields.Name; f != nil && *f != "" {
		p.Name = *f
	}
	if f := e.Fields.Price; f != nil && !f.IsNegative() {
		p.Price = *f
	}
	if f := e.Fields.Description; f != nil {
		p.Description = *f
	}
	if f := e.Fields.AvailableQuantity; f != nil && *f > 0 {
		p.AvailableQuantity = *f
	}
	return p
}

// ProjectAvailable projects every record and drops products that are not
// available.
func ProjectAvailable(entries []Entry) []product.Product {
	out := make([]product.Product, 0, len(entries))
	for _, e := range entries {
		if p := Project(e); p.Available() {
			out = append(out, p)
		}
	}
	return out
}

func imageURL(a *Asset) string {
	if a == nil || a.File == nil || a.File.URL == "" {
		return PlaceholderImage
	}
	u := a.File.URL
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	if strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	// A relative path names no host to prefix.
	return PlaceholderImage
}

// Search returns the products whose name contains term, ignoring case.
// An empty term matches everything.
func Search(products []product.Product, term string) []product.Product {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return products
	}
	var out []product.Product
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), term) {
			out = append(out, p)
		}
	}
	return out
}
