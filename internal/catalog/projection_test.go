package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kirana/internal/domain/product"
)

func ptr[T any](v T) *T { return &v }

func TestProject(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  product.Product
	}{
		{
			name: "all fields",
			entry: Entry{ID: "p1", Fields: Fields{
				Name:              ptr("Toor Dal"),
				Description:       ptr("1kg pack"),
				Price:             ptr(decimal.RequireFromString("149.50")),
				AvailableQuantity: ptr(12),
				Image: &Asset{File: &AssetFile{
					URL:         "//images.ctfassets.net/abc/dal.webp",
					ContentType: "image/webp",
				}},
			}},
			want: product.Product{
				ID: "p1", Name: "Toor Dal", Description: "1kg pack",
				Price:             decimal.RequireFromString("149.50"),
				ImageURL:          "https://images.ctfassets.net/abc/dal.webp",
				AvailableQuantity: 12,
			},
		},
		{
			name:  "missing everything",
			entry: Entry{ID: "p2"},
			want: product.Product{
				ID: "p2", Name: DefaultName, Price: decimal.Zero,
				ImageURL: PlaceholderImage,
			},
		},
		{
			name: "non-webp image resolves the same way",
			entry: Entry{ID: "p3", Fields: Fields{
				Image: &Asset{File: &AssetFile{URL: "//images.ctfassets.net/abc/x.jpg", ContentType: "image/jpeg"}},
			}},
			want: product.Product{
				ID: "p3", Name: DefaultName, Price: decimal.Zero,
				ImageURL: "https://images.ctfassets.net/abc/x.jpg",
			},
		},
		{
			name: "asset without file",
			entry: Entry{ID: "p4", Fields: Fields{
				Name:  ptr(""),
				Image: &Asset{Title: "broken"},
				Price: ptr(decimal.NewFromInt(-5)),
			}},
			want: product.Product{
				ID: "p4", Name: DefaultName, Price: decimal.Zero,
				ImageURL: PlaceholderImage,
			},
		},
		{
			name: "absolute url kept",
			entry: Entry{ID: "p5", Fields: Fields{
				Image: &Asset{File: &AssetFile{URL: "https://cdn.example.com/a.png"}},
			}},
			want: product.Product{
				ID: "p5", Name: DefaultName, Price: decimal.Zero,
				ImageURL: "https://cdn.example.com/a.png",
			},
		},
		{
			name: "relative url falls back to placeholder",
			entry: Entry{ID: "p6", Fields: Fields{
				Image: &Asset{File: &AssetFile{URL: "/img.png"}},
			}},
			want: product.Product{
				ID: "p6", Name: DefaultName, Price: decimal.Zero,
				ImageURL: PlaceholderImage,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Project(tt.entry)
			assert.Equal(t, tt.want.ID, got.ID)
			assert.Equal(t, tt.want.Name, got.Name)
			assert.Equal(t, tt.want.Description, got.Description)
			assert.Equal(t, tt.want.ImageURL, got.ImageURL)
			assert.Equal(t, tt.want.AvailableQuantity, got.AvailableQuantity)
			assert.True(t, tt.want.Price.Equal(got.Price), "price: want %s, got %s", tt.want.Price, got.Price)
		})
	}
}

func TestProjectAvailable_DropsUnavailable(t *testing.T) {
	entries := []Entry{
		{ID: "in", Fields: Fields{AvailableQuantity: ptr(1)}},
		{ID: "zero", Fields: Fields{AvailableQuantity: ptr(0)}},
		{ID: "negative", Fields: Fields{AvailableQuantity: ptr(-3)}},
		{ID: "missing"},
	}

	got := ProjectAvailable(entries)

	require.Len(t, got, 1)
	assert.Equal(t, "in", got[0].ID)
}

func TestSearch(t *testing.T) {
	products := []product.Product{
		{ID: "1", Name: "Basmati Rice"},
		{ID: "2", Name: "Brown rice"},
		{ID: "3", Name: "Sugar"},
	}

	assert.Len(t, Search(products, ""), 3)
	assert.Len(t, Search(products, "  "), 3)
	assert.Len(t, Search(products, "RICE"), 2)
	assert.Equal(t, "3", Search(products, "sug")[0].ID)
	assert.Empty(t, Search(products, "ghee"))
}
