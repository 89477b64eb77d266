package catalog

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_WriteRead(t *testing.T) {
	entries := []Entry{
		{ID: "a", Fields: Fields{
			Name:              ptr("Atta"),
			Price:             ptr(decimal.RequireFromString("320.00")),
			AvailableQuantity: ptr(4),
			Image: &Asset{Title: "atta", File: &AssetFile{
				URL: "//images.ctfassets.net/s/atta.png", ContentType: "image/png",
			}},
		}},
		{ID: "b", Fields: Fields{Description: ptr("")}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, entries))

	got, err := ReadSnapshot(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "a", got[0].ID)
	require.NotNil(t, got[0].Fields.Name)
	assert.Equal(t, "Atta", *got[0].Fields.Name)
	require.NotNil(t, got[0].Fields.Image)
	assert.Equal(t, "image/png", got[0].Fields.Image.File.ContentType)
	assert.True(t, decimal.NewFromInt(320).Equal(*got[0].Fields.Price))

	assert.Nil(t, got[1].Fields.Name)
	assert.Nil(t, got[1].Fields.Price)
	require.NotNil(t, got[1].Fields.Description)
}

func TestSnapshotSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteSnapshot(f, []Entry{
		{ID: "in", Fields: Fields{AvailableQuantity: ptr(2)}},
		{ID: "out", Fields: Fields{AvailableQuantity: ptr(0)}},
	}))
	require.NoError(t, f.Close())

	products, err := NewSnapshotSource(path).ListAvailable(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "in", products[0].ID)

	_, err = NewSnapshotSource(filepath.Join(t.TempDir(), "absent.gz")).ListAvailable(context.Background())
	require.Error(t, err)
}

func TestDecodeEntry_TolerantFields(t *testing.T) {
	input := `{"sys":{"id":"x"},"fields":{
		"name": 42,
		"price": "free",
		"availableQuantity": 3.0,
		"image": "not-an-object",
		"tags": ["a","b"]
	}}`

	e, link, err := DecodeEntry(jx.DecodeStr(input))
	require.NoError(t, err)

	assert.Equal(t, "x", e.ID)
	assert.Empty(t, link)
	assert.Nil(t, e.Fields.Name)
	assert.Nil(t, e.Fields.Price)
	assert.Nil(t, e.Fields.Image)
	require.NotNil(t, e.Fields.AvailableQuantity)
	assert.Equal(t, 3, *e.Fields.AvailableQuantity)

	p := Project(e)
	assert.Equal(t, DefaultName, p.Name)
	assert.True(t, decimal.Zero.Equal(p.Price))
}

func TestDecodeEntry_ImageLink(t *testing.T) {
	input := `{"sys":{"id":"x"},"fields":{"image":{"sys":{"type":"Link","linkType":"Asset","id":"asset-1"}}}}`

	e, link, err := DecodeEntry(jx.DecodeStr(input))
	require.NoError(t, err)
	assert.Equal(t, "asset-1", link)
	assert.Nil(t, e.Fields.Image)
}
