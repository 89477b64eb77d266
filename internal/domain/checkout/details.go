package checkout

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-faster/errors"
)

// Block types offered on the delivery form.
const (
	BlockTypeDiamond = "Diamond Block"
	BlockTypeRuby    = "Ruby Block"
)

// BlockTypes lists the accepted block types in display order.
var BlockTypes = []string{BlockTypeDiamond, BlockTypeRuby}

// Blocks lists the accepted block letters in display order.
var Blocks = []string{"A", "B", "C", "D", "E"}

// Sentinel errors for delivery validation.
var (
	ErrInvalidBlockType = errors.New("unknown block type")
	ErrInvalidBlock     = errors.New("unknown block")
)

// FieldError indicates a required delivery field is empty.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// DeliveryDetails is the shopper-entered delivery address.
type DeliveryDetails struct {
	Name      string
	BlockType string
	Block     string
	Flat      string
}

// Normalize returns d with surrounding whitespace removed from every field.
func (d DeliveryDetails) Normalize() DeliveryDetails {
	return DeliveryDetails{
		Name:      strings.TrimSpace(d.Name),
		BlockType: strings.TrimSpace(d.BlockType),
		Block:     strings.TrimSpace(d.Block),
		Flat:      strings.TrimSpace(d.Flat),
	}
}

// Validate reports the first problem with d, checking fields in form order.
func (d DeliveryDetails) Validate() error {
	d = d.Normalize()
	for _, f := range []struct{ name, value string }{
		{"name", d.Name},
		{"blockType", d.BlockType},
		{"block", d.Block},
		{"flat", d.Flat},
	} {
		if f.value == "" {
			return &FieldError{Field: f.name}
		}
	}
	if !slices.Contains(BlockTypes, d.BlockType) {
		return ErrInvalidBlockType
	}
	if !slices.Contains(Blocks, d.Block) {
		return ErrInvalidBlock
	}
	return nil
}
