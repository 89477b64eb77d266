package cart

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kirana/internal/domain/product"
)

// EncodeSnapshot renders the persisted cart document:
//
//	{"items":[{"id":..,"name":..,"price":..,"description":..,"imageUrl":..,"availableQuantity":..,"quantity":..}]}
func EncodeSnapshot(snap Snapshot) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range snap.Lines {
					encodeLine(e, l)
				}
			})
		})
	})
	return e.Bytes()
}

func encodeLine(e *jx.Encoder, l Line) {
	p := l.Product
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { e.Num(jx.Num(p.Price.String())) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("imageUrl", func(e *jx.Encoder) { e.Str(p.ImageURL) })
		e.Field("availableQuantity", func(e *jx.Encoder) { e.Int(p.AvailableQuantity) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
	})
}

// DecodeSnapshot parses a persisted cart document. Unknown fields are
// skipped; lines are not validated here, NewStore drops empty ones.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "items" {
			return d.Skip()
		}
		if d.Next() == jx.Null {
			return d.Null()
		}
		return d.Arr(func(d *jx.Decoder) error {
			l, err := decodeLine(d)
			if err != nil {
				return err
			}
			snap.Lines = append(snap.Lines, l)
			return nil
		})
	})
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "decode cart snapshot")
	}
	return snap, nil
}

func decodeLine(d *jx.Decoder) (Line, error) {
	var (
		l Line
		p product.Product
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "price":
			var n jx.Num
			if n, err = d.Num(); err != nil {
				return err
			}
			p.Price, err = decimal.NewFromString(n.String())
		case "description":
			p.Description, err = d.Str()
		case "imageUrl":
			p.ImageURL, err = d.Str()
		case "availableQuantity":
			p.AvailableQuantity, err = d.Int()
		case "quantity":
			l.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	l.Product = p
	return l, err
}
