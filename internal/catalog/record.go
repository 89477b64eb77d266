package catalog

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// DecodeEntry reads one product record. Both the delivery API shape
// ({"sys":{"id":..},"fields":{..}}) and the flattened snapshot shape
// ({"id":..,"fields":{..}}) are accepted.
//
// Field values of an unexpected type are treated as absent. When the image
// is an unresolved asset link, its id is returned in imageLink and
// Fields.Image is left nil.
func DecodeEntry(d *jx.Decoder) (e Entry, imageLink string, err error) {
	err = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			return decodeString(d, &e.ID)
		case "sys":
			return decodeSys(d, &e.ID, nil)
		case "fields":
			return d.Obj(func(d *jx.Decoder, key string) error {
				return decodeField(d, key, &e.Fields, &imageLink)
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return Entry{}, "", errors.Wrap(err, "decode entry")
	}
	return e, imageLink, nil
}

func decodeField(d *jx.Decoder, key string, f *Fields, imageLink *string) error {
	switch key {
	case "name":
		return decodeOptString(d, &f.Name)
	case "description":
		return decodeOptString(d, &f.Description)
	case "price":
		v, ok, err := decodeNumber(d)
		if ok {
			f.Price = &v
		}
		return err
	case "availableQuantity":
		v, ok, err := decodeNumber(d)
		if ok {
			n := int(v.IntPart())
			f.AvailableQuantity = &n
		}
		return err
	case "image":
		if d.Next() != jx.Object {
			return d.Skip()
		}
		link, asset, err := decodeAssetValue(d)
		if err != nil {
			return err
		}
		if asset != nil {
			f.Image = asset
		} else {
			*imageLink = link
		}
		return nil
	default:
		return d.Skip()
	}
}

// DecodeAsset reads an entry of the "includes.Asset" list and returns its id.
func DecodeAsset(d *jx.Decoder) (id string, a Asset, err error) {
	err = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "sys":
			return decodeSys(d, &id, nil)
		case "fields":
			return decodeAssetFields(d, &a)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return "", Asset{}, errors.Wrap(err, "decode asset")
	}
	return id, a, nil
}

// decodeAssetValue reads an image field that is either a link
// ({"sys":{"type":"Link","id":..}}) or an inline asset ({"fields":{..}}).
func decodeAssetValue(d *jx.Decoder) (link string, asset *Asset, err error) {
	var (
		a       Asset
		hasBody bool
		sysType string
		id      string
	)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "sys":
			return decodeSys(d, &id, &sysType)
		case "fields":
			hasBody = true
			return decodeAssetFields(d, &a)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return "", nil, err
	}
	if hasBody {
		return "", &a, nil
	}
	if sysType == "Link" {
		return id, nil, nil
	}
	return "", nil, nil
}

func decodeAssetFields(d *jx.Decoder, a *Asset) error {
	if d.Next() != jx.Object {
		return d.Skip()
	}
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "title":
			return decodeString(d, &a.Title)
		case "file":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			var file AssetFile
			if err := d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "url":
					return decodeString(d, &file.URL)
				case "contentType":
					return decodeString(d, &file.ContentType)
				default:
					return d.Skip()
				}
			}); err != nil {
				return err
			}
			a.File = &file
			return nil
		default:
			return d.Skip()
		}
	})
}

func decodeSys(d *jx.Decoder, id, typ *string) error {
	if d.Next() != jx.Object {
		return d.Skip()
	}
	return d.Obj(func(d *jx.Decoder, key string) error {
		switch {
		case key == "id":
			return decodeString(d, id)
		case key == "type" && typ != nil:
			return decodeString(d, typ)
		default:
			return d.Skip()
		}
	})
}

func decodeString(d *jx.Decoder, dst *string) error {
	if d.Next() != jx.String {
		return d.Skip()
	}
	v, err := d.Str()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func decodeOptString(d *jx.Decoder, dst **string) error {
	if d.Next() != jx.String {
		return d.Skip()
	}
	v, err := d.Str()
	if err != nil {
		return err
	}
	*dst = &v
	return nil
}

func decodeNumber(d *jx.Decoder) (decimal.Decimal, bool, error) {
	if d.Next() != jx.Number {
		return decimal.Zero, false, d.Skip()
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, false, err
	}
	v, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, false, errors.Wrap(err, "parse number")
	}
	return v, true, nil
}

// EncodeEntry writes e in the flattened snapshot shape with the image
// inlined as a resolved asset.
func EncodeEntry(enc *jx.Encoder, e Entry) {
	f := e.Fields
	enc.Obj(func(enc *jx.Encoder) {
		enc.Field("id", func(enc *jx.Encoder) { enc.Str(e.ID) })
		enc.Field("fields", func(enc *jx.Encoder) {
			enc.Obj(func(enc *jx.Encoder) {
				if f.Name != nil {
					enc.Field("name", func(enc *jx.Encoder) { enc.Str(*f.Name) })
				}
				if f.Description != nil {
					enc.Field("description", func(enc *jx.Encoder) { enc.Str(*f.Description) })
				}
				if f.Price != nil {
					enc.Field("price", func(enc *jx.Encoder) { enc.Num(jx.Num(f.Price.String())) })
				}
				if f.AvailableQuantity != nil {
					enc.Field("availableQuantity", func(enc *jx.Encoder) { enc.Int(*f.AvailableQuantity) })
				}
				if f.Image != nil {
					enc.Field("image", func(enc *jx.Encoder) { encodeAsset(enc, *f.Image) })
				}
			})
		})
	})
}

func encodeAsset(enc *jx.Encoder, a Asset) {
	enc.Obj(func(enc *jx.Encoder) {
		enc.Field("fields", func(enc *jx.Encoder) {
			enc.Obj(func(enc *jx.Encoder) {
				enc.Field("title", func(enc *jx.Encoder) { enc.Str(a.Title) })
				if a.File != nil {
					enc.Field("file", func(enc *jx.Encoder) {
						enc.Obj(func(enc *jx.Encoder) {
							enc.Field("url", func(enc *jx.Encoder) { enc.Str(a.File.URL) })
							enc.Field("contentType", func(enc *jx.Encoder) { enc.Str(a.File.ContentType) })
						})
					})
				}
			})
		})
	})
}
