package menu

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// legacyCategories maps category labels of the flat schema onto the current
// enumeration.
var legacyCategories = map[string]Category{
	"Main Courses": CategoryMainCourse,
}

// ParseCategory resolves a category label, accepting legacy labels.
func ParseCategory(s string) (Category, bool) {
	if c := Category(s); c.Valid() {
		return c, true
	}
	c, ok := legacyCategories[s]
	return c, ok
}

// DecodeCatalog parses a catalog document of the form
//
//	{"items": [...], "tables": [...]}
//
// Items carrying "price" instead of "variants" are treated as legacy flat
// records and converted with FromFlat. The result is validated.
func DecodeCatalog(data []byte) (Catalog, error) {
	var c Catalog
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				item, err := decodeItem(d)
				if err != nil {
					return err
				}
				c.Items = append(c.Items, item)
				return nil
			})
		case "tables":
			return d.Arr(func(d *jx.Decoder) error {
				t, err := decodeTable(d)
				if err != nil {
					return err
				}
				c.Tables = append(c.Tables, t)
				return nil
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return Catalog{}, errors.Wrap(err, "decode catalog")
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

func decodeItem(d *jx.Decoder) (MenuItem, error) {
	var (
		m        MenuItem
		flat     bool
		price    decimal.Decimal
		category string
	)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			m.ID, err = d.Int()
		case "name":
			m.Name, err = d.Str()
		case "category":
			category, err = d.Str()
		case "imageUrl":
			m.ImageURL, err = d.Str()
		case "price":
			flat = true
			price, err = decodeDecimal(d)
		case "variants":
			err = d.Arr(func(d *jx.Decoder) error {
				v, err := decodeVariant(d)
				if err != nil {
					return err
				}
				m.Variants = append(m.Variants, v)
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	}); err != nil {
		return MenuItem{}, err
	}

	c, ok := ParseCategory(category)
	if !ok {
		return MenuItem{}, &ValidationError{Kind: "item", ID: m.ID, Reason: "unknown category " + category}
	}
	m.Category = c

	if flat && len(m.Variants) == 0 {
		return FromFlat(FlatItem{
			ID:       m.ID,
			Name:     m.Name,
			Price:    price,
			Category: m.Category,
			ImageURL: m.ImageURL,
		}), nil
	}
	return m, nil
}

func decodeVariant(d *jx.Decoder) (Variant, error) {
	var v Variant
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			v.Name, err = d.Str()
		case "price":
			v.Price, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return v, err
}

func decodeTable(d *jx.Decoder) (Table, error) {
	var t Table
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			t.ID, err = d.Int()
		case "name":
			t.Name, err = d.Str()
		case "capacity":
			t.Capacity, err = d.Int()
		case "status":
			var s string
			s, err = d.Str()
			t.Status = TableStatus(s)
		default:
			err = d.Skip()
		}
		return err
	})
	return t, err
}

// decodeDecimal reads a JSON number or numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}
