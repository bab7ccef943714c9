package order

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/bites-pos/internal/domain/menu"
)

// Encode writes li as a JSON object.
func (li LineItem) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("key", func(e *jx.Encoder) { e.Str(li.Key.String()) })
		e.Field("menuItemId", func(e *jx.Encoder) { e.Int(li.MenuItemID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(li.Name) })
		e.Field("itemName", func(e *jx.Encoder) { e.Str(li.ItemName) })
		e.Field("variant", func(e *jx.Encoder) { e.Str(li.VariantName) })
		e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, li.UnitPrice) })
		e.Field("imageUrl", func(e *jx.Encoder) { e.Str(li.ImageURL) })
		e.Field("category", func(e *jx.Encoder) { e.Str(string(li.Category)) })
		e.Field("quantity", func(e *jx.Encoder) { e.Int(li.Quantity) })
		e.Field("lineTotal", func(e *jx.Encoder) { encodeDecimal(e, li.LineTotal()) })
	})
}

// Decode reads a line item written by Encode. Derived fields are ignored.
func (li *LineItem) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "menuItemId":
			li.MenuItemID, err = d.Int()
		case "name":
			li.Name, err = d.Str()
		case "itemName":
			li.ItemName, err = d.Str()
		case "variant":
			li.VariantName, err = d.Str()
		case "price":
			li.UnitPrice, err = decodeDecimal(d)
		case "imageUrl":
			li.ImageURL, err = d.Str()
		case "category":
			var c string
			c, err = d.Str()
			li.Category = menu.Category(c)
		case "quantity":
			li.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		li.Key = LineKey{MenuItemID: li.MenuItemID, Variant: li.VariantName}
		return nil
	})
}

// EncodeLineItems writes items as a JSON array. A nil slice is written as [].
func EncodeLineItems(e *jx.Encoder, items []LineItem) {
	e.Arr(func(e *jx.Encoder) {
		for _, li := range items {
			li.Encode(e)
		}
	})
}

// DecodeLineItems parses a JSON array written by EncodeLineItems.
func DecodeLineItems(data []byte) ([]LineItem, error) {
	items := []LineItem{}
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var li LineItem
		if err := li.Decode(d); err != nil {
			return err
		}
		items = append(items, li)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode line items")
	}
	return items, nil
}

// EncodeTotals writes the subtotal, tax and total fields into the enclosing
// object.
func EncodeTotals(e *jx.Encoder, t Totals) {
	e.Field("subtotal", func(e *jx.Encoder) { encodeDecimal(e, t.Subtotal) })
	e.Field("tax", func(e *jx.Encoder) { encodeDecimal(e, t.Tax) })
	e.Field("total", func(e *jx.Encoder) { encodeDecimal(e, t.Total) })
}

// Encode writes o as a JSON object.
func (o CompletedOrder) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(o.ID) })
		e.Field("slot", func(e *jx.Encoder) { e.Int(int(o.Slot)) })
		e.Field("takeaway", func(e *jx.Encoder) { e.Bool(o.Slot.IsTakeaway()) })
		e.Field("items", func(e *jx.Encoder) { EncodeLineItems(e, o.Items) })
		EncodeTotals(e, o.Totals())
		if o.Payment.Method != "" {
			e.Field("payment", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("method", func(e *jx.Encoder) { e.Str(string(o.Payment.Method)) })
					e.Field("tendered", func(e *jx.Encoder) { encodeDecimal(e, o.Payment.Tendered) })
					e.Field("change", func(e *jx.Encoder) { encodeDecimal(e, o.Payment.Change) })
				})
			})
		}
		e.Field("timestamp", func(e *jx.Encoder) { e.Str(o.Timestamp.Format(time.RFC3339Nano)) })
	})
}

// encodeDecimal writes d as a bare JSON number.
func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

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
