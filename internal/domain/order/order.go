package order

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/bites-pos/internal/domain/menu"
)

// SlotID identifies a dining table or the takeaway slot.
type SlotID int

// Takeaway is the reserved slot for takeaway orders.
const Takeaway SlotID = menu.TakeawayID

// IsTakeaway reports whether id is the takeaway slot.
func (id SlotID) IsTakeaway() bool { return id == Takeaway }

// LineKey identifies a cart line: one per (menu item, variant) pair.
type LineKey struct {
	MenuItemID int
	Variant    string
}

// String renders the key as "<menuItemID>-<variant>".
func (k LineKey) String() string {
	return strconv.Itoa(k.MenuItemID) + "-" + k.Variant
}

// ErrInvalidLineKey is returned by ParseLineKey for malformed keys.
var ErrInvalidLineKey = errors.New("invalid line key")

// ParseLineKey parses the textual form produced by LineKey.String. The menu
// item identifier ends at the first '-', so variant names may contain dashes.
func ParseLineKey(s string) (LineKey, error) {
	idPart, variant, ok := strings.Cut(s, "-")
	if !ok || variant == "" {
		return LineKey{}, ErrInvalidLineKey
	}
	id, err := strconv.Atoi(idPart)
	if err != nil {
		return LineKey{}, ErrInvalidLineKey
	}
	return LineKey{MenuItemID: id, Variant: variant}, nil
}

// LineItem is one row of an open cart. Name, price, image and category are
// copied from the catalog when the line is first added and never refreshed.
type LineItem struct {
	Key         LineKey
	MenuItemID  int
	Name        string
	ItemName    string
	VariantName string
	UnitPrice   decimal.Decimal
	ImageURL    string
	Category    menu.Category
	Quantity    int
}

// LineTotal returns UnitPrice × Quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

func newLineItem(item menu.MenuItem, v menu.Variant) LineItem {
	return LineItem{
		Key:         LineKey{MenuItemID: item.ID, Variant: v.Name},
		MenuItemID:  item.ID,
		Name:        fmt.Sprintf("%s (%s)", item.Name, v.Name),
		ItemName:    item.Name,
		VariantName: v.Name,
		UnitPrice:   v.Price,
		ImageURL:    item.ImageURL,
		Category:    item.Category,
		Quantity:    1,
	}
}

// PaymentMethod is how a completed order was settled.
type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	PaymentCash PaymentMethod = "cash"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCard || m == PaymentCash
}

// Payment records the settlement attached to a completed order.
type Payment struct {
	Method   PaymentMethod
	Tendered decimal.Decimal
	Change   decimal.Decimal
}

// CompletedOrder is the immutable record produced by checkout.
type CompletedOrder struct {
	ID        string
	Slot      SlotID
	Items     []LineItem
	Subtotal  decimal.Decimal
	Tax       decimal.Decimal
	Total     decimal.Decimal
	Payment   Payment
	Timestamp time.Time
}

// Totals returns the order's frozen totals.
func (o CompletedOrder) Totals() Totals {
	return Totals{Subtotal: o.Subtotal, Tax: o.Tax, Total: o.Total}
}

func (o CompletedOrder) clone() CompletedOrder {
	o.Items = cloneLines(o.Items)
	return o
}

// Archive receives completed orders for external record keeping.
type Archive interface {
	Create(ctx context.Context, o *CompletedOrder) error
}

func cloneLines(lines []LineItem) []LineItem {
	out := make([]LineItem, len(lines))
	copy(out, lines)
	return out
}
