package menu

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested menu item does not exist.
var ErrNotFound = errors.New("menu item not found")

// TakeawayID is the slot identifier reserved for takeaway orders. No dining
// table may use it.
const TakeawayID = 999

// StandardVariant is the variant name given to items migrated from the flat
// price-per-item schema.
const StandardVariant = "Standard"

// Category enumerates the sections of the menu.
type Category string

const (
	CategoryAppetizers Category = "Appetizers"
	CategoryMainCourse Category = "Main Course"
	CategoryFastFood   Category = "Fast Food"
	CategorySides      Category = "Sides"
	CategoryDesserts   Category = "Desserts"
	CategoryBeverages  Category = "Beverages"
)

var categories = []Category{
	CategoryAppetizers,
	CategoryMainCourse,
	CategoryFastFood,
	CategorySides,
	CategoryDesserts,
	CategoryBeverages,
}

// Categories returns every known category in menu order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	return c.Rank() >= 0
}

// Rank returns the position of c in menu order, or -1 for an unknown category.
func (c Category) Rank() int {
	for i, known := range categories {
		if known == c {
			return i
		}
	}
	return -1
}

// Variant is a named price point of a menu item, e.g. a portion size.
type Variant struct {
	Name  string
	Price decimal.Decimal
}

// MenuItem is a purchasable catalog entry with one or more priced variants.
type MenuItem struct {
	ID       int
	Name     string
	Category Category
	ImageURL string
	Variants []Variant
}

// Variant returns the variant with the given name.
func (m MenuItem) Variant(name string) (Variant, bool) {
	for _, v := range m.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// FlatItem is the legacy catalog record that carried a single price per item.
type FlatItem struct {
	ID       int
	Name     string
	Price    decimal.Decimal
	Category Category
	ImageURL string
}

// FromFlat converts a legacy flat item into a MenuItem with a single
// StandardVariant.
func FromFlat(f FlatItem) MenuItem {
	return MenuItem{
		ID:       f.ID,
		Name:     f.Name,
		Category: f.Category,
		ImageURL: f.ImageURL,
		Variants: []Variant{{Name: StandardVariant, Price: f.Price}},
	}
}

// TableStatus is the floor status of a dining table.
type TableStatus string

const (
	TableAvailable     TableStatus = "Available"
	TableOccupied      TableStatus = "Occupied"
	TableNeedsCleaning TableStatus = "Needs Cleaning"
)

// Valid reports whether s is a known table status.
func (s TableStatus) Valid() bool {
	switch s {
	case TableAvailable, TableOccupied, TableNeedsCleaning:
		return true
	default:
		return false
	}
}

// Table is a physical dining table.
type Table struct {
	ID       int
	Name     string
	Capacity int
	Status   TableStatus
}

// Catalog is the full set of menu items and tables supplied to the POS.
type Catalog struct {
	Items  []MenuItem
	Tables []Table
}

// Repository provides the catalog to the order flow. Items and tables are
// read-only apart from DeleteItem, which exists so that removing an item can
// cascade into open carts.
type Repository interface {
	ListItems(ctx context.Context) ([]MenuItem, error)
	GetItem(ctx context.Context, id int) (*MenuItem, error)
	DeleteItem(ctx context.Context, id int) error
	ListTables(ctx context.Context) ([]Table, error)
}
