// Package memory provides an in-process catalog used when no database is
// configured.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/bites-pos/db"
	"github.com/xenking/bites-pos/internal/domain/menu"
)

var _ menu.Repository = (*Catalog)(nil)

// Catalog implements menu.Repository over a fixed set of items and tables.
type Catalog struct {
	mu     sync.RWMutex
	items  []menu.MenuItem
	tables []menu.Table
}

// NewCatalog returns a Catalog holding a copy of c.
func NewCatalog(c menu.Catalog) *Catalog {
	return &Catalog{
		items:  cloneItems(c.Items),
		tables: slices.Clone(c.Tables),
	}
}

// LoadSeed returns a Catalog populated from the embedded default catalog.
func LoadSeed() (*Catalog, error) {
	c, err := menu.DecodeCatalog(db.Menu)
	if err != nil {
		return nil, errors.Wrap(err, "decode embedded catalog")
	}
	return NewCatalog(c), nil
}

// ListItems returns every item in catalog order.
func (c *Catalog) ListItems(_ context.Context) ([]menu.MenuItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return cloneItems(c.items), nil
}

// GetItem returns the item with the given identifier.
func (c *Catalog) GetItem(_ context.Context, id int) (*menu.MenuItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i := c.index(id)
	if i < 0 {
		return nil, menu.ErrNotFound
	}
	item := cloneItem(c.items[i])
	return &item, nil
}

// DeleteItem removes the item with the given identifier.
func (c *Catalog) DeleteItem(_ context.Context, id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.index(id)
	if i < 0 {
		return menu.ErrNotFound
	}
	c.items = slices.Delete(c.items, i, i+1)
	return nil
}

// ListTables returns every table in catalog order.
func (c *Catalog) ListTables(_ context.Context) ([]menu.Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Clone(c.tables), nil
}

func (c *Catalog) index(id int) int {
	return slices.IndexFunc(c.items, func(m menu.MenuItem) bool { return m.ID == id })
}

func cloneItem(m menu.MenuItem) menu.MenuItem {
	m.Variants = slices.Clone(m.Variants)
	return m
}

func cloneItems(items []menu.MenuItem) []menu.MenuItem {
	out := make([]menu.MenuItem, len(items))
	for i, m := range items {
		out[i] = cloneItem(m)
	}
	return out
}
