package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bites-pos/internal/domain/menu"
)

const (
	listItemsSQL = `SELECT id, name, category, image_url FROM menu_items ORDER BY id`

	getItemSQL = `SELECT id, name, category, image_url FROM menu_items WHERE id = $1`

	listVariantsSQL = `SELECT menu_item_id, name, price FROM menu_variants
		ORDER BY menu_item_id, position`

	getVariantsSQL = `SELECT menu_item_id, name, price FROM menu_variants
		WHERE menu_item_id = $1 ORDER BY position`

	deleteItemSQL = `DELETE FROM menu_items WHERE id = $1`

	listTablesSQL = `SELECT id, name, capacity, status FROM dining_tables ORDER BY id`

	upsertItemSQL = `INSERT INTO menu_items (id, name, category, image_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			image_url = EXCLUDED.image_url`

	deleteVariantsSQL = `DELETE FROM menu_variants WHERE menu_item_id = $1`

	insertVariantSQL = `INSERT INTO menu_variants (menu_item_id, position, name, price)
		VALUES ($1, $2, $3, $4)`

	upsertTableSQL = `INSERT INTO dining_tables (id, name, capacity, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			capacity = EXCLUDED.capacity,
			status = EXCLUDED.status`
)

var _ menu.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements menu.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ListItems returns all menu items with their variants, ordered by ID.
func (r *CatalogRepository) ListItems(ctx context.Context) ([]menu.MenuItem, error) {
	rows, err := r.pool.Query(ctx, listItemsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list menu items")
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, errors.Wrap(err, "scan menu items")
	}

	rows, err = r.pool.Query(ctx, listVariantsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list variants")
	}
	variants, err := pgx.CollectRows(rows, scanVariant)
	if err != nil {
		return nil, errors.Wrap(err, "scan variants")
	}

	byItem := make(map[int][]menu.Variant, len(items))
	for _, v := range variants {
		byItem[v.itemID] = append(byItem[v.itemID], v.Variant)
	}
	for i := range items {
		items[i].Variants = byItem[items[i].ID]
	}
	return items, nil
}

// GetItem returns a single menu item by its identifier.
func (r *CatalogRepository) GetItem(ctx context.Context, id int) (*menu.MenuItem, error) {
	rows, err := r.pool.Query(ctx, getItemSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get menu item %d", id)
	}
	item, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, menu.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get menu item %d", id)
	}

	rows, err = r.pool.Query(ctx, getVariantsSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get variants of %d", id)
	}
	variants, err := pgx.CollectRows(rows, scanVariant)
	if err != nil {
		return nil, errors.Wrapf(err, "scan variants of %d", id)
	}
	for _, v := range variants {
		item.Variants = append(item.Variants, v.Variant)
	}
	return &item, nil
}

// DeleteItem removes a menu item; its variants are removed by the foreign key
// cascade.
func (r *CatalogRepository) DeleteItem(ctx context.Context, id int) error {
	tag, err := r.pool.Exec(ctx, deleteItemSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete menu item %d", id)
	}
	if tag.RowsAffected() == 0 {
		return menu.ErrNotFound
	}
	return nil
}

// ListTables returns all dining tables ordered by ID.
func (r *CatalogRepository) ListTables(ctx context.Context) ([]menu.Table, error) {
	rows, err := r.pool.Query(ctx, listTablesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list tables")
	}
	tables, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (menu.Table, error) {
		var (
			t      menu.Table
			status string
		)
		err := row.Scan(&t.ID, &t.Name, &t.Capacity, &status)
		t.Status = menu.TableStatus(status)
		return t, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan tables")
	}
	return tables, nil
}

// UpsertItem inserts or replaces a menu item together with its variants.
func (r *CatalogRepository) UpsertItem(ctx context.Context, m menu.MenuItem) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertItemSQL, m.ID, m.Name, string(m.Category), m.ImageURL); err != nil {
			return errors.Wrap(err, "upsert item")
		}
		if _, err := tx.Exec(ctx, deleteVariantsSQL, m.ID); err != nil {
			return errors.Wrap(err, "clear variants")
		}
		for i, v := range m.Variants {
			if _, err := tx.Exec(ctx, insertVariantSQL, m.ID, i, v.Name, v.Price); err != nil {
				return errors.Wrapf(err, "insert variant %q", v.Name)
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "upsert menu item %d", m.ID)
	}
	return nil
}

// UpsertTable inserts or replaces a dining table.
func (r *CatalogRepository) UpsertTable(ctx context.Context, t menu.Table) error {
	if _, err := r.pool.Exec(ctx, upsertTableSQL, t.ID, t.Name, t.Capacity, string(t.Status)); err != nil {
		return errors.Wrapf(err, "upsert table %d", t.ID)
	}
	return nil
}

func scanItem(row pgx.CollectableRow) (menu.MenuItem, error) {
	var (
		m        menu.MenuItem
		category string
	)
	err := row.Scan(&m.ID, &m.Name, &category, &m.ImageURL)
	m.Category = menu.Category(category)
	return m, err
}

type itemVariant struct {
	itemID int
	menu.Variant
}

func scanVariant(row pgx.CollectableRow) (itemVariant, error) {
	var v itemVariant
	err := row.Scan(&v.itemID, &v.Name, &v.Price)
	return v, err
}
