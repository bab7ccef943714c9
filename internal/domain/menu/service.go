package menu

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
)

// CartPruner removes every open cart line that references a menu item.
type CartPruner interface {
	RemoveItemsByMenuItem(menuItemID int) int
}

// Service coordinates catalog maintenance with the open carts.
//
// Reads through WithItem and DeleteItem are mutually exclusive, so a cart
// never gains a line for an item whose deletion is in progress.
type Service struct {
	mu    sync.RWMutex
	repo  Repository
	carts CartPruner
}

// NewService creates a Service over the given catalog and cart store.
func NewService(repo Repository, carts CartPruner) *Service {
	return &Service{repo: repo, carts: carts}
}

// WithItem looks up an item and calls fn with it. The item cannot be deleted
// until fn returns. Errors from the catalog and from fn are returned as is.
func (s *Service) WithItem(ctx context.Context, id int, fn func(MenuItem) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return err
	}
	return fn(*item)
}

// DeleteItem removes an item from the catalog and then prunes it from every
// open cart, returning the number of cart lines removed. Carts are pruned only
// when the catalog deletion succeeded.
func (s *Service) DeleteItem(ctx context.Context, id int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.DeleteItem(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, errors.Wrapf(err, "delete menu item %d", id)
	}
	return s.carts.RemoveItemsByMenuItem(id), nil
}
