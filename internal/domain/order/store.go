package order

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/bites-pos/internal/domain/menu"
)

// Conditions absorbed by the Store. A method returning one of them has left
// the Store unchanged; callers treat them as no-ops, not failures.
var (
	ErrNoActiveSlot   = errors.New("no slot selected")
	ErrUnknownLineKey = errors.New("line key not in cart")
	ErrUnknownVariant = errors.New("variant not offered by menu item")
	ErrEmptyCheckout  = errors.New("checkout of empty cart")
	ErrNoOrder        = errors.New("slot has no active order")
)

// IsAbsorbed reports whether err is a no-op condition rather than a failure.
func IsAbsorbed(err error) bool {
	for _, target := range []error{
		ErrNoActiveSlot,
		ErrUnknownLineKey,
		ErrUnknownVariant,
		ErrEmptyCheckout,
		ErrNoOrder,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Store holds the open carts of every slot and the history of completed
// orders. All methods are serialized by a single mutex, so a checkout can never
// interleave with a mutation of the same cart.
type Store struct {
	mu          sync.Mutex
	active      map[SlotID][]LineItem // only slots with at least one line
	history     []CompletedOrder
	current     SlotID
	hasCurrent  bool
	reportReset bool
	lastIDMilli int64

	taxRate decimal.Decimal
	now     func() time.Time
	lg      *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithTaxRate overrides DefaultTaxRate.
func WithTaxRate(rate decimal.Decimal) Option {
	return func(s *Store) { s.taxRate = rate }
}

// WithClock overrides the time source used for order IDs and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used to report absorbed conditions.
func WithLogger(lg *zap.Logger) Option {
	return func(s *Store) { s.lg = lg }
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		active:  make(map[SlotID][]LineItem),
		taxRate: DefaultTaxRate,
		now:     time.Now,
		lg:      zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// TaxRate returns the rate applied by Totals and Checkout.
func (s *Store) TaxRate() decimal.Decimal { return s.taxRate }

// SelectSlot makes id the slot edited by AddItem, SetQuantity, RemoveItem and
// Checkout. The slot is not validated against the table list.
func (s *Store) SelectSlot(id SlotID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = id
	s.hasCurrent = true
}

// ClearSlot deselects the current slot. Open carts are kept.
func (s *Store) ClearSlot() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = 0
	s.hasCurrent = false
}

// CurrentSlot returns the selected slot, if any.
func (s *Store) CurrentSlot() (SlotID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current, s.hasCurrent
}

// Cart is a snapshot of one slot's open order. HasSlot is false when no slot
// was selected.
type Cart struct {
	Slot    SlotID
	HasSlot bool
	Items   []LineItem
	Totals  Totals
}

// AddItem adds one unit of the named variant to the current slot's cart.
// Re-adding an existing (item, variant) pair increments its quantity instead
// of creating a second line. The returned cart is the slot that was edited,
// taken before the lock is released; absorbed errors return it unchanged.
func (s *Store) AddItem(item menu.MenuItem, variantName string) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasCurrent {
		return s.currentCart(), s.absorb(ErrNoActiveSlot, zap.Int("menu_item_id", item.ID))
	}
	v, ok := item.Variant(variantName)
	if !ok {
		return s.currentCart(), s.absorb(ErrUnknownVariant,
			zap.Int("menu_item_id", item.ID),
			zap.String("variant", variantName),
		)
	}

	key := LineKey{MenuItemID: item.ID, Variant: v.Name}
	lines := s.active[s.current]
	if i := indexOf(lines, key); i >= 0 {
		lines[i].Quantity++
	} else {
		s.active[s.current] = append(lines, newLineItem(item, v))
	}
	return s.currentCart(), nil
}

// SetQuantity replaces the quantity of a line in the current cart. A quantity
// of zero or less removes the line.
func (s *Store) SetQuantity(key LineKey, quantity int) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasCurrent {
		return s.currentCart(), s.absorb(ErrNoActiveSlot, zap.Stringer("key", key))
	}
	lines := s.active[s.current]
	i := indexOf(lines, key)
	if i < 0 {
		return s.currentCart(), s.absorb(ErrUnknownLineKey, zap.Stringer("key", key), zap.Int("slot", int(s.current)))
	}
	if quantity <= 0 {
		s.removeAt(s.current, i)
	} else {
		lines[i].Quantity = quantity
	}
	return s.currentCart(), nil
}

// RemoveItem deletes a line from the current cart.
func (s *Store) RemoveItem(key LineKey) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasCurrent {
		return s.currentCart(), s.absorb(ErrNoActiveSlot, zap.Stringer("key", key))
	}
	i := indexOf(s.active[s.current], key)
	if i < 0 {
		return s.currentCart(), s.absorb(ErrUnknownLineKey, zap.Stringer("key", key), zap.Int("slot", int(s.current)))
	}
	s.removeAt(s.current, i)
	return s.currentCart(), nil
}

// RemoveItemsByMenuItem deletes every line referencing menuItemID from every
// open cart, regardless of the current slot. It returns the number of lines
// removed.
func (s *Store) RemoveItemsByMenuItem(menuItemID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for slot, lines := range s.active {
		kept := lines[:0]
		for _, li := range lines {
			if li.MenuItemID == menuItemID {
				removed++
				continue
			}
			kept = append(kept, li)
		}
		if len(kept) == 0 {
			delete(s.active, slot)
			continue
		}
		s.active[slot] = kept
	}
	if removed > 0 {
		s.lg.Info("Pruned menu item from open carts",
			zap.Int("menu_item_id", menuItemID),
			zap.Int("lines", removed),
		)
	}
	return removed
}

// LineItems returns a copy of the cart for id. A slot without an order yields
// an empty slice.
func (s *Store) LineItems(id SlotID) []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneLines(s.active[id])
}

// CurrentLineItems returns the cart of the selected slot, or an empty slice
// when no slot is selected.
func (s *Store) CurrentLineItems() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasCurrent {
		return []LineItem{}
	}
	return cloneLines(s.active[s.current])
}

// ActiveSlots returns the slots holding an open order, in ascending order.
func (s *Store) ActiveSlots() []SlotID {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SlotID, 0, len(s.active))
	for slot := range s.active {
		out = append(out, slot)
	}
	slices.Sort(out)
	return out
}

// Totals computes the totals of items with the Store's tax rate.
func (s *Store) Totals(items []LineItem) Totals {
	return computeTotals(items, s.taxRate)
}

// CheckoutOption customizes a checkout before the order is recorded.
type CheckoutOption func(*checkout)

type checkout struct {
	settle func(Totals) (Payment, error)
}

// WithPayment attaches settlement details computed from the final totals.
// settle runs inside the Store's critical section; when it returns an error the
// checkout is abandoned and the cart is left untouched.
func WithPayment(settle func(Totals) (Payment, error)) CheckoutOption {
	return func(c *checkout) { c.settle = settle }
}

// Checkout closes the current slot's cart into a CompletedOrder, appends it to
// the history and removes the slot's cart. The current slot stays selected.
// Without a selected slot or with an empty cart it does nothing.
func (s *Store) Checkout(opts ...CheckoutOption) (CompletedOrder, error) {
	var c checkout
	for _, o := range opts {
		o(&c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasCurrent {
		return CompletedOrder{}, s.absorb(ErrNoActiveSlot)
	}
	slot := s.current
	lines := s.active[slot]
	if len(lines) == 0 {
		return CompletedOrder{}, s.absorb(ErrEmptyCheckout, zap.Int("slot", int(slot)))
	}

	totals := computeTotals(lines, s.taxRate)
	var payment Payment
	if c.settle != nil {
		p, err := c.settle(totals)
		if err != nil {
			return CompletedOrder{}, err
		}
		payment = p
	}

	now := s.now()
	o := CompletedOrder{
		ID:        s.nextID(slot, now),
		Slot:      slot,
		Items:     cloneLines(lines),
		Subtotal:  totals.Subtotal,
		Tax:       totals.Tax,
		Total:     totals.Total,
		Payment:   payment,
		Timestamp: now,
	}
	s.history = append(s.history, o)
	delete(s.active, slot)

	return o.clone(), nil
}

// CancelOrder discards the open cart of id without recording it.
func (s *Store) CancelOrder(id SlotID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[id]; !ok {
		return s.absorb(ErrNoOrder, zap.Int("slot", int(id)))
	}
	delete(s.active, id)
	return nil
}

// History returns a copy of the completed orders in checkout order.
func (s *Store) History() []CompletedOrder {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]CompletedOrder, len(s.history))
	for i, o := range s.history {
		out[i] = o.clone()
	}
	return out
}

// SetReportReset sets the flag that makes reports present zero figures
// without touching the history.
func (s *Store) SetReportReset(reset bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reportReset = reset
}

// ReportReset returns the report reset flag.
func (s *Store) ReportReset() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.reportReset
}

// Reset drops every open cart, the history, the selected slot and the report
// reset flag.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = make(map[SlotID][]LineItem)
	s.history = nil
	s.current = 0
	s.hasCurrent = false
	s.reportReset = false
}

// nextID returns "ORD-<millis>-<slot>" with millis strictly increasing across
// calls, so IDs stay unique even when the clock does not advance.
func (s *Store) nextID(slot SlotID, now time.Time) string {
	ms := now.UnixMilli()
	if ms <= s.lastIDMilli {
		ms = s.lastIDMilli + 1
	}
	s.lastIDMilli = ms
	return fmt.Sprintf("ORD-%d-%d", ms, slot)
}

// removeAt deletes line i of slot, dropping the slot once its cart is empty.
func (s *Store) removeAt(slot SlotID, i int) {
	lines := slices.Delete(s.active[slot], i, i+1)
	if len(lines) == 0 {
		delete(s.active, slot)
		return
	}
	s.active[slot] = lines
}

// currentCart snapshots the selected slot. The caller holds s.mu.
func (s *Store) currentCart() Cart {
	if !s.hasCurrent {
		return Cart{Items: []LineItem{}, Totals: computeTotals(nil, s.taxRate)}
	}
	items := cloneLines(s.active[s.current])
	return Cart{
		Slot:    s.current,
		HasSlot: true,
		Items:   items,
		Totals:  computeTotals(items, s.taxRate),
	}
}

func (s *Store) absorb(err error, fields ...zap.Field) error {
	s.lg.Debug("Order operation ignored", append(fields, zap.Error(err))...)
	return err
}

func indexOf(lines []LineItem, key LineKey) int {
	return slices.IndexFunc(lines, func(li LineItem) bool { return li.Key == key })
}
