package order

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/bites-pos/internal/domain/menu"
)

// --- Helpers ---

func newTestItem(id int, name string, category menu.Category, variants ...menu.Variant) menu.MenuItem {
	return menu.MenuItem{
		ID:       id,
		Name:     name,
		Category: category,
		ImageURL: "img.jpg",
		Variants: variants,
	}
}

func variant(name string, price int64) menu.Variant {
	return menu.Variant{Name: name, Price: decimal.NewFromInt(price)}
}

var (
	karahi = newTestItem(1, "Chicken Karahi", menu.CategoryMainCourse, variant("1kg", 1800), variant("0.5kg", 950))
	burger = newTestItem(5, "Zinger Burger", menu.CategoryFastFood, variant("Standard", 600))
	roll   = newTestItem(7, "Seekh Kebab Roll", menu.CategoryFastFood, variant("Standard", 350))
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func requireDecimal(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.NewFromInt(want).Equal(got), "want %d, got %s", want, got)
}

// --- Tests ---

func TestStore_AddItem_NoSlot(t *testing.T) {
	s := NewStore()

	_, err := s.AddItem(karahi, "1kg")
	require.ErrorIs(t, err, ErrNoActiveSlot)
	assert.True(t, IsAbsorbed(err))
	assert.Empty(t, s.ActiveSlots())
}

func TestStore_AddItem_MergesSameVariant(t *testing.T) {
	s := NewStore()
	s.SelectSlot(3)

	_, err := s.AddItem(karahi, "1kg")
	require.NoError(t, err)
	cart, err := s.AddItem(karahi, "1kg")
	require.NoError(t, err)
	assert.Equal(t, SlotID(3), cart.Slot)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	requireDecimal(t, 3960, cart.Totals.Total)

	lines := s.LineItems(3)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, LineKey{MenuItemID: 1, Variant: "1kg"}, lines[0].Key)
}

func TestStore_AddItem_DistinctVariantsAreSeparateLines(t *testing.T) {
	s := NewStore()
	s.SelectSlot(3)

	for _, v := range []string{"1kg", "0.5kg", "1kg", "0.5kg", "1kg"} {
		_, err := s.AddItem(karahi, v)
		require.NoError(t, err)
	}

	lines := s.LineItems(3)
	require.Len(t, lines, 2)
	seen := make(map[LineKey]bool)
	for _, li := range lines {
		assert.False(t, seen[li.Key], "duplicate key %s", li.Key)
		seen[li.Key] = true
	}
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, 2, lines[1].Quantity)
}

func TestStore_AddItem_UnknownVariant(t *testing.T) {
	s := NewStore()
	s.SelectSlot(3)

	_, err := s.AddItem(karahi, "2kg")
	require.ErrorIs(t, err, ErrUnknownVariant)
	assert.Empty(t, s.LineItems(3))
}

func TestStore_AddItem_SnapshotsCatalog(t *testing.T) {
	s := NewStore()
	s.SelectSlot(1)

	item := newTestItem(9, "French Fries", menu.CategorySides, variant("Single", 200))
	_, err := s.AddItem(item, "Single")
	require.NoError(t, err)

	// A later price change in the catalog must not reach the existing line.
	item.Variants[0].Price = decimal.NewFromInt(999)
	item.Name = "Renamed"
	_, err = s.AddItem(item, "Single")
	require.NoError(t, err)

	lines := s.LineItems(1)
	require.Len(t, lines, 1)
	assert.Equal(t, "French Fries (Single)", lines[0].Name)
	requireDecimal(t, 200, lines[0].UnitPrice)
	assert.Equal(t, menu.CategorySides, lines[0].Category)
	assert.Equal(t, "img.jpg", lines[0].ImageURL)
}

func TestStore_SetQuantity(t *testing.T) {
	key := LineKey{MenuItemID: 1, Variant: "1kg"}

	tests := []struct {
		name      string
		quantity  int
		wantLines int
		wantQty   int
	}{
		{name: "positive replaces quantity", quantity: 4, wantLines: 1, wantQty: 4},
		{name: "zero removes line", quantity: 0, wantLines: 0},
		{name: "negative removes line", quantity: -5, wantLines: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore()
			s.SelectSlot(2)
			_, err := s.AddItem(karahi, "1kg")
			require.NoError(t, err)

			cart, err := s.SetQuantity(key, tt.quantity)
			require.NoError(t, err)
			assert.Len(t, cart.Items, tt.wantLines)

			lines := s.LineItems(2)
			require.Len(t, lines, tt.wantLines)
			if tt.wantLines > 0 {
				assert.Equal(t, tt.wantQty, lines[0].Quantity)
			} else {
				assert.NotContains(t, s.ActiveSlots(), SlotID(2))
			}
		})
	}
}

func TestStore_SetQuantity_UnknownKey(t *testing.T) {
	s := NewStore()
	s.SelectSlot(2)
	_, err := s.AddItem(burger, "Standard")
	require.NoError(t, err)

	cart, err := s.SetQuantity(LineKey{MenuItemID: 42, Variant: "Standard"}, 3)
	require.ErrorIs(t, err, ErrUnknownLineKey)
	assert.Equal(t, SlotID(2), cart.Slot)
	assert.Len(t, cart.Items, 1)

	lines := s.LineItems(2)
	require.Len(t, lines, 1)
	assert.Equal(t, 1, lines[0].Quantity)
}

func TestStore_SetQuantity_NoSlot(t *testing.T) {
	s := NewStore()
	cart, err := s.SetQuantity(LineKey{MenuItemID: 1, Variant: "1kg"}, 3)
	require.ErrorIs(t, err, ErrNoActiveSlot)
	assert.False(t, cart.HasSlot)
	assert.Empty(t, cart.Items)
}

func TestStore_RemoveItem(t *testing.T) {
	s := NewStore()
	s.SelectSlot(4)
	_, err := s.AddItem(karahi, "1kg")
	require.NoError(t, err)
	_, err = s.AddItem(burger, "Standard")
	require.NoError(t, err)

	cart, err := s.RemoveItem(LineKey{MenuItemID: 1, Variant: "1kg"})
	require.NoError(t, err)
	assert.Equal(t, SlotID(4), cart.Slot)
	requireDecimal(t, 660, cart.Totals.Total)

	lines := s.LineItems(4)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].MenuItemID)

	// Removing again is a no-op.
	_, err = s.RemoveItem(LineKey{MenuItemID: 1, Variant: "1kg"})
	require.ErrorIs(t, err, ErrUnknownLineKey)
	assert.Len(t, s.LineItems(4), 1)

	// Removing the last line drops the slot entirely.
	cart, err = s.RemoveItem(LineKey{MenuItemID: 5, Variant: "Standard"})
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Empty(t, s.ActiveSlots())
}

func TestStore_RemoveItem_NoSlot(t *testing.T) {
	s := NewStore()
	_, err := s.RemoveItem(LineKey{MenuItemID: 1, Variant: "1kg"})
	require.ErrorIs(t, err, ErrNoActiveSlot)
}

func TestStore_CrossSlotIsolation(t *testing.T) {
	s := NewStore()

	s.SelectSlot(1)
	_, err := s.AddItem(burger, "Standard")
	require.NoError(t, err)
	before := s.LineItems(1)

	s.SelectSlot(2)
	_, err = s.AddItem(burger, "Standard")
	require.NoError(t, err)
	_, err = s.AddItem(karahi, "1kg")
	require.NoError(t, err)
	_, err = s.SetQuantity(LineKey{MenuItemID: 5, Variant: "Standard"}, 9)
	require.NoError(t, err)
	_, err = s.Checkout()
	require.NoError(t, err)

	assert.Equal(t, before, s.LineItems(1))
	assert.Equal(t, []SlotID{1}, s.ActiveSlots())
}

func TestStore_RemoveItemsByMenuItem(t *testing.T) {
	s := NewStore()

	s.SelectSlot(1)
	_, err := s.AddItem(roll, "Standard")
	require.NoError(t, err)
	_, err = s.AddItem(burger, "Standard")
	require.NoError(t, err)

	s.SelectSlot(Takeaway)
	_, err = s.AddItem(roll, "Standard")
	require.NoError(t, err)

	s.SelectSlot(3)
	_, err = s.AddItem(roll, "Standard")
	require.NoError(t, err)

	s.ClearSlot()
	removed := s.RemoveItemsByMenuItem(7)
	assert.Equal(t, 3, removed)

	lines := s.LineItems(1)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].MenuItemID)
	assert.Empty(t, s.LineItems(Takeaway))
	assert.Empty(t, s.LineItems(3))
	assert.Equal(t, []SlotID{1}, s.ActiveSlots())

	assert.Zero(t, s.RemoveItemsByMenuItem(7))
}

func TestStore_LineItems_EmptySlot(t *testing.T) {
	s := NewStore()

	lines := s.LineItems(12)
	require.NotNil(t, lines)
	assert.Empty(t, lines)
	assert.Empty(t, s.CurrentLineItems())
}

func TestStore_LineItems_ReturnsCopy(t *testing.T) {
	s := NewStore()
	s.SelectSlot(1)
	_, err := s.AddItem(burger, "Standard")
	require.NoError(t, err)

	lines := s.CurrentLineItems()
	lines[0].Quantity = 50

	assert.Equal(t, 1, s.LineItems(1)[0].Quantity)
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name                 string
		items                []LineItem
		subtotal, tax, total int64
	}{
		{
			name: "two lines",
			items: []LineItem{
				{UnitPrice: decimal.NewFromInt(50), Quantity: 2},
				{UnitPrice: decimal.NewFromInt(250), Quantity: 1},
			},
			subtotal: 350, tax: 35, total: 385,
		},
		{
			name: "quantity multiplies price",
			items: []LineItem{
				{UnitPrice: decimal.NewFromInt(100), Quantity: 2},
				{UnitPrice: decimal.NewFromInt(250), Quantity: 1},
			},
			subtotal: 450, tax: 45, total: 495,
		},
		{name: "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotals(tt.items)
			requireDecimal(t, tt.subtotal, got.Subtotal)
			requireDecimal(t, tt.tax, got.Tax)
			requireDecimal(t, tt.total, got.Total)
		})
	}
}

func TestComputeTotals_FractionalTax(t *testing.T) {
	got := ComputeTotals([]LineItem{{UnitPrice: decimal.NewFromInt(355), Quantity: 1}})
	assert.True(t, decimal.RequireFromString("35.5").Equal(got.Tax))
	assert.True(t, decimal.RequireFromString("390.5").Equal(got.Total))
}

func TestStore_Totals_CustomRate(t *testing.T) {
	s := NewStore(WithTaxRate(decimal.RequireFromString("0.16")))
	got := s.Totals([]LineItem{{UnitPrice: decimal.NewFromInt(1000), Quantity: 1}})
	requireDecimal(t, 160, got.Tax)
	requireDecimal(t, 1160, got.Total)
}

func TestStore_Checkout(t *testing.T) {
	at := time.Date(2025, 3, 14, 13, 30, 0, 0, time.UTC)
	s := NewStore(WithClock(fixedClock(at)))
	s.SelectSlot(6)
	_, err := s.AddItem(karahi, "0.5kg")
	require.NoError(t, err)
	_, err = s.AddItem(burger, "Standard")
	require.NoError(t, err)
	want := s.Totals(s.CurrentLineItems())

	o, err := s.Checkout()
	require.NoError(t, err)

	assert.Equal(t, SlotID(6), o.Slot)
	assert.Equal(t, at, o.Timestamp)
	assert.Len(t, o.Items, 2)
	assert.True(t, want.Total.Equal(o.Total))
	assert.True(t, strings.HasPrefix(o.ID, "ORD-"))
	assert.True(t, strings.HasSuffix(o.ID, "-6"))

	assert.Empty(t, s.LineItems(6))
	assert.Empty(t, s.ActiveSlots())
	history := s.History()
	require.Len(t, history, 1)
	assert.Equal(t, o.ID, history[0].ID)
	assert.True(t, want.Total.Equal(history[0].Total))

	// The slot stays selected after checkout.
	slot, ok := s.CurrentSlot()
	assert.True(t, ok)
	assert.Equal(t, SlotID(6), slot)
}

func TestStore_Checkout_Idempotent(t *testing.T) {
	s := NewStore()

	_, err := s.Checkout()
	require.ErrorIs(t, err, ErrNoActiveSlot)

	s.SelectSlot(2)
	_, err = s.Checkout()
	require.ErrorIs(t, err, ErrEmptyCheckout)
	assert.Empty(t, s.History())

	_, err = s.AddItem(burger, "Standard")
	require.NoError(t, err)
	_, err = s.Checkout()
	require.NoError(t, err)

	_, err = s.Checkout()
	require.ErrorIs(t, err, ErrEmptyCheckout)
	assert.True(t, IsAbsorbed(err))
	assert.Len(t, s.History(), 1)
}

func TestStore_Checkout_UniqueIDsWithFrozenClock(t *testing.T) {
	s := NewStore(WithClock(fixedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))))
	s.SelectSlot(1)

	ids := make(map[string]bool)
	for range 5 {
		_, err := s.AddItem(burger, "Standard")
		require.NoError(t, err)
		o, err := s.Checkout()
		require.NoError(t, err)
		assert.False(t, ids[o.ID], "duplicate order id %s", o.ID)
		ids[o.ID] = true
	}
}

func TestStore_Checkout_WithPayment(t *testing.T) {
	s := NewStore()
	s.SelectSlot(Takeaway)
	_, err := s.AddItem(burger, "Standard")
	require.NoError(t, err)

	o, err := s.Checkout(WithPayment(func(t Totals) (Payment, error) {
		tendered := decimal.NewFromInt(1000)
		return Payment{Method: PaymentCash, Tendered: tendered, Change: tendered.Sub(t.Total)}, nil
	}))
	require.NoError(t, err)
	assert.Equal(t, PaymentCash, o.Payment.Method)
	requireDecimal(t, 340, o.Payment.Change)
}

func TestStore_Checkout_SettleErrorLeavesCart(t *testing.T) {
	s := NewStore()
	s.SelectSlot(Takeaway)
	_, err := s.AddItem(burger, "Standard")
	require.NoError(t, err)

	declined := errors.New("declined")
	_, err = s.Checkout(WithPayment(func(Totals) (Payment, error) {
		return Payment{}, declined
	}))
	require.ErrorIs(t, err, declined)
	assert.False(t, IsAbsorbed(err))
	assert.Len(t, s.LineItems(Takeaway), 1)
	assert.Empty(t, s.History())
}

func TestStore_History_IsImmutable(t *testing.T) {
	s := NewStore()
	s.SelectSlot(1)
	_, err := s.AddItem(burger, "Standard")
	require.NoError(t, err)
	o, err := s.Checkout()
	require.NoError(t, err)

	o.Items[0].Quantity = 99
	h := s.History()
	h[0].Items[0].Quantity = 42

	assert.Equal(t, 1, s.History()[0].Items[0].Quantity)
}

func TestStore_CancelOrder(t *testing.T) {
	s := NewStore()
	s.SelectSlot(5)
	_, err := s.AddItem(burger, "Standard")
	require.NoError(t, err)

	require.NoError(t, s.CancelOrder(5))
	assert.Empty(t, s.LineItems(5))
	assert.Empty(t, s.History())
	require.ErrorIs(t, s.CancelOrder(5), ErrNoOrder)
}

func TestStore_ReportResetAndReset(t *testing.T) {
	s := NewStore()
	s.SelectSlot(1)
	_, err := s.AddItem(burger, "Standard")
	require.NoError(t, err)
	_, err = s.Checkout()
	require.NoError(t, err)

	s.SetReportReset(true)
	assert.True(t, s.ReportReset())
	assert.Len(t, s.History(), 1, "reset flag must not discard history")

	s.Reset()
	assert.False(t, s.ReportReset())
	assert.Empty(t, s.History())
	_, ok := s.CurrentSlot()
	assert.False(t, ok)
}

func TestStore_TakeawayScenario(t *testing.T) {
	s := NewStore()
	s.SelectSlot(Takeaway)

	_, err := s.AddItem(karahi, "1kg")
	require.NoError(t, err)
	_, err = s.AddItem(karahi, "1kg")
	require.NoError(t, err)
	_, err = s.AddItem(burger, "Standard")
	require.NoError(t, err)

	lines := s.LineItems(Takeaway)
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, 1, lines[1].Quantity)

	totals := s.Totals(lines)
	requireDecimal(t, 4200, totals.Subtotal)
	requireDecimal(t, 420, totals.Tax)
	requireDecimal(t, 4620, totals.Total)

	o, err := s.Checkout()
	require.NoError(t, err)
	requireDecimal(t, 4620, o.Total)

	history := s.History()
	require.Len(t, history, 1)
	requireDecimal(t, 4620, history[0].Total)
	assert.Empty(t, s.LineItems(Takeaway))
}

func TestParseLineKey(t *testing.T) {
	tests := []struct {
		in      string
		want    LineKey
		wantErr bool
	}{
		{in: "1-1kg", want: LineKey{MenuItemID: 1, Variant: "1kg"}},
		{in: "12-2 pcs", want: LineKey{MenuItemID: 12, Variant: "2 pcs"}},
		{in: "3-half-plate", want: LineKey{MenuItemID: 3, Variant: "half-plate"}},
		{in: "abc-1kg", wantErr: true},
		{in: "7-", wantErr: true},
		{in: "7", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLineKey(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidLineKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestStore_MutationsReturnActedOnSlot(t *testing.T) {
	s := NewStore()
	s.SelectSlot(4)

	cart, err := s.AddItem(burger, "Standard")
	require.NoError(t, err)
	s.SelectSlot(9)

	assert.Equal(t, SlotID(4), cart.Slot)
	assert.True(t, cart.HasSlot)
	require.Len(t, cart.Items, 1)
	requireDecimal(t, 660, cart.Totals.Total)

	// The returned cart is a copy.
	cart.Items[0].Quantity = 50
	assert.Equal(t, 1, s.LineItems(4)[0].Quantity)

	s.SelectSlot(4)
	cart, err = s.SetQuantity(LineKey{MenuItemID: 5, Variant: "Standard"}, 3)
	require.NoError(t, err)
	s.ClearSlot()
	assert.Equal(t, SlotID(4), cart.Slot)
	requireDecimal(t, 1980, cart.Totals.Total)
}

func TestStore_ConcurrentAddAndCheckout(t *testing.T) {
	const (
		workers = 8
		adds    = 50
	)
	s := NewStore()
	s.SelectSlot(Takeaway)

	var (
		wg   sync.WaitGroup
		done = make(chan struct{})
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range adds {
				_, err := s.AddItem(burger, "Standard")
				assert.NoError(t, err)
			}
		}()
	}

	checkouts := make(chan error, 1)
	go func() {
		for {
			select {
			case <-done:
				checkouts <- nil
				return
			default:
			}
			if _, err := s.Checkout(); err != nil && !errors.Is(err, ErrEmptyCheckout) {
				checkouts <- err
				return
			}
		}
	}()

	wg.Wait()
	close(done)
	require.NoError(t, <-checkouts)

	counted := 0
	for _, o := range s.History() {
		require.NotEmpty(t, o.Items)
		for _, li := range o.Items {
			counted += li.Quantity
		}
		want := ComputeTotals(o.Items)
		assert.True(t, want.Total.Equal(o.Total), "order %s total %s, items sum to %s", o.ID, o.Total, want.Total)
	}
	for _, li := range s.LineItems(Takeaway) {
		counted += li.Quantity
	}
	assert.Equal(t, workers*adds, counted)
}
