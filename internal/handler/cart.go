package handler

import (
	"context"
	"net/http"
	"slices"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/bites-pos/internal/domain/menu"
	"github.com/xenking/bites-pos/internal/domain/order"
	"github.com/xenking/bites-pos/internal/ws"
)

// SelectSlot makes a table or the takeaway slot current and responds with
// its cart.
func (h *Handler) SelectSlot(w http.ResponseWriter, r *http.Request) {
	var (
		slot    int
		hasSlot bool
	)
	if err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "slot" {
			return d.Skip()
		}
		v, err := d.Int()
		slot, hasSlot = v, err == nil
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	if !hasSlot {
		fail(w, r, badRequest(`"slot" is required`, nil))
		return
	}
	if err := h.checkSlot(r.Context(), order.SlotID(slot)); err != nil {
		fail(w, r, err)
		return
	}

	h.store.SelectSlot(order.SlotID(slot))
	h.events.Publish(ws.Event{Type: ws.EventSlotSelected, Slot: slot, HasSlot: true})
	writeJSON(w, http.StatusOK, h.cart(order.SlotID(slot)).Encode)
}

// ClearSlot deselects the current slot. Open carts are kept.
func (h *Handler) ClearSlot(w http.ResponseWriter, _ *http.Request) {
	h.store.ClearSlot()
	writeJSON(w, http.StatusOK, h.currentCart().Encode)
}

// GetCart responds with the cart of ?slot=N, or of the current slot.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	s := r.URL.Query().Get("slot")
	if s == "" {
		writeJSON(w, http.StatusOK, h.currentCart().Encode)
		return
	}
	id, err := strconv.Atoi(s)
	if err != nil {
		fail(w, r, badRequest("invalid slot "+strconv.Quote(s), nil))
		return
	}
	if err := h.checkSlot(r.Context(), order.SlotID(id)); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cart(order.SlotID(id)).Encode)
}

// AddItem adds one unit of a menu item variant to the current cart. The
// variant may be omitted for items that offer exactly one.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var (
		menuItemID int
		hasID      bool
		variant    string
	)
	if err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "menuItemId":
			menuItemID, err = d.Int()
			hasID = err == nil
		case "variant":
			variant, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	if !hasID {
		fail(w, r, badRequest(`"menuItemId" is required`, nil))
		return
	}

	// The store write happens while the item is held, so a concurrent
	// DeleteMenuItem cannot prune carts between the lookup and the add.
	var (
		cart order.Cart
		err  error
	)
	lookupErr := h.menu.WithItem(r.Context(), menuItemID, func(item menu.MenuItem) error {
		if variant == "" {
			if len(item.Variants) != 1 {
				return badRequest(`"variant" is required for items with several variants`, nil)
			}
			variant = item.Variants[0].Name
		}
		cart, err = h.store.AddItem(item, variant)
		return nil
	})
	if lookupErr != nil {
		fail(w, r, lookupErr)
		return
	}
	h.mutated(w, r, "add", cart, err)
}

// SetQuantity replaces the quantity of a cart line; zero or less removes it.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	key, err := order.ParseLineKey(chi.URLParam(r, "key"))
	if err != nil {
		fail(w, r, err)
		return
	}
	var (
		quantity int
		hasQty   bool
	)
	if err := decodeBody(r, func(d *jx.Decoder, k string) error {
		if k != "quantity" {
			return d.Skip()
		}
		v, err := d.Int()
		quantity, hasQty = v, err == nil
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	if !hasQty {
		fail(w, r, badRequest(`"quantity" is required`, nil))
		return
	}

	cart, err := h.store.SetQuantity(key, quantity)
	h.mutated(w, r, "set_quantity", cart, err)
}

// RemoveItem deletes a cart line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	key, err := order.ParseLineKey(chi.URLParam(r, "key"))
	if err != nil {
		fail(w, r, err)
		return
	}
	cart, err := h.store.RemoveItem(key)
	h.mutated(w, r, "remove", cart, err)
}

// CancelCart discards the current slot's open order without recording it.
func (h *Handler) CancelCart(w http.ResponseWriter, r *http.Request) {
	slot, ok := h.store.CurrentSlot()
	if !ok {
		h.mutated(w, r, "cancel", order.Cart{}, order.ErrNoActiveSlot)
		return
	}
	err := h.store.CancelOrder(slot)
	if err == nil {
		h.events.Publish(ws.Event{Type: ws.EventOrderCancelled, Slot: int(slot), HasSlot: true})
	}
	items := h.store.LineItems(slot)
	h.mutated(w, r, "cancel", order.Cart{Slot: slot, HasSlot: true, Items: items, Totals: h.store.Totals(items)}, err)
}

// mutated finishes a cart mutation with the cart it acted on. Absorbed
// conditions are not failures: the unchanged cart is returned with 200.
func (h *Handler) mutated(w http.ResponseWriter, r *http.Request, op string, c order.Cart, err error) {
	if err != nil && !order.IsAbsorbed(err) {
		fail(w, r, err)
		return
	}
	cart := h.viewOf(c)
	if err == nil {
		h.mutations.Add(r.Context(), 1, metric.WithAttributes(attribute.String("op", op)))
		if cart.hasSlot {
			h.events.Publish(ws.Event{
				Type:    ws.EventCartUpdated,
				Slot:    int(cart.slot),
				HasSlot: true,
				Payload: encodeRaw(cart.Encode),
			})
		}
	}
	writeJSON(w, http.StatusOK, cart.Encode)
}

// checkSlot accepts the takeaway slot and any catalog table.
func (h *Handler) checkSlot(ctx context.Context, slot order.SlotID) error {
	if slot.IsTakeaway() {
		return nil
	}
	tables, err := h.catalog.ListTables(ctx)
	if err != nil {
		return err
	}
	if !slices.ContainsFunc(tables, func(t menu.Table) bool { return t.ID == int(slot) }) {
		return errors.Wrapf(errUnknownSlot, "%d", slot)
	}
	return nil
}
