package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bites-pos/internal/domain/order"
	"github.com/xenking/bites-pos/internal/ws"
)

// ListMenu responds with every menu item and its variants.
func (h *Handler) ListMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.ListItems(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, m := range items {
				encodeMenuItem(e, m)
			}
		})
	})
}

// DeleteMenuItem removes an item from the catalog and from every open cart.
func (h *Handler) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	removed, err := h.menu.DeleteItem(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	zctx.From(r.Context()).Info("Menu item deleted", zap.Int("menu_item_id", id), zap.Int("cart_lines_removed", removed))

	body := func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("id", func(e *jx.Encoder) { e.Int(id) })
			e.Field("removedLines", func(e *jx.Encoder) { e.Int(removed) })
		})
	}
	h.events.Publish(ws.Event{Type: ws.EventMenuItemDelete, Payload: encodeRaw(body)})
	writeJSON(w, http.StatusOK, body)
}

// ListTables responds with the dining tables and the takeaway slot, each
// flagged with whether it holds an open order.
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.catalog.ListTables(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	open := make(map[order.SlotID]bool)
	for _, slot := range h.store.ActiveSlots() {
		open[slot] = true
	}
	current, hasCurrent := h.store.CurrentSlot()

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("tables", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, t := range tables {
						slot := order.SlotID(t.ID)
						e.Obj(func(e *jx.Encoder) {
							e.Field("id", func(e *jx.Encoder) { e.Int(t.ID) })
							e.Field("name", func(e *jx.Encoder) { e.Str(t.Name) })
							e.Field("capacity", func(e *jx.Encoder) { e.Int(t.Capacity) })
							e.Field("status", func(e *jx.Encoder) { e.Str(string(t.Status)) })
							e.Field("hasOrder", func(e *jx.Encoder) { e.Bool(open[slot]) })
							e.Field("selected", func(e *jx.Encoder) { e.Bool(hasCurrent && current == slot) })
						})
					}
				})
			})
			e.Field("takeaway", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					e.Field("id", func(e *jx.Encoder) { e.Int(int(order.Takeaway)) })
					e.Field("hasOrder", func(e *jx.Encoder) { e.Bool(open[order.Takeaway]) })
					e.Field("selected", func(e *jx.Encoder) { e.Bool(hasCurrent && current == order.Takeaway) })
				})
			})
		})
	})
}
