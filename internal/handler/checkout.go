package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/bites-pos/internal/domain/order"
	"github.com/xenking/bites-pos/internal/domain/payment"
	"github.com/xenking/bites-pos/internal/ws"
)

// Checkout confirms payment for the current cart and responds with the
// completed order. Checking out without a slot or with an empty cart is a
// no-op that responds with the unchanged cart.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req payment.Request
	if err := decodeBody(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "method":
			var m string
			m, err = d.Str()
			req.Method = order.PaymentMethod(m)
		case "tendered":
			if d.Next() == jx.Null {
				return d.Null()
			}
			req.Tendered, err = decodeDecimal(d)
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	if req.Method == order.PaymentCash && req.Tendered.LessThan(decimal.Zero) {
		fail(w, r, badRequest(`"tendered" must not be negative`, nil))
		return
	}

	receipt, err := h.payments.Confirm(r.Context(), req)
	if err != nil {
		if order.IsAbsorbed(err) {
			writeJSON(w, http.StatusOK, h.currentCart().Encode)
			return
		}
		fail(w, r, err)
		return
	}

	o := receipt.Order
	h.events.Publish(ws.Event{
		Type:    ws.EventOrderCompleted,
		Slot:    int(o.Slot),
		HasSlot: true,
		Payload: encodeRaw(o.Encode),
	})
	writeJSON(w, http.StatusCreated, o.Encode)
}

// ListOrders responds with the completed orders, oldest first.
func (h *Handler) ListOrders(w http.ResponseWriter, _ *http.Request) {
	history := h.store.History()
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, o := range history {
				o.Encode(e)
			}
		})
	})
}
