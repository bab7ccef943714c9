package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/bites-pos/internal/domain/menu"
	"github.com/xenking/bites-pos/internal/domain/order"
	"github.com/xenking/bites-pos/internal/domain/payment"
	"github.com/xenking/bites-pos/internal/domain/report"
)

const maxBodySize = 64 << 10

// requestError marks malformed client input.
type requestError struct {
	msg string
	err error
}

func (e *requestError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *requestError) Unwrap() error { return e.err }

func badRequest(msg string, err error) error {
	return &requestError{msg: msg, err: err}
}

// errUnknownSlot is returned when a slot is neither a table nor takeaway.
var errUnknownSlot = errors.New("unknown slot")

// decodeBody reads a JSON object from the request body, calling fn for every
// field.
func decodeBody(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return badRequest("read body", err)
	}
	if len(data) > maxBodySize {
		return badRequest("request body too large", nil)
	}
	if len(data) == 0 {
		return badRequest("request body is required", nil)
	}
	if err := jx.DecodeBytes(data).Obj(fn); err != nil {
		return badRequest("invalid JSON body", err)
	}
	return nil
}

// writeJSON writes the object produced by enc with the given status.
func writeJSON(w http.ResponseWriter, status int, enc func(e *jx.Encoder)) {
	var e jx.Encoder
	enc(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Int("status", status), zap.String("error", msg))
		msg = http.StatusText(status)
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

// fail maps domain errors to HTTP error responses.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		reqErr *requestError
		valErr *menu.ValidationError
	)
	switch {
	case errors.As(err, &reqErr):
		writeError(w, r, http.StatusBadRequest, reqErr.Error())
	case errors.As(err, &valErr):
		writeError(w, r, http.StatusBadRequest, valErr.Error())
	case errors.Is(err, order.ErrInvalidLineKey),
		errors.Is(err, payment.ErrInvalidMethod),
		errors.Is(err, report.ErrInvalidRange),
		errors.Is(err, report.ErrUnknownRange):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, menu.ErrNotFound), errors.Is(err, errUnknownSlot):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, payment.ErrInsufficientCash):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, err.Error())
	}
}

func encodeDecimal(e *jx.Encoder, d decimal.Decimal) {
	e.Num(jx.Num(d.String()))
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}
	n, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(n.String())
}

func encodeMenuItem(e *jx.Encoder, m menu.MenuItem) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int(m.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(m.Name) })
		e.Field("category", func(e *jx.Encoder) { e.Str(string(m.Category)) })
		e.Field("imageUrl", func(e *jx.Encoder) { e.Str(m.ImageURL) })
		e.Field("variants", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, v := range m.Variants {
					e.Obj(func(e *jx.Encoder) {
						e.Field("name", func(e *jx.Encoder) { e.Str(v.Name) })
						e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, v.Price) })
					})
				}
			})
		})
	})
}

// cartView is the cart of one slot as shown on a terminal.
type cartView struct {
	slot     order.SlotID
	hasSlot  bool
	selected bool
	items    []order.LineItem
	totals   order.Totals
}

func (h *Handler) cart(slot order.SlotID) cartView {
	items := h.store.LineItems(slot)
	cur, ok := h.store.CurrentSlot()
	return cartView{
		slot:     slot,
		hasSlot:  true,
		selected: ok && cur == slot,
		items:    items,
		totals:   h.store.Totals(items),
	}
}

// viewOf renders a cart snapshot returned by a store mutation. Mutations act
// on the selected slot, so the snapshot is the selected cart.
func (h *Handler) viewOf(c order.Cart) cartView {
	if !c.HasSlot {
		return cartView{items: []order.LineItem{}, totals: h.store.Totals(nil)}
	}
	return cartView{
		slot:     c.Slot,
		hasSlot:  true,
		selected: true,
		items:    c.Items,
		totals:   c.Totals,
	}
}

// currentCart returns the cart of the selected slot, or an empty cart view
// without a slot.
func (h *Handler) currentCart() cartView {
	slot, ok := h.store.CurrentSlot()
	if !ok {
		return cartView{items: []order.LineItem{}, totals: h.store.Totals(nil)}
	}
	return h.cart(slot)
}

func (c cartView) Encode(e *jx.Encoder) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("slot", func(e *jx.Encoder) {
			if c.hasSlot {
				e.Int(int(c.slot))
			} else {
				e.Null()
			}
		})
		e.Field("takeaway", func(e *jx.Encoder) { e.Bool(c.hasSlot && c.slot.IsTakeaway()) })
		e.Field("selected", func(e *jx.Encoder) { e.Bool(c.selected) })
		e.Field("items", func(e *jx.Encoder) { order.EncodeLineItems(e, c.items) })
		e.Field("itemCount", func(e *jx.Encoder) {
			n := 0
			for _, li := range c.items {
				n += li.Quantity
			}
			e.Int(n)
		})
		order.EncodeTotals(e, c.totals)
	})
}

func encodeReport(e *jx.Encoder, r report.Range, rep report.Report, reset bool) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("range", func(e *jx.Encoder) { e.Str(string(r)) })
		e.Field("reset", func(e *jx.Encoder) { e.Bool(reset) })
		e.Field("revenue", func(e *jx.Encoder) { encodeDecimal(e, rep.Revenue) })
		e.Field("orders", func(e *jx.Encoder) { e.Int(rep.Orders) })
		e.Field("averageOrderValue", func(e *jx.Encoder) { encodeDecimal(e, rep.AverageOrderValue) })
		e.Field("seriesLabel", func(e *jx.Encoder) { e.Str(rep.SeriesLabel) })
		e.Field("series", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, b := range rep.Series {
					e.Obj(func(e *jx.Encoder) {
						e.Field("label", func(e *jx.Encoder) { e.Str(b.Label) })
						e.Field("sales", func(e *jx.Encoder) { encodeDecimal(e, b.Sales) })
					})
				}
			})
		})
		e.Field("categories", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, c := range rep.Categories {
					e.Obj(func(e *jx.Encoder) {
						e.Field("category", func(e *jx.Encoder) { e.Str(string(c.Category)) })
						e.Field("revenue", func(e *jx.Encoder) { encodeDecimal(e, c.Revenue) })
					})
				}
			})
		})
	})
}

// encodeRaw renders an encodable value for event payloads.
func encodeRaw(enc func(e *jx.Encoder)) jx.Raw {
	var e jx.Encoder
	enc(&e)
	return jx.Raw(e.Bytes())
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, badRequest("invalid identifier "+strconv.Quote(s), nil)
	}
	return id, nil
}
