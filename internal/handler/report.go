package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/bites-pos/internal/domain/report"
	"github.com/xenking/bites-pos/internal/ws"
)

// GetReport responds with sales figures for ?range=daily|week|month|custom.
// Custom ranges take ?start= and ?end= as YYYY-MM-DD. ?clearReset=true clears
// the reset flag before building, the way picking a range on the dashboard
// does.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng, err := report.ParseRange(q.Get("range"))
	if err != nil {
		fail(w, r, err)
		return
	}
	start, err := h.parseDay(q.Get("start"))
	if err != nil {
		fail(w, r, err)
		return
	}
	end, err := h.parseDay(q.Get("end"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if q.Get("clearReset") == "true" {
		h.store.SetReportReset(false)
	}

	reset := h.store.ReportReset()
	rep, err := report.Build(h.store.History(), report.Query{
		Range:    rng,
		Start:    start,
		End:      end,
		Location: h.loc,
		Reset:    reset,
	}, h.now())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeReport(e, rng, rep, reset) })
}

// SetReportReset sets or clears the flag that zeroes reports without touching
// the order history.
func (h *Handler) SetReportReset(w http.ResponseWriter, r *http.Request) {
	var (
		reset bool
		has   bool
	)
	if err := decodeBody(r, func(d *jx.Decoder, key string) error {
		if key != "reset" {
			return d.Skip()
		}
		v, err := d.Bool()
		reset, has = v, err == nil
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	if !has {
		fail(w, r, badRequest(`"reset" is required`, nil))
		return
	}

	h.store.SetReportReset(reset)
	body := func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("reset", func(e *jx.Encoder) { e.Bool(reset) })
		})
	}
	h.events.Publish(ws.Event{Type: ws.EventReportReset, Payload: encodeRaw(body)})
	writeJSON(w, http.StatusOK, body)
}

// parseDay parses YYYY-MM-DD in the report location. An empty string yields
// the zero time.
func (h *Handler) parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, h.loc)
	if err != nil {
		return time.Time{}, badRequest("invalid date "+s, err)
	}
	return t, nil
}
