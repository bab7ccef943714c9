// Package handler exposes the POS over JSON/HTTP.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/bites-pos/internal/domain/menu"
	"github.com/xenking/bites-pos/internal/domain/order"
	"github.com/xenking/bites-pos/internal/domain/payment"
	"github.com/xenking/bites-pos/internal/ws"
)

// Publisher broadcasts events to connected terminals.
type Publisher interface {
	Publish(ev ws.Event)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// Location is the time zone of report day and hour boundaries.
	// Defaults to time.Local.
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
	// MeterProvider defaults to a no-op provider.
	MeterProvider metric.MeterProvider
}

// Handler serves the POS API. It holds no state of its own: carts and history
// live in the order Store.
type Handler struct {
	catalog  menu.Repository
	menu     *menu.Service
	store    *order.Store
	payments *payment.Service
	events   Publisher

	loc       *time.Location
	now       func() time.Time
	mutations metric.Int64Counter
}

// New constructs a Handler. events may be nil.
func New(
	cfg Config,
	catalog menu.Repository,
	store *order.Store,
	payments *payment.Service,
	events Publisher,
) (*Handler, error) {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = noop.NewMeterProvider()
	}
	if events == nil {
		events = discard{}
	}

	mutations, err := cfg.MeterProvider.
		Meter("github.com/xenking/bites-pos/internal/handler").
		Int64Counter("pos.cart.mutations", metric.WithDescription("Applied cart mutations by operation"))
	if err != nil {
		return nil, errors.Wrap(err, "create mutations counter")
	}

	return &Handler{
		catalog:   catalog,
		menu:      menu.NewService(catalog, store),
		store:     store,
		payments:  payments,
		events:    events,
		loc:       cfg.Location,
		now:       cfg.Now,
		mutations: mutations,
	}, nil
}

// Routes registers the API on r. Paths are relative to the mount point.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/menu", h.ListMenu)
	r.Delete("/menu/{id}", h.DeleteMenuItem)
	r.Get("/tables", h.ListTables)

	r.Put("/slot", h.SelectSlot)
	r.Delete("/slot", h.ClearSlot)

	r.Get("/cart", h.GetCart)
	r.Delete("/cart", h.CancelCart)
	r.Post("/cart/items", h.AddItem)
	r.Put("/cart/items/{key}", h.SetQuantity)
	r.Delete("/cart/items/{key}", h.RemoveItem)

	r.Post("/checkout", h.Checkout)
	r.Get("/orders", h.ListOrders)

	r.Get("/reports", h.GetReport)
	r.Put("/reports/reset", h.SetReportReset)
}

// Router returns a chi router serving the API at its root.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
	h.Routes(r)
	return r
}

type discard struct{}

func (discard) Publish(ws.Event) {}
