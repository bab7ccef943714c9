// Package payment confirms payment for the current cart and closes it into a
// completed order.
package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/bites-pos/internal/domain/order"
)

var (
	ErrInvalidMethod    = errors.New("unsupported payment method")
	ErrInsufficientCash = errors.New("tendered amount does not cover the total")
)

// Checkouter closes the current cart. Implemented by order.Store.
type Checkouter interface {
	Checkout(opts ...order.CheckoutOption) (order.CompletedOrder, error)
}

// Request is a payment confirmation from the terminal. Tendered is only read
// for cash payments.
type Request struct {
	Method   order.PaymentMethod
	Tendered decimal.Decimal
}

// Receipt is returned for a confirmed payment.
type Receipt struct {
	Order order.CompletedOrder
}

// Service confirms payments. Payment itself is simulated: card payments are
// always accepted and cash payments only need to cover the total.
type Service struct {
	store   Checkouter
	archive order.Archive

	lg        *zap.Logger
	tracer    trace.Tracer
	completed metric.Int64Counter
	revenue   metric.Float64Counter
}

// Option configures a Service.
type Option func(*options)

type options struct {
	lg *zap.Logger
	mp metric.MeterProvider
	tp trace.TracerProvider
}

func WithLogger(lg *zap.Logger) Option {
	return func(o *options) { o.lg = lg }
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.mp = mp }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tp = tp }
}

// NewService creates a payment Service. archive may be nil.
func NewService(store Checkouter, archive order.Archive, opts ...Option) (*Service, error) {
	o := options{
		lg: zap.NewNop(),
		mp: metricnoop.NewMeterProvider(),
		tp: tracenoop.NewTracerProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.mp.Meter("github.com/xenking/bites-pos/internal/domain/payment")
	completed, err := meter.Int64Counter("pos.orders.completed",
		metric.WithDescription("Number of orders closed by checkout"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders counter")
	}
	revenue, err := meter.Float64Counter("pos.revenue",
		metric.WithDescription("Revenue of completed orders, tax included"),
		metric.WithUnit("{PKR}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create revenue counter")
	}

	return &Service{
		store:     store,
		archive:   archive,
		lg:        o.lg,
		tracer:    o.tp.Tracer("github.com/xenking/bites-pos/internal/domain/payment"),
		completed: completed,
		revenue:   revenue,
	}, nil
}

// Confirm validates the payment against the current cart totals and checks
// the cart out. The amount check and the checkout happen atomically, so the
// totals cannot change in between. Absorbed order errors are returned
// unchanged.
func (s *Service) Confirm(ctx context.Context, req Request) (*Receipt, error) {
	ctx, span := s.tracer.Start(ctx, "payment.Confirm",
		trace.WithAttributes(attribute.String("payment.method", string(req.Method))),
	)
	defer span.End()

	if !req.Method.Valid() {
		span.SetStatus(codes.Error, "invalid method")
		return nil, errors.Wrapf(ErrInvalidMethod, "%q", req.Method)
	}

	o, err := s.store.Checkout(order.WithPayment(func(t order.Totals) (order.Payment, error) {
		return settle(req, t)
	}))
	if err != nil {
		if !order.IsAbsorbed(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "checkout failed")
		}
		return nil, err
	}
	span.SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.Int("order.slot", int(o.Slot)),
	)

	attrs := metric.WithAttributes(attribute.String("method", string(req.Method)))
	s.completed.Add(ctx, 1, attrs)
	s.revenue.Add(ctx, o.Total.InexactFloat64(), attrs)

	s.lg.Info("Order completed",
		zap.String("order_id", o.ID),
		zap.Int("slot", int(o.Slot)),
		zap.String("method", string(req.Method)),
		zap.Stringer("total", o.Total),
	)

	if s.archive != nil {
		if err := s.archive.Create(ctx, &o); err != nil {
			// The order is already part of the in-memory history.
			s.lg.Warn("Archive completed order", zap.String("order_id", o.ID), zap.Error(err))
		}
	}

	return &Receipt{Order: o}, nil
}

func settle(req Request, t order.Totals) (order.Payment, error) {
	if req.Method == order.PaymentCard {
		return order.Payment{Method: order.PaymentCard, Tendered: t.Total, Change: decimal.Zero}, nil
	}
	if req.Tendered.LessThan(t.Total) {
		return order.Payment{}, errors.Wrapf(ErrInsufficientCash, "tendered %s, total %s", req.Tendered, t.Total)
	}
	return order.Payment{
		Method:   order.PaymentCash,
		Tendered: req.Tendered,
		Change:   req.Tendered.Sub(t.Total),
	}, nil
}
