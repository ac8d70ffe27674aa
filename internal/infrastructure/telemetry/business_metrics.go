package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var ErrMeterNil = errors.New("NewBusinessMetrics: meter cannot be nil")

var (
	AttrCheckoutState  = attribute.Key("checkout.state")
	AttrCheckoutReason = attribute.Key("checkout.reason")
	AttrCommitOK       = attribute.Key("checkout.commit_ok")
	AttrSyncOp         = attribute.Key("cart.sync_op")
	AttrSyncDead       = attribute.Key("cart.sync_dead")
)

// BusinessMetrics counts what the storefront sells and how checkout and the
// cart synchronizer fare. It satisfies the metrics ports of the checkout,
// cart and order packages.
type BusinessMetrics struct {
	logger *zap.Logger

	checkouts    *Counter
	commits      *Histogram
	orders       *Counter
	revenue      *Counter
	syncFailures *Counter
}

type BusinessMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

func NewBusinessMetrics(cfg BusinessMetricsConfig) (*BusinessMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	bm := &BusinessMetrics{logger: cfg.Logger}
	if bm.logger == nil {
		bm.logger = zap.NewNop()
	}

	counters := []struct {
		dst              **Counter
		name, desc, unit string
	}{
		{&bm.checkouts, "storefront_checkout_total", "Checkout attempts by terminal state and failure reason", "{attempts}"},
		{&bm.orders, "storefront_order_placed_total", "Orders placed", "{orders}"},
		{&bm.revenue, "storefront_order_amount_total", "Order totals in cents", "{cents}"},
		{&bm.syncFailures, "storefront_cart_sync_failures_total", "Cart record writes that failed", "{writes}"},
	}
	for _, c := range counters {
		inst, err := NewCounter(cfg.Meter, c.name, c.desc, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = inst
	}

	var err error
	bm.commits, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "storefront_checkout_commit_duration_seconds",
		Description: "Duration of the checkout commit transaction",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	bm.logger.Debug("business metrics registered", zap.Int("instruments", len(counters)+1))
	return bm, nil
}

// RecordCheckout counts a finished attempt. reason is empty on success.
func (bm *BusinessMetrics) RecordCheckout(ctx context.Context, state, reason string) {
	if reason == "" {
		bm.checkouts.Inc(ctx, AttrCheckoutState.String(state))
		return
	}
	bm.checkouts.Inc(ctx, AttrCheckoutState.String(state), AttrCheckoutReason.String(reason))
}

func (bm *BusinessMetrics) RecordCommit(ctx context.Context, d time.Duration, ok bool) {
	bm.commits.RecordDuration(ctx, d, AttrCommitOK.Bool(ok))
}

func (bm *BusinessMetrics) RecordOrderPlaced(ctx context.Context, total decimal.Decimal) {
	bm.orders.Inc(ctx)
	bm.revenue.Add(ctx, total.Shift(2).IntPart())
}

// RecordCartSyncFailure counts a failed cart record write; dead marks the
// last attempt.
func (bm *BusinessMetrics) RecordCartSyncFailure(ctx context.Context, op string, dead bool) {
	bm.syncFailures.Inc(ctx, AttrSyncOp.String(op), AttrSyncDead.Bool(dead))
}
