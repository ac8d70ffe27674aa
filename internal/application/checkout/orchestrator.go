// Package checkout turns a user's cart into an order.
package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/checkout"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
)

// ErrInProgress is returned when a checkout with the same idempotency key is still running
var ErrInProgress = shared.NewDomainError("CHECKOUT_IN_PROGRESS", "A checkout with this idempotency key is in progress")

// Identity resolves the authenticated user of a request
type Identity interface {
	UserID(ctx context.Context) (uuid.UUID, bool)
}

// Carts gives exclusive access to a user's cart and clears its persisted copy
type Carts interface {
	WithCart(ctx context.Context, userID uuid.UUID, fn func(c *cart.Cart) error) error
	ClearUser(ctx context.Context, userID uuid.UUID)
}

// Committer stores an order and takes its stock atomically
type Committer interface {
	Commit(ctx context.Context, o *order.Order) error
}

// Metrics receives checkout outcomes
type Metrics interface {
	RecordCheckout(ctx context.Context, state, reason string)
	RecordCommit(ctx context.Context, d time.Duration, ok bool)
}

// Config holds checkout settings
type Config struct {
	// CommitTimeout bounds the commit transaction. Caller cancellation does not apply to it.
	CommitTimeout  time.Duration
	IdempotencyTTL time.Duration
	PendingTTL     time.Duration
}

// DefaultConfig returns the default checkout settings
func DefaultConfig() Config {
	return Config{
		CommitTimeout:  10 * time.Second,
		IdempotencyTTL: 24 * time.Hour,
		PendingTTL:     time.Minute,
	}
}

// Result is the outcome of a successful checkout
type Result struct {
	OrderID uuid.UUID
	Attempt *checkout.Attempt
	// Replayed is set when the result was returned for a repeated idempotency key
	Replayed bool
}

// Orchestrator runs the checkout state machine
type Orchestrator struct {
	identity    Identity
	carts       Carts
	products    catalog.ProductReader
	committer   Committer
	idempotency shared.IdempotencyStore
	metrics     Metrics
	config      Config
	logger      *zap.Logger
}

// Option configures optional Orchestrator dependencies
type Option func(*Orchestrator)

// WithIdempotencyStore enables Idempotency-Key handling
func WithIdempotencyStore(store shared.IdempotencyStore) Option {
	return func(o *Orchestrator) {
		o.idempotency = store
	}
}

// WithMetrics reports outcomes to m
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithConfig overrides the default settings
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		defaults := DefaultConfig()
		if cfg.CommitTimeout <= 0 {
			cfg.CommitTimeout = defaults.CommitTimeout
		}
		if cfg.IdempotencyTTL <= 0 {
			cfg.IdempotencyTTL = defaults.IdempotencyTTL
		}
		if cfg.PendingTTL <= 0 {
			cfg.PendingTTL = defaults.PendingTTL
		}
		o.config = cfg
	}
}

// NewOrchestrator creates a checkout Orchestrator
func NewOrchestrator(
	identity Identity,
	carts Carts,
	products catalog.ProductReader,
	committer Committer,
	logger *zap.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		identity:  identity,
		carts:     carts,
		products:  products,
		committer: committer,
		config:    DefaultConfig(),
		logger:    logger.Named("checkout"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Checkout places an order for the current user's cart. On failure the
// returned error is a *checkout.Error and the cart is left as it was.
// A non-empty idempotencyKey makes repeated calls by the same user return
// the first successful order.
func (o *Orchestrator) Checkout(ctx context.Context, idempotencyKey string) (*Result, error) {
	userID, ok := o.identity.UserID(ctx)
	if !ok {
		attempt := checkout.NewAttempt(uuid.Nil)
		return nil, o.finish(ctx, attempt, attempt.Fail(checkout.NotAuthenticated()))
	}

	if idempotencyKey == "" || o.idempotency == nil {
		return o.run(ctx, userID)
	}
	return o.runOnce(ctx, userID, idempotencyKey)
}

// runOnce guards run with the idempotency store
func (o *Orchestrator) runOnce(ctx context.Context, userID uuid.UUID, idempotencyKey string) (*Result, error) {
	key := "checkout:" + userID.String() + ":" + idempotencyKey

	claimed, value, err := o.idempotency.Claim(ctx, key, o.config.PendingTTL)
	if err != nil {
		o.logger.Warn("idempotency store unavailable, running checkout unguarded",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		return o.run(ctx, userID)
	}
	if !claimed {
		if value == "" {
			return nil, ErrInProgress
		}
		orderID, err := uuid.Parse(value)
		if err != nil {
			return nil, checkout.Persistence(err)
		}
		return &Result{OrderID: orderID, Replayed: true}, nil
	}

	result, err := o.run(ctx, userID)

	// the outcome must be stored even if the caller has gone
	storeCtx := context.WithoutCancel(ctx)
	if err != nil {
		if rerr := o.idempotency.Release(storeCtx, key); rerr != nil {
			o.logger.Warn("failed to release idempotency key", zap.Error(rerr))
		}
		return nil, err
	}
	if cerr := o.idempotency.Complete(storeCtx, key, result.OrderID.String(), o.config.IdempotencyTTL); cerr != nil {
		o.logger.Warn("failed to store idempotency result", zap.Error(cerr))
	}
	return result, nil
}

// run places the order inside the "checkout" profiling region
func (o *Orchestrator) run(ctx context.Context, userID uuid.UUID) (result *Result, err error) {
	telemetry.ProfileOperation(ctx, "checkout", func(ctx context.Context) {
		result, err = o.place(ctx, userID)
	})
	return result, err
}

func (o *Orchestrator) place(ctx context.Context, userID uuid.UUID) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "checkout", telemetry.Stringer(telemetry.SpanAttrUserID, userID))
	defer span.End()

	attempt := checkout.NewAttempt(userID)

	var placed *order.Order
	err := o.carts.WithCart(ctx, userID, func(c *cart.Cart) error {
		if c.IsEmpty() {
			return attempt.Fail(checkout.EmptyCart())
		}

		if failure := o.validate(ctx, attempt, c); failure != nil {
			return attempt.Fail(failure)
		}

		o.advance(attempt, checkout.StateCommitting)
		ord, failure := o.commit(ctx, userID, c.Summary())
		if failure != nil {
			return attempt.Fail(failure)
		}
		if err := attempt.Succeed(ord.ID); err != nil {
			o.logger.Error("unexpected checkout transition", zap.Error(err))
		}
		placed = ord

		c.Clear()
		o.carts.ClearUser(context.WithoutCancel(ctx), userID)
		return nil
	})

	if err != nil {
		var failure *checkout.Error
		if !errors.As(err, &failure) {
			failure = attempt.Fail(checkout.Persistence(err))
		}
		span.SetAttributes(attribute.String(telemetry.SpanAttrReason, string(failure.Reason)))
		telemetry.RecordError(span, failure)
		return nil, o.finish(ctx, attempt, failure)
	}

	span.SetAttributes(telemetry.Stringer(telemetry.SpanAttrOrderID, placed.ID))
	telemetry.SetOK(span)
	o.finish(ctx, attempt, nil)
	return &Result{OrderID: placed.ID, Attempt: attempt}, nil
}

// validate checks every line against one batch read of the catalog. The
// first missing or short product fails the attempt.
func (o *Orchestrator) validate(ctx context.Context, attempt *checkout.Attempt, c *cart.Cart) *checkout.Error {
	o.advance(attempt, checkout.StateValidating)

	ctx, span := telemetry.StartSpan(ctx, "checkout.validate",
		attribute.Int(telemetry.SpanAttrLines, len(c.Lines())),
		attribute.Int(telemetry.SpanAttrQuantity, c.TotalQuantity()),
	)
	defer span.End()

	products, err := o.products.FindByIDs(ctx, c.ProductIDs())
	if err != nil {
		return checkout.Persistence(err)
	}
	index := catalog.IndexByID(products)

	for _, l := range c.Lines() {
		p, ok := index[l.ProductID]
		if !ok {
			return checkout.ProductNotFound(l.ProductID)
		}
		if !p.CanFulfil(l.Quantity) {
			return checkout.OutOfStock(l.ProductID)
		}
	}
	return nil
}

// commit places and stores the order. It is not interrupted by ctx cancellation.
func (o *Orchestrator) commit(ctx context.Context, userID uuid.UUID, summary cart.Summary) (*order.Order, *checkout.Error) {
	ord, err := order.Place(userID, summary)
	if err != nil {
		return nil, checkout.Persistence(err)
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.config.CommitTimeout)
	defer cancel()
	commitCtx, span := telemetry.StartSpan(commitCtx, "checkout.commit", telemetry.Stringer(telemetry.SpanAttrOrderID, ord.ID))
	defer span.End()

	start := time.Now()
	telemetry.ProfileOperation(commitCtx, "checkout.commit", func(commitCtx context.Context) {
		err = o.committer.Commit(commitCtx, ord)
	})
	if o.metrics != nil {
		o.metrics.RecordCommit(ctx, time.Since(start), err == nil)
	}
	telemetry.RecordError(span, err)
	if err != nil {
		var failure *checkout.Error
		if errors.As(err, &failure) {
			return nil, failure
		}
		return nil, checkout.Persistence(err)
	}
	return ord, nil
}

func (o *Orchestrator) advance(attempt *checkout.Attempt, to checkout.State) {
	if err := attempt.Advance(to); err != nil {
		o.logger.Error("unexpected checkout transition", zap.Error(err))
	}
}

// finish logs and records a terminal attempt. It returns failure so callers
// can return it directly; a nil failure yields a nil error.
func (o *Orchestrator) finish(ctx context.Context, attempt *checkout.Attempt, failure *checkout.Error) error {
	reason := ""
	if failure != nil {
		reason = string(failure.Reason)
	}
	if o.metrics != nil {
		o.metrics.RecordCheckout(context.WithoutCancel(ctx), string(attempt.State), reason)
	}

	fields := []zap.Field{
		zap.String("attempt_id", attempt.ID.String()),
		zap.String("user_id", attempt.UserID.String()),
		zap.String("state", string(attempt.State)),
		zap.Duration("duration", attempt.Duration()),
	}
	if failure == nil {
		o.logger.Info("checkout succeeded", append(fields, zap.String("order_id", attempt.OrderID.String()))...)
		return nil
	}

	fields = append(fields, zap.String("reason", reason), zap.String("kind", string(failure.Kind())))
	if failure.ProductID != uuid.Nil {
		fields = append(fields, zap.String("product_id", failure.ProductID.String()))
	}
	if failure.Kind() == checkout.KindPersistence {
		o.logger.Error("checkout failed", append(fields, zap.Error(failure))...)
	} else {
		o.logger.Info("checkout failed", fields...)
	}
	return failure
}
