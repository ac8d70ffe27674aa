package cart

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/catalog"
	"github.com/storefront/backend/internal/domain/shared"
)

// SyncMode selects what happens to a cart record write that fails
type SyncMode string

const (
	// SyncModeAsync logs the failure and forgets the write
	SyncModeAsync SyncMode = "async"
	// SyncModeRetry parks the write and retries it with backoff
	SyncModeRetry SyncMode = "retry"
)

// SyncMetrics receives cart write failures
type SyncMetrics interface {
	RecordCartSyncFailure(ctx context.Context, op string, dead bool)
}

// SynchronizerConfig configures a Synchronizer
type SynchronizerConfig struct {
	Mode          SyncMode
	WriteTimeout  time.Duration
	MaxRetries    int
	RetryInterval time.Duration
}

// DefaultSynchronizerConfig returns the defaults used when config leaves values unset
func DefaultSynchronizerConfig() SynchronizerConfig {
	return SynchronizerConfig{
		Mode:          SyncModeAsync,
		WriteTimeout:  5 * time.Second,
		MaxRetries:    shared.DefaultMaxRetries,
		RetryInterval: 500 * time.Millisecond,
	}
}

type recordKey struct {
	userID    uuid.UUID
	productID uuid.UUID
}

// pendingWrite is a failed write waiting in the retry queue
type pendingWrite struct {
	change   cart.Change
	seq      uint64
	attempts int
	nextAt   time.Time
}

// userWrites tracks in-flight writes of one user; done closes when n drops to zero
type userWrites struct {
	n    int
	done chan struct{}
}

// Synchronizer mirrors cart changes to the cart record store in the
// background. Callers never wait for a write and never see its error.
type Synchronizer struct {
	records  cart.RecordRepository
	products catalog.ProductReader
	config   SynchronizerConfig
	logger   *zap.Logger
	metrics  SyncMetrics

	seq      atomic.Uint64
	mu       sync.Mutex
	inflight map[uuid.UUID]*userWrites
	retries  map[recordKey]*pendingWrite
	closed   bool

	writes sync.WaitGroup
	worker sync.WaitGroup
	stop   chan struct{}
	group  singleflight.Group
	now    func() time.Time
}

// SynchronizerOption configures optional Synchronizer dependencies
type SynchronizerOption func(*Synchronizer)

// WithSyncMetrics reports write failures to m
func WithSyncMetrics(m SyncMetrics) SynchronizerOption {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

// NewSynchronizer creates a Synchronizer. In retry mode a background worker
// is started; Close stops it.
func NewSynchronizer(
	records cart.RecordRepository,
	products catalog.ProductReader,
	config SynchronizerConfig,
	logger *zap.Logger,
	opts ...SynchronizerOption,
) *Synchronizer {
	defaults := DefaultSynchronizerConfig()
	if config.Mode == "" {
		config.Mode = defaults.Mode
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = defaults.RetryInterval
	}

	s := &Synchronizer{
		records:  records,
		products: products,
		config:   config,
		logger:   logger.Named("cart_sync"),
		inflight: make(map[uuid.UUID]*userWrites),
		retries:  make(map[recordKey]*pendingWrite),
		stop:     make(chan struct{}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if config.Mode == SyncModeRetry {
		s.worker.Add(1)
		go s.retryLoop()
	}
	return s
}

// Apply mirrors change for userID without blocking. Quantity > 0 upserts the
// record, anything else deletes it.
func (s *Synchronizer) Apply(userID uuid.UUID, change cart.Change) {
	seq := s.seq.Add(1)
	if !s.begin(userID) {
		s.logger.Warn("synchronizer closed, dropping cart write",
			zap.String("user_id", userID.String()),
			zap.String("product_id", change.ProductID.String()),
		)
		return
	}

	go func() {
		defer s.end(userID)
		s.attempt(userID, change, seq, 0)
	}()
}

// ApplyAll mirrors every change in order of the slice
func (s *Synchronizer) ApplyAll(userID uuid.UUID, changes []cart.Change) {
	for _, c := range changes {
		s.Apply(userID, c)
	}
}

// attempt performs one write and parks it for retry on failure
func (s *Synchronizer) attempt(userID uuid.UUID, change cart.Change, seq uint64, attempts int) {
	err := s.write(userID, change)
	key := recordKey{userID: userID, productID: change.ProductID}

	if err == nil {
		s.mu.Lock()
		// an older parked write must not overwrite this one later
		if p, ok := s.retries[key]; ok && p.seq <= seq {
			delete(s.retries, key)
		}
		s.mu.Unlock()
		return
	}

	op := "upsert"
	if change.Removed() {
		op = "delete"
	}
	fields := []zap.Field{
		zap.String("user_id", userID.String()),
		zap.String("product_id", change.ProductID.String()),
		zap.Int("quantity", change.Quantity),
		zap.String("op", op),
		zap.Int("attempt", attempts+1),
		zap.Error(err),
	}

	if s.config.Mode != SyncModeRetry {
		s.logger.Warn("cart write failed", fields...)
		s.recordFailure(op, false)
		return
	}

	attempts++
	if attempts > s.config.MaxRetries {
		s.logger.Error("cart write dropped after retries", fields...)
		s.recordFailure(op, true)
		return
	}

	s.logger.Warn("cart write failed, will retry", fields...)
	s.recordFailure(op, false)

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.retries[key]; ok && p.seq > seq {
		return
	}
	s.retries[key] = &pendingWrite{
		change:   change,
		seq:      seq,
		attempts: attempts,
		nextAt:   s.now().Add(shared.Backoff(attempts)),
	}
}

func (s *Synchronizer) write(userID uuid.UUID, change cart.Change) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	defer cancel()

	if change.Removed() {
		return s.records.Delete(ctx, userID, change.ProductID)
	}
	return s.records.Upsert(ctx, cart.Record{
		UserID:    userID,
		ProductID: change.ProductID,
		Quantity:  change.Quantity,
		UpdatedAt: s.now(),
	})
}

func (s *Synchronizer) recordFailure(op string, dead bool) {
	if s.metrics != nil {
		s.metrics.RecordCartSyncFailure(context.Background(), op, dead)
	}
}

func (s *Synchronizer) retryLoop() {
	defer s.worker.Done()

	ticker := time.NewTicker(s.config.RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.RetryDue()
		}
	}
}

// RetryDue starts every parked write whose backoff has elapsed and returns
// how many were started
func (s *Synchronizer) RetryDue() int {
	now := s.now()

	s.mu.Lock()
	due := make(map[recordKey]*pendingWrite)
	for key, p := range s.retries {
		if !p.nextAt.After(now) {
			due[key] = p
			delete(s.retries, key)
		}
	}
	s.mu.Unlock()

	started := 0
	for key, p := range due {
		if !s.begin(key.userID) {
			break
		}
		started++
		go func(key recordKey, p *pendingWrite) {
			defer s.end(key.userID)
			s.attempt(key.userID, p.change, p.seq, p.attempts)
		}(key, p)
	}
	return started
}

// PendingRetries returns the number of writes parked for retry
func (s *Synchronizer) PendingRetries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.retries)
}

// Load reads the user's persisted records and joins them with the current
// catalog. Records of deleted products are skipped. Writes of the user that
// are in flight when Load starts land before the records are read.
// Concurrent loads for the same user share one query, which runs detached
// from any single caller; each caller stops waiting when its own ctx ends.
func (s *Synchronizer) Load(ctx context.Context, userID uuid.UUID) ([]cart.Line, error) {
	flight := s.group.DoChan(userID.String(), func() (any, error) {
		return s.load(context.WithoutCancel(ctx), userID)
	})

	select {
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]cart.Line), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Synchronizer) load(ctx context.Context, userID uuid.UUID) ([]cart.Line, error) {
	s.settle(ctx, userID)

	ctx, cancel := context.WithTimeout(ctx, s.config.WriteTimeout)
	defer cancel()

	records, err := s.records.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart records: %w", err)
	}
	if len(records) == 0 {
		return []cart.Line{}, nil
	}

	ids := make([]uuid.UUID, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load cart products: %w", err)
	}
	index := catalog.IndexByID(products)

	lines := make([]cart.Line, 0, len(records))
	for _, r := range records {
		p, ok := index[r.ProductID]
		if !ok {
			s.logger.Info("skipping cart record of deleted product",
				zap.String("user_id", userID.String()),
				zap.String("product_id", r.ProductID.String()),
			)
			continue
		}
		lines = append(lines, cart.Line{
			ProductID: p.ID,
			Quantity:  r.Quantity,
			UnitPrice: p.Price,
			Name:      p.Name,
			ImageURL:  p.ImageURL,
		})
	}
	return lines, nil
}

// ClearUser drops parked writes of the user, waits for in-flight ones and
// then deletes every record of the user. Failures are logged.
func (s *Synchronizer) ClearUser(ctx context.Context, userID uuid.UUID) {
	s.mu.Lock()
	for key := range s.retries {
		if key.userID == userID {
			delete(s.retries, key)
		}
	}
	s.mu.Unlock()

	s.settle(ctx, userID)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.WriteTimeout)
	defer cancel()
	if err := s.records.DeleteAllForUser(writeCtx, userID); err != nil {
		s.logger.Warn("failed to clear cart records",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		s.recordFailure("clear", false)
	}
}

// Close stops the retry worker and waits for in-flight writes until ctx is
// done. Parked retries are dropped.
func (s *Synchronizer) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	dropped := len(s.retries)
	s.retries = make(map[recordKey]*pendingWrite)
	s.mu.Unlock()

	close(s.stop)
	s.worker.Wait()

	done := make(chan struct{})
	go func() {
		s.writes.Wait()
		close(done)
	}()

	select {
	case <-done:
		if dropped > 0 {
			s.logger.Warn("dropped parked cart writes on close", zap.Int("count", dropped))
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settle waits for the writes of userID that are in flight now, at most
// WriteTimeout or until ctx ends
func (s *Synchronizer) settle(ctx context.Context, userID uuid.UUID) {
	s.mu.Lock()
	w := s.inflight[userID]
	s.mu.Unlock()
	if w == nil {
		return
	}

	timer := time.NewTimer(s.config.WriteTimeout)
	defer timer.Stop()

	var reason error
	select {
	case <-w.done:
		return
	case <-timer.C:
		reason = context.DeadlineExceeded
	case <-ctx.Done():
		reason = ctx.Err()
	}
	s.logger.Warn("gave up waiting for in-flight cart writes",
		zap.String("user_id", userID.String()),
		zap.Error(reason),
	)
}

func (s *Synchronizer) begin(userID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}

	w, ok := s.inflight[userID]
	if !ok {
		w = &userWrites{done: make(chan struct{})}
		s.inflight[userID] = w
	}
	w.n++
	s.writes.Add(1)
	return true
}

func (s *Synchronizer) end(userID uuid.UUID) {
	s.mu.Lock()
	w := s.inflight[userID]
	w.n--
	if w.n == 0 {
		close(w.done)
		delete(s.inflight, userID)
	}
	s.mu.Unlock()
	s.writes.Done()
}
