package cart

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront/backend/internal/domain/cart"
	"github.com/storefront/backend/internal/domain/catalog"
)

var errStoreDown = errors.New("store down")

type recordKeyT struct{ user, product uuid.UUID }

// memRecords is an in-memory cart.RecordRepository with failure injection
type memRecords struct {
	mu        sync.Mutex
	records   map[recordKeyT]cart.Record
	failNext  int
	gate      chan struct{}
	loads     int
	loadGate  chan struct{}
	clears    int
	deletions int
}

func newMemRecords() *memRecords {
	return &memRecords{records: make(map[recordKeyT]cart.Record)}
}

func (m *memRecords) fail() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext > 0 {
		m.failNext--
		return errStoreDown
	}
	return nil
}

func (m *memRecords) setFailNext(n int) {
	m.mu.Lock()
	m.failNext = n
	m.mu.Unlock()
}

func (m *memRecords) Upsert(ctx context.Context, r cart.Record) error {
	if m.gate != nil {
		<-m.gate
	}
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[recordKeyT{r.UserID, r.ProductID}] = r
	return nil
}

func (m *memRecords) Delete(ctx context.Context, userID, productID uuid.UUID) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletions++
	delete(m.records, recordKeyT{userID, productID})
	return nil
}

func (m *memRecords) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	if err := m.fail(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	for k := range m.records {
		if k.user == userID {
			delete(m.records, k)
		}
	}
	return nil
}

func (m *memRecords) FindByUser(ctx context.Context, userID uuid.UUID) ([]cart.Record, error) {
	m.mu.Lock()
	m.loads++
	gate := m.loadGate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err := m.fail(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]cart.Record, 0)
	for k, r := range m.records {
		if k.user == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (m *memRecords) get(userID, productID uuid.UUID) (cart.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[recordKeyT{userID, productID}]
	return r, ok
}

func (m *memRecords) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// memProducts is an in-memory catalog.ProductReader
type memProducts struct {
	mu       sync.Mutex
	products map[uuid.UUID]*catalog.Product
}

func newMemProducts(products ...*catalog.Product) *memProducts {
	m := &memProducts{products: make(map[uuid.UUID]*catalog.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *memProducts) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*catalog.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProducts) remove(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
}

func product(name, price string, stock int) *catalog.Product {
	p, err := catalog.NewProduct(name, decimal.RequireFromString(price), stock)
	if err != nil {
		panic(err)
	}
	return p
}

type countingMetrics struct {
	mu    sync.Mutex
	fails int
	dead  int
}

func (m *countingMetrics) RecordCartSyncFailure(ctx context.Context, op string, dead bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dead {
		m.dead++
	} else {
		m.fails++
	}
}

func (m *countingMetrics) counts() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fails, m.dead
}
