package orders

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/KretovDmitry/ordermart/internal/models/client"
	"github.com/KretovDmitry/ordermart/internal/models/errs"
	"github.com/KretovDmitry/ordermart/internal/models/order"
	"github.com/shopspring/decimal"
)

// Lock in case of t.Parallel call.
type mockRepository struct {
	items []order.Order
	fail  bool
	mu    sync.RWMutex
}

var _ Repository = (*mockRepository)(nil)

var errStore = errors.New("don't panic!")

func (m *mockRepository) sorted(s order.Sort) []*order.Order {
	out := make([]*order.Order, 0, len(m.items))
	for i := range m.items {
		item := m.items[i]
		out = append(out, &item)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if s == order.ByID || out[i].DateOrder.Equal(out[j].DateOrder) {
			return out[i].ID < out[j].ID
		}
		return out[i].DateOrder.After(out[j].DateOrder)
	})
	return out
}

func (m *mockRepository) ListOrders(_ context.Context, s order.Sort, limit, offset int) ([]*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fail {
		return nil, errStore
	}
	all := m.sorted(s)
	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (m *mockRepository) CountOrders(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fail {
		return 0, errStore
	}
	return len(m.items), nil
}

func (m *mockRepository) ListOrdersByDateRange(_ context.Context, start, end time.Time) ([]*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fail {
		return nil, errStore
	}
	out := make([]*order.Order, 0)
	for _, o := range m.sorted(order.ByID) {
		if !o.DateOrder.Before(start) && o.DateOrder.Before(end) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockRepository) CreateOrder(_ context.Context, o *order.Order) (order.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return 0, errStore
	}
	var maxID order.ID
	for _, item := range m.items {
		maxID = max(maxID, item.ID)
	}
	stored := *o
	stored.ID = maxID + 1
	m.items = append(m.items, stored)
	return stored.ID, nil
}

func (m *mockRepository) DeleteOrder(_ context.Context, id order.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.items {
		if item.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return errs.ErrNotFound
}

func (m *mockRepository) SumTotal(ctx context.Context, start, end time.Time) (decimal.Decimal, error) {
	orders, err := m.ListOrdersByDateRange(ctx, start, end)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.Total)
	}
	return total, nil
}

func (m *mockRepository) count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

type mockDirectory struct {
	clients   []client.Client
	customers []client.ID
}

var _ ClientDirectory = (*mockDirectory)(nil)

func (m *mockDirectory) GetClientByID(_ context.Context, id client.ID) (*client.Client, error) {
	for _, c := range m.clients {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *mockDirectory) IsMemberOfGroup(_ context.Context, id client.ID, group string) (bool, error) {
	if group != "customers" {
		return false, nil
	}
	for _, member := range m.customers {
		if member == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockDirectory) ListMembersOfGroup(ctx context.Context, group string) ([]*client.Client, error) {
	members := make([]*client.Client, 0)
	for _, c := range m.clients {
		if ok, _ := m.IsMemberOfGroup(ctx, c.ID, group); ok {
			c := c
			members = append(members, &c)
		}
	}
	return members, nil
}

// Runs fn without a transaction.
type mockTxManager struct{}

func (mockTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
