package auth

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/KretovDmitry/ordermart/internal/models/client"
	"github.com/KretovDmitry/ordermart/internal/models/errs"
)

// Lock in case of t.Parallel call.
type mockRepository struct {
	items  []client.Client
	groups map[string][]client.ID
	mu     sync.RWMutex
}

var _ Repository = (*mockRepository)(nil)

func (m *mockRepository) GetClientByID(_ context.Context, id client.ID) (*client.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, item := range m.items {
		if item.ID == id {
			return &item, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *mockRepository) GetClientByUsername(_ context.Context, username string) (*client.Client, error) {
	if username == "panic" {
		return nil, errors.New("don't panic!")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, item := range m.items {
		if item.Username == username {
			return &item, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *mockRepository) IsMemberOfGroup(_ context.Context, id client.ID, group string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, member := range m.groups[group] {
		if member == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) ListMembersOfGroup(ctx context.Context, group string) ([]*client.Client, error) {
	m.mu.RLock()
	ids := append([]client.ID(nil), m.groups[group]...)
	m.mu.RUnlock()

	members := make([]*client.Client, 0, len(ids))
	for _, id := range ids {
		c, err := m.GetClientByID(ctx, id)
		if err != nil {
			return nil, err
		}
		members = append(members, c)
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].DisplayName() < members[j].DisplayName()
	})
	return members, nil
}

func (m *mockRepository) CreateClient(_ context.Context, c *client.Client) (client.ID, error) {
	if c.Username == "panic" {
		return 0, errors.New("don't panic!")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var maxID client.ID
	for _, item := range m.items {
		if item.Username == c.Username {
			return 0, errs.ErrDataConflict
		}
		maxID = max(maxID, item.ID)
	}
	stored := *c
	stored.ID = maxID + 1
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	m.items = append(m.items, stored)
	return stored.ID, nil
}

func (m *mockRepository) AddToGroup(_ context.Context, id client.ID, group string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groups == nil {
		m.groups = make(map[string][]client.ID)
	}
	for _, member := range m.groups[group] {
		if member == id {
			return errs.ErrDataConflict
		}
	}
	m.groups[group] = append(m.groups[group], id)
	return nil
}

func (m *mockRepository) ListClients(_ context.Context) ([]*client.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	clients := make([]*client.Client, 0, len(m.items))
	for i := range m.items {
		item := m.items[i]
		clients = append(clients, &item)
	}
	return clients, nil
}

// Runs fn without a transaction.
type mockTxManager struct{}

func (mockTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
