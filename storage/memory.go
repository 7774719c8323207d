package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/awantoch/loanscore/model"
)

// MemoryStorage keeps the most recent decisions in process. Once capacity is
// reached the oldest entry is evicted.
type MemoryStorage struct {
	mu        sync.Mutex
	capacity  int
	order     []uuid.UUID
	decisions map[uuid.UUID]*model.Decision
}

var _ Storage = (*MemoryStorage)(nil)

func NewMemoryStorage(capacity int) *MemoryStorage {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryStorage{
		capacity:  capacity,
		decisions: make(map[uuid.UUID]*model.Decision),
	}
}

func (m *MemoryStorage) SaveDecision(ctx context.Context, d *model.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.decisions[d.ID]; !ok {
		m.order = append(m.order, d.ID)
	}
	m.decisions[d.ID] = d
	for len(m.order) > m.capacity {
		delete(m.decisions, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

func (m *MemoryStorage) GetDecision(ctx context.Context, id uuid.UUID) (*model.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decisions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *MemoryStorage) ListDecisions(ctx context.Context, limit int) ([]*model.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = clampLimit(limit)
	out := make([]*model.Decision, 0, min(limit, len(m.order)))
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.decisions[m.order[i]])
	}
	return out, nil
}

func (m *MemoryStorage) DeleteDecision(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.decisions[id]; !ok {
		return nil
	}
	delete(m.decisions, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}
