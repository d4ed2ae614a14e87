package store

import (
	"sort"
	"sync"

	"github.com/VaibhavMttl21/ItemManager/pkg/domain"
)

// MemoryStore keeps items in-process. Used by tests as a Store substitute.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]domain.Item
	order []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]domain.Item)}
}

// SaveItem stores an item record and tracks insertion order.
func (m *MemoryStore) SaveItem(item domain.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[item.ID]; !exists {
		m.order = append(m.order, item.ID)
	}
	m.items[item.ID] = item
	return nil
}

// ListItems returns items newest first, matching the SQL ordering contract.
func (m *MemoryStore) ListItems() ([]domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Item, 0, len(m.order))
	for _, id := range m.order {
		if item, ok := m.items[id]; ok {
			res = append(res, item)
		}
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// GetItem retrieves an item by ID.
func (m *MemoryStore) GetItem(id string) (domain.Item, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	return item, ok, nil
}
