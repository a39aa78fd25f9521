package workflow

import (
	"context"
	"encoding/json"
	"sync"
)

// memoryStageStore keeps stage data in-process. Entries are stored as JSON
// so Get always hands out an independent copy, same codec as the redis store.
type memoryStageStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStageStore returns a StageStore for offline use and tests.
func NewMemoryStageStore() StageStore {
	return &memoryStageStore{data: map[string][]byte{}}
}

func (m *memoryStageStore) Get(_ context.Context, key string) (*StageData, error) {
	m.mu.RLock()
	buf, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var sd StageData
	if err := json.Unmarshal(buf, &sd); err != nil {
		return nil, err
	}
	return &sd, nil
}

func (m *memoryStageStore) Put(_ context.Context, key string, data *StageData) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = buf
	m.mu.Unlock()
	return nil
}

func (m *memoryStageStore) Clear(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}
