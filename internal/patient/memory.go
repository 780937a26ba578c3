package patient

import (
	"context"
	"sync"
)

// MemoryStore keeps patients in process memory. It backs the "memory" storage
// backend and the service tests.
type MemoryStore struct {
	mu       sync.RWMutex
	patients map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{patients: make(map[string]Record)}
}

func (m *MemoryStore) Create(_ context.Context, record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.patients[record.RegNumber]; ok {
		return ErrDuplicateRegNumber
	}
	m.patients[record.RegNumber] = *record
	return nil
}

func (m *MemoryStore) FindByRegNumber(_ context.Context, regNumber string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.patients[regNumber]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &record, nil
}

func (m *MemoryStore) Exists(_ context.Context, regNumber string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.patients[regNumber]
	return ok, nil
}

func (m *MemoryStore) Update(_ context.Context, regNumber string, fields Fields) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.patients[regNumber]
	if !ok {
		return nil, ErrPatientNotFound
	}
	record.Fields.Overlay(fields)
	m.patients[regNumber] = record
	return &record, nil
}

// Len returns the number of stored patients.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.patients)
}
