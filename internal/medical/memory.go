package medical

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) FindByRegNumber(_ context.Context, regNumber string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.records[regNumber]
	if !ok {
		return nil, ErrMedicalNotFound
	}
	return clone(record), nil
}

func (m *MemoryStore) Upsert(_ context.Context, regNumber string, u Update) (*Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	record, ok := m.records[regNumber]
	if !ok {
		record = NewRecord(regNumber, now)
	} else {
		record = clone(record)
	}
	ApplyUpdate(record, u, now)
	m.records[regNumber] = record
	return clone(record), !ok, nil
}

func (m *MemoryStore) UpdateSection(_ context.Context, regNumber, section string, data json.RawMessage) (*Record, error) {
	if !ValidSection(section) {
		return nil, ErrInvalidSection
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[regNumber]
	if !ok {
		return nil, ErrMedicalNotFound
	}
	record = clone(record)
	if err := MergeSection(record, section, data, m.now()); err != nil {
		return nil, err
	}
	m.records[regNumber] = record
	return clone(record), nil
}

func (m *MemoryStore) Delete(_ context.Context, regNumber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[regNumber]; !ok {
		return ErrMedicalNotFound
	}
	delete(m.records, regNumber)
	return nil
}

func (m *MemoryStore) Summary(_ context.Context, filter SummaryFilter) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := make([]Summary, 0, len(m.records))
	for _, record := range m.records {
		if filter.Matches(record) {
			summaries = append(summaries, SummaryOf(record))
		}
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func clone(r *Record) *Record {
	c := *r
	if r.AdmissionDateTime != nil {
		d := *r.AdmissionDateTime
		c.AdmissionDateTime = &d
	}
	return &c
}
