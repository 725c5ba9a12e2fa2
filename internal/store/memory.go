// Package store provides the record.Store implementations: a Postgres
// backend for production and a concurrency-safe in-memory backend used by
// tests and local development.
package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/guanacaste-labs/climatrack/internal/record"
)

// Memory is an in-memory record.Store. It mirrors the Postgres backend's
// ordering and pagination semantics exactly.
type Memory struct {
	mu       sync.RWMutex
	nextID   int64
	records  map[int64][]record.Record // keyed by subject id
	subjects []record.Subject
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		nextID:  1,
		records: make(map[int64][]record.Record),
	}
}

// AddSubject registers a subject. Registration is an external flow in
// production; tests use this to seed the store.
func (m *Memory) AddSubject(s record.Subject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, s)
}

// Append implements record.Store.
func (m *Memory) Append(ctx context.Context, subjectID int64, kind string, payload json.RawMessage) (record.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := record.Record{
		ID:        m.nextID,
		SubjectID: subjectID,
		Kind:      kind,
		Payload:   append(json.RawMessage(nil), payload...),
		Timestamp: time.Now().UTC(),
	}
	m.nextID++
	m.records[subjectID] = append(m.records[subjectID], r)
	return r, nil
}

// Latest implements record.Store.
func (m *Memory) Latest(ctx context.Context, subjectID int64, kind string) (record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *record.Record
	for i := range m.records[subjectID] {
		r := &m.records[subjectID][i]
		if r.Kind != kind {
			continue
		}
		if best == nil || r.Timestamp.After(best.Timestamp) ||
			(r.Timestamp.Equal(best.Timestamp) && r.ID > best.ID) {
			best = r
		}
	}
	if best == nil {
		return record.Record{}, record.ErrNotFound
	}
	return *best, nil
}

// Query implements record.Store.
func (m *Memory) Query(ctx context.Context, subjectID int64, f record.Filter) (record.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []record.Record
	for _, r := range m.records[subjectID] {
		if f.Kind != "" && r.Kind != f.Kind {
			continue
		}
		if f.Start != nil && r.Timestamp.Before(*f.Start) {
			continue
		}
		if f.End != nil && r.Timestamp.After(*f.End) {
			continue
		}
		matched = append(matched, r)
	}

	// Most recent first, ties broken by id.
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	page := record.Page{
		Total:     total,
		PageCount: record.PageCount(total, f.PerPage),
		Page:      f.Page,
		PerPage:   f.PerPage,
		Records:   []record.Record{},
	}

	offset := (f.Page - 1) * f.PerPage
	if offset < total {
		end := offset + f.PerPage
		if end > total {
			end = total
		}
		page.Records = append(page.Records, matched[offset:end]...)
	}
	return page, nil
}

// Delete implements record.Store. A record owned by another subject is
// reported as not found.
func (m *Memory) Delete(ctx context.Context, subjectID int64, recordID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	recs := m.records[subjectID]
	for i, r := range recs {
		if r.ID == recordID {
			m.records[subjectID] = append(recs[:i], recs[i+1:]...)
			return nil
		}
	}
	return record.ErrNotFound
}

// ListSubjects implements record.Store.
func (m *Memory) ListSubjects(ctx context.Context) ([]record.Subject, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]record.Subject, len(m.subjects))
	copy(out, m.subjects)
	return out, nil
}
