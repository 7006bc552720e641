package store

import (
	"context"
	"sync"

	"github.com/Farras8/cek-pohon-app/internal/model"
)

// Memory is a simple in-memory store used when no database is configured.
type Memory struct {
	mu       sync.Mutex
	uploaded []model.TreeRecord
	missing  []model.TreeRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) BeginReplace(ctx context.Context) (Replacement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memReplacement{m: m}, nil
}

func (m *Memory) ListUploaded(ctx context.Context) ([]model.TreeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.TreeRecord(nil), m.uploaded...), nil
}

func (m *Memory) ListMissing(ctx context.Context) ([]model.TreeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.TreeRecord(nil), m.missing...), nil
}

func (m *Memory) CountUploaded(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploaded), nil
}

func (m *Memory) DeleteMissing(ctx context.Context, assetIDs []string) (int, error) {
	drop := make(map[string]struct{}, len(assetIDs))
	for _, id := range assetIDs {
		drop[id] = struct{}{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.missing[:0]
	removed := 0
	for _, r := range m.missing {
		if _, ok := drop[r.AssetID]; ok {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.missing = kept
	return removed, nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploaded, m.missing = nil, nil
	return nil
}

func (m *Memory) Close() error { return nil }

// memReplacement stages rows privately and swaps them in on Commit.
type memReplacement struct {
	m        *Memory
	uploaded []model.TreeRecord
	missing  []model.TreeRecord
	done     bool
}

func (r *memReplacement) PutUploaded(ctx context.Context, recs []model.TreeRecord) error {
	if r.done {
		return ErrReplacementDone
	}
	r.uploaded = append(r.uploaded, recs...)
	return ctx.Err()
}

func (r *memReplacement) PutMissing(ctx context.Context, recs []model.TreeRecord) error {
	if r.done {
		return ErrReplacementDone
	}
	r.missing = append(r.missing, recs...)
	return ctx.Err()
}

func (r *memReplacement) Commit() error {
	if r.done {
		return ErrReplacementDone
	}
	r.done = true
	r.m.mu.Lock()
	r.m.uploaded, r.m.missing = r.uploaded, r.missing
	r.m.mu.Unlock()
	return nil
}

func (r *memReplacement) Rollback() error {
	if r.done {
		return nil
	}
	r.done = true
	r.uploaded, r.missing = nil, nil
	return nil
}
