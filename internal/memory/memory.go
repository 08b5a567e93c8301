// Package memory is an in-process implementation of ports.Store, used for
// development and tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"caixinhas/internal/core"
)

type Store struct {
	mu          sync.Mutex
	nextID      int64
	savings     map[int64]core.Saving
	projections map[int64]core.ProjectionSnapshot
	rates       []core.RateSnapshot
	now         func() time.Time
}

func New() *Store {
	return &Store{
		nextID:      1,
		savings:     make(map[int64]core.Saving),
		projections: make(map[int64]core.ProjectionSnapshot),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// NewWithSavings returns a store seeded with the given caixinhas, which are
// validated and assigned fresh IDs.
func NewWithSavings(seed ...core.Saving) (*Store, error) {
	s := New()
	for _, sv := range seed {
		if _, err := s.CreateSaving(context.Background(), sv); err != nil {
			return nil, fmt.Errorf("seed %q: %w", sv.Description, err)
		}
	}
	return s, nil
}

func (s *Store) CreateSaving(_ context.Context, sv core.Saving) (core.Saving, error) {
	sv.Normalize()
	if err := sv.Validate(); err != nil {
		return core.Saving{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sv.ID = s.nextID
	sv.Version = 1
	sv.CreatedAt = now
	sv.UpdatedAt = now
	s.nextID++
	s.savings[sv.ID] = sv
	return sv, nil
}

func (s *Store) UpdateSaving(_ context.Context, sv core.Saving) (core.Saving, error) {
	sv.Normalize()
	if err := sv.Validate(); err != nil {
		return core.Saving{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.savings[sv.ID]
	if !ok {
		return core.Saving{}, fmt.Errorf("saving %d: %w", sv.ID, core.ErrNotFound)
	}
	sv.CreatedAt = cur.CreatedAt
	sv.UpdatedAt = s.now()
	sv.Version = cur.Version + 1
	s.savings[sv.ID] = sv
	return sv, nil
}

func (s *Store) DeleteSaving(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.savings[id]; !ok {
		return fmt.Errorf("saving %d: %w", id, core.ErrNotFound)
	}
	delete(s.savings, id)
	delete(s.projections, id)
	return nil
}

func (s *Store) GetSaving(_ context.Context, id int64) (core.Saving, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sv, ok := s.savings[id]
	if !ok {
		return core.Saving{}, fmt.Errorf("saving %d: %w", id, core.ErrNotFound)
	}
	return sv, nil
}

func (s *Store) ListSavings(_ context.Context) ([]core.Saving, error) {
	s.mu.Lock()
	out := make([]core.Saving, 0, len(s.savings))
	for _, sv := range s.savings {
		out = append(out, sv)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b core.Saving) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// SaveProjection keeps the snapshot unless a newer version is already stored.
func (s *Store) SaveProjection(_ context.Context, p core.ProjectionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.savings[p.SavingID]; !ok {
		return fmt.Errorf("saving %d: %w", p.SavingID, core.ErrNotFound)
	}
	if cur, ok := s.projections[p.SavingID]; ok && cur.Version > p.Version {
		return nil
	}
	s.projections[p.SavingID] = p
	return nil
}

func (s *Store) LatestProjection(_ context.Context, savingID int64) (core.ProjectionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projections[savingID]
	if !ok {
		return core.ProjectionSnapshot{}, fmt.Errorf("projection for saving %d: %w", savingID, core.ErrNotFound)
	}
	return p, nil
}

func (s *Store) RecordRates(_ context.Context, r core.RateSnapshot) (core.RateSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = int64(len(s.rates) + 1)
	if r.FetchedAt.IsZero() {
		r.FetchedAt = s.now()
	}
	s.rates = append(s.rates, r)
	return r, nil
}

func (s *Store) LatestRates(_ context.Context) (core.RateSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.rates) == 0 {
		return core.RateSnapshot{}, fmt.Errorf("rate history: %w", core.ErrNotFound)
	}
	return s.rates[len(s.rates)-1], nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
