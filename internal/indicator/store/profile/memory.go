package profile

import (
	"context"
	"sort"
	"sync"

	"qsync/internal/indicator/models"
	id "qsync/pkg/domain"
	"qsync/pkg/platform/sentinel"
)

// InMemory is a map-backed profile store. Records are copied in and out so
// callers never share memory with the store.
type InMemory struct {
	mu       sync.RWMutex
	profiles map[id.ProfileID]*models.Profile
}

func NewInMemory() *InMemory {
	return &InMemory{profiles: make(map[id.ProfileID]*models.Profile)}
}

func (s *InMemory) Create(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.profiles[p.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *p
	s.profiles[p.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, profileID id.ProfileID) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[profileID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// FindForUpdate is FindByID; the in-memory transaction runner already
// serializes mutations.
func (s *InMemory) FindForUpdate(ctx context.Context, profileID id.ProfileID) (*models.Profile, error) {
	return s.FindByID(ctx, profileID)
}

func (s *InMemory) List(_ context.Context) ([]*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Update replaces the stored profile. The write must carry a newer UpdatedAt.
func (s *InMemory) Update(_ context.Context, p *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.profiles[p.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !p.UpdatedAt.After(existing.UpdatedAt) {
		return sentinel.ErrStale
	}
	cp := *p
	s.profiles[p.ID] = &cp
	return nil
}

func (s *InMemory) Delete(_ context.Context, profileID id.ProfileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profileID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.profiles, profileID)
	return nil
}
