package store

import (
	"context"
	"sort"
	"sync"

	"qsync/internal/risk/models"
	id "qsync/pkg/domain"
	"qsync/pkg/platform/sentinel"
)

type InMemory struct {
	mu    sync.RWMutex
	risks map[id.RiskID]*models.Risk
}

func NewInMemory() *InMemory {
	return &InMemory{risks: make(map[id.RiskID]*models.Risk)}
}

func (s *InMemory) Create(_ context.Context, r *models.Risk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.risks[r.ID]; ok {
		return sentinel.ErrConflict
	}
	s.risks[r.ID] = clone(r)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, riskID id.RiskID) (*models.Risk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.risks[riskID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(r), nil
}

func (s *InMemory) FindForUpdate(ctx context.Context, riskID id.RiskID) (*models.Risk, error) {
	return s.FindByID(ctx, riskID)
}

func (s *InMemory) List(_ context.Context) ([]*models.Risk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Risk, 0, len(s.risks))
	for _, r := range s.risks {
		out = append(out, clone(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) Update(_ context.Context, r *models.Risk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.risks[r.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !r.UpdatedAt.After(existing.UpdatedAt) {
		return sentinel.ErrStale
	}
	s.risks[r.ID] = clone(r)
	return nil
}

func (s *InMemory) Delete(_ context.Context, riskID id.RiskID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.risks[riskID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.risks, riskID)
	return nil
}

// clone copies the residual pointers so stored scores are never shared.
func clone(r *models.Risk) *models.Risk {
	cp := *r
	if r.Score.ResidualCxL != nil {
		v := *r.Score.ResidualCxL
		cp.Score.ResidualCxL = &v
	}
	if r.Score.ResidualScore != nil {
		v := *r.Score.ResidualScore
		cp.Score.ResidualScore = &v
	}
	if r.Score.ResidualLevel != nil {
		v := *r.Score.ResidualLevel
		cp.Score.ResidualLevel = &v
	}
	return &cp
}
