package submission

import (
	"context"
	"sort"
	"sync"

	"qsync/internal/indicator/models"
	id "qsync/pkg/domain"
	"qsync/pkg/platform/sentinel"
)

type InMemory struct {
	mu          sync.RWMutex
	submissions map[id.SubmissionID]*models.Submission
}

func NewInMemory() *InMemory {
	return &InMemory{submissions: make(map[id.SubmissionID]*models.Submission)}
}

func (s *InMemory) Create(_ context.Context, sub *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.submissions[sub.ID]; exists {
		return sentinel.ErrConflict
	}
	s.submissions[sub.ID] = clone(sub)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, submissionID id.SubmissionID) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[submissionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(sub), nil
}

func (s *InMemory) FindForUpdate(ctx context.Context, submissionID id.SubmissionID) (*models.Submission, error) {
	return s.FindByID(ctx, submissionID)
}

func (s *InMemory) List(_ context.Context, filter models.SubmissionFilter) ([]*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Submission, 0, len(s.submissions))
	for _, sub := range s.submissions {
		if filter.ProfileID != nil && sub.ProfileID != *filter.ProfileID {
			continue
		}
		out = append(out, clone(sub))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemory) CountByProfile(_ context.Context, profileID id.ProfileID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, sub := range s.submissions {
		if sub.ProfileID == profileID {
			n++
		}
	}
	return n, nil
}

// CountByProfiles returns submission counts keyed by profile. Profiles with no
// submissions are absent from the map.
func (s *InMemory) CountByProfiles(_ context.Context, profileIDs []id.ProfileID) (map[id.ProfileID]int, error) {
	want := make(map[id.ProfileID]struct{}, len(profileIDs))
	for _, pid := range profileIDs {
		want[pid] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[id.ProfileID]int)
	for _, sub := range s.submissions {
		if _, ok := want[sub.ProfileID]; ok {
			counts[sub.ProfileID]++
		}
	}
	return counts, nil
}

func (s *InMemory) Update(_ context.Context, sub *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.submissions[sub.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !sub.UpdatedAt.After(existing.UpdatedAt) {
		return sentinel.ErrStale
	}
	s.submissions[sub.ID] = clone(sub)
	return nil
}

func (s *InMemory) Delete(_ context.Context, submissionID id.SubmissionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[submissionID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.submissions, submissionID)
	return nil
}

func clone(sub *models.Submission) *models.Submission {
	cp := *sub
	if sub.Achievement != nil {
		v := *sub.Achievement
		cp.Achievement = &v
	}
	return &cp
}
