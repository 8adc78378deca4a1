package store

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jwalitptl/attend-api/internal/model"
	apperrors "github.com/jwalitptl/attend-api/pkg/errors"
)

// JobStore tracks dispatch jobs and enforces the dedup invariant: at most
// one non-terminal job per (group id, fact id) pair.
type JobStore struct {
	mu     sync.RWMutex
	jobs   map[uuid.UUID]*model.DispatchJob
	active map[string]uuid.UUID // group|fact -> job id
}

func NewJobStore() *JobStore {
	return &JobStore{
		jobs:   make(map[uuid.UUID]*model.DispatchJob),
		active: make(map[string]uuid.UUID),
	}
}

func pairKey(groupID, factID string) string {
	return groupID + "|" + factID
}

// HasActive reports whether a non-terminal job exists for (group, fact).
func (s *JobStore) HasActive(groupID, factID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.active[pairKey(groupID, factID)]
	return ok
}

// Create records a new job. Rejects a second non-terminal job for the same
// (group, fact) pair.
func (s *JobStore) Create(job *model.DispatchJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(job.GroupID, job.FactID)
	if _, exists := s.active[key]; exists && !job.Outcome.Terminal() {
		return apperrors.NewBadRequest("active job already exists for group and fact", nil)
	}

	cp := *job
	s.jobs[job.ID] = &cp
	if !job.Outcome.Terminal() {
		s.active[key] = job.ID
	}
	return nil
}

// Update stores the job's current state and maintains the active index.
func (s *JobStore) Update(job *model.DispatchJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return apperrors.NewNotFound("dispatch job", nil)
	}

	cp := *job
	s.jobs[job.ID] = &cp
	if job.Outcome.Terminal() {
		key := pairKey(job.GroupID, job.FactID)
		if s.active[key] == job.ID {
			delete(s.active, key)
		}
	}
	return nil
}

func (s *JobStore) Get(id uuid.UUID) (model.DispatchJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return model.DispatchJob{}, apperrors.NewNotFound("dispatch job", nil)
	}
	return *job, nil
}

func (s *JobStore) List() []model.DispatchJob {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.DispatchJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	return out
}
