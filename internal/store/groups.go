package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/attend-api/internal/model"
	apperrors "github.com/jwalitptl/attend-api/pkg/errors"
)

// GroupStore is the owned, keyed store for messaging groups. Administrative
// single writer; readers get snapshot copies.
type GroupStore struct {
	mu     sync.RWMutex
	groups map[string]*model.Group
}

func NewGroupStore() *GroupStore {
	return &GroupStore{groups: make(map[string]*model.Group)}
}

func (s *GroupStore) Create(g *model.Group) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.ID == "" {
		g.ID = fmt.Sprintf("group-%s", uuid.New().String()[:8])
	}
	if _, exists := s.groups[g.ID]; exists {
		return "", apperrors.NewBadRequest(fmt.Sprintf("group %q already exists", g.ID), nil)
	}
	if g.Status == "" {
		g.Status = model.GroupActive
	}
	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now

	cp := *g
	s.groups[g.ID] = &cp
	return g.ID, nil
}

func (s *GroupStore) Get(id string) (model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return model.Group{}, apperrors.NewNotFound("group", nil)
	}
	return *g, nil
}

func (s *GroupStore) Update(g *model.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.groups[g.ID]
	if !ok {
		return apperrors.NewNotFound("group", nil)
	}
	g.CreatedAt = cur.CreatedAt
	g.UpdatedAt = time.Now()

	cp := *g
	s.groups[g.ID] = &cp
	return nil
}

func (s *GroupStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[id]; !ok {
		return apperrors.NewNotFound("group", nil)
	}
	delete(s.groups, id)
	return nil
}

func (s *GroupStore) List() []model.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, *g)
	}
	return out
}

// ListActive returns active groups only; the router fans out against this
// snapshot.
func (s *GroupStore) ListActive() []model.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Group, 0, len(s.groups))
	for _, g := range s.groups {
		if g.Status == model.GroupActive {
			out = append(out, *g)
		}
	}
	return out
}

// MarkMessaged records the last successful delivery to the group.
func (s *GroupStore) MarkMessaged(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.groups[id]; ok {
		t := at
		g.LastMessageAt = &t
	}
}
