package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/attend-api/internal/model"
	apperrors "github.com/jwalitptl/attend-api/pkg/errors"
)

// UserStore is the owned, keyed store for the employee roster. It doubles as
// the scheduling/roster collaborator: expected arrival lookups key on the
// employee id devices report as subject.
type UserStore struct {
	mu        sync.RWMutex
	users     map[string]*model.User
	bySubject map[string]string // employee id -> user id
}

func NewUserStore() *UserStore {
	return &UserStore{
		users:     make(map[string]*model.User),
		bySubject: make(map[string]string),
	}
}

func (s *UserStore) Create(u *model.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.EmployeeID == "" {
		return "", apperrors.NewBadRequest("employee id is required", nil)
	}
	if u.ID == "" {
		u.ID = fmt.Sprintf("user-%s", uuid.New().String()[:8])
	}
	if _, exists := s.users[u.ID]; exists {
		return "", apperrors.NewBadRequest(fmt.Sprintf("user %q already exists", u.ID), nil)
	}
	if _, exists := s.bySubject[u.EmployeeID]; exists {
		return "", apperrors.NewBadRequest(fmt.Sprintf("employee id %q already taken", u.EmployeeID), nil)
	}
	if u.ExpectedArrival != "" {
		if _, err := model.ParseDayTime(u.ExpectedArrival); err != nil {
			return "", apperrors.NewBadRequest("invalid expected arrival", err)
		}
	}
	if u.Status == "" {
		u.Status = model.UserActive
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	cp := *u
	s.users[u.ID] = &cp
	s.bySubject[u.EmployeeID] = u.ID
	return u.ID, nil
}

func (s *UserStore) Get(id string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return model.User{}, apperrors.NewNotFound("user", nil)
	}
	return *u, nil
}

func (s *UserStore) Update(u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.users[u.ID]
	if !ok {
		return apperrors.NewNotFound("user", nil)
	}
	if u.ExpectedArrival != "" {
		if _, err := model.ParseDayTime(u.ExpectedArrival); err != nil {
			return apperrors.NewBadRequest("invalid expected arrival", err)
		}
	}
	if u.EmployeeID != cur.EmployeeID {
		if _, exists := s.bySubject[u.EmployeeID]; exists {
			return apperrors.NewBadRequest(fmt.Sprintf("employee id %q already taken", u.EmployeeID), nil)
		}
		delete(s.bySubject, cur.EmployeeID)
		s.bySubject[u.EmployeeID] = u.ID
	}
	u.CreatedAt = cur.CreatedAt
	u.UpdatedAt = time.Now()

	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *UserStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return apperrors.NewNotFound("user", nil)
	}
	delete(s.bySubject, u.EmployeeID)
	delete(s.users, id)
	return nil
}

func (s *UserStore) List() []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	return out
}

// Lookup resolves a subject (employee) id to the user record.
func (s *UserStore) Lookup(subjectID string) (model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySubject[subjectID]
	if !ok {
		return model.User{}, apperrors.NewNotFound("subject", nil)
	}
	return *s.users[id], nil
}

// ExpectedArrival returns the subject's scheduled arrival time. NotFound for
// unknown subjects or subjects without a schedule.
func (s *UserStore) ExpectedArrival(subjectID string) (model.DayTime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySubject[subjectID]
	if !ok {
		return model.DayTime{}, apperrors.NewNotFound("subject", nil)
	}
	u := s.users[id]
	if u.ExpectedArrival == "" {
		return model.DayTime{}, apperrors.NewNotFound("schedule", nil)
	}
	dt, err := model.ParseDayTime(u.ExpectedArrival)
	if err != nil {
		return model.DayTime{}, apperrors.NewNotFound("schedule", err)
	}
	return dt, nil
}

// FullRoster lists all active subject ids, used for absentee counting.
func (s *UserStore) FullRoster() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.users))
	for _, u := range s.users {
		if u.Status == model.UserActive {
			out = append(out, u.EmployeeID)
		}
	}
	return out
}
