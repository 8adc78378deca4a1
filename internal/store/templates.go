package store

import (
	"sync"

	"github.com/jwalitptl/attend-api/internal/model"
	apperrors "github.com/jwalitptl/attend-api/pkg/errors"
)

// TemplateStore holds one message template per notification kind, seeded
// with the defaults.
type TemplateStore struct {
	mu        sync.RWMutex
	templates map[model.NotificationKind]string
}

func NewTemplateStore() *TemplateStore {
	s := &TemplateStore{templates: make(map[model.NotificationKind]string)}
	for _, t := range model.DefaultTemplates() {
		s.templates[t.Kind] = t.Body
	}
	return s
}

func (s *TemplateStore) Get(kind model.NotificationKind) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	body, ok := s.templates[kind]
	if !ok {
		return "", apperrors.NewNotFound("template", nil)
	}
	return body, nil
}

func (s *TemplateStore) Set(kind model.NotificationKind, body string) error {
	if body == "" {
		return apperrors.NewBadRequest("template body is required", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[kind] = body
	return nil
}

func (s *TemplateStore) All() []model.MessageTemplate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.MessageTemplate, 0, len(s.templates))
	for kind, body := range s.templates {
		out = append(out, model.MessageTemplate{Kind: kind, Body: body})
	}
	return out
}
