package store

import (
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/attend-api/internal/model"
	apperrors "github.com/jwalitptl/attend-api/pkg/errors"
)

// SettingsStore holds the runtime settings snapshot. Notification toggles,
// the summary time and the delivery retry policy are read through Snapshot
// by the router and dispatcher on every decision; the poller's loop
// parameters are fixed at startup and take effect on restart.
type SettingsStore struct {
	mu       sync.RWMutex
	current  model.Settings
	validate *validator.Validate
}

func NewSettingsStore(initial model.Settings) *SettingsStore {
	return &SettingsStore{
		current:  initial,
		validate: validator.New(),
	}
}

func (s *SettingsStore) Snapshot() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update validates and replaces the settings. Unrecognized options never get
// this far; the handler binds into the typed struct.
func (s *SettingsStore) Update(next model.Settings) error {
	if err := s.validate.Struct(next); err != nil {
		return apperrors.NewBadRequest("settings out of range", err)
	}
	if _, err := model.ParseDayTime(next.SummaryTime); err != nil {
		return apperrors.NewBadRequest("invalid summary time", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = next
	return nil
}
