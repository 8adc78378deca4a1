package model

import (
	"time"

	"github.com/google/uuid"
)

// JobOutcome is the delivery outcome of a dispatch job.
type JobOutcome string

const (
	JobPending         JobOutcome = "pending"
	JobDelivered       JobOutcome = "delivered"
	JobFailedPermanent JobOutcome = "failed-permanent"
)

// Terminal reports whether the outcome is final.
func (o JobOutcome) Terminal() bool {
	return o == JobDelivered || o == JobFailedPermanent
}

// DispatchJob is one delivery of a rendered message to one group for one
// fact. Created by the router, owned and mutated exclusively by the
// dispatcher until it reaches a terminal outcome. At most one non-terminal
// job may exist per (group, fact) pair.
type DispatchJob struct {
	ID          uuid.UUID        `json:"id"`
	GroupID     string           `json:"group_id"`
	FactID      string           `json:"fact_id"`
	Kind        NotificationKind `json:"kind"`
	ChatID      string           `json:"chat_id"`
	Body        string           `json:"body"`
	Attempts    int              `json:"attempts"`
	NextRetryAt *time.Time       `json:"next_retry_at,omitempty"`
	Outcome     JobOutcome       `json:"outcome"`
	LastError   string           `json:"last_error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	DeliveredAt *time.Time       `json:"delivered_at,omitempty"`
}

// NewDispatchJob builds a pending job for a (group, fact) match.
func NewDispatchJob(group *Group, factID string, kind NotificationKind, body string) *DispatchJob {
	return &DispatchJob{
		ID:        uuid.New(),
		GroupID:   group.ID,
		FactID:    factID,
		Kind:      kind,
		ChatID:    group.ChatID,
		Body:      body,
		Outcome:   JobPending,
		CreatedAt: time.Now(),
	}
}
