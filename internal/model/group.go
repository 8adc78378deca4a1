package model

import (
	"time"
)

type GroupStatus string

const (
	GroupActive   GroupStatus = "active"
	GroupInactive GroupStatus = "inactive"
)

// Group is a messaging-group channel subscribed to notification kinds.
// Owned by configuration; mutated by administrative action only.
type Group struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	ChatID        string             `json:"chat_id"`
	Members       int                `json:"members"`
	Status        GroupStatus        `json:"status"`
	Notifications []NotificationKind `json:"notifications"`
	LastMessageAt *time.Time         `json:"last_message_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Subscribed reports whether the group is subscribed to the given kind.
func (g *Group) Subscribed(kind NotificationKind) bool {
	for _, k := range g.Notifications {
		if k == kind {
			return true
		}
	}
	return false
}
