package model

import (
	"time"
)

type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
)

// User is an employee enrolled on the fingerprint devices. The employee id
// is the subject identifier devices report on check-in/check-out.
type User struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	EmployeeID      string     `json:"employee_id"`
	Department      string     `json:"department"`
	Position        string     `json:"position"`
	Status          UserStatus `json:"status"`
	ExpectedArrival string     `json:"expected_arrival"` // HH:MM, empty means no schedule
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
