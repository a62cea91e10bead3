package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user in the system
type User struct {
	ID                  uuid.UUID  `json:"id"`
	Email               string     `json:"email"`
	ProviderID          *string    `json:"provider_id,omitempty"`
	Name                *string    `json:"name,omitempty"`
	OnboardingCompleted bool       `json:"onboarding_completed"`
	NextCheckinAt       *time.Time `json:"next_checkin_at,omitempty"`
	Timezone            string     `json:"timezone"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// DefaultTimezone is used when a user has no timezone or an unknown one
const DefaultTimezone = "UTC"

// Location resolves the user's timezone, falling back to UTC
func (u *User) Location() *time.Location {
	if u == nil || u.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(u.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
