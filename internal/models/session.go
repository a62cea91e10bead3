package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionType is the conversation mode a session runs in
type SessionType string

const (
	SessionTypeLifeMapping   SessionType = "life_mapping"
	SessionTypeWeeklyCheckin SessionType = "weekly_checkin"
	SessionTypeAdHoc         SessionType = "ad_hoc"
	SessionTypeOpenDay       SessionType = "open_day"
	SessionTypeCloseDay      SessionType = "close_day"
)

// SessionStatus is the lifecycle state of a session
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusAbandoned SessionStatus = "abandoned"
	SessionStatusExpired   SessionStatus = "expired"
)

// Session is one bounded conversation between a user and Sage
type Session struct {
	ID              uuid.UUID     `json:"id"`
	UserID          uuid.UUID     `json:"user_id"`
	SessionType     SessionType   `json:"session_type"`
	Status          SessionStatus `json:"status"`
	DomainsExplored []LifeDomain  `json:"domains_explored"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	CompletedAt     *time.Time    `json:"completed_at,omitempty"`
}

// HasExplored reports whether the domain is already in DomainsExplored
func (s *Session) HasExplored(d LifeDomain) bool {
	for _, explored := range s.DomainsExplored {
		if explored == d {
			return true
		}
	}
	return false
}

// MessageRole identifies who authored a message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Message belongs to exactly one session
type Message struct {
	ID        uuid.UUID   `json:"id"`
	SessionID uuid.UUID   `json:"session_id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}
