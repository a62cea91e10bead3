package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionState is the conversation mode the user's next conversation should take
type SessionState string

const (
	SessionStateNewUser           SessionState = "new_user"
	SessionStateMidConversation   SessionState = "mid_conversation"
	SessionStateMappingInProgress SessionState = "mapping_in_progress"
	SessionStateCheckinOverdue    SessionState = "checkin_overdue"
	SessionStateCheckinDue        SessionState = "checkin_due"
	SessionStateMappingComplete   SessionState = "mapping_complete"
)

// SessionStateResult carries the detected state plus whatever metadata applies to it
type SessionStateResult struct {
	State                  SessionState `json:"state"`
	ActiveSessionID        *uuid.UUID   `json:"active_session_id,omitempty"`
	ActiveSessionType      *SessionType `json:"active_session_type,omitempty"`
	LastCompletedSessionID *uuid.UUID   `json:"last_completed_session_id,omitempty"`
	NextCheckinAt          *time.Time   `json:"next_checkin_at,omitempty"`
	UnexploredDomains      []LifeDomain `json:"unexplored_domains,omitempty"`
	UserName               *string      `json:"user_name,omitempty"`
}
