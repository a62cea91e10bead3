// Package sessionstate decides which conversation mode a user's next session should open in.
package sessionstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/benvon/sage-coach/internal/logger"
	"github.com/benvon/sage-coach/internal/models"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CheckinWindow is the distance from next_checkin_at inside which a check-in is due
// and beyond which (in the past) it is overdue.
const CheckinWindow = 24 * time.Hour

// UserReader reads the user profile
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// SessionReader reads the sessions the detector cares about.
// ListActiveByUserID returns every active session, newest first; GetLastCompletedByUserID returns nil when none exists.
type SessionReader interface {
	ListActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Session, error)
	GetLastCompletedByUserID(ctx context.Context, userID uuid.UUID) (*models.Session, error)
}

// MessageReader answers whether a session holds a user-authored message
type MessageReader interface {
	HasUserMessage(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

// Detector computes SessionStateResult from scratch on every call
type Detector struct {
	users    UserReader
	sessions SessionReader
	messages MessageReader
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a Detector
type Option func(*Detector)

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

// WithLogger sets the logger used for swallowed read failures
func WithLogger(l *zap.Logger) Option {
	return func(d *Detector) {
		d.logger = logger.OrNop(l)
	}
}

// NewDetector creates a detector over the given stores
func NewDetector(users UserReader, sessions SessionReader, messages MessageReader, opts ...Option) *Detector {
	d := &Detector{
		users:    users,
		sessions: sessions,
		messages: messages,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// snapshot is everything the predicates look at
type snapshot struct {
	now             time.Time
	user            *models.User
	conversing      *models.Session // newest active session holding a user message
	mapping         *models.Session // newest active life_mapping session with explored domains
	lastCompletedID *uuid.UUID
}

// rule is one guarded predicate; apply fills state-specific metadata
type rule struct {
	state models.SessionState
	match func(s *snapshot) bool
	apply func(s *snapshot, r *models.SessionStateResult)
}

// rules are evaluated in order and the first match wins
var rules = []rule{
	{
		state: models.SessionStateNewUser,
		match: func(s *snapshot) bool { return s.user == nil || !s.user.OnboardingCompleted },
	},
	{
		state: models.SessionStateMidConversation,
		match: func(s *snapshot) bool { return s.conversing != nil },
		apply: func(s *snapshot, r *models.SessionStateResult) { withActiveSession(s.conversing, r) },
	},
	{
		state: models.SessionStateMappingInProgress,
		match: func(s *snapshot) bool { return s.mapping != nil },
		apply: func(s *snapshot, r *models.SessionStateResult) {
			withActiveSession(s.mapping, r)
			r.UnexploredDomains = models.UnexploredDomains(s.mapping.DomainsExplored)
		},
	},
	{
		state: models.SessionStateCheckinOverdue,
		match: func(s *snapshot) bool {
			return s.user.NextCheckinAt != nil && s.user.NextCheckinAt.Sub(s.now) < -CheckinWindow
		},
		apply: withCheckinMetadata,
	},
	{
		state: models.SessionStateCheckinDue,
		match: func(s *snapshot) bool {
			return s.user.NextCheckinAt != nil && s.user.NextCheckinAt.Sub(s.now) <= CheckinWindow
		},
		apply: withCheckinMetadata,
	},
	{
		state: models.SessionStateMappingComplete,
		match: func(*snapshot) bool { return true },
		apply: withCheckinMetadata,
	},
}

func withActiveSession(session *models.Session, r *models.SessionStateResult) {
	id := session.ID
	sessionType := session.SessionType
	r.ActiveSessionID = &id
	r.ActiveSessionType = &sessionType
}

func withCheckinMetadata(s *snapshot, r *models.SessionStateResult) {
	r.LastCompletedSessionID = s.lastCompletedID
	if s.user.NextCheckinAt != nil {
		at := *s.user.NextCheckinAt
		r.NextCheckinAt = &at
	}
}

// DetectState returns exactly one state for userID. Only a failure to read the profile is returned as an error;
// session and message read failures are logged and treated as absence.
func (d *Detector) DetectState(ctx context.Context, userID uuid.UUID) (*models.SessionStateResult, error) {
	ctx, span := otel.Tracer("sage-coach/sessionstate").Start(ctx, "DetectState")
	defer span.End()

	snap, err := d.load(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	result := &models.SessionStateResult{}
	for _, rl := range rules {
		if !rl.match(snap) {
			continue
		}
		result.State = rl.state
		if rl.apply != nil {
			rl.apply(snap, result)
		}
		break
	}
	if snap.user != nil {
		result.UserName = DisplayName(snap.user.Email)
	}

	span.SetAttributes(attribute.String("session_state", string(result.State)))
	return result, nil
}

func (d *Detector) load(ctx context.Context, userID uuid.UUID) (*snapshot, error) {
	snap := &snapshot{now: d.now()}

	var (
		wg      sync.WaitGroup
		userErr error
	)
	wg.Add(3)

	go func() {
		defer wg.Done()
		user, err := d.users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return
			}
			userErr = fmt.Errorf("failed to read user profile: %w", err)
			return
		}
		snap.user = user
	}()

	go func() {
		defer wg.Done()
		active, err := d.sessions.ListActiveByUserID(ctx, userID)
		if err != nil {
			d.logReadFailure("active_sessions", userID, err)
			return
		}
		snap.conversing, snap.mapping = d.classifyActive(ctx, userID, active)
	}()

	go func() {
		defer wg.Done()
		last, err := d.sessions.GetLastCompletedByUserID(ctx, userID)
		if err != nil {
			d.logReadFailure("last_completed_session", userID, err)
			return
		}
		if last != nil {
			id := last.ID
			snap.lastCompletedID = &id
		}
	}()

	wg.Wait()
	if userErr != nil {
		return nil, userErr
	}
	return snap, nil
}

// classifyActive picks, among active sessions ordered newest first, the first one holding a user message
// and the first life_mapping session with at least one explored domain.
func (d *Detector) classifyActive(ctx context.Context, userID uuid.UUID, active []*models.Session) (conversing, mapping *models.Session) {
	for _, session := range active {
		if session == nil {
			continue
		}
		if mapping == nil && session.SessionType == models.SessionTypeLifeMapping && len(session.DomainsExplored) > 0 {
			mapping = session
		}
		if conversing != nil {
			continue
		}
		has, err := d.messages.HasUserMessage(ctx, session.ID)
		if err != nil {
			d.logReadFailure("user_message_exists", userID, err)
			continue
		}
		if has {
			conversing = session
		}
	}
	return conversing, mapping
}

func (d *Detector) logReadFailure(read string, userID uuid.UUID, err error) {
	d.logger.Warn("session_state_read_failed",
		zap.String("read", read),
		zap.String("user_id", logger.SanitizeUserID(userID.String())),
		zap.Error(err),
	)
}

// DisplayName derives a best-effort first name from the local part of an email address.
// It returns nil when nothing usable remains.
func DisplayName(email string) *string {
	local := email
	if at := strings.LastIndex(email, "@"); at >= 0 {
		local = email[:at]
	}

	tokens := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '+' || r == '-'
	})
	for _, token := range tokens {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		first, size := utf8.DecodeRuneInString(token)
		name := string(unicode.ToUpper(first)) + token[size:]
		return &name
	}
	return nil
}
