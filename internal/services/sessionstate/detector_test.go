package sessionstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/benvon/sage-coach/internal/models"
	"github.com/google/uuid"
)

type mockUserReader struct {
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func (m *mockUserReader) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return m.getByIDFunc(ctx, id)
}

type mockSessionReader struct {
	listActiveFunc       func(ctx context.Context, userID uuid.UUID) ([]*models.Session, error)
	getLastCompletedFunc func(ctx context.Context, userID uuid.UUID) (*models.Session, error)
}

func (m *mockSessionReader) ListActiveByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Session, error) {
	if m.listActiveFunc == nil {
		return nil, nil
	}
	return m.listActiveFunc(ctx, userID)
}

func (m *mockSessionReader) GetLastCompletedByUserID(ctx context.Context, userID uuid.UUID) (*models.Session, error) {
	if m.getLastCompletedFunc == nil {
		return nil, nil
	}
	return m.getLastCompletedFunc(ctx, userID)
}

type mockMessageReader struct {
	hasUserMessageFunc func(ctx context.Context, sessionID uuid.UUID) (bool, error)
}

func (m *mockMessageReader) HasUserMessage(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	if m.hasUserMessageFunc == nil {
		return false, nil
	}
	return m.hasUserMessageFunc(ctx, sessionID)
}

var (
	_ UserReader    = (*mockUserReader)(nil)
	_ SessionReader = (*mockSessionReader)(nil)
	_ MessageReader = (*mockMessageReader)(nil)
)

var fixedNow = time.Date(2026, 2, 20, 9, 0, 0, 0, time.UTC)

type fixture struct {
	user          *models.User
	userErr       error
	active        *models.Session   // newest active session
	olderActive   []*models.Session // further active sessions, newest first
	activeErr     error
	hasMessage    bool
	messageIn     map[uuid.UUID]bool // per-session override of hasMessage
	messageErr    error
	lastCompleted *models.Session
	lastErr       error
}

func (f fixture) detector() *Detector {
	return NewDetector(
		&mockUserReader{getByIDFunc: func(context.Context, uuid.UUID) (*models.User, error) {
			return f.user, f.userErr
		}},
		&mockSessionReader{
			listActiveFunc: func(context.Context, uuid.UUID) ([]*models.Session, error) {
				if f.activeErr != nil {
					return nil, f.activeErr
				}
				var sessions []*models.Session
				if f.active != nil {
					sessions = append(sessions, f.active)
				}
				return append(sessions, f.olderActive...), nil
			},
			getLastCompletedFunc: func(context.Context, uuid.UUID) (*models.Session, error) {
				return f.lastCompleted, f.lastErr
			},
		},
		&mockMessageReader{hasUserMessageFunc: func(_ context.Context, sessionID uuid.UUID) (bool, error) {
			if f.messageErr != nil {
				return false, f.messageErr
			}
			if f.messageIn != nil {
				return f.messageIn[sessionID], nil
			}
			return f.hasMessage, nil
		}},
		WithClock(func() time.Time { return fixedNow }),
	)
}

func onboardedUser(nextCheckin *time.Time) *models.User {
	return &models.User{
		ID:                  uuid.New(),
		Email:               "jane.doe@example.com",
		OnboardingCompleted: true,
		NextCheckinAt:       nextCheckin,
		Timezone:            "UTC",
	}
}

func at(d time.Duration) *time.Time {
	t := fixedNow.Add(d)
	return &t
}

func activeSession(sessionType models.SessionType, explored ...models.LifeDomain) *models.Session {
	return &models.Session{
		ID:              uuid.New(),
		SessionType:     sessionType,
		Status:          models.SessionStatusActive,
		DomainsExplored: explored,
	}
}

func TestDetectState_States(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fixture fixture
		want    models.SessionState
	}{
		{
			name:    "onboarding incomplete is new user",
			fixture: fixture{user: &models.User{Email: "a@b.c"}},
			want:    models.SessionStateNewUser,
		},
		{
			name: "new user wins over active session with messages",
			fixture: fixture{
				user:       &models.User{Email: "a@b.c", NextCheckinAt: at(-72 * time.Hour)},
				active:     activeSession(models.SessionTypeLifeMapping, models.DomainCareer),
				hasMessage: true,
			},
			want: models.SessionStateNewUser,
		},
		{
			name:    "missing profile is new user",
			fixture: fixture{userErr: fmt.Errorf("user not found: %w", sql.ErrNoRows)},
			want:    models.SessionStateNewUser,
		},
		{
			name: "active session with user message",
			fixture: fixture{
				user:       onboardedUser(nil),
				active:     activeSession(models.SessionTypeAdHoc),
				hasMessage: true,
			},
			want: models.SessionStateMidConversation,
		},
		{
			name: "mid conversation wins over overdue check-in",
			fixture: fixture{
				user:       onboardedUser(at(-96 * time.Hour)),
				active:     activeSession(models.SessionTypeWeeklyCheckin),
				hasMessage: true,
			},
			want: models.SessionStateMidConversation,
		},
		{
			name: "life mapping with explored domains and no messages",
			fixture: fixture{
				user:   onboardedUser(nil),
				active: activeSession(models.SessionTypeLifeMapping, models.DomainHealth),
			},
			want: models.SessionStateMappingInProgress,
		},
		{
			name: "life mapping with nothing explored falls through",
			fixture: fixture{
				user:   onboardedUser(nil),
				active: activeSession(models.SessionTypeLifeMapping),
			},
			want: models.SessionStateMappingComplete,
		},
		{
			name: "silent active ad hoc session falls through to check-in",
			fixture: fixture{
				user:   onboardedUser(at(-48 * time.Hour)),
				active: activeSession(models.SessionTypeAdHoc, models.DomainPlay),
			},
			want: models.SessionStateCheckinOverdue,
		},
		{
			name:    "just over a day late is overdue",
			fixture: fixture{user: onboardedUser(at(-CheckinWindow - time.Second))},
			want:    models.SessionStateCheckinOverdue,
		},
		{
			name:    "exactly a day late is due",
			fixture: fixture{user: onboardedUser(at(-CheckinWindow))},
			want:    models.SessionStateCheckinDue,
		},
		{
			name:    "slightly late is due",
			fixture: fixture{user: onboardedUser(at(-time.Hour))},
			want:    models.SessionStateCheckinDue,
		},
		{
			name:    "exactly a day ahead is due",
			fixture: fixture{user: onboardedUser(at(CheckinWindow))},
			want:    models.SessionStateCheckinDue,
		},
		{
			name:    "more than a day ahead is mapping complete",
			fixture: fixture{user: onboardedUser(at(CheckinWindow + time.Second))},
			want:    models.SessionStateMappingComplete,
		},
		{
			name:    "no check-in scheduled is mapping complete",
			fixture: fixture{user: onboardedUser(nil)},
			want:    models.SessionStateMappingComplete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.fixture.detector().DetectState(context.Background(), uuid.New())
			if err != nil {
				t.Fatalf("DetectState() error = %v", err)
			}
			if got.State != tt.want {
				t.Errorf("State = %q, want %q", got.State, tt.want)
			}
		})
	}
}

func TestDetectState_MidConversationMetadata(t *testing.T) {
	t.Parallel()

	active := activeSession(models.SessionTypeWeeklyCheckin)
	got, err := fixture{user: onboardedUser(at(-96 * time.Hour)), active: active, hasMessage: true}.
		detector().DetectState(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("DetectState() error = %v", err)
	}

	if got.ActiveSessionID == nil || *got.ActiveSessionID != active.ID {
		t.Errorf("ActiveSessionID = %v, want %v", got.ActiveSessionID, active.ID)
	}
	if got.ActiveSessionType == nil || *got.ActiveSessionType != models.SessionTypeWeeklyCheckin {
		t.Errorf("ActiveSessionType = %v", got.ActiveSessionType)
	}
	if got.NextCheckinAt != nil || got.LastCompletedSessionID != nil {
		t.Error("Expected no check-in metadata for mid conversation")
	}
}

func TestDetectState_UnexploredDomains(t *testing.T) {
	t.Parallel()

	active := activeSession(models.SessionTypeLifeMapping, models.DomainHealth, models.DomainCareer)
	got, err := fixture{user: onboardedUser(nil), active: active}.detector().DetectState(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("DetectState() error = %v", err)
	}

	want := []models.LifeDomain{
		models.DomainRelationships,
		models.DomainFinances,
		models.DomainLearning,
		models.DomainCreativity,
		models.DomainPlay,
		models.DomainMeaning,
	}
	if !reflect.DeepEqual(got.UnexploredDomains, want) {
		t.Errorf("UnexploredDomains = %v, want %v", got.UnexploredDomains, want)
	}
	if got.ActiveSessionID == nil || *got.ActiveSessionID != active.ID {
		t.Errorf("ActiveSessionID = %v, want %v", got.ActiveSessionID, active.ID)
	}
}

func TestDetectState_CheckinMetadata(t *testing.T) {
	t.Parallel()

	last := &models.Session{ID: uuid.New(), Status: models.SessionStatusCompleted}
	next := at(-2 * time.Hour)
	got, err := fixture{user: onboardedUser(next), lastCompleted: last}.detector().DetectState(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("DetectState() error = %v", err)
	}

	if got.State != models.SessionStateCheckinDue {
		t.Fatalf("State = %q", got.State)
	}
	if got.LastCompletedSessionID == nil || *got.LastCompletedSessionID != last.ID {
		t.Errorf("LastCompletedSessionID = %v, want %v", got.LastCompletedSessionID, last.ID)
	}
	if got.NextCheckinAt == nil || !got.NextCheckinAt.Equal(*next) {
		t.Errorf("NextCheckinAt = %v, want %v", got.NextCheckinAt, next)
	}
	if got.UserName == nil || *got.UserName != "Jane" {
		t.Errorf("UserName = %v, want Jane", got.UserName)
	}
	if got.ActiveSessionID != nil {
		t.Error("Expected no active session id")
	}
}

func TestDetectState_ReadFailures(t *testing.T) {
	t.Parallel()

	readErr := errors.New("connection reset")

	t.Run("profile error is returned", func(t *testing.T) {
		t.Parallel()

		_, err := fixture{userErr: readErr}.detector().DetectState(context.Background(), uuid.New())
		if !errors.Is(err, readErr) {
			t.Errorf("Expected wrapped read error, got %v", err)
		}
	})

	t.Run("active session error is absence", func(t *testing.T) {
		t.Parallel()

		got, err := fixture{user: onboardedUser(at(time.Hour)), activeErr: readErr}.detector().DetectState(context.Background(), uuid.New())
		if err != nil {
			t.Fatalf("DetectState() error = %v", err)
		}
		if got.State != models.SessionStateCheckinDue {
			t.Errorf("State = %q, want checkin_due", got.State)
		}
	})

	t.Run("message check error is absence", func(t *testing.T) {
		t.Parallel()

		got, err := fixture{
			user:       onboardedUser(nil),
			active:     activeSession(models.SessionTypeAdHoc),
			messageErr: readErr,
		}.detector().DetectState(context.Background(), uuid.New())
		if err != nil {
			t.Fatalf("DetectState() error = %v", err)
		}
		if got.State != models.SessionStateMappingComplete {
			t.Errorf("State = %q, want mapping_complete", got.State)
		}
	})

	t.Run("last completed error is absence", func(t *testing.T) {
		t.Parallel()

		got, err := fixture{user: onboardedUser(nil), lastErr: readErr}.detector().DetectState(context.Background(), uuid.New())
		if err != nil {
			t.Fatalf("DetectState() error = %v", err)
		}
		if got.LastCompletedSessionID != nil {
			t.Error("Expected no last completed session id")
		}
	})
}

func TestDetectState_MessageCheckUsesActiveSession(t *testing.T) {
	t.Parallel()

	active := activeSession(models.SessionTypeAdHoc)
	var checked uuid.UUID
	d := NewDetector(
		&mockUserReader{getByIDFunc: func(context.Context, uuid.UUID) (*models.User, error) {
			return onboardedUser(nil), nil
		}},
		&mockSessionReader{listActiveFunc: func(context.Context, uuid.UUID) ([]*models.Session, error) {
			return []*models.Session{active}, nil
		}},
		&mockMessageReader{hasUserMessageFunc: func(_ context.Context, sessionID uuid.UUID) (bool, error) {
			checked = sessionID
			return true, nil
		}},
	)

	if _, err := d.DetectState(context.Background(), uuid.New()); err != nil {
		t.Fatalf("DetectState() error = %v", err)
	}
	if checked != active.ID {
		t.Errorf("HasUserMessage called with %v, want %v", checked, active.ID)
	}
}

func TestDetectState_NoMessageCheckWithoutActiveSession(t *testing.T) {
	t.Parallel()

	d := NewDetector(
		&mockUserReader{getByIDFunc: func(context.Context, uuid.UUID) (*models.User, error) {
			return onboardedUser(nil), nil
		}},
		&mockSessionReader{},
		&mockMessageReader{hasUserMessageFunc: func(context.Context, uuid.UUID) (bool, error) {
			t.Error("HasUserMessage should not be called without an active session")
			return false, nil
		}},
	)

	if _, err := d.DetectState(context.Background(), uuid.New()); err != nil {
		t.Fatalf("DetectState() error = %v", err)
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		email string
		want  string
	}{
		{email: "jane.doe@example.com", want: "Jane"},
		{email: "bob_smith@example.com", want: "Bob"},
		{email: "alice+sage@example.com", want: "Alice"},
		{email: "mary-jo@example.com", want: "Mary"},
		{email: ".lead@example.com", want: "Lead"},
		{email: "élodie@example.fr", want: "Élodie"},
		{email: "noatsign", want: "Noatsign"},
		{email: "._+-@example.com", want: ""},
		{email: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			t.Parallel()

			got := DisplayName(tt.email)
			if tt.want == "" {
				if got != nil {
					t.Errorf("DisplayName(%q) = %q, want nil", tt.email, *got)
				}
				return
			}
			if got == nil || *got != tt.want {
				t.Errorf("DisplayName(%q) = %v, want %q", tt.email, got, tt.want)
			}
		})
	}
}

func TestDetectState_SeveralActiveSessions(t *testing.T) {
	t.Parallel()

	mapping := activeSession(models.SessionTypeLifeMapping, models.DomainCareer)
	silent := activeSession(models.SessionTypeAdHoc)
	checkin := activeSession(models.SessionTypeWeeklyCheckin)

	tests := []struct {
		name       string
		fixture    fixture
		want       models.SessionState
		wantActive uuid.UUID
	}{
		{
			name: "older conversation behind a newer silent session",
			fixture: fixture{
				user:        onboardedUser(at(-48 * time.Hour)),
				active:      silent,
				olderActive: []*models.Session{mapping},
				messageIn:   map[uuid.UUID]bool{mapping.ID: true},
			},
			want:       models.SessionStateMidConversation,
			wantActive: mapping.ID,
		},
		{
			name: "newest conversing session wins",
			fixture: fixture{
				user:        onboardedUser(nil),
				active:      checkin,
				olderActive: []*models.Session{silent, mapping},
				messageIn:   map[uuid.UUID]bool{checkin.ID: true, mapping.ID: true},
			},
			want:       models.SessionStateMidConversation,
			wantActive: checkin.ID,
		},
		{
			name: "older mapping in progress behind a newer silent session",
			fixture: fixture{
				user:        onboardedUser(at(-48 * time.Hour)),
				active:      silent,
				olderActive: []*models.Session{mapping},
			},
			want:       models.SessionStateMappingInProgress,
			wantActive: mapping.ID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := tt.fixture.detector().DetectState(context.Background(), uuid.New())
			if err != nil {
				t.Fatalf("DetectState() error = %v", err)
			}
			if got.State != tt.want {
				t.Fatalf("State = %q, want %q", got.State, tt.want)
			}
			if got.ActiveSessionID == nil || *got.ActiveSessionID != tt.wantActive {
				t.Errorf("ActiveSessionID = %v, want %v", got.ActiveSessionID, tt.wantActive)
			}
		})
	}
}

func TestDetectState_MessageErrorOnOneSessionKeepsChecking(t *testing.T) {
	t.Parallel()

	first := activeSession(models.SessionTypeAdHoc)
	second := activeSession(models.SessionTypeWeeklyCheckin)
	d := NewDetector(
		&mockUserReader{getByIDFunc: func(context.Context, uuid.UUID) (*models.User, error) {
			return onboardedUser(nil), nil
		}},
		&mockSessionReader{listActiveFunc: func(context.Context, uuid.UUID) ([]*models.Session, error) {
			return []*models.Session{first, second}, nil
		}},
		&mockMessageReader{hasUserMessageFunc: func(_ context.Context, sessionID uuid.UUID) (bool, error) {
			if sessionID == first.ID {
				return false, errors.New("timeout")
			}
			return true, nil
		}},
	)

	got, err := d.DetectState(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("DetectState() error = %v", err)
	}
	if got.State != models.SessionStateMidConversation || got.ActiveSessionID == nil || *got.ActiveSessionID != second.ID {
		t.Errorf("Expected mid_conversation on %v, got %q %v", second.ID, got.State, got.ActiveSessionID)
	}
}
