package captures

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benvon/sage-coach/internal/documents"
	"github.com/benvon/sage-coach/internal/models"
	"github.com/google/uuid"
)

type mockUserReader struct {
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*models.User, error)
}

func (m *mockUserReader) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return m.getByIDFunc(ctx, id)
}

type mockCaptureRepo struct {
	mu                       sync.Mutex
	created                  []*models.Capture
	createFunc               func(ctx context.Context, c *models.Capture) error
	updateClassificationFunc func(ctx context.Context, id uuid.UUID, c models.CaptureClassification, tags []string) error
}

func (m *mockCaptureRepo) Create(ctx context.Context, c *models.Capture) error {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, c); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, c)
	return nil
}

func (m *mockCaptureRepo) UpdateClassification(ctx context.Context, id uuid.UUID, c models.CaptureClassification, tags []string) error {
	if m.updateClassificationFunc == nil {
		return nil
	}
	return m.updateClassificationFunc(ctx, id, c, tags)
}

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []Job
}

func (d *recordingDispatcher) Dispatch(_ context.Context, job Job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
}

type failingStore struct {
	documents.Store
	err error
}

func (f *failingStore) Write(context.Context, uuid.UUID, *documents.Document) error {
	return f.err
}

var (
	_ UserReader           = (*mockUserReader)(nil)
	_ CaptureWriter        = (*mockCaptureRepo)(nil)
	_ ClassificationWriter = (*mockCaptureRepo)(nil)
	_ Dispatcher           = (*recordingDispatcher)(nil)
)

var fixedNow = time.Date(2026, 2, 20, 9, 5, 3, 0, time.UTC)

func userWithTimezone(tz string) *mockUserReader {
	return &mockUserReader{getByIDFunc: func(_ context.Context, id uuid.UUID) (*models.User, error) {
		return &models.User{ID: id, Email: "a@b.c", Timezone: tz}, nil
	}}
}

func newTestStore(t *testing.T) *documents.FileStore {
	t.Helper()
	s, err := documents.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return s
}

func TestSubmit_WritesDocumentAndRow(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	repo := &mockCaptureRepo{}
	dispatcher := &recordingDispatcher{}
	svc := NewService(userWithTimezone("UTC"), store, repo, dispatcher, WithClock(func() time.Time { return fixedNow }))
	userID := uuid.New()

	got, err := svc.Submit(context.Background(), userID, "  Book flights for March  ", models.InputModeVoice)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if got.DocumentKey != "captures/2026-02-20-090503.md" {
		t.Errorf("DocumentKey = %q", got.DocumentKey)
	}
	if got.CaptureID == nil {
		t.Fatal("Expected CaptureID to be set")
	}

	doc, err := store.Read(context.Background(), userID, got.DocumentKey)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	wantHeader := documents.Header{
		Type:      "capture",
		Date:      "2026-02-20",
		InputMode: "voice",
		Timestamp: "2026-02-20T09:05:03Z",
	}
	if doc.Header.Type != wantHeader.Type || doc.Header.Date != wantHeader.Date ||
		doc.Header.InputMode != wantHeader.InputMode || doc.Header.Timestamp != wantHeader.Timestamp {
		t.Errorf("Header = %+v, want %+v", doc.Header, wantHeader)
	}
	if strings.TrimSpace(doc.Body) != "Book flights for March" {
		t.Errorf("Body = %q", doc.Body)
	}

	if len(repo.created) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(repo.created))
	}
	row := repo.created[0]
	if row.ID != *got.CaptureID || row.Source != models.CaptureSourceManual || row.DocumentKey != got.DocumentKey {
		t.Errorf("Unexpected row %+v", row)
	}

	if len(dispatcher.jobs) != 1 {
		t.Fatalf("Expected 1 dispatched job, got %d", len(dispatcher.jobs))
	}
	job := dispatcher.jobs[0]
	if job.CaptureID == nil || *job.CaptureID != *got.CaptureID || job.DocumentKey != got.DocumentKey {
		t.Errorf("Unexpected job %+v", job)
	}
}

func TestSubmit_UsesUserTimezone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		users    UserReader
		wantKey  string
		wantDate string
	}{
		{
			name:     "local date differs from UTC",
			users:    userWithTimezone("Pacific/Auckland"),
			wantKey:  "captures/2026-02-20-220503.md",
			wantDate: "2026-02-20",
		},
		{
			name:     "behind UTC",
			users:    userWithTimezone("America/Los_Angeles"),
			wantKey:  "captures/2026-02-20-010503.md",
			wantDate: "2026-02-20",
		},
		{
			name:     "invalid timezone falls back to UTC",
			users:    userWithTimezone("Not/AZone"),
			wantKey:  "captures/2026-02-20-090503.md",
			wantDate: "2026-02-20",
		},
		{
			name: "profile lookup failure falls back to UTC",
			users: &mockUserReader{getByIDFunc: func(context.Context, uuid.UUID) (*models.User, error) {
				return nil, errors.New("db down")
			}},
			wantKey:  "captures/2026-02-20-090503.md",
			wantDate: "2026-02-20",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newTestStore(t)
			svc := NewService(tt.users, store, &mockCaptureRepo{}, &recordingDispatcher{}, WithClock(func() time.Time { return fixedNow }))
			userID := uuid.New()

			got, err := svc.Submit(context.Background(), userID, "hello", models.InputModeText)
			if err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			if got.DocumentKey != tt.wantKey {
				t.Errorf("DocumentKey = %q, want %q", got.DocumentKey, tt.wantKey)
			}
			doc, err := store.Read(context.Background(), userID, got.DocumentKey)
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if doc.Header.Date != tt.wantDate {
				t.Errorf("Date = %q, want %q", doc.Header.Date, tt.wantDate)
			}
			if doc.Header.Timestamp != "2026-02-20T09:05:03Z" {
				t.Errorf("Timestamp = %q, want UTC instant", doc.Header.Timestamp)
			}
		})
	}
}

func TestSubmit_ValidationWritesNothing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		mode      models.InputMode
		wantField string
	}{
		{name: "too long", text: strings.Repeat("a", MaxCaptureLength+1), mode: models.InputModeText, wantField: "text"},
		{name: "empty", text: "", mode: models.InputModeText, wantField: "text"},
		{name: "whitespace only", text: " \n\t ", mode: models.InputModeText, wantField: "text"},
		{name: "bad input mode", text: "hello", mode: "email", wantField: "input_mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := newTestStore(t)
			repo := &mockCaptureRepo{}
			dispatcher := &recordingDispatcher{}
			svc := NewService(userWithTimezone("UTC"), store, repo, dispatcher, WithClock(func() time.Time { return fixedNow }))
			userID := uuid.New()

			_, err := svc.Submit(context.Background(), userID, tt.text, tt.mode)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected *ValidationError, got %v", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}

			keys, err := store.List(context.Background(), userID, "")
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(keys) != 0 || len(repo.created) != 0 || len(dispatcher.jobs) != 0 {
				t.Errorf("Expected no writes, got keys=%v rows=%d jobs=%d", keys, len(repo.created), len(dispatcher.jobs))
			}
		})
	}
}

func TestSubmit_MaxLengthCountsCharacters(t *testing.T) {
	t.Parallel()

	svc := NewService(userWithTimezone("UTC"), newTestStore(t), &mockCaptureRepo{}, &recordingDispatcher{}, WithClock(func() time.Time { return fixedNow }))
	if _, err := svc.Submit(context.Background(), uuid.New(), strings.Repeat("é", MaxCaptureLength), models.InputModeText); err != nil {
		t.Errorf("Expected %d multibyte characters to be accepted, got %v", MaxCaptureLength, err)
	}
}

func TestSubmit_MirrorFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	repo := &mockCaptureRepo{createFunc: func(context.Context, *models.Capture) error {
		return errors.New("relation \"captures\" does not exist")
	}}
	dispatcher := &recordingDispatcher{}
	svc := NewService(userWithTimezone("UTC"), store, repo, dispatcher, WithClock(func() time.Time { return fixedNow }))
	userID := uuid.New()

	got, err := svc.Submit(context.Background(), userID, "still saved", models.InputModeText)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got.CaptureID != nil {
		t.Errorf("Expected nil CaptureID, got %v", got.CaptureID)
	}
	if _, err := store.Read(context.Background(), userID, got.DocumentKey); err != nil {
		t.Errorf("Expected document to exist, got %v", err)
	}
	if len(dispatcher.jobs) != 1 || dispatcher.jobs[0].CaptureID != nil {
		t.Errorf("Expected classification dispatched without capture id, got %+v", dispatcher.jobs)
	}
}

func TestSubmit_DocumentFailureFailsWithoutMirror(t *testing.T) {
	t.Parallel()

	writeErr := errors.New("disk full")
	repo := &mockCaptureRepo{}
	dispatcher := &recordingDispatcher{}
	svc := NewService(userWithTimezone("UTC"), &failingStore{err: writeErr}, repo, dispatcher)

	_, err := svc.Submit(context.Background(), uuid.New(), "hello", models.InputModeText)
	if !errors.Is(err, writeErr) {
		t.Fatalf("Expected wrapped write error, got %v", err)
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		t.Error("Document failure must not be a validation error")
	}
	if len(repo.created) != 0 || len(dispatcher.jobs) != 0 {
		t.Error("Expected no mirror write and no dispatch after document failure")
	}
}

func TestSubmit_SameSecondCollision(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	repo := &mockCaptureRepo{}
	svc := NewService(userWithTimezone("UTC"), store, repo, &recordingDispatcher{}, WithClock(func() time.Time { return fixedNow }))
	userID := uuid.New()

	first, err := svc.Submit(context.Background(), userID, "first", models.InputModeText)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	second, err := svc.Submit(context.Background(), userID, "second", models.InputModeText)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if first.DocumentKey != second.DocumentKey {
		t.Errorf("Expected shared key, got %q and %q", first.DocumentKey, second.DocumentKey)
	}
	if *first.CaptureID == *second.CaptureID || len(repo.created) != 2 {
		t.Error("Expected two distinct rows")
	}

	doc, err := store.Read(context.Background(), userID, first.DocumentKey)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if strings.TrimSpace(doc.Body) != "second" {
		t.Errorf("Expected later write to win, got %q", doc.Body)
	}
}
