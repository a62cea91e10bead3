package documents

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	return s
}

func TestFileStore_WriteRead(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()

	doc := &Document{
		Key: "captures/2026-02-20-090503.md",
		Header: Header{
			Type:      DocumentTypeCapture,
			Date:      "2026-02-20",
			InputMode: "text",
			Timestamp: "2026-02-20T09:05:03Z",
		},
		Body: "Call the dentist about Thursday",
	}
	if err := s.Write(ctx, userID, doc); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := s.Read(ctx, userID, doc.Key)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !reflect.DeepEqual(got.Header, doc.Header) {
		t.Errorf("Header = %+v, want %+v", got.Header, doc.Header)
	}
	if got.Body != "Call the dentist about Thursday" {
		t.Errorf("Body = %q", got.Body)
	}
}

func TestFileStore_ReadMissing(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.Read(context.Background(), uuid.New(), "captures/none.md")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestFileStore_WriteReplaces(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()
	key := "captures/2026-02-20-090503.md"

	for _, body := range []string{"first", "second"} {
		if err := s.Write(ctx, userID, &Document{Key: key, Header: Header{Type: DocumentTypeCapture}, Body: body}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	got, err := s.Read(ctx, userID, key)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Body != "second" {
		t.Errorf("Expected second write to win, got %q", got.Body)
	}
}

func TestFileStore_UpdateHeaderKeepsBody(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()
	key := "captures/2026-02-20-090503.md"

	body := "line one\n\n---\nline after a rule\n"
	if err := s.Write(ctx, userID, &Document{Key: key, Header: Header{Type: DocumentTypeCapture, Date: "2026-02-20"}, Body: body}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	err := s.UpdateHeader(ctx, userID, key, func(h *Header) {
		h.Classification = "task"
		h.Tags = []string{"health", "errands"}
	})
	if err != nil {
		t.Fatalf("UpdateHeader() error = %v", err)
	}

	got, err := s.Read(ctx, userID, key)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Header.Classification != "task" {
		t.Errorf("Classification = %q, want task", got.Header.Classification)
	}
	if !reflect.DeepEqual(got.Header.Tags, []string{"health", "errands"}) {
		t.Errorf("Tags = %v", got.Header.Tags)
	}
	if got.Header.Date != "2026-02-20" {
		t.Errorf("Date lost on header update: %q", got.Header.Date)
	}
	if got.Body != body {
		t.Errorf("Body = %q, want %q", got.Body, body)
	}
}

func TestFileStore_UpdateHeaderMissing(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	err := s.UpdateHeader(context.Background(), uuid.New(), "captures/x.md", func(*Header) {})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestFileStore_List(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	userID := uuid.New()
	other := uuid.New()

	keys := []string{
		"captures/2026-02-20-120000.md",
		"captures/2026-02-20-090503.md",
		"captures/2026-02-21-080000.md",
	}
	for _, k := range keys {
		if err := s.Write(ctx, userID, &Document{Key: k, Header: Header{Type: DocumentTypeCapture}}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := s.Write(ctx, other, &Document{Key: "captures/2026-02-20-100000.md"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := s.List(ctx, userID, CapturePrefix("2026-02-20"))
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"captures/2026-02-20-090503.md", "captures/2026-02-20-120000.md"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}

	empty, err := s.List(ctx, uuid.New(), "captures/")
	if err != nil {
		t.Fatalf("List() for unknown user error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected no keys for unknown user, got %v", empty)
	}
}

func TestFileStore_RejectsEscapingKeys(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	for _, key := range []string{"", "../x.md", "/etc/passwd", "a/../../b.md", "a//b.md", `a\b.md`} {
		err := s.Write(context.Background(), uuid.New(), &Document{Key: key})
		if err == nil {
			t.Errorf("Expected error for key %q", key)
		}
	}
}

func TestFileStore_HealthCheck(t *testing.T) {
	t.Parallel()

	if err := newTestStore(t).HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestCaptureKey(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 2, 20, 9, 5, 3, 999, time.UTC)
	if got := CaptureKey(at); got != "captures/2026-02-20-090503.md" {
		t.Errorf("CaptureKey() = %q", got)
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		wantErr bool
		body    string
	}{
		{name: "crlf line endings", raw: "---\r\ntype: capture\r\n---\r\n\r\nhello\r\n", body: "hello"},
		{name: "header only", raw: "---\ntype: capture\n---", body: ""},
		{name: "no frontmatter", raw: "hello", wantErr: true},
		{name: "unterminated", raw: "---\ntype: capture\nhello", wantErr: true},
		{name: "bad yaml", raw: "---\ntags: [a\n---\nbody", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			doc, err := Parse("k.md", []byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if doc.Header.Type != DocumentTypeCapture {
				t.Errorf("Type = %q", doc.Header.Type)
			}
			if doc.Body != tt.body {
				t.Errorf("Body = %q, want %q", doc.Body, tt.body)
			}
		})
	}
}

func TestDocument_BodyRoundTripIsExact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "plain capture text", body: "Call the dentist about Thursday"},
		{name: "trailing newline kept", body: "ends with a newline\n"},
		{name: "leading blank line kept", body: "\nstarts blank"},
		{name: "empty", body: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			raw, err := (&Document{Key: "k.md", Header: Header{Type: DocumentTypeCapture}, Body: tt.body}).Marshal()
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			doc, err := Parse("k.md", raw)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if doc.Body != tt.body {
				t.Errorf("Body = %q, want %q", doc.Body, tt.body)
			}
		})
	}
}
