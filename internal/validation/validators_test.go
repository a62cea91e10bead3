package validation

import (
	"errors"
	"strings"
	"testing"
)

type sampleRequest struct {
	Text      string `json:"text" validate:"required,min=1,max=10"`
	InputMode string `json:"input_mode" validate:"required,input_mode"`
	Domain    string `json:"domain,omitempty" validate:"omitempty,life_domain"`
	Timezone  string `json:"timezone,omitempty" validate:"omitempty,iana_timezone"`
	Type      string `json:"session_type,omitempty" validate:"omitempty,session_type"`
	Role      string `json:"role,omitempty" validate:"omitempty,message_role"`
}

func TestStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		req       sampleRequest
		wantField string
		wantTag   string
	}{
		{name: "valid", req: sampleRequest{Text: "hello", InputMode: "voice", Domain: "play", Timezone: "Europe/Paris", Type: "life_mapping", Role: "user"}},
		{name: "missing text", req: sampleRequest{InputMode: "text"}, wantField: "text", wantTag: "required"},
		{name: "too long in runes", req: sampleRequest{Text: strings.Repeat("é", 11), InputMode: "text"}, wantField: "text", wantTag: "max"},
		{name: "ten multibyte runes fit", req: sampleRequest{Text: strings.Repeat("é", 10), InputMode: "text"}},
		{name: "bad input mode", req: sampleRequest{Text: "hi", InputMode: "email"}, wantField: "input_mode", wantTag: "input_mode"},
		{name: "bad domain", req: sampleRequest{Text: "hi", InputMode: "text", Domain: "work"}, wantField: "domain", wantTag: "life_domain"},
		{name: "bad timezone", req: sampleRequest{Text: "hi", InputMode: "text", Timezone: "Mars/Olympus"}, wantField: "timezone", wantTag: "iana_timezone"},
		{name: "local timezone rejected", req: sampleRequest{Text: "hi", InputMode: "text", Timezone: "Local"}, wantField: "timezone", wantTag: "iana_timezone"},
		{name: "bad session type", req: sampleRequest{Text: "hi", InputMode: "text", Type: "therapy"}, wantField: "session_type", wantTag: "session_type"},
		{name: "bad role", req: sampleRequest{Text: "hi", InputMode: "text", Role: "system"}, wantField: "role", wantTag: "message_role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Struct(tt.req)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Struct() unexpected error = %v", err)
				}
				return
			}

			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("Expected *FieldError, got %v", err)
			}
			if fe.Field != tt.wantField || fe.Tag != tt.wantTag {
				t.Errorf("FieldError = %+v, want field %q tag %q", fe, tt.wantField, tt.wantTag)
			}
			if fe.Error() == "" {
				t.Error("Expected non-empty message")
			}
		})
	}
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "  hello  ", want: "hello"},
		{in: "a\x00b\x07c", want: "abc"},
		{in: "line1\nline2\tx", want: "line1\nline2\tx"},
		{in: " \x00 ", want: ""},
	}

	for _, tt := range tests {
		if got := SanitizeText(tt.in); got != tt.want {
			t.Errorf("SanitizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
