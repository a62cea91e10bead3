package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestParseUserID(t *testing.T) {
	t.Parallel()

	if _, err := parseUserID("1b4e28ba-2fa1-11d2-883f-0016d3cca427"); err != nil {
		t.Errorf("Expected valid UUID to parse, got %v", err)
	}
	if _, err := parseUserID("not-a-uuid"); err == nil {
		t.Error("Expected error for invalid UUID")
	}
}

func TestPrintJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := printJSON(&buf, map[string]string{"state": "new_user"}); err != nil {
		t.Fatalf("printJSON returned error: %v", err)
	}
	if !strings.Contains(buf.String(), `"state": "new_user"`) {
		t.Errorf("Expected indented JSON, got %q", buf.String())
	}
}

func TestArgumentValidation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "state needs a user id", args: []string{"state"}, wantErr: "accepts 1 arg"},
		{name: "state rejects bad uuid", args: []string{"state", "abc"}, wantErr: "invalid user id"},
		{name: "capture add needs --user", args: []string{"capture", "add", "hello"}, wantErr: "--user is required"},
		{name: "ratelimit set needs --rate", args: []string{"ratelimit", "set"}, wantErr: "--rate is required"},
		{name: "ratelimit set rejects bad rate", args: []string{"ratelimit", "set", "--rate", "fast"}, wantErr: "invalid rate"},
		{name: "timezone rejects unknown zone", args: []string{"user", "timezone", "1b4e28ba-2fa1-11d2-883f-0016d3cca427", "Mars/Olympus"}, wantErr: "invalid timezone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newTestRoot()
			var out bytes.Buffer
			root.SetOut(&out)
			root.SetErr(&out)
			root.SetArgs(tt.args)

			err := root.Execute()
			if err == nil {
				t.Fatal("Expected error but got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func newTestRoot() *cobra.Command {
	root := &cobra.Command{Use: "sagectl", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(NewStateCmd(), NewCaptureCmd(), NewRatelimitCmd(), NewUserCmd())
	return root
}
