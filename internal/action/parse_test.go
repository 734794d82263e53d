package action

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pveiga-dev/ai-employee/pkg/models"
)

func writeApproval(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ACTION_test.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validApproval = `---
type: approval_request
subject: Send the update
priority: high
status: approved
action_type: send_email
target: alice@example.com
source_plan: Plans/q3.md
action_payload:
  tool: send_email
  params:
    to: alice@example.com
    subject: Q3 update
    body: Here is the update.
---

# Approval Request
`

func TestParseApprovalFile(t *testing.T) {
	path := writeApproval(t, validApproval)

	req, err := ParseApprovalFile(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if req.ActionType != models.ActionSendEmail {
		t.Errorf("action type = %q", req.ActionType)
	}
	if req.Target != "alice@example.com" {
		t.Errorf("target = %q", req.Target)
	}
	if req.Priority != models.PriorityHigh {
		t.Errorf("priority = %q", req.Priority)
	}
	if req.Payload.Param("subject") != "Q3 update" {
		t.Errorf("payload subject = %q", req.Payload.Param("subject"))
	}
	if req.SourcePlan != "Plans/q3.md" {
		t.Errorf("source plan = %q", req.SourcePlan)
	}
	if req.Expired {
		t.Error("no expiry set, should not be expired")
	}
}

func TestParseApprovalFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantIn  string
	}{
		{
			name:    "wrong type",
			content: "---\ntype: queue_item\naction_payload:\n  tool: x\n  params: {}\n---\n",
			wantIn:  "approval_request",
		},
		{
			name:    "missing payload",
			content: "---\ntype: approval_request\naction_type: send_email\n---\n",
			wantIn:  "action_payload",
		},
		{
			name:    "missing tool",
			content: "---\ntype: approval_request\naction_payload:\n  params: {}\n---\n",
			wantIn:  "tool",
		},
		{
			name:    "no frontmatter",
			content: "just text\n",
			wantIn:  "frontmatter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeApproval(t, tt.content)
			_, err := ParseApprovalFile(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantIn) {
				t.Errorf("error %q should mention %q", err, tt.wantIn)
			}
		})
	}
}

func TestParseUnknownActionTypeSucceeds(t *testing.T) {
	content := "---\ntype: approval_request\naction_type: teleport\naction_payload:\n  tool: teleport\n  params:\n    place: mars\n---\n"
	req, err := ParseApprovalFile(writeApproval(t, content))
	if err != nil {
		t.Fatalf("unknown action types must parse, not error: %v", err)
	}
	// Validation is where it fails.
	if errs := Validate(req); len(errs) == 0 {
		t.Error("unknown action type should fail validation")
	}
}

func TestParseDefaultsPriorityToMedium(t *testing.T) {
	content := "---\ntype: approval_request\naction_type: generic\naction_payload:\n  tool: generic\n  params: {}\n---\n"
	req, err := ParseApprovalFile(writeApproval(t, content))
	if err != nil {
		t.Fatal(err)
	}
	if req.Priority != models.PriorityMedium {
		t.Errorf("priority = %q, want medium", req.Priority)
	}
}

func TestParseAliasCanonicalized(t *testing.T) {
	content := "---\ntype: approval_request\naction_type: reply_email\naction_payload:\n  tool: reply_email\n  params:\n    thread_id: t1\n    body: hi\n---\n"
	req, err := ParseApprovalFile(writeApproval(t, content))
	if err != nil {
		t.Fatal(err)
	}
	if req.ActionType != models.ActionReplyToThread {
		t.Errorf("alias not canonicalized: %q", req.ActionType)
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		expires string
		want    bool
	}{
		{"", false},
		{"2026-05-31T00:00:00Z", true},
		{"2026-06-02T00:00:00Z", false},
		{"not a timestamp", false},
	}
	for _, tt := range tests {
		if got := isExpired(tt.expires, now); got != tt.want {
			t.Errorf("isExpired(%q) = %v, want %v", tt.expires, got, tt.want)
		}
	}
}
