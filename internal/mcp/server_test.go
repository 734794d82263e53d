package mcp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pveiga-dev/ai-employee/internal/vault"
	"github.com/pveiga-dev/ai-employee/pkg/models"
)

func testServer(t *testing.T) (*Server, *vault.Vault) {
	t.Helper()
	v, err := vault.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := v.EnsureLayout(); err != nil {
		t.Fatal(err)
	}
	audit := vault.NewAuditLog(v.Dir(vault.FolderLogs))
	return NewServer(v, audit, nil, "test"), v
}

type recordingPending struct {
	added []string
}

func (p *recordingPending) AddPending(action, target string) {
	p.added = append(p.added, action+"|"+target)
}

func writePending(t *testing.T, v *vault.Vault, subdomain, name, content string) string {
	t.Helper()
	dir := filepath.Join(v.Root, vault.FolderNeedsAction, subdomain)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const emailItem = `---
type: queue_item
source: email
subject: Quarterly numbers
priority: high
status: pending
---
Please review the attached numbers.
`

func TestListPending(t *testing.T) {
	s, v := testServer(t)
	writePending(t, v, "emails", "EMAIL_1.md", emailItem)
	writePending(t, v, "file_drops", "FILE_1.md",
		"---\ntype: queue_item\nsource: file_drop\nsubject: report.pdf\npriority: low\nstatus: pending\n---\n")

	res, out, err := s.handleListPending(context.Background(), nil, listPendingInput{})
	if err != nil {
		t.Fatal(err)
	}
	if res != nil {
		t.Fatalf("unexpected error result: %+v", res)
	}
	if out.Count != 2 {
		t.Fatalf("count = %d, want 2", out.Count)
	}
	// Priority order: the high email before the low file drop.
	if out.Items[0].Subject != "Quarterly numbers" {
		t.Errorf("items = %+v", out.Items)
	}

	_, filtered, _ := s.handleListPending(context.Background(), nil, listPendingInput{Subdomain: "file_drops"})
	if filtered.Count != 1 || filtered.Items[0].Subdomain != "file_drops" {
		t.Errorf("filtered = %+v", filtered)
	}
}

func TestReadItem(t *testing.T) {
	s, v := testServer(t)
	writePending(t, v, "emails", "EMAIL_1.md", emailItem)

	res, out, err := s.handleReadItem(context.Background(), nil, readItemInput{
		Path: "Needs_Action/emails/EMAIL_1.md",
	})
	if err != nil {
		t.Fatal(err)
	}
	if res != nil {
		t.Fatalf("unexpected error result: %+v", res)
	}
	if out.Header.Subject != "Quarterly numbers" {
		t.Errorf("header = %+v", out.Header)
	}
	if !strings.Contains(out.Body, "attached numbers") {
		t.Errorf("body = %q", out.Body)
	}
}

func TestReadItemRejectsTraversal(t *testing.T) {
	s, _ := testServer(t)
	for _, path := range []string{"../outside.md", "/etc/passwd", ""} {
		res, _, err := s.handleReadItem(context.Background(), nil, readItemInput{Path: path})
		if err != nil {
			t.Fatal(err)
		}
		if res == nil || !res.IsError {
			t.Errorf("path %q should be rejected", path)
		}
	}
}

func TestReadItemMissingFile(t *testing.T) {
	s, _ := testServer(t)
	res, _, _ := s.handleReadItem(context.Background(), nil, readItemInput{Path: "Needs_Action/emails/NOPE.md"})
	if res == nil || !res.IsError {
		t.Error("missing file should produce an error result")
	}
}

func TestCreateApprovalRecordsPendingRow(t *testing.T) {
	s, _ := testServer(t)
	pending := &recordingPending{}
	s.pending = pending

	res, _, err := s.handleCreateApproval(context.Background(), nil, createApprovalInput{
		ActionType: "send_email",
		Target:     "bob@example.com",
		Summary:    "Send the Q3 numbers",
		Params:     map[string]any{"to": "bob@example.com", "subject": "Q3", "body": "numbers"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res != nil {
		t.Fatalf("unexpected tool error: %+v", res)
	}
	if len(pending.added) != 1 || pending.added[0] != "send_email|bob@example.com" {
		t.Errorf("pending rows = %v", pending.added)
	}
}

func TestCreateApprovalRequest(t *testing.T) {
	s, v := testServer(t)

	res, out, err := s.handleCreateApproval(context.Background(), nil, createApprovalInput{
		ActionType: "send_email",
		Target:     "bob@example.com",
		Summary:    "Send the Q3 numbers",
		Params:     map[string]any{"to": "bob@example.com", "subject": "Q3", "body": "numbers attached"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res != nil {
		t.Fatalf("unexpected error result: %+v", res)
	}

	abs := filepath.Join(v.Root, filepath.FromSlash(out.Path))
	hdr, err := vault.ReadHeader(abs)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Status != models.StatusPendingApproval || !hdr.RequiresApproval {
		t.Errorf("header = %+v", hdr)
	}
	if hdr.Priority != models.PriorityMedium {
		t.Errorf("priority should default to medium, got %q", hdr.Priority)
	}
	if !strings.HasPrefix(out.Path, vault.FolderPendingApproval+"/") {
		t.Errorf("path = %q, want under Pending_Approval", out.Path)
	}

	audit := vault.NewAuditLog(v.Dir(vault.FolderLogs))
	entries, _ := audit.ReadDay(time.Now())
	if len(entries) != 1 || entries[0].ActionType != "approval_requested" {
		t.Errorf("audit = %+v", entries)
	}
}

func TestCreateApprovalValidatesInput(t *testing.T) {
	s, _ := testServer(t)
	tests := []struct {
		name  string
		input createApprovalInput
	}{
		{"unknown action", createApprovalInput{ActionType: "launch_rocket", Target: "x", Summary: "y"}},
		{"missing target", createApprovalInput{ActionType: "send_email", Summary: "y"}},
		{"missing summary", createApprovalInput{ActionType: "send_email", Target: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _, err := s.handleCreateApproval(context.Background(), nil, tt.input)
			if err != nil {
				t.Fatal(err)
			}
			if res == nil || !res.IsError {
				t.Error("expected an error result")
			}
		})
	}
}

func TestCreateApprovalKeepsExplicitLowPriority(t *testing.T) {
	s, v := testServer(t)
	_, out, _ := s.handleCreateApproval(context.Background(), nil, createApprovalInput{
		ActionType: "generic",
		Target:     "ops",
		Summary:    "Rotate the backup key",
		Priority:   "low",
		Params:     map[string]any{"note": "no rush"},
	})
	hdr, err := vault.ReadHeader(filepath.Join(v.Root, filepath.FromSlash(out.Path)))
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Priority != models.PriorityLow {
		t.Errorf("priority = %q, want low preserved", hdr.Priority)
	}
}

func TestQueueCounts(t *testing.T) {
	s, v := testServer(t)
	writePending(t, v, "emails", "EMAIL_1.md", emailItem)

	_, out, err := s.handleQueueCounts(context.Background(), nil, queueCountsInput{})
	if err != nil {
		t.Fatal(err)
	}
	if out.NeedsAction != 1 {
		t.Errorf("needs_action = %d, want 1", out.NeedsAction)
	}
}
