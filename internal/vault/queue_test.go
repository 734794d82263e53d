package vault

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pveiga-dev/ai-employee/pkg/models"
)

func TestSortItemsPriorityThenReceived(t *testing.T) {
	items := []QueueItem{
		{Filename: "c", Header: models.QueueHeader{Priority: models.PriorityLow, Received: "2026-01-01T08:00:00Z"}},
		{Filename: "a", Header: models.QueueHeader{Priority: models.PriorityCritical, Received: "2026-01-01T12:00:00Z"}},
		{Filename: "b", Header: models.QueueHeader{Priority: models.PriorityCritical, Received: "2026-01-01T09:00:00Z"}},
		{Filename: "d", Header: models.QueueHeader{Priority: "bogus", Received: "2026-01-01T07:00:00Z"}},
	}

	SortItems(items)

	// d's bogus priority ranks with low and its earlier received time
	// wins the tie-break against c.
	want := []string{"b", "a", "d", "c"}
	for i, w := range want {
		if items[i].Filename != w {
			t.Fatalf("position %d = %s, want %s (full order: %v)", i, items[i].Filename, w,
				[]string{items[0].Filename, items[1].Filename, items[2].Filename, items[3].Filename})
		}
	}
}

func TestListPendingAcrossSubdomains(t *testing.T) {
	v := testVault(t)
	writeQueueFile(t, v, filepath.Join(FolderNeedsAction, "emails"), "one.md",
		models.QueueHeader{Subject: "e1", Priority: models.PriorityLow, Received: "2026-01-01T08:00:00Z"}, "")
	writeQueueFile(t, v, filepath.Join(FolderNeedsAction, "file_drops"), "two.md",
		models.QueueHeader{Subject: "f1", Priority: models.PriorityHigh, Received: "2026-01-01T09:00:00Z"}, "")
	// A non-markdown file is ignored.
	os.WriteFile(filepath.Join(v.Root, FolderNeedsAction, "emails", "note.txt"), []byte("x"), 0o644)

	all, err := v.ListPending("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d items, want 2", len(all))
	}
	if all[0].Header.Subject != "f1" {
		t.Errorf("high priority should sort first, got %s", all[0].Header.Subject)
	}
	if all[0].Subdomain != "file_drops" {
		t.Errorf("subdomain = %s", all[0].Subdomain)
	}

	emails, err := v.ListPending("emails")
	if err != nil {
		t.Fatal(err)
	}
	if len(emails) != 1 || emails[0].Header.Subject != "e1" {
		t.Errorf("subdomain filter: %+v", emails)
	}
}

func TestCounts(t *testing.T) {
	v := testVault(t)
	writeQueueFile(t, v, filepath.Join(FolderNeedsAction, "emails"), "a.md", models.QueueHeader{}, "")
	writeQueueFile(t, v, FolderPendingApproval, "b.md", models.QueueHeader{}, "")
	writeQueueFile(t, v, FolderPendingApproval, "c.md", models.QueueHeader{}, "")
	writeQueueFile(t, v, FolderDone, "d.md", models.QueueHeader{}, "")

	c := v.Counts()
	if c.NeedsAction != 1 || c.PendingApproval != 2 {
		t.Errorf("counts = %+v", c)
	}
	if c.DoneToday != 1 {
		t.Errorf("done today = %d, want 1", c.DoneToday)
	}
}

func TestArchiveDone(t *testing.T) {
	v := testVault(t)
	old := writeQueueFile(t, v, FolderDone, "old.md", models.QueueHeader{Subject: "old"}, "")
	writeQueueFile(t, v, FolderDone, "fresh.md", models.QueueHeader{Subject: "fresh"}, "")

	stale := time.Now().Add(-10 * 24 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatal(err)
	}

	n, err := v.ArchiveDone(7)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("archived %d, want 1", n)
	}
	bucket := stale.Format("2006-01")
	if _, err := os.Stat(filepath.Join(v.Root, FolderDone, "archive", bucket, "old.md")); err != nil {
		t.Error("old file not in its month bucket")
	}
	if _, err := os.Stat(filepath.Join(v.Root, FolderDone, "fresh.md")); err != nil {
		t.Error("fresh file should stay put")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"simple.md", "simple.md"},
		{"with spaces here", "with_spaces_here"},
		{`sl/ash\and:more*?"<>|`, "slashandmore"},
		{"uniço∂e мix", "unioe_ix"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in, 200); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	if got := SanitizeFilename(string(long), 0); len(got) != 200 {
		t.Errorf("default cap: len = %d, want 200", len(got))
	}
}
