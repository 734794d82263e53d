package vault

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pveiga-dev/ai-employee/pkg/models"
)

// QueueItem is the listing view of one queue file.
type QueueItem struct {
	Path      string // relative to the vault root
	Filename  string
	Subdomain string
	Header    models.QueueHeader
	Created   time.Time
}

// SortItems orders items by priority rank (critical first) then received
// timestamp ascending. The order is stable and deterministic: it drives
// audit-log order and must be reproducible in tests.
func SortItems(items []QueueItem) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := items[i].Header.Priority.Rank(), items[j].Header.Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return receivedOf(items[i]) < receivedOf(items[j])
	})
}

func receivedOf(it QueueItem) string {
	if it.Header.Received != "" {
		return it.Header.Received
	}
	return it.Created.UTC().Format(time.RFC3339)
}

func (v *Vault) parseItem(path, subdomain string) (QueueItem, error) {
	hdr, err := ReadHeader(path)
	if err != nil {
		return QueueItem{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return QueueItem{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if subdomain == "" {
		subdomain = filepath.Base(filepath.Dir(path))
	}
	return QueueItem{
		Path:      v.Rel(path),
		Filename:  filepath.Base(path),
		Subdomain: subdomain,
		Header:    hdr,
		Created:   info.ModTime(),
	}, nil
}

// ListPending lists the items waiting in Needs_Action, optionally filtered
// to one subdomain, sorted by priority then age.
func (v *Vault) ListPending(subdomain string) ([]QueueItem, error) {
	root := filepath.Join(v.Root, FolderNeedsAction)
	if _, err := os.Stat(root); err != nil {
		return nil, nil
	}

	var dirs []string
	if subdomain != "" {
		dirs = []string{filepath.Join(root, subdomain)}
	} else {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("reading needs-action: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				dirs = append(dirs, filepath.Join(root, e.Name()))
			}
		}
	}

	var items []QueueItem
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
				continue
			}
			item, err := v.parseItem(filepath.Join(dir, e.Name()), filepath.Base(dir))
			if err != nil {
				continue // unreadable file never aborts a listing
			}
			items = append(items, item)
		}
	}
	SortItems(items)
	return items, nil
}

// ListFolder lists every queue file under one vault folder, recursively.
func (v *Vault) ListFolder(folder string) ([]QueueItem, error) {
	root := filepath.Join(v.Root, folder)
	if _, err := os.Stat(root); err != nil {
		return nil, nil
	}

	var items []QueueItem
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		item, perr := v.parseItem(path, "")
		if perr == nil {
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", folder, err)
	}
	SortItems(items)
	return items, nil
}

// QueueCounts summarizes the pipeline: per-folder .md counts plus the
// number of Done files touched today.
type QueueCounts struct {
	NeedsAction     int
	Plans           int
	PendingApproval int
	Approved        int
	Rejected        int
	DoneToday       int
}

// Counts walks the pipeline folders and tallies queue files.
func (v *Vault) Counts() QueueCounts {
	countMD := func(folder string) int {
		n := 0
		_ = filepath.WalkDir(filepath.Join(v.Root, folder), func(path string, d fs.DirEntry, err error) error {
			if err == nil && !d.IsDir() && strings.HasSuffix(d.Name(), ".md") {
				n++
			}
			return nil
		})
		return n
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	doneToday := 0
	_ = filepath.WalkDir(filepath.Join(v.Root, FolderDone), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		if info, ierr := d.Info(); ierr == nil && !info.ModTime().UTC().Before(today) {
			doneToday++
		}
		return nil
	})

	return QueueCounts{
		NeedsAction:     countMD(FolderNeedsAction),
		Plans:           countMD(FolderPlans),
		PendingApproval: countMD(FolderPendingApproval),
		Approved:        countMD(FolderApproved),
		Rejected:        countMD(FolderRejected),
		DoneToday:       doneToday,
	}
}

// ArchiveDone moves Done/ files whose mtime is older than olderThanDays
// into Done/archive/YYYY-MM/ (bucketed by the file's month), resolving
// name collisions. Returns the number moved.
func (v *Vault) ArchiveDone(olderThanDays int) (int, error) {
	doneDir := filepath.Join(v.Root, FolderDone)
	entries, err := os.ReadDir(doneDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading done folder: %w", err)
	}

	cutoff := time.Now().Add(-time.Duration(olderThanDays) * 24 * time.Hour)
	archived := 0

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		info, ierr := e.Info()
		if ierr != nil || info.ModTime().After(cutoff) {
			continue
		}
		archiveDir := filepath.Join(doneDir, "archive", info.ModTime().Format("2006-01"))
		if err := os.MkdirAll(archiveDir, 0o755); err != nil {
			return archived, fmt.Errorf("creating archive dir: %w", err)
		}
		src := filepath.Join(doneDir, e.Name())
		dest := resolveCollision(archiveDir, e.Name())
		if err := copyFile(src, dest); err != nil {
			return archived, fmt.Errorf("archiving %s: %w", e.Name(), err)
		}
		if err := os.Remove(src); err != nil {
			return archived, fmt.Errorf("removing archived source: %w", err)
		}
		archived++
	}
	return archived, nil
}
