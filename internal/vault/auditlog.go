package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one machine-readable record of something the system did.
// Entries are append-only and permanent; the human-visible dashboard is
// the best-effort mirror of the same events.
type AuditEntry struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	ActionType string `json:"action_type"`
	Actor      string `json:"actor"`
	SourceFile string `json:"source_file,omitempty"`
	Action     string `json:"action,omitempty"`
	Target     string `json:"target,omitempty"`
	Result     string `json:"result"`
	Error      string `json:"error,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// AuditLog appends structured entries to one JSON-array file per UTC day
// under Logs/. Writes are read-modify-write with an atomic rename, so a
// crash never leaves a half-written log file.
type AuditLog struct {
	dir string
	mu  sync.Mutex

	// now is injectable for tests that pin the day boundary.
	now func() time.Time
}

// NewAuditLog creates an audit log rooted at the vault's Logs directory.
func NewAuditLog(logsDir string) *AuditLog {
	return &AuditLog{dir: logsDir, now: time.Now}
}

func (l *AuditLog) dayFile(t time.Time) string {
	return filepath.Join(l.dir, t.UTC().Format("2006-01-02")+".json")
}

// Append records one entry, filling ID and Timestamp if unset.
func (l *AuditLog) Append(entry AuditEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	now := l.now()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp == "" {
		entry.Timestamp = now.UTC().Format(time.RFC3339)
	}

	path := l.dayFile(now)
	var entries []AuditEntry
	if data, err := os.ReadFile(path); err == nil {
		// A corrupted day file starts over rather than poisoning appends.
		_ = json.Unmarshal(data, &entries)
	}
	entries = append(entries, entry)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling audit entries: %w", err)
	}
	if err := atomicWrite(path, data); err != nil {
		return fmt.Errorf("writing audit log: %w", err)
	}
	return nil
}

// ReadDay returns all entries logged on the given UTC day. A missing file
// yields an empty slice.
func (l *AuditLog) ReadDay(day time.Time) ([]AuditEntry, error) {
	data, err := os.ReadFile(l.dayFile(day))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	var entries []AuditEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing audit log: %w", err)
	}
	return entries, nil
}
