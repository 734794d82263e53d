package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pveiga-dev/ai-employee/internal/vault"
	"github.com/pveiga-dev/ai-employee/pkg/models"
)

// spoolMessage is the wire format of one message file in the mail spool:
// the email bridge drops one JSON file per message and this source turns
// each into a queue item.
type spoolMessage struct {
	ID          string   `json:"id"`
	From        string   `json:"from"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	Received    string   `json:"received"`
	Priority    string   `json:"priority"`
	ThreadID    string   `json:"thread_id"`
	Attachments []string `json:"attachments"`
}

// MailboxSource perceives messages from a spool directory of JSON files.
// The spool is read-only to us; deduplication, not deletion, prevents
// reprocessing.
type MailboxSource struct {
	spoolDir string
}

// NewMailboxSource returns a source over spoolDir.
func NewMailboxSource(spoolDir string) *MailboxSource {
	return &MailboxSource{spoolDir: spoolDir}
}

func (s *MailboxSource) Name() string { return "email_watcher" }

// Poll reads every message file in the spool. A malformed file is skipped,
// not fatal, so one bad export never blocks the mailbox.
func (s *MailboxSource) Poll(ctx context.Context) ([]models.ItemRecord, error) {
	entries, err := os.ReadDir(s.spoolDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading mail spool: %w", err)
	}

	var items []models.ItemRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.spoolDir, e.Name()))
		if err != nil {
			continue
		}
		var msg spoolMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		id := msg.ID
		if id == "" {
			id = "email_" + strings.TrimSuffix(e.Name(), ".json")
		}
		received := time.Now()
		if t, err := time.Parse(time.RFC3339, msg.Received); err == nil {
			received = t
		}
		extra := map[string]any{"from": msg.From}
		if msg.ThreadID != "" {
			extra["thread_id"] = msg.ThreadID
		}
		if len(msg.Attachments) > 0 {
			extra["attachments"] = msg.Attachments
		}
		items = append(items, models.ItemRecord{
			ID:         id,
			Kind:       models.KindEmail,
			Source:     s.Name(),
			Subject:    msg.Subject,
			Content:    msg.Body,
			Priority:   mailPriority(msg),
			ReceivedAt: received,
			Extra:      extra,
		})
	}
	return items, nil
}

func mailPriority(msg spoolMessage) models.Priority {
	switch models.Priority(msg.Priority) {
	case models.PriorityCritical, models.PriorityHigh,
		models.PriorityMedium, models.PriorityLow:
		return models.Priority(msg.Priority)
	}
	haystack := strings.ToLower(msg.Subject)
	for _, kw := range urgentKeywords {
		if strings.Contains(haystack, kw) {
			return models.PriorityHigh
		}
	}
	return models.PriorityMedium
}

// Materialize writes the queue file for one email.
func (s *MailboxSource) Materialize(v *vault.Vault, item models.ItemRecord) (string, error) {
	dir, err := v.NeedsAction("emails")
	if err != nil {
		return "", err
	}

	hdr := models.QueueHeader{
		Type:     "queue_item",
		Source:   s.Name(),
		Subject:  item.Subject,
		Received: item.ReceivedAt.UTC().Format(time.RFC3339),
		Priority: item.Priority,
		Status:   models.StatusPending,
		Extra:    item.Extra,
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Email: %s\n\n", item.Subject)
	if from, ok := item.Extra["from"].(string); ok && from != "" {
		fmt.Fprintf(&b, "**From:** %s\n\n", from)
	}
	b.WriteString(item.Content)
	b.WriteString("\n")

	name := fmt.Sprintf("EMAIL_%s_%s", item.ReceivedAt.Format("20060102_150405"), item.Subject)
	return vault.WriteActionFile(dir, name, hdr, b.String())
}
