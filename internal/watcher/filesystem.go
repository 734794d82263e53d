package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/pveiga-dev/ai-employee/internal/vault"
	"github.com/pveiga-dev/ai-employee/pkg/models"
)

// dropExtensions are the file types picked up from the Drop folder.
var dropExtensions = map[string]bool{
	".pdf": true, ".docx": true, ".doc": true, ".txt": true,
	".md": true, ".csv": true, ".xlsx": true, ".png": true, ".jpg": true,
}

// urgentKeywords in a filename or text preview bump the item to high
// priority.
var urgentKeywords = []string{"urgent", "asap", "critical", "deadline", "overdue"}

const previewBytes = 500

// DropSource perceives files placed in the vault's Drop folder. A file is
// only emitted once its size has held steady across two polls, so a file
// still being copied in is not picked up half-written.
type DropSource struct {
	vault *vault.Vault

	// lastSizes remembers the size seen on the previous poll, keyed by
	// filename. A file whose size changed since last poll is skipped.
	lastSizes map[string]int64
}

// NewDropSource returns a source over the vault's Drop folder.
func NewDropSource(v *vault.Vault) *DropSource {
	return &DropSource{vault: v, lastSizes: make(map[string]int64)}
}

func (s *DropSource) Name() string { return "filesystem_watcher" }

// Poll lists the Drop folder and returns stable items for files that have
// finished writing.
func (s *DropSource) Poll(ctx context.Context) ([]models.ItemRecord, error) {
	dir := s.vault.Dir(vault.FolderDrop)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading drop folder: %w", err)
	}

	seen := make(map[string]bool, len(entries))
	var items []models.ItemRecord
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !dropExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		seen[name] = true

		info, err := e.Info()
		if err != nil {
			continue
		}
		prev, known := s.lastSizes[name]
		s.lastSizes[name] = info.Size()
		if !known || prev != info.Size() {
			continue // wait for the size to settle
		}

		preview := s.preview(filepath.Join(dir, name))
		items = append(items, models.ItemRecord{
			ID:         fmt.Sprintf("file_%s_%d_%d", name, info.ModTime().Unix(), info.Size()),
			Kind:       models.KindFileDrop,
			Source:     s.Name(),
			Subject:    name,
			Content:    preview,
			Priority:   dropPriority(name, preview),
			ReceivedAt: info.ModTime(),
			Extra: map[string]any{
				"file_size": info.Size(),
				"file_path": filepath.Join(vault.FolderDrop, name),
			},
		})
	}

	// Forget files that left the folder so a re-drop gets a fresh
	// stability window.
	for name := range s.lastSizes {
		if !seen[name] {
			delete(s.lastSizes, name)
		}
	}
	return items, nil
}

// preview returns the first bytes of a plain-text file, empty for binary
// formats.
func (s *DropSource) preview(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".csv":
	default:
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()
	buf := make([]byte, previewBytes)
	n, _ := f.Read(buf)
	return strings.ToValidUTF8(string(buf[:n]), "")
}

func dropPriority(name, preview string) models.Priority {
	haystack := strings.ToLower(name + " " + preview)
	for _, kw := range urgentKeywords {
		if strings.Contains(haystack, kw) {
			return models.PriorityHigh
		}
	}
	return models.PriorityMedium
}

// Materialize writes the queue file for one dropped file.
func (s *DropSource) Materialize(v *vault.Vault, item models.ItemRecord) (string, error) {
	dir, err := v.NeedsAction("file_drops")
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
	fmt.Fprintf(&b, "# File Drop: %s\n\n", item.Subject)
	fmt.Fprintf(&b, "A new file arrived in the Drop folder.\n\n")
	if item.Content != "" {
		fmt.Fprintf(&b, "## Preview\n\n```\n%s\n```\n", item.Content)
	}

	name := fmt.Sprintf("FILE_%s_%s", item.ReceivedAt.Format("20060102_150405"), item.Subject)
	return vault.WriteActionFile(dir, name, hdr, b.String())
}

// WatchDrop runs the engine event-driven: fsnotify events on the Drop
// folder trigger a debounced poll cycle, with the engine interval as a
// fallback for missed events. Blocks until ctx is canceled.
func WatchDrop(ctx context.Context, v *vault.Vault, engine *Engine, log zerolog.Logger) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer fw.Close()

	dir := v.Dir(vault.FolderDrop)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating drop folder: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watching drop folder: %w", err)
	}
	log.Info().Str("dir", dir).Msg("event-driven drop watch started")

	// The debounce delay also gives the size-stability check two polls.
	const debounce = 2 * time.Second
	var pending *time.Timer
	fire := make(chan struct{}, 1)

	fallback := time.NewTicker(engine.interval)
	defer fallback.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("fsnotify error")
		case <-fire:
			// Two cycles: the first records sizes, the second emits
			// files whose size held steady.
			if _, err := engine.RunOnce(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("event-driven cycle failed")
			}
			if _, err := engine.RunOnce(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("event-driven cycle failed")
			}
		case <-fallback.C:
			if _, err := engine.RunOnce(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("fallback cycle failed")
			}
		}
	}
}
