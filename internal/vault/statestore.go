package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Capacity bounds for the processed-ID set. When the set exceeds maxIDs it
// is trimmed to trimTo, evicting the oldest entries first.
const (
	processedMaxIDs = 10_000
	processedTrimTo = 5_000
)

// ProcessedSet is the persisted deduplication state of one watcher: an
// ordered, capacity-bounded set of item IDs that have already been
// materialized. It is owned exclusively by that watcher and read back on
// startup so deduplication survives restarts.
type ProcessedSet struct {
	path  string
	ids   []string
	index map[string]struct{}
}

type processedState struct {
	ProcessedIDs []string `json:"processed_ids"`
	LastUpdated  string   `json:"last_updated"`
}

// LoadProcessedSet loads (or initializes) the processed-ID set for the
// named watcher from stateDir. A corrupted state file is discarded and
// reset to empty: losing dedup history is recoverable, crashing is not.
func LoadProcessedSet(stateDir, watcherName string) (*ProcessedSet, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir: %w", err)
	}
	s := &ProcessedSet{
		path:  fmt.Sprintf("%s/%s_processed.json", stateDir, watcherName),
		index: make(map[string]struct{}),
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return s, nil // missing file is a fresh start
	}
	var st processedState
	if err := json.Unmarshal(data, &st); err != nil {
		return s, nil // corrupted state resets to empty
	}
	for _, id := range st.ProcessedIDs {
		if _, dup := s.index[id]; dup {
			continue
		}
		s.ids = append(s.ids, id)
		s.index[id] = struct{}{}
	}
	return s, nil
}

// ShouldProcess reports whether an item ID has NOT been processed yet.
func (s *ProcessedSet) ShouldProcess(id string) bool {
	_, seen := s.index[id]
	return !seen
}

// MarkProcessed records an item ID and persists the set. Once marked, the
// ID stays marked across restarts until capacity eviction trims it.
func (s *ProcessedSet) MarkProcessed(id string) error {
	if _, seen := s.index[id]; !seen {
		s.ids = append(s.ids, id)
		s.index[id] = struct{}{}
	}
	if len(s.ids) > processedMaxIDs {
		evict := len(s.ids) - processedTrimTo
		for _, old := range s.ids[:evict] {
			delete(s.index, old)
		}
		s.ids = append([]string(nil), s.ids[evict:]...)
	}
	return s.Save()
}

// Len returns the number of retained IDs.
func (s *ProcessedSet) Len() int { return len(s.ids) }

// Save persists the set atomically.
func (s *ProcessedSet) Save() error {
	st := processedState{
		ProcessedIDs: s.ids,
		LastUpdated:  time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling processed state: %w", err)
	}
	if err := atomicWrite(s.path, data); err != nil {
		return fmt.Errorf("saving processed state: %w", err)
	}
	return nil
}

// SaveJSON atomically serializes v as indented JSON to path. Shared by the
// orchestrator and scheduler for their state files.
func SaveJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	return atomicWrite(path, data)
}

// LoadJSON deserializes path into v. Missing or corrupted files return an
// error the caller treats as "fresh start", never as fatal.
func LoadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading state: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing state: %w", err)
	}
	return nil
}
