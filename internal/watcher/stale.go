package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pveiga-dev/ai-employee/internal/vault"
	"github.com/pveiga-dev/ai-employee/pkg/models"
)

// SweepStale finds approval requests that have sat in Pending_Approval
// longer than the threshold and returns them all, flagging any that were
// not flagged yet. The flag is written to the file BEFORE any notification
// goes out: if notifying fails, the flag still prevents re-notifying the
// same file on the next sweep. Flagging is advisory and never moves or
// expires a file.
func (w *ApprovalWatcher) SweepStale() ([]vault.QueueItem, error) {
	items, err := w.vault.ListFolder(vault.FolderPendingApproval)
	if err != nil {
		return nil, fmt.Errorf("listing pending approvals: %w", err)
	}

	now := time.Now()
	var stale []vault.QueueItem
	for _, item := range items {
		path := filepath.Join(w.vault.Root, filepath.FromSlash(item.Path))
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		age := now.Sub(info.ModTime())
		if age < w.staleAfter {
			continue
		}
		stale = append(stale, item)

		if item.Header.Stale {
			// Already flagged on a previous sweep. Reporting it again is
			// fine, notifying again is not.
			continue
		}
		if err := vault.UpdateHeader(path, func(h *models.QueueHeader) {
			h.Stale = true
		}); err != nil {
			w.log.Error().Err(err).Str("file", item.Filename).Msg("failed to flag stale file")
			continue
		}
		hours := int(age.Hours())
		w.log.Warn().Str("file", item.Filename).Int("age_hours", hours).Msg("approval request is stale")
		if w.dashboard != nil {
			w.dashboard.LogError(fmt.Sprintf("stale approval: %s has waited %dh for a decision", item.Filename, hours))
		}
	}

	if len(stale) > 0 {
		w.log.Info().Int("stale", len(stale)).Msg("stale sweep complete")
	}
	return stale, nil
}
