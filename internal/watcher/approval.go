package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pveiga-dev/ai-employee/internal/action"
	"github.com/pveiga-dev/ai-employee/internal/vault"
	"github.com/pveiga-dev/ai-employee/pkg/models"
)

// Dashboard receives best-effort human-visible updates. A dashboard
// failure never blocks or fails the pipeline; the audit log is the record
// of truth.
type Dashboard interface {
	LogAction(action, target, result string)
	LogError(message string)
	RemovePending(target string)
	Refresh() error
}

// ApprovalConfig wires an ApprovalWatcher.
type ApprovalConfig struct {
	Vault      *vault.Vault
	Executor   action.Executor
	Audit      *vault.AuditLog
	Dashboard  Dashboard
	Logger     zerolog.Logger
	Interval   time.Duration
	MaxRetries int           // extra attempts after the first; default 2
	RetryDelay time.Duration // pause between attempts; default 5s
	StaleAfter time.Duration // Pending_Approval age threshold; default 24h
}

// ApprovalWatcher drains Approved/ and Rejected/: approved action files
// are executed (with bounded retries) and archived to Done, rejected ones
// are annotated and archived directly. Files that fail terminally stay
// where they are with a status annotation for human triage.
type ApprovalWatcher struct {
	vault      *vault.Vault
	executor   action.Executor
	audit      *vault.AuditLog
	dashboard  Dashboard
	log        zerolog.Logger
	interval   time.Duration
	maxRetries int
	retryDelay time.Duration
	staleAfter time.Duration

	// sleep is injectable so retry tests do not wait wall-clock time.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewApprovalWatcher applies defaults and returns a ready watcher.
func NewApprovalWatcher(cfg ApprovalConfig) *ApprovalWatcher {
	if cfg.Interval < minPollInterval {
		cfg.Interval = minPollInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 24 * time.Hour
	}
	return &ApprovalWatcher{
		vault:      cfg.Vault,
		executor:   cfg.Executor,
		audit:      cfg.Audit,
		dashboard:  cfg.Dashboard,
		log:        cfg.Logger.With().Str("watcher", "approval").Logger(),
		interval:   cfg.Interval,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		staleAfter: cfg.StaleAfter,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// isActionFile reports whether a queue filename is an approval action file.
func isActionFile(name string) bool {
	return strings.HasPrefix(name, "ACTION_") && strings.HasSuffix(name, ".md")
}

// Scan processes every action file currently in Approved/ and Rejected/
// as one batch, highest priority first across both folders: a critical
// rejection never waits behind lower-priority approvals. One broken file
// never stops the batch.
func (w *ApprovalWatcher) Scan(ctx context.Context) error {
	approved, err := w.vault.ListFolder(vault.FolderApproved)
	if err != nil {
		return fmt.Errorf("listing approved: %w", err)
	}
	rejected, err := w.vault.ListFolder(vault.FolderRejected)
	if err != nil {
		return fmt.Errorf("listing rejected: %w", err)
	}
	batch := append(append([]vault.QueueItem{}, approved...), rejected...)
	vault.SortItems(batch)

	for _, item := range batch {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isActionFile(item.Filename) {
			continue
		}
		path := filepath.Join(w.vault.Root, filepath.FromSlash(item.Path))
		if strings.HasPrefix(item.Path, vault.FolderRejected+"/") {
			w.handleRejected(path)
		} else {
			w.handleApproved(ctx, path)
		}
	}
	return nil
}

// handleApproved drives one approved file through parse, validate, and
// execute. Parse and validation failures are terminal on the first pass;
// only execution is retried.
func (w *ApprovalWatcher) handleApproved(ctx context.Context, path string) {
	name := filepath.Base(path)
	log := w.log.With().Str("file", name).Logger()

	req, err := action.ParseApprovalFile(path)
	if err != nil {
		log.Error().Err(err).Msg("approval file failed to parse")
		w.failInPlace(path, models.StatusParseFailed, err.Error())
		return
	}
	if errs := action.Validate(req); len(errs) > 0 {
		msg := strings.Join(errs, "; ")
		log.Error().Str("reasons", msg).Msg("approval file failed validation")
		w.failInPlace(path, models.StatusValidationFailed, msg)
		return
	}
	if req.Expired {
		log.Warn().Str("expires", req.Header.Expires).Msg("approval is past its expiry, executing anyway")
	}

	var res models.Result
	for attempt := 1; attempt <= w.maxRetries+1; attempt++ {
		res = w.executor.Execute(ctx, path)
		if res.Success {
			break
		}
		log.Warn().Int("attempt", attempt).Str("error", res.Error).Msg("execution attempt failed")
		if attempt <= w.maxRetries {
			if err := w.sleep(ctx, w.retryDelay); err != nil {
				return
			}
		}
	}

	if !res.Success {
		log.Error().Str("error", res.Error).Msg("execution failed after all retries")
		w.failInPlace(path, models.StatusExecutionFailed, res.Error)
		return
	}

	// Terminal status first, then archive. The executed annotation must
	// survive the move into Done.
	if err := vault.UpdateHeader(path, func(h *models.QueueHeader) {
		h.Status = models.StatusExecuted
		h.Error = ""
	}); err != nil {
		log.Error().Err(err).Msg("failed to annotate executed status")
	}
	dest, err := w.vault.MoveFileKeepStatus(path, vault.FolderDone)
	if err != nil {
		log.Error().Err(err).Msg("failed to archive executed file")
		return
	}
	log.Info().Str("action", string(res.ActionType)).Str("target", res.Target).Msg("action executed")
	if w.dashboard != nil {
		w.dashboard.LogAction(string(res.ActionType), res.Target, "executed")
		w.dashboard.RemovePending(res.Target)
		if err := w.dashboard.Refresh(); err != nil {
			log.Warn().Err(err).Msg("dashboard refresh failed")
		}
	}
	w.auditDecision("approval_executed", dest, res.Target, string(res.ActionType), "success", "")
}

// handleRejected annotates a human rejection and archives the file.
func (w *ApprovalWatcher) handleRejected(path string) {
	name := filepath.Base(path)
	hdr, _ := vault.ReadHeader(path)

	if err := vault.UpdateHeader(path, func(h *models.QueueHeader) {
		h.Status = models.StatusRejected
	}); err != nil {
		w.log.Error().Err(err).Str("file", name).Msg("failed to annotate rejected status")
	}
	dest, err := w.vault.MoveFileKeepStatus(path, vault.FolderDone)
	if err != nil {
		w.log.Error().Err(err).Str("file", name).Msg("failed to archive rejected file")
		return
	}
	w.log.Info().Str("file", name).Str("target", hdr.Target).Msg("rejection archived")
	if w.dashboard != nil {
		w.dashboard.LogAction(hdr.ActionType, hdr.Target, "rejected")
		w.dashboard.RemovePending(hdr.Target)
		if err := w.dashboard.Refresh(); err != nil {
			w.log.Warn().Err(err).Msg("dashboard refresh failed")
		}
	}
	w.auditDecision("approval_rejected", dest, hdr.Target, hdr.ActionType, "rejected", "")
}

// failInPlace leaves a file where it is with a failure annotation, so a
// human can repair and re-approve it. Every permanent failure is reported
// once: one dashboard error and one audit entry.
func (w *ApprovalWatcher) failInPlace(path, status, reason string) {
	if err := vault.UpdateHeader(path, func(h *models.QueueHeader) {
		h.Status = status
		h.Error = reason
	}); err != nil {
		w.log.Error().Err(err).Str("file", filepath.Base(path)).Msg("failed to annotate failure")
	}
	if w.dashboard != nil {
		kind := strings.ReplaceAll(status, "_", " ")
		w.dashboard.LogError(fmt.Sprintf("%s for %s: %s", kind, filepath.Base(path), reason))
	}
	w.auditDecision("approval_failed", path, "", status, "failure", reason)
}

func (w *ApprovalWatcher) auditDecision(actionType, path, target, action, result, errMsg string) {
	if w.audit == nil {
		return
	}
	entry := vault.AuditEntry{
		ActionType: actionType,
		Actor:      "approval_watcher",
		SourceFile: w.vault.Rel(path),
		Action:     action,
		Target:     target,
		Result:     result,
	}
	if actionType == "approval_rejected" {
		entry.Actor = "human"
	}
	if errMsg != "" {
		entry.Error = errMsg
	}
	if err := w.audit.Append(entry); err != nil {
		w.log.Error().Err(err).Msg("failed to write audit log")
	}
}

// Run scans until ctx is canceled, sweeping Pending_Approval for stale
// requests every tenth cycle.
func (w *ApprovalWatcher) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("approval watcher started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	cycle := 0
	for {
		if err := w.Scan(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error().Err(err).Msg("scan cycle failed")
		}
		cycle++
		if cycle%10 == 0 {
			if _, err := w.SweepStale(); err != nil {
				w.log.Error().Err(err).Msg("stale sweep failed")
			}
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("approval watcher stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
