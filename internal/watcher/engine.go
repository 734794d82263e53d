// Package watcher implements the perception side of the pipeline: polling
// engines that turn external events into queue files exactly once, the
// approval watcher that drives approved actions to execution, and the
// staleness sweep over Pending_Approval.
package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pveiga-dev/ai-employee/internal/vault"
	"github.com/pveiga-dev/ai-employee/pkg/models"
)

// minPollInterval is the floor on polling frequency. Configured intervals
// below it are clamped, not rejected.
const minPollInterval = 30 * time.Second

// Source is one external feed of items: an email mailbox, a chat export, a
// drop folder. Poll returns the currently visible items with stable IDs;
// the engine owns deduplication, so Poll may return the same item on every
// call. Materialize writes the queue file for one item and returns its path.
type Source interface {
	Name() string
	Poll(ctx context.Context) ([]models.ItemRecord, error)
	Materialize(v *vault.Vault, item models.ItemRecord) (string, error)
}

// Engine runs one Source on an interval, deduplicating against a persisted
// processed-ID set. An item is marked processed only after its queue file
// has been written, so a crash between the two re-materializes rather than
// drops the item.
type Engine struct {
	vault     *vault.Vault
	source    Source
	processed *vault.ProcessedSet
	audit     *vault.AuditLog
	log       zerolog.Logger
	interval  time.Duration
}

// EngineConfig wires an Engine.
type EngineConfig struct {
	Vault    *vault.Vault
	Source   Source
	Audit    *vault.AuditLog
	Logger   zerolog.Logger
	Interval time.Duration
}

// NewEngine loads the source's dedup state and returns a ready engine.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	stateDir, err := cfg.Vault.StateDir()
	if err != nil {
		return nil, err
	}
	processed, err := vault.LoadProcessedSet(stateDir, cfg.Source.Name())
	if err != nil {
		return nil, fmt.Errorf("loading processed state for %s: %w", cfg.Source.Name(), err)
	}

	interval := cfg.Interval
	if interval < minPollInterval {
		interval = minPollInterval
	}
	return &Engine{
		vault:     cfg.Vault,
		source:    cfg.Source,
		processed: processed,
		audit:     cfg.Audit,
		log:       cfg.Logger.With().Str("watcher", cfg.Source.Name()).Logger(),
		interval:  interval,
	}, nil
}

// RunOnce performs a single poll cycle and returns how many new items were
// materialized. A failure on one item is logged and skipped; it never
// aborts the rest of the batch.
func (e *Engine) RunOnce(ctx context.Context) (int, error) {
	items, err := e.source.Poll(ctx)
	if err != nil {
		return 0, fmt.Errorf("polling %s: %w", e.source.Name(), err)
	}

	created := 0
	for _, item := range items {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}
		if item.ID == "" || !e.processed.ShouldProcess(item.ID) {
			continue
		}

		path, err := e.source.Materialize(e.vault, item)
		if err != nil {
			e.log.Error().Err(err).Str("item_id", item.ID).Msg("failed to materialize item")
			e.auditItem(item, "", err)
			continue
		}

		// Mark only after the file exists on disk.
		if err := e.processed.MarkProcessed(item.ID); err != nil {
			e.log.Error().Err(err).Str("item_id", item.ID).Msg("failed to persist dedup state")
		}
		created++
		e.log.Info().Str("item_id", item.ID).Str("file", e.vault.Rel(path)).Msg("created queue item")
		e.auditItem(item, path, nil)
	}
	return created, nil
}

// Run polls until ctx is canceled. A failed cycle is logged and the loop
// continues; only cancellation stops a watcher.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info().Dur("interval", e.interval).Msg("watcher started")
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		if n, err := e.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.Error().Err(err).Msg("poll cycle failed")
		} else if n > 0 {
			e.log.Info().Int("new_items", n).Msg("poll cycle complete")
		}

		select {
		case <-ctx.Done():
			e.log.Info().Msg("watcher stopping")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Engine) auditItem(item models.ItemRecord, path string, err error) {
	if e.audit == nil {
		return
	}
	entry := vault.AuditEntry{
		ActionType: "item_perceived",
		Actor:      e.source.Name(),
		Action:     string(item.Kind),
		Target:     item.Subject,
		Result:     "success",
	}
	if path != "" {
		entry.SourceFile = e.vault.Rel(path)
	}
	if err != nil {
		entry.Result = "failure"
		entry.Error = err.Error()
	}
	if aerr := e.audit.Append(entry); aerr != nil {
		e.log.Error().Err(aerr).Msg("failed to write audit log")
	}
}
