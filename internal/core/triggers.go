package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pveiga-dev/ai-employee/internal/vault"
)

// TaskRunner executes one scheduled task: assistant tasks go through the
// Assistant, maintenance tasks through registered handlers.
type TaskRunner struct {
	Assistant Assistant
	Audit     *vault.AuditLog
	Log       zerolog.Logger

	// Maintenance maps non-assistant task names to their handlers. The
	// application wires these at startup.
	Maintenance map[string]func(ctx context.Context) error
}

// Run executes t and writes one audit entry with the outcome. A task
// with its own Timeout gets a correspondingly bounded context.
func (r *TaskRunner) Run(ctx context.Context, t ScheduledTask) error {
	log := r.Log.With().Str("task", t.Name).Logger()
	log.Info().Msg("running scheduled task")

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	var err error
	if t.Assistant {
		if r.Assistant == nil {
			err = fmt.Errorf("no assistant configured")
		} else {
			_, err = r.Assistant.Invoke(ctx, t.Prompt)
		}
	} else if handler, ok := r.Maintenance[t.Name]; ok {
		err = handler(ctx)
	} else {
		err = fmt.Errorf("no handler registered for task %s", t.Name)
	}

	if r.Audit != nil {
		entry := vault.AuditEntry{
			ActionType: "scheduled_task",
			Actor:      "orchestrator",
			Action:     t.Name,
			Result:     "success",
		}
		if err != nil {
			entry.Result = "failure"
			entry.Error = err.Error()
		}
		if aerr := r.Audit.Append(entry); aerr != nil {
			log.Error().Err(aerr).Msg("failed to write audit log")
		}
	}
	if err != nil {
		log.Error().Err(err).Msg("scheduled task failed")
		return err
	}
	log.Info().Msg("scheduled task complete")
	return nil
}

// FindTask locates a task by name in a registry.
func FindTask(tasks []ScheduledTask, name string) (ScheduledTask, bool) {
	for _, t := range tasks {
		if t.Name == name {
			return t, true
		}
	}
	return ScheduledTask{}, false
}

// RequestTrigger asks a running orchestrator to execute a task on its next
// tick by dropping a trigger file. Idempotent: re-triggering an already
// pending task is a no-op.
func RequestTrigger(stateDir, taskName string) error {
	dir := filepath.Join(stateDir, "triggers")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating triggers dir: %w", err)
	}
	path := filepath.Join(dir, taskName+".trigger")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("writing trigger file: %w", err)
	}
	return f.Close()
}

// ConsumeTriggers removes and returns the pending trigger names, sorted.
// Consuming before running means a task that wedges does not retrigger
// itself forever.
func ConsumeTriggers(stateDir string) ([]string, error) {
	dir := filepath.Join(stateDir, "triggers")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading triggers dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".trigger") {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".trigger"))
	}
	sort.Strings(names)
	return names, nil
}
