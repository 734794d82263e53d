package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/pveiga-dev/ai-employee/internal/core"
	"github.com/pveiga-dev/ai-employee/internal/vault"
)

const stateFileName = "orchestrator_state.json"

// Cadence of the periodic duties relative to ticks: health checks run
// every second tick, state persists every tenth.
const (
	healthEvery  = 2
	persistEvery = 10
)

// State is what survives a restart: the schedule's last-run times, the
// tick count, the watcher restart history, and when the orchestrator was
// last up. Persisting the restart history keeps the storm breaker armed
// across restarts.
type State struct {
	Schedule  core.ScheduleState     `json:"schedule"`
	Tick      int                    `json:"tick"`
	Restarts  map[string][]time.Time `json:"watcher_restarts,omitempty"`
	StartedAt string                 `json:"started_at"`
	SavedAt   string                 `json:"saved_at"`
}

// Orchestrator ties the loop together: watcher supervision via the
// Manager, scheduled tasks via the TaskRunner, manual triggers from the
// trigger directory.
type Orchestrator struct {
	vault    *vault.Vault
	manager  *Manager
	runner   *core.TaskRunner
	tasks    []core.ScheduledTask
	log      zerolog.Logger
	interval time.Duration

	state State
	tick  int

	// now is injectable for schedule tests.
	now func() time.Time
}

// Config wires an Orchestrator.
type Config struct {
	Vault        *vault.Vault
	Manager      *Manager
	Runner       *core.TaskRunner
	Tasks        []core.ScheduledTask
	Logger       zerolog.Logger
	TickInterval time.Duration
}

// New builds an orchestrator and loads any persisted state. Missing or
// corrupted state starts fresh.
func New(cfg Config) *Orchestrator {
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = time.Minute
	}
	o := &Orchestrator{
		vault:    cfg.Vault,
		manager:  cfg.Manager,
		runner:   cfg.Runner,
		tasks:    cfg.Tasks,
		log:      cfg.Logger,
		interval: interval,
		now:      time.Now,
	}
	if err := vault.LoadJSON(o.statePath(), &o.state); err != nil {
		o.state = State{}
	}
	o.tick = o.state.Tick
	if o.manager != nil && len(o.state.Restarts) > 0 {
		o.manager.RestoreRestartHistory(o.state.Restarts)
	}
	return o
}

func (o *Orchestrator) statePath() string {
	return filepath.Join(o.vault.Root, vault.FolderState, stateFileName)
}

// Run is the main loop. It blocks until ctx is canceled, then stops the
// watchers and persists state one last time.
func (o *Orchestrator) Run(ctx context.Context) error {
	if err := o.manager.CheckPrerequisites(); err != nil {
		return fmt.Errorf("prerequisites: %w", err)
	}
	o.state.StartedAt = o.now().UTC().Format(time.RFC3339)
	if err := o.manager.StartAll(ctx); err != nil {
		return err
	}
	o.log.Info().Dur("tick", o.interval).Msg("orchestrator started")

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.log.Info().Msg("orchestrator shutting down")
			o.manager.StopAll(10 * time.Second)
			o.saveState()
			return ctx.Err()
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

// Tick performs one orchestration cycle: manual triggers first, then due
// scheduled tasks, then the periodic duties.
func (o *Orchestrator) Tick(ctx context.Context) {
	o.tick++
	now := o.now()

	o.runTriggers(ctx, now)

	for _, task := range core.DueTasks(o.tasks, &o.state.Schedule, now) {
		if ctx.Err() != nil {
			return
		}
		// A failed task is still marked as run: it waits for its next
		// scheduled slot instead of hammering every tick.
		o.runner.Run(ctx, task)
		o.state.Schedule.MarkRun(task.Name, now)
	}

	if o.tick%healthEvery == 0 {
		o.manager.CheckHealth(ctx)
	}
	if o.tick%persistEvery == 0 {
		o.saveState()
	}
}

// runTriggers consumes the pending manual triggers and runs the named
// tasks immediately, regardless of schedule.
func (o *Orchestrator) runTriggers(ctx context.Context, now time.Time) {
	stateDir, err := o.vault.StateDir()
	if err != nil {
		return
	}
	names, err := core.ConsumeTriggers(stateDir)
	if err != nil {
		o.log.Error().Err(err).Msg("failed to read triggers")
		return
	}
	for _, name := range names {
		task, ok := core.FindTask(o.tasks, name)
		if !ok {
			o.log.Warn().Str("task", name).Msg("trigger names unknown task")
			continue
		}
		o.log.Info().Str("task", name).Msg("manual trigger")
		o.runner.Run(ctx, task)
		o.state.Schedule.MarkRun(task.Name, now)
	}
}

func (o *Orchestrator) saveState() {
	o.state.Tick = o.tick
	if o.manager != nil {
		o.state.Restarts = o.manager.RestartHistory()
	}
	o.state.SavedAt = o.now().UTC().Format(time.RFC3339)
	if err := vault.SaveJSON(o.statePath(), &o.state); err != nil {
		o.log.Error().Err(err).Msg("failed to persist orchestrator state")
	}
}
