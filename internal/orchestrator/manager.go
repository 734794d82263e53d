// Package orchestrator runs the always-on loop: it supervises the watcher
// processes, fires scheduled tasks, and persists its state so a restart
// resumes instead of rewinding.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/pveiga-dev/ai-employee/internal/observability"
	"github.com/pveiga-dev/ai-employee/internal/vault"
)

// Restart-storm breaker: more than stormThreshold restarts of one watcher
// inside stormWindow pauses its auto-restart until a human intervenes.
const (
	stormThreshold = 5
	stormWindow    = 10 * time.Minute
)

// HealthSink mirrors watcher liveness onto the dashboard. Best-effort:
// supervision never depends on it.
type HealthSink interface {
	UpdateHealth(name, status string)
}

// WatcherSpec names one supervised watcher process. The manager runs
// `<binary> watch <name>` plus Args.
type WatcherSpec struct {
	Name string
	Args []string
}

type managedProc struct {
	cmd  *exec.Cmd
	done chan struct{} // closed when the process exits
}

func (p *managedProc) running() bool {
	if p == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Manager supervises the watcher subprocesses: starts them, restarts them
// when they die, and stops restarting a watcher that is crash-looping.
type Manager struct {
	vault    *vault.Vault
	binary   string
	specs    []WatcherSpec
	log      zerolog.Logger
	notifier observability.Notifier
	health   HealthSink

	mu       sync.Mutex
	procs    map[string]*managedProc
	restarts map[string][]time.Time
	paused   map[string]bool

	// now is injectable so storm-window tests control the clock.
	now func() time.Time
}

// ManagerConfig wires a Manager.
type ManagerConfig struct {
	Vault    *vault.Vault
	Binary   string // path to our own executable; resolved if empty
	Specs    []WatcherSpec
	Logger   zerolog.Logger
	Notifier observability.Notifier
	Health   HealthSink // optional
}

// NewManager builds a manager. Binary defaults to the current executable.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	binary := cfg.Binary
	if binary == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolving own executable: %w", err)
		}
		binary = exe
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = observability.NopNotifier{}
	}
	return &Manager{
		vault:    cfg.Vault,
		binary:   binary,
		specs:    cfg.Specs,
		log:      cfg.Logger,
		notifier: notifier,
		health:   cfg.Health,
		procs:    make(map[string]*managedProc),
		restarts: make(map[string][]time.Time),
		paused:   make(map[string]bool),
		now:      time.Now,
	}, nil
}

// CheckPrerequisites verifies the vault layout and the watcher binary
// before anything is spawned.
func (m *Manager) CheckPrerequisites() error {
	if err := m.vault.EnsureLayout(); err != nil {
		return err
	}
	if _, err := os.Stat(m.binary); err != nil {
		return fmt.Errorf("watcher binary %s: %w", m.binary, err)
	}
	return nil
}

func (m *Manager) pidDir() string {
	return filepath.Join(m.vault.Root, vault.FolderState, "pids")
}

// StartAll launches every configured watcher.
func (m *Manager) StartAll(ctx context.Context) error {
	for _, spec := range m.specs {
		if err := m.start(ctx, spec); err != nil {
			return fmt.Errorf("starting watcher %s: %w", spec.Name, err)
		}
	}
	return nil
}

func (m *Manager) start(ctx context.Context, spec WatcherSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(ctx, spec)
}

func (m *Manager) startLocked(ctx context.Context, spec WatcherSpec) error {
	if m.procs[spec.Name].running() {
		return nil
	}

	args := append([]string{"watch", spec.Name, "--vault", m.vault.Root}, spec.Args...)
	cmd := exec.CommandContext(ctx, m.binary, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}

	proc := &managedProc{cmd: cmd, done: make(chan struct{})}
	m.procs[spec.Name] = proc
	go func() {
		cmd.Wait()
		close(proc.done)
	}()

	m.writePIDFile(spec.Name, cmd.Process.Pid)
	m.log.Info().Str("watcher", spec.Name).Int("pid", cmd.Process.Pid).Msg("watcher started")
	if m.health != nil {
		m.health.UpdateHealth(spec.Name, "running")
	}
	return nil
}

// CheckHealth restarts any watcher that has exited, unless its restart
// storm breaker has tripped. The breaker alerts exactly once per trip;
// subsequent health checks skip the watcher silently.
func (m *Manager) CheckHealth(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, spec := range m.specs {
		if m.procs[spec.Name].running() || m.paused[spec.Name] {
			continue
		}

		recent := pruneWindow(m.restarts[spec.Name], now)
		if len(recent) >= stormThreshold {
			m.paused[spec.Name] = true
			m.restarts[spec.Name] = recent
			m.log.Error().Str("watcher", spec.Name).
				Int("restarts", len(recent)).
				Msg("restart storm detected, auto-restart paused")
			if err := m.notifier.Notify([]observability.Alert{{
				Severity:    observability.SeverityHigh,
				Message:     fmt.Sprintf("watcher %s restarted %d times in %s, auto-restart paused", spec.Name, len(recent), stormWindow),
				TriggeredAt: now,
			}}); err != nil {
				m.log.Warn().Err(err).Msg("storm alert failed to send")
			}
			if m.health != nil {
				m.health.UpdateHealth(spec.Name, "paused (restart storm)")
			}
			continue
		}

		m.log.Warn().Str("watcher", spec.Name).Msg("watcher down, restarting")
		m.restarts[spec.Name] = append(recent, now)
		if err := m.startLocked(ctx, spec); err != nil {
			m.log.Error().Err(err).Str("watcher", spec.Name).Msg("restart failed")
		}
	}
}

// pruneWindow drops restart timestamps older than the storm window.
func pruneWindow(times []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-stormWindow)
	var kept []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

// Paused reports whether a watcher's auto-restart is storm-paused.
func (m *Manager) Paused(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused[name]
}

// Resume clears the storm breaker for a watcher so health checks restart
// it again.
func (m *Manager) Resume(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused[name] = false
	m.restarts[name] = nil
}

// StopAll signals every watcher to terminate and waits briefly for each.
func (m *Manager) StopAll(timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, proc := range m.procs {
		if !proc.running() {
			m.removePIDFile(name)
			continue
		}
		proc.cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-proc.done:
		case <-time.After(timeout):
			m.log.Warn().Str("watcher", name).Msg("watcher did not stop in time, killing")
			proc.cmd.Process.Kill()
			<-proc.done
		}
		m.removePIDFile(name)
		m.log.Info().Str("watcher", name).Msg("watcher stopped")
		if m.health != nil {
			m.health.UpdateHealth(name, "stopped")
		}
	}
}

// RestartHistory returns a copy of the per-watcher restart timestamps,
// for persistence across orchestrator restarts.
func (m *Manager) RestartHistory() map[string][]time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]time.Time, len(m.restarts))
	for name, times := range m.restarts {
		out[name] = append([]time.Time(nil), times...)
	}
	return out
}

// RestoreRestartHistory seeds the restart timestamps from persisted
// state, so the storm breaker cannot be evaded by restarting the
// orchestrator.
func (m *Manager) RestoreRestartHistory(hist map[string][]time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, times := range hist {
		m.restarts[name] = append([]time.Time(nil), times...)
	}
}

func (m *Manager) writePIDFile(name string, pid int) {
	dir := m.pidDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		m.log.Warn().Err(err).Msg("failed to create pid dir")
		return
	}
	path := filepath.Join(dir, name+".pid")
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		m.log.Warn().Err(err).Str("watcher", name).Msg("failed to write pid file")
	}
}

func (m *Manager) removePIDFile(name string) {
	os.Remove(filepath.Join(m.pidDir(), name+".pid"))
}
