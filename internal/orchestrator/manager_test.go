package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pveiga-dev/ai-employee/internal/observability"
	"github.com/pveiga-dev/ai-employee/internal/vault"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []observability.Alert
}

func (n *recordingNotifier) Notify(alerts []observability.Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alerts...)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

// stoppedManager builds a manager whose "binary" is /bin/true: any spawned
// watcher exits immediately, which is exactly what storm tests need.
func stoppedManager(t *testing.T, notifier observability.Notifier) *Manager {
	t.Helper()
	v, err := vault.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewManager(ManagerConfig{
		Vault:    v,
		Binary:   "/bin/true",
		Specs:    []WatcherSpec{{Name: "email"}},
		Logger:   zerolog.Nop(),
		Notifier: notifier,
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestPruneWindow(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	times := []time.Time{
		now.Add(-15 * time.Minute), // outside
		now.Add(-stormWindow),      // boundary, not After(cutoff)
		now.Add(-9 * time.Minute),  // inside
		now.Add(-time.Minute),      // inside
	}
	kept := pruneWindow(times, now)
	if len(kept) != 2 {
		t.Fatalf("kept = %v", kept)
	}
}

func TestStormBreakerTripsAndAlertsOnce(t *testing.T) {
	notifier := &recordingNotifier{}
	m := stoppedManager(t, notifier)

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	// Restart history right at the threshold, all inside the window.
	for i := 0; i < stormThreshold; i++ {
		m.restarts["email"] = append(m.restarts["email"], now.Add(-time.Duration(i)*time.Minute))
	}

	m.CheckHealth(context.Background())

	if !m.Paused("email") {
		t.Fatal("breaker should have tripped")
	}
	if notifier.count() != 1 {
		t.Fatalf("alerts = %d, want 1", notifier.count())
	}
	if notifier.alerts[0].Severity != observability.SeverityHigh {
		t.Errorf("severity = %v", notifier.alerts[0].Severity)
	}

	// Further health checks skip the paused watcher without re-alerting.
	m.CheckHealth(context.Background())
	m.CheckHealth(context.Background())
	if notifier.count() != 1 {
		t.Fatalf("alerts after repeat checks = %d, want still 1", notifier.count())
	}
}

type recordingHealth struct {
	mu      sync.Mutex
	updates []string
}

func (h *recordingHealth) UpdateHealth(name, status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, name+"="+status)
}

func (h *recordingHealth) last() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.updates) == 0 {
		return ""
	}
	return h.updates[len(h.updates)-1]
}

func TestStormBreakerReportsPausedHealth(t *testing.T) {
	health := &recordingHealth{}
	m := stoppedManager(t, &recordingNotifier{})
	m.health = health

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	for i := 0; i < stormThreshold; i++ {
		m.restarts["email"] = append(m.restarts["email"], now.Add(-time.Duration(i)*time.Minute))
	}

	m.CheckHealth(context.Background())

	if got := health.last(); got != "email=paused (restart storm)" {
		t.Errorf("health update = %q", got)
	}
}

func TestRestartHistoryRoundTrip(t *testing.T) {
	m := stoppedManager(t, &recordingNotifier{})
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	m.restarts["email"] = []time.Time{now.Add(-time.Minute), now}

	hist := m.RestartHistory()
	if len(hist["email"]) != 2 {
		t.Fatalf("history = %v", hist)
	}
	// The copy is detached from the live map.
	hist["email"] = append(hist["email"], now.Add(time.Minute))
	if len(m.restarts["email"]) != 2 {
		t.Error("mutating the copy must not touch the manager")
	}

	m2 := stoppedManager(t, &recordingNotifier{})
	m2.RestoreRestartHistory(hist)
	if len(m2.restarts["email"]) != 3 {
		t.Errorf("restored = %v", m2.restarts["email"])
	}
}

func TestOldRestartsAgeOutOfWindow(t *testing.T) {
	notifier := &recordingNotifier{}
	m := stoppedManager(t, notifier)

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	// Plenty of restarts, but all long before the window.
	for i := 0; i < stormThreshold+3; i++ {
		m.restarts["email"] = append(m.restarts["email"], now.Add(-time.Hour))
	}

	m.CheckHealth(context.Background())

	if m.Paused("email") {
		t.Error("stale restarts outside the window must not trip the breaker")
	}
	if notifier.count() != 0 {
		t.Errorf("alerts = %d, want 0", notifier.count())
	}
	if len(m.restarts["email"]) != 1 {
		t.Errorf("restarts = %v, want only the fresh one", m.restarts["email"])
	}
}

func TestResumeClearsBreaker(t *testing.T) {
	m := stoppedManager(t, &recordingNotifier{})
	m.paused["email"] = true
	m.restarts["email"] = []time.Time{time.Now()}

	m.Resume("email")

	if m.Paused("email") {
		t.Error("resume should clear the pause flag")
	}
	if len(m.restarts["email"]) != 0 {
		t.Error("resume should reset restart history")
	}
}

func TestCheckPrerequisitesCreatesLayout(t *testing.T) {
	m := stoppedManager(t, &recordingNotifier{})
	if err := m.CheckPrerequisites(); err != nil {
		t.Fatal(err)
	}
	if _, err := m.vault.StateDir(); err != nil {
		t.Fatal(err)
	}
}

func TestCheckPrerequisitesMissingBinary(t *testing.T) {
	v, err := vault.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	m, err := NewManager(ManagerConfig{
		Vault:  v,
		Binary: "/nonexistent/aie",
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.CheckPrerequisites(); err == nil {
		t.Fatal("expected error for missing binary")
	}
}
