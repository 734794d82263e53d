package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pveiga-dev/ai-employee/internal/vault"
)

type fakeAssistant struct {
	prompts []string
	err     error
}

func (f *fakeAssistant) Invoke(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return "done", f.err
}

func TestRunAssistantTask(t *testing.T) {
	assist := &fakeAssistant{}
	audit := vault.NewAuditLog(t.TempDir())
	r := &TaskRunner{Assistant: assist, Audit: audit, Log: zerolog.Nop()}

	task := ScheduledTask{Name: "briefing", Assistant: true, Prompt: "write the briefing"}
	if err := r.Run(context.Background(), task); err != nil {
		t.Fatal(err)
	}
	if len(assist.prompts) != 1 || assist.prompts[0] != "write the briefing" {
		t.Errorf("prompts = %v", assist.prompts)
	}

	entries, err := audit.ReadDay(time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Result != "success" || entries[0].Action != "briefing" {
		t.Errorf("audit entries = %+v", entries)
	}
}

func TestRunMaintenanceTask(t *testing.T) {
	called := false
	r := &TaskRunner{
		Log: zerolog.Nop(),
		Maintenance: map[string]func(ctx context.Context) error{
			"refresh": func(context.Context) error { called = true; return nil },
		},
	}
	if err := r.Run(context.Background(), ScheduledTask{Name: "refresh"}); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("maintenance handler was not invoked")
	}
}

func TestRunFailureIsAudited(t *testing.T) {
	audit := vault.NewAuditLog(t.TempDir())
	r := &TaskRunner{
		Assistant: &fakeAssistant{err: errors.New("model unavailable")},
		Audit:     audit,
		Log:       zerolog.Nop(),
	}
	err := r.Run(context.Background(), ScheduledTask{Name: "briefing", Assistant: true})
	if err == nil {
		t.Fatal("expected error")
	}

	entries, _ := audit.ReadDay(time.Now())
	if len(entries) != 1 || entries[0].Result != "failure" {
		t.Errorf("audit entries = %+v", entries)
	}
}

func TestRunHonorsPerTaskTimeout(t *testing.T) {
	r := &TaskRunner{
		Log: zerolog.Nop(),
		Maintenance: map[string]func(ctx context.Context) error{
			"slow": func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
	}
	task := ScheduledTask{Name: "slow", Timeout: 5 * time.Millisecond}
	if err := r.Run(context.Background(), task); err == nil {
		t.Fatal("expected the per-task timeout to cancel the handler")
	}
}

func TestRunUnregisteredMaintenanceTask(t *testing.T) {
	r := &TaskRunner{Log: zerolog.Nop()}
	if err := r.Run(context.Background(), ScheduledTask{Name: "mystery"}); err == nil {
		t.Fatal("expected error for unregistered task")
	}
}

func TestFindTask(t *testing.T) {
	tasks := DefaultSchedule()
	if _, ok := FindTask(tasks, "morning_briefing"); !ok {
		t.Error("morning_briefing should exist")
	}
	if _, ok := FindTask(tasks, "nope"); ok {
		t.Error("unknown task should not be found")
	}
}

func TestTriggerRoundTrip(t *testing.T) {
	stateDir := t.TempDir()

	names, err := ConsumeTriggers(stateDir)
	if err != nil {
		t.Fatal(err)
	}
	if names != nil {
		t.Errorf("empty state dir should yield nil, got %v", names)
	}

	if err := RequestTrigger(stateDir, "weekly_review"); err != nil {
		t.Fatal(err)
	}
	if err := RequestTrigger(stateDir, "inbox_triage"); err != nil {
		t.Fatal(err)
	}
	// Re-triggering a pending task is a no-op.
	if err := RequestTrigger(stateDir, "inbox_triage"); err != nil {
		t.Fatal(err)
	}

	names, err = ConsumeTriggers(stateDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "inbox_triage" || names[1] != "weekly_review" {
		t.Errorf("names = %v, want sorted pair", names)
	}

	names, _ = ConsumeTriggers(stateDir)
	if len(names) != 0 {
		t.Errorf("second consume should be empty, got %v", names)
	}
}
