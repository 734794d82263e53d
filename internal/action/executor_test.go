package action

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pveiga-dev/ai-employee/internal/vault"
	"github.com/pveiga-dev/ai-employee/pkg/models"
)

func testExecutor(t *testing.T) (*CLIExecutor, *vault.Vault) {
	t.Helper()
	v, err := vault.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	e := NewCLIExecutor(CLIConfig{
		Vault:  v,
		Audit:  vault.NewAuditLog(v.Dir(vault.FolderLogs)),
		Logger: zerolog.Nop(),
	})
	return e, v
}

func TestExecuteSuccess(t *testing.T) {
	e, _ := testExecutor(t)

	var gotArgs []string
	e.runCommand = func(_ context.Context, args []string) (string, string, error) {
		gotArgs = args
		return `{"success": true, "result": "message sent"}`, "", nil
	}

	path := writeApproval(t, validApproval)
	res := e.Execute(context.Background(), path)

	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if res.Output != "message sent" {
		t.Errorf("output = %q", res.Output)
	}
	if res.ActionType != models.ActionSendEmail {
		t.Errorf("action type = %q", res.ActionType)
	}

	joined := strings.Join(gotArgs, " ")
	for _, want := range []string{"send_email", "--to alice@example.com", "--subject Q3 update", "--body"} {
		if !strings.Contains(joined, want) {
			t.Errorf("command %q missing %q", joined, want)
		}
	}
}

func TestExecuteToolFailure(t *testing.T) {
	e, _ := testExecutor(t)
	e.runCommand = func(context.Context, []string) (string, string, error) {
		return "", "authentication expired", fmt.Errorf("exit status 1")
	}

	res := e.Execute(context.Background(), writeApproval(t, validApproval))
	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Error, "authentication expired") {
		t.Errorf("error should carry stderr, got %q", res.Error)
	}
}

func TestExecuteToolReportsFailureInJSON(t *testing.T) {
	e, _ := testExecutor(t)
	e.runCommand = func(context.Context, []string) (string, string, error) {
		return `{"success": false, "error": "recipient rejected"}`, "", nil
	}

	res := e.Execute(context.Background(), writeApproval(t, validApproval))
	if res.Success {
		t.Fatal("tool-reported failure must not count as success")
	}
	if res.Error != "recipient rejected" {
		t.Errorf("error = %q", res.Error)
	}
}

func TestExecutePlainTextOutput(t *testing.T) {
	e, _ := testExecutor(t)
	e.runCommand = func(context.Context, []string) (string, string, error) {
		return "ok, sent\n", "", nil
	}

	res := e.Execute(context.Background(), writeApproval(t, validApproval))
	if !res.Success {
		t.Fatalf("exit 0 with plain output should succeed: %q", res.Error)
	}
	if res.Output != "ok, sent" {
		t.Errorf("output = %q", res.Output)
	}
}

func TestExecuteValidationFailure(t *testing.T) {
	e, _ := testExecutor(t)
	called := false
	e.runCommand = func(context.Context, []string) (string, string, error) {
		called = true
		return "", "", nil
	}

	content := "---\ntype: approval_request\naction_type: send_email\ntarget: x\naction_payload:\n  tool: send_email\n  params:\n    to: bad address\n---\n"
	res := e.Execute(context.Background(), writeApproval(t, content))

	if res.Success {
		t.Fatal("invalid request must not succeed")
	}
	if !strings.Contains(res.Error, "validation failed") {
		t.Errorf("error = %q", res.Error)
	}
	if called {
		t.Error("tool must not run for an invalid request")
	}
}

func TestExecuteParseFailure(t *testing.T) {
	e, _ := testExecutor(t)
	res := e.Execute(context.Background(), writeApproval(t, "no frontmatter\n"))
	if res.Success {
		t.Fatal("unparseable file must not succeed")
	}
	if res.ActionType != "unknown" {
		t.Errorf("action type = %q", res.ActionType)
	}
}

func TestExecuteDryRun(t *testing.T) {
	v, err := vault.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	e := NewCLIExecutor(CLIConfig{Vault: v, Logger: zerolog.Nop(), DryRun: true})
	e.runCommand = func(context.Context, []string) (string, string, error) {
		t.Fatal("dry run must not invoke the tool")
		return "", "", nil
	}

	res := e.Execute(context.Background(), writeApproval(t, validApproval))
	if !res.Success || !res.DryRun {
		t.Fatalf("dry run result = %+v", res)
	}
	if !strings.Contains(res.Output, "[DRY RUN]") {
		t.Errorf("output = %q", res.Output)
	}
}

func TestExecuteUnwiredActions(t *testing.T) {
	e, _ := testExecutor(t)
	e.runCommand = func(context.Context, []string) (string, string, error) {
		t.Fatal("no subprocess should run")
		return "", "", nil
	}

	content := "---\ntype: approval_request\naction_type: linkedin_post\ntarget: feed\naction_payload:\n  tool: linkedin_post\n  params:\n    content: words\n---\n"
	res := e.Execute(context.Background(), writeApproval(t, content))
	if res.Success {
		t.Fatal("unwired action must fail structurally")
	}
	if res.Error == "" {
		t.Error("failure needs a reason")
	}
}
