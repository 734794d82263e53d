package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pveiga-dev/ai-employee/internal/vault"
	"github.com/pveiga-dev/ai-employee/pkg/models"
)

// Executor runs the action proposed by an approved queue file. Execute
// never returns a Go error: every outcome, including timeouts and missing
// tools, is a structured Result. It must be safe to call repeatedly — the
// approval watcher retries it — so idempotency of the underlying side
// effect is the external tool's responsibility (idempotency keys derived
// from the file's stable name, when the tool supports them).
type Executor interface {
	Execute(ctx context.Context, path string) models.Result
}

// CLIConfig configures the subprocess-backed executor.
type CLIConfig struct {
	Vault   *vault.Vault
	Audit   *vault.AuditLog
	Logger  zerolog.Logger
	CLIPath string        // path to the email tool entry point
	Timeout time.Duration // hard cap per invocation; defaults to 60s
	DryRun  bool
}

// CLIExecutor executes email actions by invoking the email MCP tool as a
// subprocess with a hard timeout.
type CLIExecutor struct {
	vault   *vault.Vault
	audit   *vault.AuditLog
	log     zerolog.Logger
	cliPath string
	timeout time.Duration
	dryRun  bool

	// runCommand is injectable for tests.
	runCommand func(ctx context.Context, args []string) (stdout, stderr string, exitErr error)
}

// NewCLIExecutor builds the default executor.
func NewCLIExecutor(cfg CLIConfig) *CLIExecutor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	cliPath := cfg.CLIPath
	if cliPath == "" && cfg.Vault != nil {
		cliPath = filepath.Join(cfg.Vault.Root, "mcp-servers", "email-mcp", "src", "cli.ts")
	}
	e := &CLIExecutor{
		vault:   cfg.Vault,
		audit:   cfg.Audit,
		log:     cfg.Logger,
		cliPath: cliPath,
		timeout: timeout,
		dryRun:  cfg.DryRun,
	}
	e.runCommand = e.runSubprocess
	return e
}

// Execute parses, validates, and runs the action in an approved file,
// returning a structured result and appending one audit entry.
func (e *CLIExecutor) Execute(ctx context.Context, path string) models.Result {
	now := time.Now().UTC()

	req, err := ParseApprovalFile(path)
	if err != nil {
		return models.Result{
			Success:    false,
			ActionType: "unknown",
			Target:     filepath.Base(path),
			Timestamp:  now,
			DryRun:     e.dryRun,
			Error:      err.Error(),
		}
	}

	res := models.Result{
		ActionType: req.ActionType,
		Target:     req.Target,
		Timestamp:  now,
		DryRun:     e.dryRun,
	}

	if errs := Validate(req); len(errs) > 0 {
		res.Error = "validation failed: " + strings.Join(errs, "; ")
		e.logExecution(path, res)
		return res
	}

	if req.Expired {
		e.log.Warn().Str("target", req.Target).Msg("approval file is expired, executing anyway")
	}

	if e.dryRun {
		res.Success = true
		res.Output = simulate(req)
	} else {
		e.dispatch(ctx, req, &res)
	}

	e.logExecution(path, res)
	return res
}

// dispatch is the closed switch over action kinds. Adding an ActionType
// without a case here is a compile-visible gap, not a silent string miss.
func (e *CLIExecutor) dispatch(ctx context.Context, req *models.Request, res *models.Result) {
	p := &req.Payload
	switch req.ActionType {
	case models.ActionSendEmail:
		args := []string{"send_email", "--to", p.Param("to"), "--subject", p.Param("subject"), "--body", p.Param("body")}
		if cc := p.Param("cc"); cc != "" {
			args = append(args, "--cc", cc)
		}
		if bcc := p.Param("bcc"); bcc != "" {
			args = append(args, "--bcc", bcc)
		}
		e.runCLI(ctx, args, res)
	case models.ActionDraftEmail:
		e.runCLI(ctx, []string{"draft_email", "--to", p.Param("to"), "--subject", p.Param("subject"), "--body", p.Param("body")}, res)
	case models.ActionReplyToThread:
		args := []string{"reply_to_thread", "--thread-id", p.Param("thread_id"), "--body", p.Param("body")}
		if p.ParamBool("reply_all") {
			args = append(args, "--reply-all")
		}
		e.runCLI(ctx, args, res)
	case models.ActionLinkedInPost:
		res.Error = "LinkedIn tool not yet wired"
	case models.ActionGeneric:
		res.Error = "generic actions require manual execution"
	default:
		res.Error = fmt.Sprintf("unsupported action type: %q", req.ActionType)
	}
}

// runCLI invokes the email tool and fills the result from its output.
// Non-zero exit and timeout both surface as structured failures.
func (e *CLIExecutor) runCLI(ctx context.Context, args []string, res *models.Result) {
	full := append([]string{"npx", "tsx", e.cliPath}, args...)
	stdout, stderr, err := e.runCommand(ctx, full)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || strings.Contains(err.Error(), "deadline") {
			res.Error = fmt.Sprintf("tool timed out after %s", e.timeout)
			return
		}
		msg := strings.TrimSpace(stderr)
		if msg == "" {
			msg = strings.TrimSpace(stdout)
		}
		if msg == "" {
			msg = err.Error()
		}
		res.Error = msg
		return
	}

	out := strings.TrimSpace(stdout)
	var payload struct {
		Success *bool  `json:"success"`
		Result  string `json:"result"`
		Error   string `json:"error"`
	}
	if json.Unmarshal([]byte(out), &payload) == nil && payload.Success != nil {
		res.Success = *payload.Success
		res.Output = payload.Result
		res.Error = payload.Error
		return
	}
	// Tools that print plain text still count as success on exit 0.
	res.Success = true
	res.Output = out
}

func (e *CLIExecutor) runSubprocess(ctx context.Context, args []string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if e.vault != nil {
		cmd.Dir = e.vault.Root
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return stdout.String(), stderr.String(), fmt.Errorf("deadline exceeded: %w", ctx.Err())
	}
	return stdout.String(), stderr.String(), err
}

// simulate returns the dry-run description of what would have happened.
func simulate(req *models.Request) string {
	p := &req.Payload
	switch req.ActionType {
	case models.ActionSendEmail:
		return fmt.Sprintf("[DRY RUN] would send email to %s with subject %q", p.Param("to"), p.Param("subject"))
	case models.ActionDraftEmail:
		return fmt.Sprintf("[DRY RUN] would create draft to %s with subject %q", p.Param("to"), p.Param("subject"))
	case models.ActionReplyToThread:
		return fmt.Sprintf("[DRY RUN] would reply to thread %s", p.Param("thread_id"))
	case models.ActionLinkedInPost:
		return "[DRY RUN] would post to LinkedIn"
	default:
		return fmt.Sprintf("[DRY RUN] would execute %s", req.ActionType)
	}
}

func (e *CLIExecutor) logExecution(path string, res models.Result) {
	if e.audit == nil {
		return
	}
	rel := path
	if e.vault != nil {
		rel = e.vault.Rel(path)
	}
	result := "failure"
	if res.Success {
		result = "success"
	}
	detail := res.Output
	if detail == "" {
		detail = res.Error
	}
	entry := vault.AuditEntry{
		ActionType: "hitl_execution",
		Actor:      "action_executor",
		SourceFile: rel,
		Action:     string(res.ActionType),
		Target:     res.Target,
		Result:     result,
		Detail:     detail,
	}
	if !res.Success {
		entry.Error = res.Error
	}
	if err := e.audit.Append(entry); err != nil {
		e.log.Error().Err(err).Msg("failed to write audit log")
	}
}
