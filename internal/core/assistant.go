package core

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Assistant runs one AI prompt to completion and returns its output.
type Assistant interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// cliAssistant shells out to the assistant CLI in non-interactive print
// mode, working inside the vault so the assistant sees the queue folders.
type cliAssistant struct {
	command string
	workdir string
	timeout time.Duration
	log     zerolog.Logger

	// run is injectable for tests.
	run func(ctx context.Context, name string, args ...string) (string, string, error)
}

// NewAssistant builds the subprocess-backed assistant.
func NewAssistant(command, workdir string, timeout time.Duration, log zerolog.Logger) Assistant {
	if command == "" {
		command = "claude"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	a := &cliAssistant{command: command, workdir: workdir, timeout: timeout, log: log}
	a.run = a.runSubprocess
	return a
}

// Invoke runs the prompt with a hard timeout. A non-zero exit or timeout
// is an error; the caller decides whether the task is retried next tick.
func (a *cliAssistant) Invoke(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	stdout, stderr, err := a.run(ctx, a.command, "--print", prompt)
	if err != nil {
		if msg := strings.TrimSpace(stderr); msg != "" {
			return "", fmt.Errorf("assistant failed: %s", msg)
		}
		return "", fmt.Errorf("assistant failed: %w", err)
	}
	a.log.Debug().Dur("took", time.Since(start)).Msg("assistant invocation complete")
	return strings.TrimSpace(stdout), nil
}

func (a *cliAssistant) runSubprocess(ctx context.Context, name string, args ...string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = a.workdir
	cmd.Env = append(os.Environ(), "VAULT_PATH="+a.workdir)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("timed out after %s", a.timeout)
	}
	return stdout.String(), stderr.String(), err
}
