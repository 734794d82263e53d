// Package dashboard maintains Dashboard.md, the human-facing mirror of
// the pipeline. Every write here is best-effort: the audit log is the
// record of truth and a dashboard failure never fails the caller.
package dashboard

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pveiga-dev/ai-employee/internal/vault"
)

const (
	dashboardFile = "Dashboard.md"

	sectionStatus  = "## Queue Status"
	sectionHealth  = "## Watcher Health"
	sectionPending = "## Pending Approvals"
	sectionActions = "## Recent Actions"
	sectionErrors  = "## Errors"

	// maxEntries bounds the rolling lists so the file stays readable.
	maxEntries = 20
)

// Updater mutates Dashboard.md section by section, preserving everything
// a human wrote outside the managed sections.
type Updater struct {
	vault *vault.Vault
	log   zerolog.Logger
	mu    sync.Mutex

	// now is injectable for tests.
	now func() time.Time
}

// NewUpdater returns an updater over the vault's Dashboard.md.
func NewUpdater(v *vault.Vault, log zerolog.Logger) *Updater {
	return &Updater{vault: v, log: log, now: time.Now}
}

func (u *Updater) path() string {
	return filepath.Join(u.vault.Root, dashboardFile)
}

// skeleton is written when no dashboard exists yet.
func skeleton() string {
	return strings.Join([]string{
		"# Dashboard",
		"",
		sectionStatus,
		"",
		sectionHealth,
		"",
		sectionPending,
		"",
		sectionActions,
		"",
		sectionErrors,
		"",
	}, "\n")
}

// LogAction prepends one line to Recent Actions.
func (u *Updater) LogAction(action, target, result string) {
	stamp := u.now().Format("2006-01-02 15:04")
	line := fmt.Sprintf("- %s | %s | %s | %s", stamp, action, target, result)
	if err := u.prependLine(sectionActions, line); err != nil {
		u.log.Warn().Err(err).Msg("dashboard action update failed")
	}
}

// LogError prepends one line to Errors.
func (u *Updater) LogError(message string) {
	stamp := u.now().Format("2006-01-02 15:04")
	line := fmt.Sprintf("- %s | %s", stamp, message)
	if err := u.prependLine(sectionErrors, line); err != nil {
		u.log.Warn().Err(err).Msg("dashboard error update failed")
	}
}

// AddPending records an approval request awaiting a human decision. Rows
// are keyed by target: re-requesting the same target replaces its row.
func (u *Updater) AddPending(action, target string) {
	stamp := u.now().Format("2006-01-02 15:04")
	line := fmt.Sprintf("- %s | %s | since %s", action, target, stamp)
	if err := u.upsertLine(sectionPending, pendingKey(target), line); err != nil {
		u.log.Warn().Err(err).Msg("dashboard pending update failed")
	}
}

// RemovePending drops the pending row for a target once it has been
// executed or rejected.
func (u *Updater) RemovePending(target string) {
	if err := u.deleteLine(sectionPending, pendingKey(target)); err != nil {
		u.log.Warn().Err(err).Msg("dashboard pending removal failed")
	}
}

// pendingKey matches a pending row by its target column.
func pendingKey(target string) func(string) bool {
	return func(line string) bool {
		parts := strings.Split(strings.TrimPrefix(line, "- "), " | ")
		return len(parts) >= 2 && parts[1] == target
	}
}

// UpdateHealth upserts the liveness row for one watcher.
func (u *Updater) UpdateHealth(name, status string) {
	stamp := u.now().Format("2006-01-02 15:04")
	line := fmt.Sprintf("- %s: %s (%s)", name, status, stamp)
	key := func(l string) bool { return strings.HasPrefix(l, "- "+name+":") }
	if err := u.upsertLine(sectionHealth, key, line); err != nil {
		u.log.Warn().Err(err).Msg("dashboard health update failed")
	}
}

// Refresh rewrites the Queue Status section from the current folder
// counts. Registered as the dashboard_refresh maintenance task.
func (u *Updater) Refresh() error {
	c := u.vault.Counts()
	body := []string{
		fmt.Sprintf("Last updated: %s", u.now().Format("2006-01-02 15:04")),
		"",
		"| Folder | Items |",
		"| --- | --- |",
		fmt.Sprintf("| Needs Action | %d |", c.NeedsAction),
		fmt.Sprintf("| Plans | %d |", c.Plans),
		fmt.Sprintf("| Pending Approval | %d |", c.PendingApproval),
		fmt.Sprintf("| Approved | %d |", c.Approved),
		fmt.Sprintf("| Rejected | %d |", c.Rejected),
		fmt.Sprintf("| Done today | %d |", c.DoneToday),
	}
	return u.replaceSection(sectionStatus, body)
}

// prependLine inserts line at the top of a section's list, trimming the
// list to maxEntries.
func (u *Updater) prependLine(section, line string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	lines, start, end, err := u.readSection(section)
	if err != nil {
		return err
	}

	var kept []string
	for _, l := range lines[start:end] {
		if strings.HasPrefix(l, "- ") {
			kept = append(kept, l)
		}
	}
	kept = append([]string{line}, kept...)
	if len(kept) > maxEntries {
		kept = kept[:maxEntries]
	}

	content := append([]string{}, lines[:start]...)
	content = append(content, "")
	content = append(content, kept...)
	content = append(content, "")
	content = append(content, lines[end:]...)
	return u.write(content)
}

// upsertLine replaces the first list line matching key with line, or
// appends line to the section if no row matches.
func (u *Updater) upsertLine(section string, key func(string) bool, line string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	lines, start, end, err := u.readSection(section)
	if err != nil {
		return err
	}

	var kept []string
	replaced := false
	for _, l := range lines[start:end] {
		if !strings.HasPrefix(l, "- ") {
			continue
		}
		if !replaced && key(l) {
			kept = append(kept, line)
			replaced = true
			continue
		}
		kept = append(kept, l)
	}
	if !replaced {
		kept = append(kept, line)
	}

	content := append([]string{}, lines[:start]...)
	content = append(content, "")
	content = append(content, kept...)
	content = append(content, "")
	content = append(content, lines[end:]...)
	return u.write(content)
}

// deleteLine removes every list line matching key from a section.
func (u *Updater) deleteLine(section string, key func(string) bool) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	lines, start, end, err := u.readSection(section)
	if err != nil {
		return err
	}

	var kept []string
	for _, l := range lines[start:end] {
		if strings.HasPrefix(l, "- ") && !key(l) {
			kept = append(kept, l)
		}
	}

	content := append([]string{}, lines[:start]...)
	content = append(content, "")
	content = append(content, kept...)
	content = append(content, "")
	content = append(content, lines[end:]...)
	return u.write(content)
}

// replaceSection replaces a section's entire body.
func (u *Updater) replaceSection(section string, body []string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	lines, start, end, err := u.readSection(section)
	if err != nil {
		return err
	}
	content := append([]string{}, lines[:start]...)
	content = append(content, "")
	content = append(content, body...)
	content = append(content, "")
	content = append(content, lines[end:]...)
	return u.write(content)
}

// readSection loads the dashboard (creating it if missing) and returns
// its lines plus the half-open range of the section body: from the line
// after the heading to the next heading or end of file.
func (u *Updater) readSection(section string) (lines []string, start, end int, err error) {
	data, rerr := os.ReadFile(u.path())
	if rerr != nil {
		if !os.IsNotExist(rerr) {
			return nil, 0, 0, fmt.Errorf("reading dashboard: %w", rerr)
		}
		data = []byte(skeleton())
	}
	lines = strings.Split(string(data), "\n")

	heading := -1
	for i, l := range lines {
		if strings.TrimSpace(l) == section {
			heading = i
			break
		}
	}
	if heading == -1 {
		// A hand-edited dashboard missing the section gets it appended.
		lines = append(lines, "", section, "")
		heading = len(lines) - 2
	}

	start = heading + 1
	end = len(lines)
	for i := start; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "## ") {
			end = i
			break
		}
	}
	return lines, start, end, nil
}

func (u *Updater) write(lines []string) error {
	content := strings.Join(lines, "\n")
	// Collapse runs of blank lines introduced by repeated edits.
	for strings.Contains(content, "\n\n\n") {
		content = strings.ReplaceAll(content, "\n\n\n", "\n\n")
	}
	tmp, err := os.CreateTemp(u.vault.Root, ".dashboard-*")
	if err != nil {
		return fmt.Errorf("creating temp dashboard: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("writing dashboard: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, u.path()); err != nil {
		os.Remove(name)
		return fmt.Errorf("replacing dashboard: %w", err)
	}
	return nil
}
