// Package vault implements the filesystem-as-database layer: the fixed
// folder pipeline, the frontmatter queue-file format, atomic mutation
// primitives, deduplication state, and the audit log. Folder membership IS
// the state of a queue file; all state transitions are file moves.
package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pveiga-dev/ai-employee/pkg/models"
)

// Pipeline folder names, relative to the vault root.
const (
	FolderNeedsAction     = "Needs_Action"
	FolderPlans           = "Plans"
	FolderPendingApproval = "Pending_Approval"
	FolderApproved        = "Approved"
	FolderRejected        = "Rejected"
	FolderDone            = "Done"
	FolderDrop            = "Drop"
	FolderLogs            = "Logs"
	FolderState           = ".state"
)

// Vault is a handle on the vault root directory. The root must already
// exist; pipeline subfolders are created on demand.
type Vault struct {
	Root string
}

// Open validates that root exists and is a directory.
func Open(root string) (*Vault, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("vault path %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault path is not a directory: %s", root)
	}
	return &Vault{Root: root}, nil
}

// EnsureLayout creates every pipeline folder that does not yet exist.
func (v *Vault) EnsureLayout() error {
	dirs := []string{
		FolderNeedsAction, FolderPlans, FolderPendingApproval,
		FolderApproved, FolderRejected, FolderDone, FolderDrop,
		FolderLogs, FolderState,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(v.Root, d), 0o755); err != nil {
			return fmt.Errorf("creating vault folder %s: %w", d, err)
		}
	}
	return nil
}

// Dir returns the absolute path of a vault folder.
func (v *Vault) Dir(folder string) string {
	return filepath.Join(v.Root, folder)
}

// NeedsAction returns the per-subdomain inbox folder, creating it if needed.
func (v *Vault) NeedsAction(subdomain string) (string, error) {
	dir := filepath.Join(v.Root, FolderNeedsAction, subdomain)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating needs-action folder: %w", err)
	}
	return dir, nil
}

// StateDir returns the hidden state directory, creating it if needed.
func (v *Vault) StateDir() (string, error) {
	dir := filepath.Join(v.Root, FolderState)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating state dir: %w", err)
	}
	return dir, nil
}

// Rel returns path relative to the vault root with forward slashes, for
// audit entries. Falls back to the input when path is outside the vault.
func (v *Vault) Rel(path string) string {
	rel, err := filepath.Rel(v.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// StatusForFolder maps a destination folder to the status value a file
// acquires when moved there. Moving is the only state transition, so this
// mapping keeps the header in lockstep with folder membership.
func StatusForFolder(folder string) string {
	switch folder {
	case FolderDone:
		return models.StatusDone
	case FolderRejected:
		return models.StatusRejected
	case FolderPlans:
		return models.StatusInProgress
	case FolderPendingApproval:
		return models.StatusPendingApproval
	case FolderApproved:
		return models.StatusApproved
	default:
		return models.StatusPending
	}
}

var illegalFilenameChars = regexp.MustCompile(`[/\\:*?"<>|]`)

// SanitizeFilename strips characters that are illegal in filenames,
// replaces spaces with underscores, drops non-ASCII runes, and truncates
// to maxLen. maxLen <= 0 means the default of 200.
func SanitizeFilename(raw string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = 200
	}
	var b strings.Builder
	for _, r := range raw {
		if r > 127 {
			continue
		}
		b.WriteRune(r)
	}
	s := strings.ReplaceAll(b.String(), " ", "_")
	s = illegalFilenameChars.ReplaceAllString(s, "")
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
