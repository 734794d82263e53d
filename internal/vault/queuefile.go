package vault

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pveiga-dev/ai-employee/pkg/models"
)

// copyFile is the copy half of the move primitive. It is a variable so
// tests can inject a failing copy and assert the source survives.
var copyFile = func(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// atomicWrite writes data to path via a temp file in the same directory
// followed by a rename, so a crash mid-write never leaves a partial file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// resolveCollision returns a path in dir for name that does not exist yet,
// appending _1, _2, ... before the extension. Never overwrites.
func resolveCollision(dir, name string) string {
	candidate := filepath.Join(dir, name)
	if _, err := os.Stat(candidate); os.IsNotExist(err) {
		return candidate
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// WriteActionFile materializes a queue file in dir: sanitized filename,
// .md extension enforced, numeric suffix on collision, atomic write.
// Returns the final path.
func WriteActionFile(dir, filename string, hdr models.QueueHeader, body string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", dir, err)
	}

	name := SanitizeFilename(filename, 200)
	if !strings.HasSuffix(name, ".md") {
		name += ".md"
	}

	content, err := RenderFile(hdr, body)
	if err != nil {
		return "", err
	}

	path := resolveCollision(dir, name)
	if err := atomicWrite(path, []byte(content)); err != nil {
		return "", fmt.Errorf("writing action file: %w", err)
	}
	return path, nil
}

// UpdateHeader rewrites a queue file's frontmatter in place via mutate,
// preserving the body and any unknown header keys, atomically. Files
// without parseable frontmatter are left untouched.
func UpdateHeader(path string, mutate func(*models.QueueHeader)) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	hdr, body, err := SplitFrontmatter(string(data))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	mutate(&hdr)

	content, err := RenderFile(hdr, body)
	if err != nil {
		return err
	}
	if err := atomicWrite(path, []byte(content)); err != nil {
		return fmt.Errorf("updating %s: %w", filepath.Base(path), err)
	}
	return nil
}

// MoveFile moves a queue file into destFolder and rewrites its status to
// match the destination (Done->done, Rejected->rejected, ...). This is the
// generic state transition. destFolder is a vault folder name.
func (v *Vault) MoveFile(src, destFolder string) (string, error) {
	// Best effort: files without frontmatter still move, just unannotated.
	_ = UpdateHeader(src, func(h *models.QueueHeader) {
		h.Status = StatusForFolder(destFolder)
	})
	return v.MoveFileKeepStatus(src, destFolder)
}

// MoveFileKeepStatus moves a queue file into destFolder without touching
// its header. The approval watcher uses this after annotating a terminal
// status (executed, rejected) that must survive archiving into Done.
//
// The move is copy-then-delete-source: a crash mid-move leaves the source
// intact rather than losing the file. Collisions at the destination are
// resolved with a numeric suffix, never by overwrite.
func (v *Vault) MoveFileKeepStatus(src, destFolder string) (string, error) {
	destDir := filepath.Join(v.Root, destFolder)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("creating destination %s: %w", destFolder, err)
	}

	dest := resolveCollision(destDir, filepath.Base(src))
	if err := copyFile(src, dest); err != nil {
		return "", fmt.Errorf("copying %s to %s: %w", filepath.Base(src), destFolder, err)
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("removing source after copy: %w", err)
	}
	return dest, nil
}
