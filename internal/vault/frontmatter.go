package vault

import (
	"fmt"
	"os"
	"strings"

	"github.com/pveiga-dev/ai-employee/pkg/models"
	"gopkg.in/yaml.v3"
)

// ErrNoFrontmatter is returned when a file has no frontmatter block at all.
var ErrNoFrontmatter = fmt.Errorf("no frontmatter delimiter found")

// SplitFrontmatter separates a queue file into its YAML header and body.
// Parsing is total: malformed input yields an error value, never a panic.
// The frontmatter block is delimited by "---" lines.
func SplitFrontmatter(content string) (models.QueueHeader, string, error) {
	var hdr models.QueueHeader

	if !strings.HasPrefix(content, "---\n") {
		return hdr, content, ErrNoFrontmatter
	}

	rest := content[4:]
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return hdr, content, fmt.Errorf("frontmatter not closed with ---")
	}

	block := rest[:idx]
	body := rest[idx+4:]
	body = strings.TrimPrefix(body, "\n")
	body = strings.TrimPrefix(body, "\n")

	if err := yaml.Unmarshal([]byte(block), &hdr); err != nil {
		return hdr, body, fmt.Errorf("malformed YAML frontmatter: %w", err)
	}
	return hdr, body, nil
}

// RenderFile produces the on-disk form of a queue file: frontmatter block,
// blank line, body.
func RenderFile(hdr models.QueueHeader, body string) (string, error) {
	out, err := yaml.Marshal(hdr)
	if err != nil {
		return "", fmt.Errorf("marshaling frontmatter: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	sb.Write(out)
	sb.WriteString("---\n\n")
	sb.WriteString(body)
	return sb.String(), nil
}

// ReadHeader reads just the frontmatter of a file. A file without
// frontmatter yields a zero header and no error, matching the tolerant
// read the scanners rely on.
func ReadHeader(path string) (models.QueueHeader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.QueueHeader{}, fmt.Errorf("reading %s: %w", path, err)
	}
	hdr, _, err := SplitFrontmatter(string(data))
	if err != nil {
		return models.QueueHeader{}, nil
	}
	return hdr, nil
}

// ReadFile reads and splits a queue file, returning header and body.
func ReadFile(path string) (models.QueueHeader, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.QueueHeader{}, "", fmt.Errorf("reading %s: %w", path, err)
	}
	return SplitFrontmatter(string(data))
}
