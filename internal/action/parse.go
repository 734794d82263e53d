// Package action parses, validates, and executes approval requests.
// Parsing and validation are separate phases with structured results:
// a request can parse cleanly yet fail validation, and an expired request
// is flagged but never blocked. Execution shells out to external tools.
package action

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pveiga-dev/ai-employee/internal/vault"
	"github.com/pveiga-dev/ai-employee/pkg/models"
)

// ParseApprovalFile parses a queue file into an approval Request. Parse is
// total: every failure mode is an error value describing what is wrong
// with the file, and nothing escapes as a panic. Parse does not judge
// whether the action is executable; that is Validate's job.
func ParseApprovalFile(path string) (*models.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read file: %w", err)
	}

	hdr, _, err := vault.SplitFrontmatter(string(data))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	if hdr.Type != models.TypeApprovalRequest {
		return nil, fmt.Errorf("file type must be %q, got %q", models.TypeApprovalRequest, hdr.Type)
	}
	if hdr.Payload == nil {
		return nil, fmt.Errorf("missing required field: action_payload")
	}
	if hdr.Payload.Tool == "" {
		return nil, fmt.Errorf("missing required field: action_payload.tool")
	}
	if hdr.Payload.Params == nil {
		return nil, fmt.Errorf("missing required field: action_payload.params")
	}

	actionType := hdr.ActionType
	if actionType == "" {
		actionType = string(models.ActionGeneric)
	}
	// Unknown action types parse fine and fail validation instead.
	canonical, _ := models.ParseActionType(actionType)

	priority := hdr.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}

	req := &models.Request{
		Header:     hdr,
		ActionType: canonical,
		Target:     hdr.Target,
		Priority:   priority,
		Payload:    *hdr.Payload,
		SourcePlan: stringExtra(hdr.Extra, "source_plan"),
		SourceTask: stringExtra(hdr.Extra, "source_task"),
		Expired:    isExpired(hdr.Expires, time.Now()),
	}
	return req, nil
}

// isExpired compares an expires header against now. Unparseable timestamps
// are ignored: a garbled expiry must not block anything.
func isExpired(expires string, now time.Time) bool {
	if expires == "" {
		return false
	}
	t, err := time.Parse(time.RFC3339, expires)
	if err != nil {
		return false
	}
	return now.After(t)
}

func stringExtra(extra map[string]any, key string) string {
	if extra == nil {
		return ""
	}
	if s, ok := extra[key].(string); ok {
		return s
	}
	return ""
}
