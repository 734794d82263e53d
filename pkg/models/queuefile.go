package models

import "fmt"

// Queue file statuses. Folder membership is the authoritative state; the
// status field is rewritten deterministically on every move so the header
// always agrees with the folder the file lives in.
const (
	StatusPending         = "pending"
	StatusInProgress      = "in_progress"
	StatusPendingApproval = "pending_approval"
	StatusApproved        = "approved"
	StatusExecuted        = "executed"
	StatusRejected        = "rejected"
	StatusDone            = "done"

	StatusParseFailed      = "parse_failed"
	StatusValidationFailed = "validation_failed"
	StatusExecutionFailed  = "execution_failed"
)

// TypeApprovalRequest is the header type that marks a queue file as an
// approval request consumable by the approval watcher.
const TypeApprovalRequest = "approval_request"

// QueueHeader is the structured YAML frontmatter of a queue file. Keys the
// system does not know about survive a read/update/write cycle via Extra.
type QueueHeader struct {
	Type             string         `yaml:"type"`
	Source           string         `yaml:"source"`
	Subject          string         `yaml:"subject"`
	Received         string         `yaml:"received"`
	Priority         Priority       `yaml:"priority"`
	Status           string         `yaml:"status"`
	RequiresApproval bool           `yaml:"requires_approval"`
	ActionType       string         `yaml:"action_type,omitempty"`
	Target           string         `yaml:"target,omitempty"`
	Payload          *ActionPayload `yaml:"action_payload,omitempty"`
	Expires          string         `yaml:"expires,omitempty"`
	Stale            bool           `yaml:"stale,omitempty"`
	Error            string         `yaml:"error,omitempty"`

	Extra map[string]any `yaml:",inline"`
}

// ActionPayload names the external tool to invoke and its parameters.
type ActionPayload struct {
	Tool   string         `yaml:"tool"`
	Params map[string]any `yaml:"params"`
}

// Param returns a payload parameter as a string, or "" if absent.
func (p *ActionPayload) Param(key string) string {
	if p == nil || p.Params == nil {
		return ""
	}
	v, ok := p.Params[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// ParamBool returns a payload parameter interpreted as a boolean.
func (p *ActionPayload) ParamBool(key string) bool {
	if p == nil || p.Params == nil {
		return false
	}
	switch v := p.Params[key].(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "yes" || v == "1"
	default:
		return false
	}
}
