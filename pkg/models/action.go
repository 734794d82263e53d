package models

import "time"

// ActionType is the closed set of actions an approval request may propose.
// Dispatch is by enum, not by open string lookup, so an unsupported type
// fails validation instead of falling through.
type ActionType string

const (
	ActionSendEmail     ActionType = "send_email"
	ActionDraftEmail    ActionType = "draft_email"
	ActionReplyToThread ActionType = "reply_to_thread"
	ActionLinkedInPost  ActionType = "linkedin_post"
	ActionGeneric       ActionType = "generic"
)

// actionAliases maps legacy and alternate spellings onto canonical types.
var actionAliases = map[string]ActionType{
	"reply_email": ActionReplyToThread,
	"social_post": ActionLinkedInPost,
}

// ParseActionType canonicalizes a raw action_type header value. The second
// return is false when the value names no known action.
func ParseActionType(raw string) (ActionType, bool) {
	switch ActionType(raw) {
	case ActionSendEmail, ActionDraftEmail, ActionReplyToThread,
		ActionLinkedInPost, ActionGeneric:
		return ActionType(raw), true
	}
	if canonical, ok := actionAliases[raw]; ok {
		return canonical, true
	}
	return ActionType(raw), false
}

// RequiredParams returns the payload parameters that must be present and
// non-empty for this action type to validate.
func (a ActionType) RequiredParams() []string {
	switch a {
	case ActionSendEmail, ActionDraftEmail:
		return []string{"to", "subject", "body"}
	case ActionReplyToThread:
		return []string{"thread_id", "body"}
	case ActionLinkedInPost:
		return []string{"content"}
	default:
		return nil
	}
}

// Request is the parsed form of an approval-request queue file.
type Request struct {
	Header     QueueHeader
	ActionType ActionType
	Target     string
	Priority   Priority
	Payload    ActionPayload
	SourcePlan string
	SourceTask string

	// Expired is advisory: an expired request still executes, it is
	// surfaced as a warning for human triage upstream.
	Expired bool
}

// Result is the structured outcome of executing an action. Executors never
// panic or return Go errors across this boundary; failures are carried in
// Error with Success=false.
type Result struct {
	Success    bool
	ActionType ActionType
	Target     string
	Output     string
	DryRun     bool
	Timestamp  time.Time
	Error      string
}
