// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the work queue as MCP tools, so the assistant reads and files queue
// items through a typed surface instead of raw filesystem access.
package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pveiga-dev/ai-employee/internal/vault"
	"github.com/pveiga-dev/ai-employee/pkg/models"
)

// PendingSink records newly filed approval requests on the dashboard.
// Best-effort: the server never fails a tool call over it.
type PendingSink interface {
	AddPending(action, target string)
}

// Server wraps the vault and exposes it as MCP tools.
type Server struct {
	server  *gomcp.Server
	vault   *vault.Vault
	audit   *vault.AuditLog
	pending PendingSink
}

// NewServer creates the MCP server over a vault. pending may be nil.
func NewServer(v *vault.Vault, audit *vault.AuditLog, pending PendingSink, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{vault: v, audit: audit, pending: pending}
	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "aie", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio, blocking until the client
// disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type listPendingInput struct {
	Subdomain string `json:"subdomain,omitempty" jsonschema:"filter to one Needs_Action subfolder (e.g. emails, file_drops)"`
}

type itemOutput struct {
	Path      string `json:"path"`
	Subdomain string `json:"subdomain"`
	Subject   string `json:"subject"`
	Source    string `json:"source"`
	Priority  string `json:"priority"`
	Status    string `json:"status"`
	Received  string `json:"received,omitempty"`
}

type listPendingOutput struct {
	Items []itemOutput `json:"items"`
	Count int          `json:"count"`
}

type readItemInput struct {
	Path string `json:"path" jsonschema:"required,queue file path relative to the vault root"`
}

type readItemOutput struct {
	Path    string       `json:"path"`
	Header  itemOutput   `json:"header"`
	Body    string       `json:"body"`
	Payload *payloadJSON `json:"action_payload,omitempty"`
}

type payloadJSON struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

type createApprovalInput struct {
	ActionType string         `json:"action_type" jsonschema:"required,one of send_email draft_email reply_to_thread linkedin_post generic"`
	Target     string         `json:"target" jsonschema:"required,who or what the action affects (e.g. the recipient address)"`
	Summary    string         `json:"summary" jsonschema:"required,one-line human-readable description for the approver"`
	Params     map[string]any `json:"params" jsonschema:"required,tool parameters (to, subject, body, ...)"`
	Priority   string         `json:"priority,omitempty" jsonschema:"critical, high, medium, or low; defaults to medium"`
	Expires    string         `json:"expires,omitempty" jsonschema:"optional RFC3339 expiry timestamp"`
}

type createApprovalOutput struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

type queueCountsInput struct{}

type queueCountsOutput struct {
	NeedsAction     int `json:"needs_action"`
	Plans           int `json:"plans"`
	PendingApproval int `json:"pending_approval"`
	Approved        int `json:"approved"`
	Rejected        int `json:"rejected"`
	DoneToday       int `json:"done_today"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_pending",
		Description: "List items waiting in Needs_Action, highest priority first, optionally filtered to one subdomain.",
	}, s.handleListPending)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "read_item",
		Description: "Read one queue file: its header, body, and action payload if present.",
	}, s.handleReadItem)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "create_approval_request",
		Description: "File an approval request in Pending_Approval. A human must move it to Approved before anything executes.",
	}, s.handleCreateApproval)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "queue_counts",
		Description: "Count queue files per pipeline folder, plus how many reached Done today.",
	}, s.handleQueueCounts)
}

// --- Tool handlers ---

func (s *Server) handleListPending(_ context.Context, _ *gomcp.CallToolRequest, input listPendingInput) (*gomcp.CallToolResult, listPendingOutput, error) {
	items, err := s.vault.ListPending(input.Subdomain)
	if err != nil {
		return errorResult(fmt.Sprintf("listing pending items: %s", err)), listPendingOutput{}, nil
	}

	out := listPendingOutput{Items: make([]itemOutput, len(items)), Count: len(items)}
	for i, it := range items {
		out.Items[i] = itemToOutput(it)
	}
	return nil, out, nil
}

func (s *Server) handleReadItem(_ context.Context, _ *gomcp.CallToolRequest, input readItemInput) (*gomcp.CallToolResult, readItemOutput, error) {
	if input.Path == "" {
		return errorResult("path is required"), readItemOutput{}, nil
	}
	rel := filepath.Clean(filepath.FromSlash(input.Path))
	if strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return errorResult("path must be relative to the vault root"), readItemOutput{}, nil
	}

	abs := filepath.Join(s.vault.Root, rel)
	hdr, body, err := vault.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return errorResult(fmt.Sprintf("no queue file at %s", input.Path)), readItemOutput{}, nil
		}
		return errorResult(fmt.Sprintf("reading %s: %s", input.Path, err)), readItemOutput{}, nil
	}

	out := readItemOutput{
		Path: filepath.ToSlash(rel),
		Body: body,
		Header: itemOutput{
			Path:     filepath.ToSlash(rel),
			Subject:  hdr.Subject,
			Source:   hdr.Source,
			Priority: string(hdr.Priority),
			Status:   hdr.Status,
			Received: hdr.Received,
		},
	}
	if hdr.Payload != nil {
		out.Payload = &payloadJSON{Tool: hdr.Payload.Tool, Params: hdr.Payload.Params}
	}
	return nil, out, nil
}

func (s *Server) handleCreateApproval(_ context.Context, _ *gomcp.CallToolRequest, input createApprovalInput) (*gomcp.CallToolResult, createApprovalOutput, error) {
	actionType, ok := models.ParseActionType(input.ActionType)
	if !ok {
		return errorResult(fmt.Sprintf("unknown action type %q", input.ActionType)), createApprovalOutput{}, nil
	}
	if input.Target == "" {
		return errorResult("target is required"), createApprovalOutput{}, nil
	}
	if input.Summary == "" {
		return errorResult("summary is required"), createApprovalOutput{}, nil
	}

	priority := models.Priority(input.Priority)
	if priority.Rank() == 3 && priority != models.PriorityLow {
		priority = models.PriorityMedium
	}

	now := time.Now().UTC()
	hdr := models.QueueHeader{
		Type:             models.TypeApprovalRequest,
		Source:           "mcp",
		Subject:          input.Summary,
		Received:         now.Format(time.RFC3339),
		Priority:         priority,
		Status:           models.StatusPendingApproval,
		RequiresApproval: true,
		ActionType:       string(actionType),
		Target:           input.Target,
		Expires:          input.Expires,
		Payload: &models.ActionPayload{
			Tool:   string(actionType),
			Params: input.Params,
		},
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Approval Request: %s\n\n", input.Summary)
	fmt.Fprintf(&b, "**Action:** %s\n**Target:** %s\n\n", actionType, input.Target)
	b.WriteString("Move this file to Approved/ to execute, or Rejected/ to decline.\n")

	name := fmt.Sprintf("ACTION_%s_%s_%s", actionType, now.Format("20060102_150405"), input.Target)
	path, err := vault.WriteActionFile(s.vault.Dir(vault.FolderPendingApproval), name, hdr, b.String())
	if err != nil {
		return errorResult(fmt.Sprintf("writing approval request: %s", err)), createApprovalOutput{}, nil
	}

	if s.pending != nil {
		s.pending.AddPending(string(actionType), input.Target)
	}
	if s.audit != nil {
		s.audit.Append(vault.AuditEntry{
			ActionType: "approval_requested",
			Actor:      "mcp",
			SourceFile: s.vault.Rel(path),
			Action:     string(actionType),
			Target:     input.Target,
			Result:     "success",
		})
	}

	out := createApprovalOutput{
		Path:    s.vault.Rel(path),
		Message: fmt.Sprintf("approval request filed: %s", filepath.Base(path)),
	}
	return nil, out, nil
}

func (s *Server) handleQueueCounts(_ context.Context, _ *gomcp.CallToolRequest, _ queueCountsInput) (*gomcp.CallToolResult, queueCountsOutput, error) {
	c := s.vault.Counts()
	return nil, queueCountsOutput{
		NeedsAction:     c.NeedsAction,
		Plans:           c.Plans,
		PendingApproval: c.PendingApproval,
		Approved:        c.Approved,
		Rejected:        c.Rejected,
		DoneToday:       c.DoneToday,
	}, nil
}

// --- Helpers ---

func itemToOutput(it vault.QueueItem) itemOutput {
	return itemOutput{
		Path:      it.Path,
		Subdomain: it.Subdomain,
		Subject:   it.Header.Subject,
		Source:    it.Header.Source,
		Priority:  string(it.Header.Priority),
		Status:    it.Header.Status,
		Received:  it.Header.Received,
	}
}

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
