package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/farouqaldori/claude-island/internal/permission"
)

// createApprovalPromptTool defines the permission prompt tool Claude Code
// calls before running a tool that needs approval.
func createApprovalPromptTool() mcp.Tool {
	return mcp.NewTool("approval_prompt",
		mcp.WithDescription("Ask the user to approve or deny a tool invocation. Blocks until the user decides or the request times out."),
		mcp.WithString("tool_name",
			mcp.Required(),
			mcp.Description("Name of the tool awaiting approval"),
		),
		mcp.WithString("input",
			mcp.Description("JSON-encoded input of the tool invocation"),
		),
		mcp.WithString("tool_use_id",
			mcp.Description("Tool use id, used to auto-cancel the prompt if the tool completes"),
		),
	)
}

// approvalOutcome is the JSON body Claude Code expects back from a permission
// prompt tool.
type approvalOutcome struct {
	Behavior       string         `json:"behavior"` // allow or deny
	Message        string         `json:"message,omitempty"`
	UpdatedInput   map[string]any `json:"updatedInput,omitempty"`
	InterruptAgent bool           `json:"interrupt,omitempty"`
}

func (s *Service) handleApprovalPrompt(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	toolName, err := req.RequireString("tool_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var input map[string]any
	if raw := req.GetString("input", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &input); err != nil {
			// Keep the raw text rather than failing the prompt.
			input = map[string]any{"raw": raw}
		}
	}
	toolUseID := req.GetString("tool_use_id", "")

	pending := s.perms.Create("", toolName, toolUseID, input)
	if s.OnRequest != nil {
		s.OnRequest(pending)
	}

	resp := s.awaitDecision(ctx, pending)

	outcome := approvalOutcome{Behavior: "deny", Message: resp.Reason}
	if resp.Decision == permission.DecisionAllow {
		outcome = approvalOutcome{Behavior: "allow", UpdatedInput: input}
	}
	if outcome.Message == "" && outcome.Behavior == "deny" {
		outcome.Message = "denied by user"
	}

	data, err := json.Marshal(outcome)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// awaitDecision blocks on the manager but also honors the MCP call's context,
// cancelling the pending request if the caller goes away first.
func (s *Service) awaitDecision(ctx context.Context, req *permission.Request) *permission.Response {
	resolved := make(chan *permission.Response, 1)
	go func() { resolved <- s.perms.Await(req) }()

	select {
	case resp := <-resolved:
		return resp
	case <-ctx.Done():
		s.perms.Cancel(req.ID)
		return &permission.Response{Decision: permission.DecisionDeny, Reason: "request cancelled"}
	}
}
