package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ResolveInput represents the MCP tool input for approving a pending entry.
type ResolveInput struct {
	TransactionID string `json:"transaction_id" jsonschema:"pending transaction identifier"`
	AdminNote     string `json:"admin_note,omitempty" jsonschema:"note recorded on the entry"`
}

// RejectInput represents the MCP tool input for rejecting a pending entry.
type RejectInput struct {
	TransactionID string `json:"transaction_id" jsonschema:"pending transaction identifier"`
	Reason        string `json:"reason,omitempty" jsonschema:"rejection reason recorded as the admin note"`
}

// ReturnApproveInput represents the MCP tool input for approving a return.
type ReturnApproveInput struct {
	TransactionID string          `json:"transaction_id" jsonschema:"pending RETURN transaction identifier"`
	Placement     *PlacementInput `json:"placement,omitempty" jsonschema:"placement fields to overwrite on the returned asset"`
	AdminNote     string          `json:"admin_note,omitempty" jsonschema:"note recorded on the entry"`
}

// TransactionApproveTool defines the MCP tool schema for approving a borrow or dispatch.
func TransactionApproveTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "transaction_approve",
		Description: "Approves a pending BORROW or DISPATCH entry. Requires MANAGER or ADMIN.",
	}
}

// TransactionApproveHandler approves a borrow or dispatch.
func TransactionApproveHandler(service Service, resolve ActorFunc) mcp.ToolHandlerFor[ResolveInput, OutcomeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ResolveInput) (*mcp.CallToolResult, OutcomeResult, error) {
		actor, err := resolve(ctx)
		if err != nil {
			return nil, OutcomeResult{}, toolError(err)
		}
		result, err := service.Approve(ctx, actor, input.TransactionID, input.AdminNote)
		if err != nil {
			return nil, OutcomeResult{}, toolError(err)
		}
		return nil, outcomeResult(result), nil
	}
}

// TransactionRejectTool defines the MCP tool schema for rejecting a borrow or dispatch.
func TransactionRejectTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "transaction_reject",
		Description: "Rejects a pending BORROW or DISPATCH entry and releases the asset. Requires MANAGER or ADMIN.",
	}
}

// TransactionRejectHandler rejects a borrow or dispatch.
func TransactionRejectHandler(service Service, resolve ActorFunc) mcp.ToolHandlerFor[RejectInput, OutcomeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RejectInput) (*mcp.CallToolResult, OutcomeResult, error) {
		actor, err := resolve(ctx)
		if err != nil {
			return nil, OutcomeResult{}, toolError(err)
		}
		result, err := service.Reject(ctx, actor, input.TransactionID, input.Reason)
		if err != nil {
			return nil, OutcomeResult{}, toolError(err)
		}
		return nil, outcomeResult(result), nil
	}
}

// ReturnApproveTool defines the MCP tool schema for approving a return.
func ReturnApproveTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "return_approve",
		Description: "Approves a pending RETURN entry. The asset becomes AVAILABLE at the given placement " +
			"and the entry records the final placement. Requires MANAGER or ADMIN.",
	}
}

// ReturnApproveHandler approves a return.
func ReturnApproveHandler(service Service, resolve ActorFunc) mcp.ToolHandlerFor[ReturnApproveInput, OutcomeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ReturnApproveInput) (*mcp.CallToolResult, OutcomeResult, error) {
		actor, err := resolve(ctx)
		if err != nil {
			return nil, OutcomeResult{}, toolError(err)
		}
		result, err := service.ApproveReturn(ctx, actor, input.TransactionID, input.Placement.update(), input.AdminNote)
		if err != nil {
			return nil, OutcomeResult{}, toolError(err)
		}
		return nil, outcomeResult(result), nil
	}
}

// ReturnRejectTool defines the MCP tool schema for rejecting a return.
func ReturnRejectTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "return_reject",
		Description: "Rejects a pending RETURN entry. The asset stays BORROWED. Requires MANAGER or ADMIN.",
	}
}

// ReturnRejectHandler rejects a return.
func ReturnRejectHandler(service Service, resolve ActorFunc) mcp.ToolHandlerFor[RejectInput, OutcomeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RejectInput) (*mcp.CallToolResult, OutcomeResult, error) {
		actor, err := resolve(ctx)
		if err != nil {
			return nil, OutcomeResult{}, toolError(err)
		}
		result, err := service.RejectReturn(ctx, actor, input.TransactionID, input.Reason)
		if err != nil {
			return nil, OutcomeResult{}, toolError(err)
		}
		return nil, outcomeResult(result), nil
	}
}

// BulkApproveInput represents the MCP tool input for approving many entries.
type BulkApproveInput struct {
	TransactionIDs []string `json:"transaction_ids" jsonschema:"pending transaction identifiers, approved in order"`
	AdminNote      string   `json:"admin_note,omitempty" jsonschema:"note recorded on every approved entry"`
}

// BulkFailureResult is one entry that could not be approved.
type BulkFailureResult struct {
	TransactionID string `json:"transaction_id" jsonschema:"transaction identifier"`
	Error         string `json:"error" jsonschema:"CODE: message"`
}

// BulkApproveResult represents the MCP tool output for a bulk approval.
type BulkApproveResult struct {
	Succeeded []string            `json:"succeeded" jsonschema:"approved transaction identifiers"`
	Failed    []BulkFailureResult `json:"failed" jsonschema:"entries that could not be approved"`
}

// BulkApproveTool defines the MCP tool schema for approving many entries.
func BulkApproveTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "transaction_bulk_approve",
		Description: "Approves each listed entry independently. One failure does not roll back the others. " +
			"Returns are approved with the asset's current placement. Requires MANAGER or ADMIN.",
	}
}

// BulkApproveHandler approves many entries.
func BulkApproveHandler(service Service, resolve ActorFunc) mcp.ToolHandlerFor[BulkApproveInput, BulkApproveResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input BulkApproveInput) (*mcp.CallToolResult, BulkApproveResult, error) {
		actor, err := resolve(ctx)
		if err != nil {
			return nil, BulkApproveResult{}, toolError(err)
		}
		outcome, err := service.BulkApprove(ctx, actor, input.TransactionIDs, input.AdminNote)
		if err != nil {
			return nil, BulkApproveResult{}, toolError(err)
		}
		result := BulkApproveResult{
			Succeeded: append([]string{}, outcome.Succeeded...),
			Failed:    make([]BulkFailureResult, 0, len(outcome.Failed)),
		}
		for _, failure := range outcome.Failed {
			result.Failed = append(result.Failed, BulkFailureResult{
				TransactionID: failure.TransactionID,
				Error:         toolError(failure.Err).Error(),
			})
		}
		return nil, result, nil
	}
}
