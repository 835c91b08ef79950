package mcptools

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/custody/internal/platform/errors"
	"github.com/louisbranch/custody/internal/services/custody/domain"
	"github.com/louisbranch/custody/internal/services/custody/engine"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RequestInput represents the MCP tool input for a borrow, dispatch or
// return request.
type RequestInput struct {
	AssetID  string `json:"asset_id" jsonschema:"asset identifier"`
	Reason   string `json:"reason,omitempty" jsonschema:"why the asset is requested"`
	DueAt    string `json:"due_at,omitempty" jsonschema:"RFC3339 due date, borrow only"`
	ImageRef string `json:"image_ref,omitempty" jsonschema:"opaque image reference, return only"`
}

type requestFunc func(ctx context.Context, actor domain.Actor, assetID string, input domain.RequestInput) (engine.Result, error)

// BorrowRequestTool defines the MCP tool schema for a borrow request.
func BorrowRequestTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "borrow_request",
		Description: "Requests to borrow an AVAILABLE asset. The asset becomes PENDING_BORROW until approved or rejected.",
	}
}

// BorrowRequestHandler files a borrow request.
func BorrowRequestHandler(service Service, resolve ActorFunc) mcp.ToolHandlerFor[RequestInput, OutcomeResult] {
	return requestHandler(service.RequestBorrow, resolve)
}

// DispatchRequestTool defines the MCP tool schema for a dispatch request.
func DispatchRequestTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "dispatch_request",
		Description: "Requests to dispatch an AVAILABLE asset out of custody. Approval moves it to DISPATCHED.",
	}
}

// DispatchRequestHandler files a dispatch request.
func DispatchRequestHandler(service Service, resolve ActorFunc) mcp.ToolHandlerFor[RequestInput, OutcomeResult] {
	return requestHandler(service.RequestDispatch, resolve)
}

// ReturnRequestTool defines the MCP tool schema for a return request.
func ReturnRequestTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "return_request",
		Description: "Requests to return a BORROWED asset. Only the user of the latest completed borrow may return it.",
	}
}

// ReturnRequestHandler files a return request.
func ReturnRequestHandler(service Service, resolve ActorFunc) mcp.ToolHandlerFor[RequestInput, OutcomeResult] {
	return requestHandler(service.RequestReturn, resolve)
}

func requestHandler(request requestFunc, resolve ActorFunc) mcp.ToolHandlerFor[RequestInput, OutcomeResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RequestInput) (*mcp.CallToolResult, OutcomeResult, error) {
		actor, err := resolve(ctx)
		if err != nil {
			return nil, OutcomeResult{}, toolError(err)
		}
		dueAt, err := parseDueAt(input.DueAt)
		if err != nil {
			return nil, OutcomeResult{}, toolError(err)
		}
		result, err := request(ctx, actor, input.AssetID, domain.RequestInput{
			Reason:   input.Reason,
			DueAt:    dueAt,
			ImageRef: input.ImageRef,
		})
		if err != nil {
			return nil, OutcomeResult{}, toolError(err)
		}
		return nil, outcomeResult(result), nil
	}
}

func parseDueAt(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, apperrors.WithMetadata(apperrors.CodeInvalidInput,
			fmt.Sprintf("due_at must be an RFC3339 timestamp: %v", err),
			map[string]string{"DueAt": value})
	}
	return &parsed, nil
}

func outcomeResult(result engine.Result) OutcomeResult {
	return OutcomeResult{
		Asset:       assetResult(result.Asset),
		Transaction: transactionResult(result.Transaction),
	}
}
