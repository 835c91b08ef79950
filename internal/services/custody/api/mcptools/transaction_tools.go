package mcptools

import (
	"context"

	"github.com/louisbranch/custody/internal/services/custody/engine"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// TransactionGetInput represents the MCP tool input for reading a ledger entry.
type TransactionGetInput struct {
	TransactionID string `json:"transaction_id" jsonschema:"transaction identifier"`
}

// TransactionGetTool defines the MCP tool schema for reading a ledger entry.
func TransactionGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "transaction_get",
		Description: "Returns one custody ledger entry.",
	}
}

// TransactionGetHandler reads one ledger entry.
func TransactionGetHandler(service Service) mcp.ToolHandlerFor[TransactionGetInput, TransactionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TransactionGetInput) (*mcp.CallToolResult, TransactionResult, error) {
		txn, err := service.GetTransaction(ctx, input.TransactionID)
		if err != nil {
			return nil, TransactionResult{}, toolError(err)
		}
		return nil, transactionResult(txn), nil
	}
}

// TransactionListInput represents the MCP tool input for listing ledger entries.
type TransactionListInput struct {
	Filter    string `json:"filter,omitempty" jsonschema:"AIP-160 filter over status, action, asset_id, requester_id, verifier_id; status = \"PENDING_APPROVAL\" is the approval queue"`
	PageSize  int    `json:"page_size,omitempty" jsonschema:"maximum entries to return (default 50, max 200)"`
	PageToken string `json:"page_token,omitempty" jsonschema:"token from a previous page"`
}

// TransactionListTool defines the MCP tool schema for listing ledger entries.
func TransactionListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "transaction_list",
		Description: "Lists custody ledger entries newest first, optionally filtered.",
	}
}

// TransactionListHandler lists ledger entries.
func TransactionListHandler(service Service) mcp.ToolHandlerFor[TransactionListInput, TransactionListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input TransactionListInput) (*mcp.CallToolResult, TransactionListResult, error) {
		page, err := service.ListTransactions(ctx, engine.TransactionListRequest{
			Filter:    input.Filter,
			PageSize:  input.PageSize,
			PageToken: input.PageToken,
		})
		if err != nil {
			return nil, TransactionListResult{}, toolError(err)
		}
		return nil, TransactionListResult{
			Transactions:  transactionResults(page.Transactions),
			NextPageToken: page.NextPageToken,
		}, nil
	}
}

// LedgerCheckInput represents the MCP tool input for the ledger audit.
type LedgerCheckInput struct{}

// ViolationResult is one registry and ledger inconsistency.
type ViolationResult struct {
	AssetID string `json:"asset_id" jsonschema:"asset identifier"`
	Kind    string `json:"kind" jsonschema:"inconsistency kind"`
	Detail  string `json:"detail" jsonschema:"human readable detail"`
}

// LedgerCheckResult represents the MCP tool output for the ledger audit.
type LedgerCheckResult struct {
	AssetsChecked int               `json:"assets_checked" jsonschema:"number of assets reconciled"`
	Violations    []ViolationResult `json:"violations" jsonschema:"inconsistencies found"`
}

// LedgerCheckTool defines the MCP tool schema for the ledger audit.
func LedgerCheckTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "ledger_check",
		Description: "Reconciles every asset's status with its ledger and reports inconsistencies. Requires MANAGER or ADMIN.",
	}
}

// LedgerCheckHandler runs the ledger audit.
func LedgerCheckHandler(service Service, resolve ActorFunc) mcp.ToolHandlerFor[LedgerCheckInput, LedgerCheckResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ LedgerCheckInput) (*mcp.CallToolResult, LedgerCheckResult, error) {
		actor, err := resolve(ctx)
		if err != nil {
			return nil, LedgerCheckResult{}, toolError(err)
		}
		report, err := service.CheckLedger(ctx, actor)
		if err != nil {
			return nil, LedgerCheckResult{}, toolError(err)
		}
		result := LedgerCheckResult{
			AssetsChecked: report.AssetsChecked,
			Violations:    make([]ViolationResult, 0, len(report.Violations)),
		}
		for _, violation := range report.Violations {
			result.Violations = append(result.Violations, ViolationResult{
				AssetID: violation.AssetID,
				Kind:    string(violation.Kind),
				Detail:  violation.Detail,
			})
		}
		return nil, result, nil
	}
}
