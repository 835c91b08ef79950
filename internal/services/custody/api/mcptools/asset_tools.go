package mcptools

import (
	"context"

	"github.com/louisbranch/custody/internal/services/custody/domain"
	"github.com/louisbranch/custody/internal/services/custody/engine"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// AssetRegisterInput represents the MCP tool input for registering an asset.
type AssetRegisterInput struct {
	Name        string         `json:"name" jsonschema:"asset name"`
	Description string         `json:"description,omitempty" jsonschema:"asset description"`
	Category    string         `json:"category,omitempty" jsonschema:"asset category"`
	Placement   PlacementInput `json:"placement,omitempty" jsonschema:"initial placement"`
}

// AssetRegisterTool defines the MCP tool schema for registering an asset.
func AssetRegisterTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "asset_register",
		Description: "Registers a new AVAILABLE asset. Requires MANAGER or ADMIN.",
	}
}

// AssetRegisterHandler executes an asset registration.
func AssetRegisterHandler(service Service, resolve ActorFunc) mcp.ToolHandlerFor[AssetRegisterInput, AssetResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AssetRegisterInput) (*mcp.CallToolResult, AssetResult, error) {
		actor, err := resolve(ctx)
		if err != nil {
			return nil, AssetResult{}, toolError(err)
		}
		asset, err := service.RegisterAsset(ctx, actor, domain.NewAsset{
			Name:        input.Name,
			Description: input.Description,
			Category:    input.Category,
			Placement:   input.Placement.update().Apply(domain.Placement{}),
		})
		if err != nil {
			return nil, AssetResult{}, toolError(err)
		}
		return nil, assetResult(asset), nil
	}
}

// AssetGetInput represents the MCP tool input for reading an asset.
type AssetGetInput struct {
	AssetID string `json:"asset_id" jsonschema:"asset identifier"`
}

// AssetGetTool defines the MCP tool schema for reading an asset.
func AssetGetTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "asset_get",
		Description: "Returns one asset with its current status and placement.",
	}
}

// AssetGetHandler reads one asset.
func AssetGetHandler(service Service) mcp.ToolHandlerFor[AssetGetInput, AssetResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AssetGetInput) (*mcp.CallToolResult, AssetResult, error) {
		asset, err := service.GetAsset(ctx, input.AssetID)
		if err != nil {
			return nil, AssetResult{}, toolError(err)
		}
		return nil, assetResult(asset), nil
	}
}

// AssetListInput represents the MCP tool input for listing assets.
type AssetListInput struct {
	Filter     string `json:"filter,omitempty" jsonschema:"AIP-160 filter over status, category, name, location_id"`
	LocationID string `json:"location_id,omitempty" jsonschema:"restrict to this location and every location below it"`
	PageSize   int    `json:"page_size,omitempty" jsonschema:"maximum assets to return (default 50, max 200)"`
	PageToken  string `json:"page_token,omitempty" jsonschema:"token from a previous page"`
}

// AssetListResult represents the MCP tool output for listing assets.
type AssetListResult struct {
	Assets        []AssetResult `json:"assets" jsonschema:"assets, newest first"`
	NextPageToken string        `json:"next_page_token,omitempty" jsonschema:"token for the next page"`
}

// AssetListTool defines the MCP tool schema for listing assets.
func AssetListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "asset_list",
		Description: "Lists assets newest first, optionally filtered and restricted to a location subtree.",
	}
}

// AssetListHandler lists assets.
func AssetListHandler(service Service) mcp.ToolHandlerFor[AssetListInput, AssetListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AssetListInput) (*mcp.CallToolResult, AssetListResult, error) {
		page, err := service.ListAssets(ctx, engine.AssetListRequest{
			Filter:     input.Filter,
			LocationID: input.LocationID,
			PageSize:   input.PageSize,
			PageToken:  input.PageToken,
		})
		if err != nil {
			return nil, AssetListResult{}, toolError(err)
		}
		result := AssetListResult{Assets: make([]AssetResult, 0, len(page.Assets)), NextPageToken: page.NextPageToken}
		for _, asset := range page.Assets {
			result.Assets = append(result.Assets, assetResult(asset))
		}
		return nil, result, nil
	}
}

// AssetUpdateInput represents the MCP tool input for a direct asset edit.
type AssetUpdateInput struct {
	AssetID     string          `json:"asset_id" jsonschema:"asset identifier"`
	Status      *string         `json:"status,omitempty" jsonschema:"new custody status"`
	Name        *string         `json:"name,omitempty" jsonschema:"new name"`
	Description *string         `json:"description,omitempty" jsonschema:"new description"`
	Category    *string         `json:"category,omitempty" jsonschema:"new category"`
	Placement   *PlacementInput `json:"placement,omitempty" jsonschema:"placement fields to overwrite"`
	Target      *PlacementInput `json:"target,omitempty" jsonschema:"target placement fields to overwrite"`
	ImageRef    string          `json:"image_ref,omitempty" jsonschema:"opaque image reference recorded on an emitted entry"`
}

// AssetUpdateResult represents the MCP tool output for a direct asset edit.
type AssetUpdateResult struct {
	Asset AssetResult        `json:"asset" jsonschema:"asset after the edit"`
	Entry *TransactionResult `json:"entry,omitempty" jsonschema:"self-approved MOVE_START or MOVE_CONFIRM entry, when one was recorded"`
}

// AssetUpdateTool defines the MCP tool schema for a direct asset edit.
func AssetUpdateTool() *mcp.Tool {
	return &mcp.Tool{
		Name: "asset_update",
		Description: "Edits asset fields directly. May record a MOVE_START or MOVE_CONFIRM ledger entry " +
			"for moves and placement changes. Requires MANAGER or ADMIN.",
	}
}

// AssetUpdateHandler applies a direct asset edit.
func AssetUpdateHandler(service Service, resolve ActorFunc) mcp.ToolHandlerFor[AssetUpdateInput, AssetUpdateResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AssetUpdateInput) (*mcp.CallToolResult, AssetUpdateResult, error) {
		actor, err := resolve(ctx)
		if err != nil {
			return nil, AssetUpdateResult{}, toolError(err)
		}
		update := domain.FieldUpdate{
			Name:        input.Name,
			Description: input.Description,
			Category:    input.Category,
			Placement:   input.Placement.update(),
			Target:      input.Target.update(),
			ImageRef:    input.ImageRef,
		}
		if input.Status != nil {
			status := domain.AssetStatus(*input.Status)
			update.Status = &status
		}
		outcome, err := service.ApplyFieldUpdate(ctx, actor, input.AssetID, update)
		if err != nil {
			return nil, AssetUpdateResult{}, toolError(err)
		}
		result := AssetUpdateResult{Asset: assetResult(outcome.Asset)}
		if outcome.Entry != nil {
			entry := transactionResult(*outcome.Entry)
			result.Entry = &entry
		}
		return nil, result, nil
	}
}

// AssetHistoryInput represents the MCP tool input for reading an asset's ledger.
type AssetHistoryInput struct {
	AssetID   string `json:"asset_id" jsonschema:"asset identifier"`
	PageSize  int    `json:"page_size,omitempty" jsonschema:"maximum entries to return (default 50, max 200)"`
	PageToken string `json:"page_token,omitempty" jsonschema:"token from a previous page"`
}

// TransactionListResult represents a page of ledger entries.
type TransactionListResult struct {
	Transactions  []TransactionResult `json:"transactions" jsonschema:"ledger entries, newest first"`
	NextPageToken string              `json:"next_page_token,omitempty" jsonschema:"token for the next page"`
}

// AssetHistoryTool defines the MCP tool schema for reading an asset's ledger.
func AssetHistoryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "asset_history",
		Description: "Returns the custody ledger of one asset, newest first.",
	}
}

// AssetHistoryHandler reads an asset's ledger.
func AssetHistoryHandler(service Service) mcp.ToolHandlerFor[AssetHistoryInput, TransactionListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AssetHistoryInput) (*mcp.CallToolResult, TransactionListResult, error) {
		page, err := service.History(ctx, input.AssetID, input.PageSize, input.PageToken)
		if err != nil {
			return nil, TransactionListResult{}, toolError(err)
		}
		return nil, TransactionListResult{
			Transactions:  transactionResults(page.Transactions),
			NextPageToken: page.NextPageToken,
		}, nil
	}
}
