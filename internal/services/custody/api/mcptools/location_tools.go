package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// LocationRegisterInput represents the MCP tool input for registering a location.
type LocationRegisterInput struct {
	Name     string `json:"name" jsonschema:"location name"`
	ParentID string `json:"parent_id,omitempty" jsonschema:"parent location identifier"`
}

// LocationRegisterTool defines the MCP tool schema for registering a location.
func LocationRegisterTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "location_register",
		Description: "Registers a location, optionally below a parent. Requires MANAGER or ADMIN.",
	}
}

// LocationRegisterHandler registers a location.
func LocationRegisterHandler(service Service, resolve ActorFunc) mcp.ToolHandlerFor[LocationRegisterInput, LocationResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input LocationRegisterInput) (*mcp.CallToolResult, LocationResult, error) {
		actor, err := resolve(ctx)
		if err != nil {
			return nil, LocationResult{}, toolError(err)
		}
		loc, err := service.RegisterLocation(ctx, actor, input.Name, input.ParentID)
		if err != nil {
			return nil, LocationResult{}, toolError(err)
		}
		return nil, locationResult(loc), nil
	}
}

// LocationListInput represents the MCP tool input for listing locations.
type LocationListInput struct{}

// LocationListResult represents the MCP tool output for listing locations.
type LocationListResult struct {
	Locations []LocationResult `json:"locations" jsonschema:"every location ordered by name"`
}

// LocationListTool defines the MCP tool schema for listing locations.
func LocationListTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "location_list",
		Description: "Lists every registered location.",
	}
}

// LocationListHandler lists locations.
func LocationListHandler(service Service) mcp.ToolHandlerFor[LocationListInput, LocationListResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ LocationListInput) (*mcp.CallToolResult, LocationListResult, error) {
		locations, err := service.ListLocations(ctx)
		if err != nil {
			return nil, LocationListResult{}, toolError(err)
		}
		result := LocationListResult{Locations: make([]LocationResult, 0, len(locations))}
		for _, loc := range locations {
			result.Locations = append(result.Locations, locationResult(loc))
		}
		return nil, result, nil
	}
}
