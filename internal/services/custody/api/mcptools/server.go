// Package mcptools exposes the custody engine as MCP tools.
//
// Each tool resolves the calling actor through an ActorFunc, so the same
// handlers serve stdio sessions (one fixed actor) and HTTP requests (the
// actor carried by the request grant).
package mcptools

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/louisbranch/custody/internal/platform/errors"
	"github.com/louisbranch/custody/internal/platform/requestctx"
	"github.com/louisbranch/custody/internal/services/custody/domain"
	"github.com/louisbranch/custody/internal/services/custody/engine"
	"github.com/louisbranch/custody/internal/services/custody/storage"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "custody"
	serverVersion = "0.1.0"
)

// Service is the engine surface the tools call.
type Service interface {
	RequestBorrow(ctx context.Context, actor domain.Actor, assetID string, input domain.RequestInput) (engine.Result, error)
	RequestDispatch(ctx context.Context, actor domain.Actor, assetID string, input domain.RequestInput) (engine.Result, error)
	RequestReturn(ctx context.Context, actor domain.Actor, assetID string, input domain.RequestInput) (engine.Result, error)
	Approve(ctx context.Context, verifier domain.Actor, txnID, adminNote string) (engine.Result, error)
	Reject(ctx context.Context, verifier domain.Actor, txnID, reason string) (engine.Result, error)
	ApproveReturn(ctx context.Context, verifier domain.Actor, txnID string, placement domain.PlacementUpdate, adminNote string) (engine.Result, error)
	RejectReturn(ctx context.Context, verifier domain.Actor, txnID, reason string) (engine.Result, error)
	BulkApprove(ctx context.Context, verifier domain.Actor, txnIDs []string, adminNote string) (engine.BulkResult, error)
	ApplyFieldUpdate(ctx context.Context, actor domain.Actor, assetID string, update domain.FieldUpdate) (engine.FieldUpdateResult, error)
	RegisterAsset(ctx context.Context, actor domain.Actor, input domain.NewAsset) (domain.Asset, error)
	RegisterLocation(ctx context.Context, actor domain.Actor, name, parentID string) (domain.Location, error)
	GetAsset(ctx context.Context, assetID string) (domain.Asset, error)
	GetTransaction(ctx context.Context, txnID string) (domain.Transaction, error)
	ListAssets(ctx context.Context, req engine.AssetListRequest) (storage.AssetPage, error)
	ListLocations(ctx context.Context) ([]domain.Location, error)
	ListTransactions(ctx context.Context, req engine.TransactionListRequest) (storage.TransactionPage, error)
	History(ctx context.Context, assetID string, pageSize int, pageToken string) (storage.TransactionPage, error)
	CheckLedger(ctx context.Context, actor domain.Actor) (engine.LedgerReport, error)
}

var _ Service = (*engine.Engine)(nil)

// ActorFunc resolves the actor of a tool call.
type ActorFunc func(ctx context.Context) (domain.Actor, error)

// FixedActor resolves every call to actor.
func FixedActor(actor domain.Actor) ActorFunc {
	return func(context.Context) (domain.Actor, error) {
		return actor, nil
	}
}

// ContextActor resolves the actor stored in the call context by the
// transport.
func ContextActor(ctx context.Context) (domain.Actor, error) {
	stored, ok := requestctx.ActorFromContext(ctx)
	if !ok {
		return domain.Actor{}, apperrors.New(apperrors.CodePermissionDenied, "no actor grant on request")
	}
	privilege, ok := domain.ParsePrivilege(stored.Role)
	if !ok {
		return domain.Actor{}, apperrors.New(apperrors.CodePermissionDenied, "actor role is invalid")
	}
	return domain.Actor{ID: stored.UserID, Privilege: privilege}, nil
}

// NewServer builds an MCP server with every custody tool registered.
func NewServer(service Service, actor ActorFunc) (*mcp.Server, error) {
	if service == nil {
		return nil, errors.New("custody service is required")
	}
	if actor == nil {
		return nil, errors.New("actor resolver is required")
	}
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	Register(server, service, actor)
	return server, nil
}

// Register adds every custody tool to server.
func Register(server *mcp.Server, service Service, actor ActorFunc) {
	mcp.AddTool(server, AssetRegisterTool(), AssetRegisterHandler(service, actor))
	mcp.AddTool(server, AssetGetTool(), AssetGetHandler(service))
	mcp.AddTool(server, AssetListTool(), AssetListHandler(service))
	mcp.AddTool(server, AssetUpdateTool(), AssetUpdateHandler(service, actor))
	mcp.AddTool(server, AssetHistoryTool(), AssetHistoryHandler(service))
	mcp.AddTool(server, LocationRegisterTool(), LocationRegisterHandler(service, actor))
	mcp.AddTool(server, LocationListTool(), LocationListHandler(service))
	mcp.AddTool(server, BorrowRequestTool(), BorrowRequestHandler(service, actor))
	mcp.AddTool(server, DispatchRequestTool(), DispatchRequestHandler(service, actor))
	mcp.AddTool(server, ReturnRequestTool(), ReturnRequestHandler(service, actor))
	mcp.AddTool(server, TransactionApproveTool(), TransactionApproveHandler(service, actor))
	mcp.AddTool(server, TransactionRejectTool(), TransactionRejectHandler(service, actor))
	mcp.AddTool(server, ReturnApproveTool(), ReturnApproveHandler(service, actor))
	mcp.AddTool(server, ReturnRejectTool(), ReturnRejectHandler(service, actor))
	mcp.AddTool(server, BulkApproveTool(), BulkApproveHandler(service, actor))
	mcp.AddTool(server, TransactionGetTool(), TransactionGetHandler(service))
	mcp.AddTool(server, TransactionListTool(), TransactionListHandler(service))
	mcp.AddTool(server, LedgerCheckTool(), LedgerCheckHandler(service, actor))
}

// toolError renders err as "<CODE>: <message>" for the calling agent.
func toolError(err error) error {
	if err == nil {
		return nil
	}
	code := apperrors.CodeOf(err)
	if code == apperrors.CodeUnknown {
		return fmt.Errorf("%s: internal error", code)
	}
	return fmt.Errorf("%s: %s", code, err.Error())
}
