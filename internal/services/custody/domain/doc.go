// Package domain holds the custody state machine: asset and ledger records,
// the actors that drive them, and the pure decisions that decide which
// transition an operation produces.
//
// Nothing here touches storage. The engine loads records under lock, asks
// this package what the next state is, and persists the answer.
//
// # Request/approval
//
// A request moves an asset into a PENDING_* status and appends a
// PENDING_APPROVAL ledger entry. An elevated actor later resolves the entry,
// which moves the asset to its approved or reverted status. Because every
// pending request leaves the asset in a PENDING_* status, and requests require
// AVAILABLE or BORROWED, an asset carries at most one pending entry.
//
// # Direct updates
//
// ApplyFieldUpdate edits asset fields directly and may emit a self-approving
// MOVE_START or MOVE_CONFIRM entry. See DecideFieldUpdate for the rules.
package domain
