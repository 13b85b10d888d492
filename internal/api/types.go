package api

import (
	"github.com/shopspring/decimal"

	"github.com/MJE43/arcade-session-go/internal/session"
	"github.com/MJE43/arcade-session-go/internal/settle"
)

// EngineError represents a structured error response with context
type EngineError struct {
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e EngineError) Error() string {
	return e.Message
}

// Error types with proper categorization
const (
	// Input validation errors
	ErrTypeInvalidParams = "invalid_params"
	ErrTypeValidation    = "validation_error"

	// Game and session errors
	ErrTypeGameNotFound    = "game_not_found"
	ErrTypeSessionNotFound = "session_not_found"
	ErrTypeWrongPhase      = "wrong_phase"
	ErrTypeSessionClosed   = "session_closed"
	ErrTypeGameUnavailable = "game_unavailable"

	// Player errors
	ErrTypeNoIdentity = "no_identity"

	// System errors
	ErrTypeSettlement         = "settlement_error"
	ErrTypeTimeout            = "timeout"
	ErrTypeInternal           = "internal_error"
	ErrTypeServiceUnavailable = "service_unavailable"
)

// ErrorCategory represents error categories for monitoring
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryGame       ErrorCategory = "game"
	CategoryPlayer     ErrorCategory = "player"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeInvalidParams, ErrTypeValidation:
		return CategoryValidation
	case ErrTypeGameNotFound, ErrTypeSessionNotFound, ErrTypeWrongPhase, ErrTypeSessionClosed, ErrTypeGameUnavailable:
		return CategoryGame
	case ErrTypeNoIdentity:
		return CategoryPlayer
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// VersionInfo contains engine version information
type VersionInfo struct {
	EngineVersion string `json:"engine_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
}

// GamesResponse is the lobby listing
type GamesResponse struct {
	Games         []session.GameInfo `json:"games"`
	EngineVersion string             `json:"engine_version"`
}

// StartRequest places a wager on the game in the URL
type StartRequest struct {
	Wager     string `json:"wager"`
	MineCount int    `json:"mine_count,omitempty"`
}

// StartResponse reports whether a new round began. Started is false when a
// round was already in flight and the request was ignored.
type StartResponse struct {
	Started  bool             `json:"started"`
	Snapshot session.Snapshot `json:"snapshot"`
}

// PickRequest selects a card position
type PickRequest struct {
	Position *int `json:"position"`
}

// RevealRequest uncovers a mining cell
type RevealRequest struct {
	Cell *int `json:"cell"`
}

// RevealResponse reports what the cell held
type RevealResponse struct {
	Result   string           `json:"result"`
	Snapshot session.Snapshot `json:"snapshot"`
}

// BalanceResponse is the refreshed wallet balance
type BalanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

// HistoryResponse lists the player's recent rounds
type HistoryResponse struct {
	Entries []settle.HistoryEntry `json:"entries"`
	Count   int                   `json:"count"`
}
