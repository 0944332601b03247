package engine

import "errors"

var (
	// ErrInsufficientBalance is returned when a command would debit more
	// than the available session balance.
	ErrInsufficientBalance = errors.New("engine: insufficient balance")

	// ErrMarginTooLow is returned when the margin posted at open is below
	// the NotionalDV01 × 50 floor.
	ErrMarginTooLow = errors.New("engine: margin below minimum")

	// ErrSettlementModeActive is returned when a new position is requested
	// while the settlement valuation basis is active.
	ErrSettlementModeActive = errors.New("engine: settlement mode active")

	// ErrInvalidInput is returned for malformed command fields that cannot
	// be clamped (non-positive notional, bad direction, non-positive top-up).
	ErrInvalidInput = errors.New("engine: invalid input")

	// ErrPositionNotFound is returned when a command references a position
	// that is not in the open ledger.
	ErrPositionNotFound = errors.New("engine: position not found")

	// ErrNoPendingAction is returned by Confirm/Cancel with nothing pending.
	ErrNoPendingAction = errors.New("engine: no pending action")

	// ErrPendingActionExists is returned when a request is made while an
	// earlier pending action awaits confirm or cancel.
	ErrPendingActionExists = errors.New("engine: pending action awaiting confirmation")
)
