package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for lookups.
var (
	ErrOrderNotFound = errors.New("order not found")
	ErrUnknownLeg    = errors.New("unknown leg")
)

// FieldViolation is one failed field-level rule. The validator collects all
// violations for a request instead of stopping at the first.
type FieldViolation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (v FieldViolation) String() string {
	return v.Field + ": " + v.Message
}

// ValidationError carries the complete list of violated rules so the caller
// can fix all problems in one round-trip.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// MalformedRequestError marks input that is not a well-formed request object.
// It is distinct from field violations and raised before any business check.
type MalformedRequestError struct {
	Reason string
}

func (e *MalformedRequestError) Error() string {
	return "malformed request: " + e.Reason
}

// PreconditionError is returned when an action targets a leg or order whose
// status does not permit it (cancelling an unarmed leg, modifying a terminal
// order). Never a silent ignore.
type PreconditionError struct {
	Op      string
	OrderID string
	Leg     LegRole
	Reason  string
}

func (e *PreconditionError) Error() string {
	if e.Leg != "" {
		return fmt.Sprintf("%s %s %s: %s", e.Op, e.OrderID, e.Leg, e.Reason)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.OrderID, e.Reason)
}

// StaleUpdateError is returned when a broker update would un-terminate a leg
// or corrupt its fill accounting. Such updates are always rejected, never
// coerced into the aggregate.
type StaleUpdateError struct {
	OrderID string
	Leg     LegRole
	From    LegStatus
	To      LegStatus
	Reason  string
}

func (e *StaleUpdateError) Error() string {
	return fmt.Sprintf("stale update on %s %s (%s -> %s): %s",
		e.OrderID, e.Leg, e.From, e.To, e.Reason)
}

// GatewayError wraps a failed broker call. The broker's rejection reason is
// preserved and no local state mutation is assumed on failure.
type GatewayError struct {
	Op         string
	StatusCode int    // HTTP status, 0 on transport failure
	Code       string // broker error code, if any
	Message    string
	Timeout    bool
	Err        error
}

func (e *GatewayError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("gateway %s: timed out", e.Op)
	case e.Err != nil:
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("gateway %s: status=%d code=%s %s", e.Op, e.StatusCode, e.Code, e.Message)
	}
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
