package saga

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies how a saga ended when it did not succeed.
type Kind int

const (
	// KindConflict: idempotency key reused with a different payload. No side effects.
	KindConflict Kind = iota + 1
	// KindTransient: a failed dispatch attempt still inside the retry budget.
	// Only seen by retry hooks and logs; never returned from Execute.
	KindTransient
	// KindPermanent: dispatch exhausted its retry budget. Always found wrapped
	// inside a KindCompensated or KindMismatch error.
	KindPermanent
	// KindCompensated: dispatch failed and the agreement was rolled back to CANCELLED.
	KindCompensated
	// KindMismatch: dispatch failed and so did the rollback. Downstream state is unknown.
	KindMismatch
	// KindUpstreamStep: draft, enrichment, pricing or activation failed. Not compensated.
	KindUpstreamStep
)

func (k Kind) String() string {
	switch k {
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindCompensated:
		return "compensated"
	case KindMismatch:
		return "mismatch"
	case KindUpstreamStep:
		return "upstream_step"
	default:
		return "unknown"
	}
}

// ErrStateUnknown marks a failed compensation: the agreement may be ACTIVE
// downstream and must be reconciled by hand.
var ErrStateUnknown = errors.New("state unknown, requires manual reconciliation")

// ErrMissingIdempotencyKey is returned by Execute for a blank key.
var ErrMissingIdempotencyKey = errors.New("saga: idempotency key is required")

type Error struct {
	Kind          Kind
	Step          string
	CorrelationID string
	AgreementID   string
	Err           error
	// CompensationErr is set only for KindMismatch.
	CompensationErr error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "saga %s", e.Kind)
	if e.Step != "" {
		fmt.Fprintf(&b, " at %s", e.Step)
	}
	if e.AgreementID != "" {
		fmt.Fprintf(&b, " (agreement %s)", e.AgreementID)
	}
	if e.CorrelationID != "" {
		fmt.Fprintf(&b, " [correlation %s]", e.CorrelationID)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.Kind == KindMismatch {
		if e.CompensationErr != nil {
			fmt.Fprintf(&b, "; compensation: %v", e.CompensationErr)
		}
		fmt.Fprintf(&b, "; %s", ErrStateUnknown)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, 0, 3)
	if e.Err != nil {
		out = append(out, e.Err)
	}
	if e.CompensationErr != nil {
		out = append(out, e.CompensationErr)
	}
	if e.Kind == KindMismatch {
		out = append(out, ErrStateUnknown)
	}
	return out
}

// KindOf returns the kind of the outermost *Error in err's tree, or 0.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

func IsConflict(err error) bool { return KindOf(err) == KindConflict }
