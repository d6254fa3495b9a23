package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/parley-ai/parley/pkg/skill"
)

// Kind classifies a negotiation failure by cause. Terminal events carry it
// so observers can tell an unreachable agent from a broken invariant.
type Kind string

const (
	KindChannelUnavailable Kind = "channel_unavailable"
	KindModelError         Kind = "model_error"
	KindContractViolation  Kind = "skill_contract_violation"
	KindToolDispatch       Kind = "tool_dispatch_error"
	KindDeadlineExceeded   Kind = "deadline_exceeded"
	KindCancelled          Kind = "cancelled"
	KindInternalInvariant  Kind = "internal_invariant"
)

// Error is a classified engine failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classify wraps err with the Kind its cause implies. Already-classified
// errors pass through unchanged.
func classify(op string, err error) *Error {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr
	}

	kind := KindModelError
	var parseErr *skill.ParseError
	switch {
	case errors.Is(err, context.Canceled):
		kind = KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindDeadlineExceeded
	case errors.As(err, &parseErr):
		kind = KindModelError
	case errors.Is(err, skill.ErrContract):
		kind = KindContractViolation
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
