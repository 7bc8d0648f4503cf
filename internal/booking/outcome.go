package booking

import (
	"context"
	"errors"
)

// Outcome classifies one pass of the court loop. Every retry decision
// goes through Retryable so the policy lives in exactly one place.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeNoWork
	OutcomeTransient
	OutcomeHard
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNoWork:
		return "no-work-found"
	case OutcomeTransient:
		return "transient-failure"
	case OutcomeHard:
		return "hard-failure"
	default:
		return "unknown"
	}
}

// Retryable reports whether another pass through the court loop can
// help. Only transient failures qualify: absence of slots cannot be
// retried into existence, and hard failures will not heal on their own.
func (o Outcome) Retryable() bool {
	return o == OutcomeTransient
}

// Classify maps an attempt's result and error to its outcome.
func Classify(res *Result, err error) Outcome {
	switch {
	case res != nil:
		return OutcomeSuccess
	case err == nil:
		return OutcomeNoWork
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeHard
	case errors.Is(err, ErrNoSlots):
		return OutcomeNoWork
	default:
		return OutcomeTransient
	}
}
