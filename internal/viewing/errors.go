package viewing

import (
	"errors"
	"fmt"

	"github.com/evcraddock/viewing-scheduler/internal/feasibility"
)

var (
	// ErrInvalidTransition is returned when a lifecycle operation is
	// attempted from a state that forbids it.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNoAlternative is returned when slot search exhausts the working day.
	ErrNoAlternative = errors.New("no availability today")

	// ErrInvalidTime is returned for a malformed HH:MM value.
	ErrInvalidTime = errors.New("invalid time")

	// ErrInfeasible matches every *InfeasibleError.
	ErrInfeasible = errors.New("infeasible")
)

// InfeasibleError reports a rejected scheduling request. SuggestedTime is
// the earliest HH:MM the rejecting rule would accept, when computable.
type InfeasibleError struct {
	Kind          feasibility.Kind
	Reason        string
	SuggestedTime string
}

func (e *InfeasibleError) Error() string {
	if e.SuggestedTime != "" {
		return fmt.Sprintf("%s (next available %s)", e.Reason, e.SuggestedTime)
	}
	return e.Reason
}

// Is matches ErrInfeasible.
func (e *InfeasibleError) Is(target error) bool {
	return target == ErrInfeasible
}

func newInfeasible(v feasibility.Verdict) *InfeasibleError {
	return &InfeasibleError{Kind: v.Kind, Reason: v.Reason, SuggestedTime: v.Suggested()}
}

func invalidTransition(v *Viewing, to Status) error {
	return fmt.Errorf("viewing %d is %s, cannot move to %s: %w", v.ID, v.Status, to, ErrInvalidTransition)
}
