package testplan

import (
	"errors"
	"fmt"
)

var ErrInvalidPhaseTransition = errors.New("invalid phase transition")

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseResolving Phase = "resolving"
	PhasePopulated Phase = "populated"
	PhaseEmpty     Phase = "empty"
	PhaseFailed    Phase = "failed"
	PhaseUnsaved   Phase = "unsaved"
)

var validTransitions = map[Phase]map[Phase]bool{
	PhaseIdle: {
		PhaseResolving: true,
		PhaseUnsaved:   true,
	},
	PhaseResolving: {
		PhaseResolving: true,
		PhasePopulated: true,
		PhaseEmpty:     true,
		PhaseFailed:    true,
		PhaseUnsaved:   true,
		PhaseIdle:      true,
	},
	PhasePopulated: {
		PhaseResolving: true,
		PhaseUnsaved:   true,
		PhaseIdle:      true,
	},
	PhaseEmpty: {
		PhaseResolving: true,
		PhaseUnsaved:   true,
		PhaseIdle:      true,
	},
	PhaseFailed: {
		PhaseResolving: true,
		PhaseUnsaved:   true,
		PhaseIdle:      true,
	},
	PhaseUnsaved: {
		PhaseResolving: true,
		PhaseIdle:      true,
	},
}

func IsValidPhase(p Phase) bool {
	_, ok := validTransitions[p]
	return ok
}

// IsTerminal reports whether p ends a refresh cycle.
func (p Phase) IsTerminal() bool {
	switch p {
	case PhasePopulated, PhaseEmpty, PhaseFailed, PhaseUnsaved:
		return true
	default:
		return false
	}
}

func ValidateTransition(from, to Phase) error {
	if from == to {
		return nil
	}
	next, ok := validTransitions[from]
	if !ok || !next[to] {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidPhaseTransition, from, to)
	}
	return nil
}
