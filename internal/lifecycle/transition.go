package lifecycle

import (
	"fmt"
	"strings"

	dErrors "qsync/pkg/domain-errors"
)

// Machine is a closed status state machine. The zero value allows nothing.
type Machine[S ~string] struct {
	edges    map[S]map[S]struct{}
	rejected S
}

// NewMachine builds a machine from an adjacency list. rejected names the
// status that requires a reason; pass "" for machines without one.
func NewMachine[S ~string](rejected S, edges map[S][]S) Machine[S] {
	m := Machine[S]{edges: make(map[S]map[S]struct{}, len(edges)), rejected: rejected}
	for from, tos := range edges {
		set := make(map[S]struct{}, len(tos))
		for _, to := range tos {
			set[to] = struct{}{}
		}
		m.edges[from] = set
	}
	return m
}

// CanTransition reports whether from → to is an edge. Staying put is always allowed.
func (m Machine[S]) CanTransition(from, to S) bool {
	if from == to {
		return true
	}
	_, ok := m.edges[from][to]
	return ok
}

// Transition is the outcome of a status change: the new status and the
// rejection reason the record should carry afterwards.
type Transition[S ~string] struct {
	Status          S
	RejectionReason string
	Changed         bool
}

// Apply validates from → to. Entering the rejected status needs a non-empty
// reason; leaving it clears the stored one.
func (m Machine[S]) Apply(kind string, from, to S, currentReason, reason string) (Transition[S], error) {
	if from == to {
		if to == m.rejected && m.rejected != "" && strings.TrimSpace(reason) != "" {
			return Transition[S]{Status: to, RejectionReason: strings.TrimSpace(reason)}, nil
		}
		return Transition[S]{Status: to, RejectionReason: currentReason}, nil
	}
	if !m.CanTransition(from, to) {
		return Transition[S]{}, dErrors.WithReason(dErrors.CodePreconditionFailed, ReasonInvalidTransition,
			fmt.Sprintf("%s cannot move from %s to %s", kind, from, to))
	}
	if m.rejected != "" && to == m.rejected {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return Transition[S]{}, dErrors.New(dErrors.CodeValidation, "rejectionReason is required when rejecting")
		}
		return Transition[S]{Status: to, RejectionReason: reason, Changed: true}, nil
	}
	return Transition[S]{Status: to, Changed: true}, nil
}
