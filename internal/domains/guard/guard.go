// Package guard validates domain lifecycle transitions against the forward
// status graph before any store write happens, so the state-machine rules are
// testable in isolation.
package guard

import (
	"errors"

	domainsdomain "github.com/namevault/namevault/internal/domains/domain"
)

var (
	ErrNotForward     = errors.New("transition_not_forward")
	ErrTerminalStatus = errors.New("domain_status_terminal")
	ErrHoldRequired   = errors.New("hold_requires_external_actor")
)

// EnsureTransition checks that from→to is a legal edge: the strict forward
// delinquency chain, pending→active, pending→failed, or an external hold.
func EnsureTransition(from, to domainsdomain.Status, actor domainsdomain.Actor) error {
	if from == to {
		return ErrNotForward
	}

	switch from {
	case domainsdomain.StatusReleased, domainsdomain.StatusFailed:
		return ErrTerminalStatus
	case domainsdomain.StatusDisputeHold, domainsdomain.StatusFraudHold, domainsdomain.StatusUnpaidHold:
		// Holds clear only by hand.
		if actor != domainsdomain.ActorHuman {
			return ErrTerminalStatus
		}
		return nil
	}

	if isHold(to) {
		// The scheduler never parks a domain in a hold.
		if actor == domainsdomain.ActorScheduler {
			return ErrHoldRequired
		}
		return nil
	}

	// Renewal rescue: a successful payment pulls a delinquent domain back
	// to active. The sweep itself never rescues.
	if to == domainsdomain.StatusActive &&
		(from == domainsdomain.StatusGrace || from == domainsdomain.StatusRedemption) {
		if actor == domainsdomain.ActorScheduler {
			return ErrNotForward
		}
		return nil
	}

	if from == domainsdomain.StatusPending {
		if to == domainsdomain.StatusActive || to == domainsdomain.StatusFailed {
			return nil
		}
		return ErrNotForward
	}

	next, ok := domainsdomain.NextPhase(from)
	if !ok || next != to {
		return ErrNotForward
	}
	return nil
}

func isHold(status domainsdomain.Status) bool {
	switch status {
	case domainsdomain.StatusDisputeHold, domainsdomain.StatusFraudHold, domainsdomain.StatusUnpaidHold:
		return true
	default:
		return false
	}
}
