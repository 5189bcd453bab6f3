package guard

import (
	"testing"

	domainsdomain "github.com/namevault/namevault/internal/domains/domain"
	"github.com/stretchr/testify/require"
)

func TestEnsureTransitionForwardChain(t *testing.T) {
	chain := []domainsdomain.Status{
		domainsdomain.StatusActive,
		domainsdomain.StatusGrace,
		domainsdomain.StatusRedemption,
		domainsdomain.StatusRegistryHold,
		domainsdomain.StatusAuction,
		domainsdomain.StatusPendingDelete,
		domainsdomain.StatusReleased,
	}
	for i := 0; i < len(chain)-1; i++ {
		require.NoError(t, EnsureTransition(chain[i], chain[i+1], domainsdomain.ActorScheduler),
			"%s -> %s", chain[i], chain[i+1])
	}
}

func TestEnsureTransitionRejectsSkipsAndBackwards(t *testing.T) {
	cases := []struct {
		from, to domainsdomain.Status
	}{
		{domainsdomain.StatusActive, domainsdomain.StatusRedemption},
		{domainsdomain.StatusGrace, domainsdomain.StatusRegistryHold},
		{domainsdomain.StatusRedemption, domainsdomain.StatusGrace},
		{domainsdomain.StatusAuction, domainsdomain.StatusActive},
		{domainsdomain.StatusActive, domainsdomain.StatusActive},
	}
	for _, tc := range cases {
		err := EnsureTransition(tc.from, tc.to, domainsdomain.ActorScheduler)
		require.ErrorIs(t, err, ErrNotForward, "%s -> %s", tc.from, tc.to)
	}
}

func TestEnsureTransitionTerminalStates(t *testing.T) {
	require.ErrorIs(t,
		EnsureTransition(domainsdomain.StatusReleased, domainsdomain.StatusActive, domainsdomain.ActorHuman),
		ErrTerminalStatus)
	require.ErrorIs(t,
		EnsureTransition(domainsdomain.StatusFailed, domainsdomain.StatusPending, domainsdomain.ActorHuman),
		ErrTerminalStatus)
}

func TestEnsureTransitionRenewalRescue(t *testing.T) {
	// A payment (system) or an operator may pull grace/redemption back to
	// active. The sweep may not.
	for _, from := range []domainsdomain.Status{domainsdomain.StatusGrace, domainsdomain.StatusRedemption} {
		require.NoError(t, EnsureTransition(from, domainsdomain.StatusActive, domainsdomain.ActorSystem))
		require.NoError(t, EnsureTransition(from, domainsdomain.StatusActive, domainsdomain.ActorHuman))
		require.ErrorIs(t,
			EnsureTransition(from, domainsdomain.StatusActive, domainsdomain.ActorScheduler),
			ErrNotForward)
	}
	// Deeper phases have no rescue edge.
	require.Error(t, EnsureTransition(domainsdomain.StatusRegistryHold, domainsdomain.StatusActive, domainsdomain.ActorSystem))
}

func TestEnsureTransitionPendingEdges(t *testing.T) {
	require.NoError(t, EnsureTransition(domainsdomain.StatusPending, domainsdomain.StatusActive, domainsdomain.ActorSystem))
	require.NoError(t, EnsureTransition(domainsdomain.StatusPending, domainsdomain.StatusFailed, domainsdomain.ActorSystem))
	require.ErrorIs(t,
		EnsureTransition(domainsdomain.StatusPending, domainsdomain.StatusGrace, domainsdomain.ActorSystem),
		ErrNotForward)
}

func TestEnsureTransitionHolds(t *testing.T) {
	holds := []domainsdomain.Status{
		domainsdomain.StatusDisputeHold,
		domainsdomain.StatusFraudHold,
		domainsdomain.StatusUnpaidHold,
	}

	for _, hold := range holds {
		// Entering a hold is fine for humans and system collaborators,
		// never for the sweep.
		require.NoError(t, EnsureTransition(domainsdomain.StatusActive, hold, domainsdomain.ActorHuman))
		require.NoError(t, EnsureTransition(domainsdomain.StatusAuction, hold, domainsdomain.ActorSystem))
		require.ErrorIs(t,
			EnsureTransition(domainsdomain.StatusActive, hold, domainsdomain.ActorScheduler),
			ErrHoldRequired)

		// Leaving a hold is a human-only operation.
		require.NoError(t, EnsureTransition(hold, domainsdomain.StatusActive, domainsdomain.ActorHuman))
		require.ErrorIs(t,
			EnsureTransition(hold, domainsdomain.StatusActive, domainsdomain.ActorScheduler),
			ErrTerminalStatus)
		require.ErrorIs(t,
			EnsureTransition(hold, domainsdomain.StatusActive, domainsdomain.ActorSystem),
			ErrTerminalStatus)
	}
}
