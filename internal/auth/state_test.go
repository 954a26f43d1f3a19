package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	next, err := Transition(StateSignedOut, EventSignIn)
	require.NoError(t, err)
	require.Equal(t, StateSignedIn, next)

	next, err = Transition(StateSignedIn, EventSignOut)
	require.NoError(t, err)
	require.Equal(t, StateSignedOut, next)

	_, err = Transition(StateSignedIn, EventSignIn)
	require.Error(t, err)
	_, err = Transition(StateSignedOut, EventSignOut)
	require.Error(t, err)
}

func TestMachineLoadingBracketsResolution(t *testing.T) {
	m := NewMachine()
	require.True(t, m.Loading())
	require.Equal(t, StateSignedOut, m.State())

	require.NoError(t, m.Apply(EventSignIn))
	require.Error(t, m.Apply(EventSignIn))
	require.Equal(t, StateSignedIn, m.State())

	m.Resolved()
	require.False(t, m.Loading())
}
