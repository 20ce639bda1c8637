package workerrt

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/abossard/vjbus/pkg/log"
)

func init() {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: io.Discard})
}

func TestLifecycleValidTransitions(t *testing.T) {
	var seen []string
	l := NewLifecycle(func(from, to State) {
		seen = append(seen, string(from)+"->"+string(to))
	})
	require.Equal(t, StateStarting, l.Current())

	require.NoError(t, l.Transition(StateRunning))
	require.NoError(t, l.Transition(StateDraining))
	require.NoError(t, l.Transition(StateStopped))
	require.True(t, l.Terminal())

	require.Equal(t, []string{"starting->running", "running->draining", "draining->stopped"}, seen)
}

func TestLifecycleRejectsInvalidTransition(t *testing.T) {
	l := NewLifecycle(nil)
	err := l.Transition(StateStopped)
	var tErr *TransitionError
	require.ErrorAs(t, err, &tErr)
	require.Equal(t, StateStarting, l.Current())
}

func TestLifecycleCrashIsTerminalFromAnyNonTerminalState(t *testing.T) {
	l := NewLifecycle(nil)
	require.NoError(t, l.Transition(StateCrashed))
	require.True(t, l.Terminal())
	require.Error(t, l.Transition(StateRunning))
}
