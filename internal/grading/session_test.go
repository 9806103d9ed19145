package grading_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-grader-api/internal/grading"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from   grading.State
		event  grading.Event
		to     grading.State
		effect grading.Effect
	}{
		{grading.StateIdle, grading.EventSelectImage, grading.StateImageSelected, grading.EffectNone},
		{grading.StateImageSelected, grading.EventSelectImage, grading.StateImageSelected, grading.EffectNone},
		{grading.StateImageSelected, grading.EventClearImage, grading.StateIdle, grading.EffectNone},
		{grading.StateImageSelected, grading.EventSubmit, grading.StateSubmitting, grading.EffectStartAttempt},
		{grading.StateSubmitting, grading.EventSucceed, grading.StateSucceeded, grading.EffectPersistResult},
		{grading.StateSubmitting, grading.EventFail, grading.StateFailed, grading.EffectNone},
		{grading.StateSucceeded, grading.EventSelectImage, grading.StateImageSelected, grading.EffectNone},
		{grading.StateFailed, grading.EventSelectImage, grading.StateImageSelected, grading.EffectNone},
		{grading.StateSucceeded, grading.EventRetry, grading.StateImageSelected, grading.EffectNone},
		{grading.StateFailed, grading.EventRetry, grading.StateImageSelected, grading.EffectNone},
		{grading.StateSucceeded, grading.EventClearImage, grading.StateIdle, grading.EffectNone},
		{grading.StateFailed, grading.EventClearImage, grading.StateIdle, grading.EffectNone},
		{grading.StateSubmitting, grading.EventAbandon, grading.StateIdle, grading.EffectDiscardAttempt},
		{grading.StateSucceeded, grading.EventAbandon, grading.StateIdle, grading.EffectDiscardAttempt},
	}
	for _, tc := range cases {
		to, effect, err := grading.Transition(tc.from, tc.event)
		require.NoError(t, err, "%s on %s", tc.event, tc.from)
		require.Equal(t, tc.to, to, "%s on %s", tc.event, tc.from)
		require.Equal(t, tc.effect, effect, "%s on %s", tc.event, tc.from)
	}
}

func TestTransitionRefusesWhileSubmitting(t *testing.T) {
	for _, event := range []grading.Event{grading.EventSubmit, grading.EventSelectImage, grading.EventClearImage, grading.EventRetry} {
		to, effect, err := grading.Transition(grading.StateSubmitting, event)
		require.ErrorIs(t, err, grading.ErrAttemptInFlight)
		require.Equal(t, grading.StateSubmitting, to)
		require.Equal(t, grading.EffectNone, effect)
	}
}

func TestTransitionRejectsIllegalMoves(t *testing.T) {
	illegal := []struct {
		from  grading.State
		event grading.Event
	}{
		{grading.StateIdle, grading.EventSubmit},
		{grading.StateIdle, grading.EventClearImage},
		{grading.StateIdle, grading.EventRetry},
		{grading.StateImageSelected, grading.EventSucceed},
		{grading.StateImageSelected, grading.EventRetry},
		{grading.StateSucceeded, grading.EventSubmit},
		{grading.StateFailed, grading.EventSucceed},
	}
	for _, tc := range illegal {
		to, _, err := grading.Transition(tc.from, tc.event)
		require.ErrorIs(t, err, grading.ErrInvalidTransition)
		require.Equal(t, tc.from, to)
	}
}
