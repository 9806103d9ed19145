package grading

import "fmt"

// State is the position of a grading session in its lifecycle.
type State string

const (
	StateIdle          State = "Idle"
	StateImageSelected State = "ImageSelected"
	StateSubmitting    State = "Submitting"
	StateSucceeded     State = "Succeeded"
	StateFailed        State = "Failed"
)

// Event drives a session from one state to the next.
type Event string

const (
	EventSelectImage Event = "SelectImage"
	EventClearImage  Event = "ClearImage"
	EventSubmit      Event = "Submit"
	EventSucceed     Event = "Succeed"
	EventFail        Event = "Fail"
	EventRetry       Event = "Retry"
	EventAbandon     Event = "Abandon"
)

// Effect is the side effect the controller must perform after a transition.
type Effect string

const (
	EffectNone           Effect = ""
	EffectStartAttempt   Effect = "StartAttempt"
	EffectPersistResult  Effect = "PersistResult"
	EffectDiscardAttempt Effect = "DiscardAttempt"
)

type transitionKey struct {
	from  State
	event Event
}

type outcome struct {
	to     State
	effect Effect
}

var transitions = map[transitionKey]outcome{
	{StateIdle, EventSelectImage}:          {StateImageSelected, EffectNone},
	{StateImageSelected, EventSelectImage}: {StateImageSelected, EffectNone},
	{StateSucceeded, EventSelectImage}:     {StateImageSelected, EffectNone},
	{StateFailed, EventSelectImage}:        {StateImageSelected, EffectNone},

	{StateImageSelected, EventClearImage}: {StateIdle, EffectNone},
	{StateSucceeded, EventClearImage}:     {StateIdle, EffectNone},
	{StateFailed, EventClearImage}:        {StateIdle, EffectNone},

	{StateSucceeded, EventRetry}: {StateImageSelected, EffectNone},
	{StateFailed, EventRetry}:    {StateImageSelected, EffectNone},

	{StateImageSelected, EventSubmit}: {StateSubmitting, EffectStartAttempt},
	{StateSubmitting, EventSucceed}:   {StateSucceeded, EffectPersistResult},
	{StateSubmitting, EventFail}:      {StateFailed, EffectNone},
}

// Transition is the session state table. It has no side effects; the
// returned Effect tells the caller what to do.
func Transition(from State, event Event) (State, Effect, error) {
	if event == EventAbandon {
		return StateIdle, EffectDiscardAttempt, nil
	}

	if from == StateSubmitting {
		switch event {
		case EventSelectImage, EventClearImage, EventSubmit, EventRetry:
			return from, EffectNone, ErrAttemptInFlight
		}
	}

	next, ok := transitions[transitionKey{from: from, event: event}]
	if !ok {
		return from, EffectNone, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, from)
	}
	return next.to, next.effect, nil
}
