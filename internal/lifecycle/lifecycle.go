package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"clipdraft/internal/services"
)

// State is a video item's position in the pipeline.
type State string

const (
	Pending      State = "pending"
	Transcribing State = "transcribing"
	Transcribed  State = "transcribed"
	Researching  State = "researching"
	Drafted      State = "drafted"
	Failed       State = "failed"
)

var allStates = []State{Pending, Transcribing, Transcribed, Researching, Drafted, Failed}

// AllStates returns every state in pipeline order.
func AllStates() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, error) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	for _, state := range allStates {
		if state == normalized {
			return state, nil
		}
	}
	return "", fmt.Errorf("%w: unknown state %q", services.ErrValidation, value)
}

// IsProcessing reports whether a step is in flight for the state.
func (s State) IsProcessing() bool {
	return s == Transcribing || s == Researching
}

// Step names one gateway call in the pipeline.
type Step string

const (
	StepTranscription Step = "transcription"
	StepResearch      Step = "research"
)

// Event requests a state transition.
type Event string

const (
	EventSubmit                 Event = "submit"
	EventStartTranscription     Event = "start_transcription"
	EventTranscriptionSucceeded Event = "transcription_succeeded"
	EventTranscriptionFailed    Event = "transcription_failed"
	EventStartResearch          Event = "start_research"
	EventResearchSucceeded      Event = "research_succeeded"
	EventResearchFailed         Event = "research_failed"
	EventRetry                  Event = "retry"
)

// Failure records why an item entered Failed.
type Failure struct {
	Step    Step
	Kind    services.Kind
	Message string
	At      time.Time
}

type edge struct {
	from State
	ev   Event
}

var transitions = map[edge]State{
	{"", EventSubmit}:                           Pending,
	{Pending, EventStartTranscription}:          Transcribing,
	{Transcribing, EventTranscriptionSucceeded}: Transcribed,
	{Transcribing, EventTranscriptionFailed}:    Failed,
	{Transcribed, EventStartResearch}:           Researching,
	{Researching, EventResearchSucceeded}:       Drafted,
	{Researching, EventResearchFailed}:          Failed,
}

// Next returns the state reached by applying ev in from. failedStep is only
// consulted for EventRetry, where it selects the resume point. Requests that
// are not on the graph return an error wrapping services.ErrStateConflict.
func Next(from State, ev Event, failedStep Step) (State, error) {
	if ev == EventRetry {
		if from != Failed {
			return "", conflict(from, ev)
		}
		switch failedStep {
		case StepTranscription:
			return Pending, nil
		case StepResearch:
			return Transcribed, nil
		default:
			return "", fmt.Errorf("%w: retry from unknown step %q", services.ErrStateConflict, failedStep)
		}
	}
	if to, ok := transitions[edge{from, ev}]; ok {
		return to, nil
	}
	return "", conflict(from, ev)
}

func conflict(from State, ev Event) error {
	label := string(from)
	if label == "" {
		label = "(none)"
	}
	return fmt.Errorf("%w: event %s not allowed in state %s", services.ErrStateConflict, ev, label)
}

// ResumeState is the state a retry returns a failed item to. A research
// failure resumes at Transcribed only while the transcript survives; every
// other case restarts at Pending.
func ResumeState(failure *Failure, transcript string) State {
	if failure == nil {
		return Pending
	}
	if failure.Step == StepResearch && strings.TrimSpace(transcript) != "" {
		return Transcribed
	}
	return Pending
}

// RetryStep is the failure step recorded for a resume state, so that
// Next(Failed, EventRetry, RetryStep(s)) reaches s.
func RetryStep(resume State) Step {
	if resume == Transcribed {
		return StepResearch
	}
	return StepTranscription
}

// StepFor returns the step dispatched for a resting state.
func StepFor(state State) (Step, bool) {
	switch state {
	case Pending:
		return StepTranscription, true
	case Transcribed:
		return StepResearch, true
	default:
		return "", false
	}
}

// StartState is the state a step begins from.
func StartState(step Step) State {
	if step == StepResearch {
		return Transcribed
	}
	return Pending
}

// ProcessingState is the state held while a step's gateway call is in flight.
func ProcessingState(step Step) State {
	if step == StepResearch {
		return Researching
	}
	return Transcribing
}

// StepOf returns the step owning a processing state.
func StepOf(state State) (Step, bool) {
	switch state {
	case Transcribing:
		return StepTranscription, true
	case Researching:
		return StepResearch, true
	default:
		return "", false
	}
}

// StartEvent moves a step's start state into its processing state.
func StartEvent(step Step) Event {
	if step == StepResearch {
		return EventStartResearch
	}
	return EventStartTranscription
}

// SucceededEvent completes a step.
func SucceededEvent(step Step) Event {
	if step == StepResearch {
		return EventResearchSucceeded
	}
	return EventTranscriptionSucceeded
}

// FailedEvent fails a step.
func FailedEvent(step Step) Event {
	if step == StepResearch {
		return EventResearchFailed
	}
	return EventTranscriptionFailed
}
