package recorder

import "errors"

// State is the recording lifecycle state
type State int

const (
	// StateIdle means no stream is held and nothing is recorded
	StateIdle State = iota

	// StateAwaitingPermission means a device acquisition is in flight
	StateAwaitingPermission

	// StateArmed means the stream is held but recording has not begun.
	// Matches the UI's two-step "request the mic, then record" flow.
	StateArmed

	// StateRecording means the sampling loop is running and samples
	// are being captured
	StateRecording

	// StatePaused means the stream is held but samples are discarded
	// and the elapsed clock is frozen
	StatePaused

	// StateStopped means the recording finished and the artifact and
	// analytics were produced
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingPermission:
		return "awaiting_permission"
	case StateArmed:
		return "armed"
	case StateRecording:
		return "recording"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is returned when a lifecycle call has no defined
// effect in the current state. It marks a no-op, never a failure: the
// engine's state is unchanged and callers racing each other can ignore it.
var ErrInvalidTransition = errors.New("recorder: call has no effect in the current state")
