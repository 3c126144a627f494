// Package session provides the audio capture session entity and its
// lifecycle state machine.
package session

import "fmt"

// Status represents the lifecycle state of a capture session.
type Status int

const (
	// StatusInitializing - session created, provider session not yet bound.
	StatusInitializing Status = iota
	// StatusConnected - provider streaming session bound, ready for audio.
	StatusConnected
	// StatusRecording - audio is flowing.
	StatusRecording
	// StatusStopping - stop requested, transcription finishing up.
	StatusStopping
	// StatusStopped - session completed normally. Terminal.
	StatusStopped
	// StatusError - session failed with an explicit message. Terminal.
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "INITIALIZING"
	case StatusConnected:
		return "CONNECTED"
	case StatusRecording:
		return "RECORDING"
	case StatusStopping:
		return "STOPPING"
	case StatusStopped:
		return "STOPPED"
	case StatusError:
		return "ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the status is terminal (STOPPED or ERROR).
func (s Status) IsTerminal() bool {
	return s == StatusStopped || s == StatusError
}

// IsActive reports whether the session may still accept transcript segments.
// INITIALIZING counts as active: segments can be attributed to a session
// before its audio channel is confirmed open.
func (s Status) IsActive() bool {
	return s == StatusInitializing || s == StatusConnected || s == StatusRecording
}

// CanReceiveAudio reports whether raw audio may be fed. Narrower than
// IsActive: an INITIALIZING session has no confirmed audio channel yet.
func (s Status) CanReceiveAudio() bool {
	return s == StatusConnected || s == StatusRecording
}

// transitions is the explicit transition table. Absent pairs are illegal.
var transitions = map[Status][]Status{
	StatusInitializing: {StatusConnected, StatusError},
	StatusConnected:    {StatusRecording, StatusStopping, StatusError},
	StatusRecording:    {StatusStopping, StatusError},
	StatusStopping:     {StatusStopped, StatusError},
	StatusStopped:      {},
	StatusError:        {},
}

func (s Status) canTransitionTo(target Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionError reports an illegal state transition. The session state is
// unchanged when this error is returned.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal session transition %s -> %s", e.From, e.To)
}

// InactiveSessionError reports an operation attempted against a session whose
// status does not permit it.
type InactiveSessionError struct {
	Status Status
	Op     string
}

func (e *InactiveSessionError) Error() string {
	return fmt.Sprintf("session cannot %s in status %s", e.Op, e.Status)
}

// AudioLimitError reports an audio feed that would push the session past its
// buffer limit. The buffer is unchanged when this error is returned.
type AudioLimitError struct {
	SessionID string
	Size      int
	Limit     int
}

func (e *AudioLimitError) Error() string {
	return fmt.Sprintf("session %s: audio buffer would reach %d bytes, limit is %d", e.SessionID, e.Size, e.Limit)
}
