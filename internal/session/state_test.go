package session

import (
	"errors"
	"testing"
)

var allStatuses = []Status{
	StatusInitializing,
	StatusConnected,
	StatusRecording,
	StatusStopping,
	StatusStopped,
	StatusError,
}

func allowed(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Every (from, to) pair either succeeds or fails with TransitionError and
// leaves the state unchanged - exhaustively, per the transition table.
func TestSession_Transition_FullTable(t *testing.T) {
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			s := sessionInStatus(t, from)

			err := s.Transition(to)
			if allowed(from, to) {
				if err != nil {
					t.Errorf("%s -> %s: unexpected error: %v", from, to, err)
				}
				if s.Status() != to {
					t.Errorf("%s -> %s: status = %s", from, to, s.Status())
				}
				continue
			}

			var terr *TransitionError
			if !errors.As(err, &terr) {
				t.Errorf("%s -> %s: expected TransitionError, got %v", from, to, err)
				continue
			}
			if terr.From != from || terr.To != to {
				t.Errorf("%s -> %s: error carries %s -> %s", from, to, terr.From, terr.To)
			}
			if s.Status() != from {
				t.Errorf("%s -> %s: failed transition changed status to %s", from, to, s.Status())
			}
		}
	}
}

// sessionInStatus walks a fresh session along legal transitions into the
// target status.
func sessionInStatus(t *testing.T, target Status) *Session {
	t.Helper()
	s := newTestSession()
	path := map[Status][]Status{
		StatusInitializing: {},
		StatusConnected:    {StatusConnected},
		StatusRecording:    {StatusConnected, StatusRecording},
		StatusStopping:     {StatusConnected, StatusRecording, StatusStopping},
		StatusStopped:      {StatusConnected, StatusRecording, StatusStopping, StatusStopped},
		StatusError:        {StatusError},
	}
	for _, step := range path[target] {
		if err := s.Transition(step); err != nil {
			t.Fatalf("setup transition to %s failed: %v", step, err)
		}
	}
	return s
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusInitializing, "INITIALIZING"},
		{StatusConnected, "CONNECTED"},
		{StatusRecording, "RECORDING"},
		{StatusStopping, "STOPPING"},
		{StatusStopped, "STOPPED"},
		{StatusError, "ERROR"},
		{Status(99), "UNKNOWN(99)"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expected {
			t.Errorf("Status(%d).String() = %v, want %v", tt.status, got, tt.expected)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status     Status
		isTerminal bool
	}{
		{StatusInitializing, false},
		{StatusConnected, false},
		{StatusRecording, false},
		{StatusStopping, false},
		{StatusStopped, true},
		{StatusError, true},
	}
	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.isTerminal {
			t.Errorf("%s.IsTerminal() = %v, want %v", tt.status, got, tt.isTerminal)
		}
	}
}

// INITIALIZING accepts segments but not raw audio.
func TestStatus_ActiveVsCanReceiveAudio(t *testing.T) {
	tests := []struct {
		status   Status
		active   bool
		canAudio bool
	}{
		{StatusInitializing, true, false},
		{StatusConnected, true, true},
		{StatusRecording, true, true},
		{StatusStopping, false, false},
		{StatusStopped, false, false},
		{StatusError, false, false},
	}
	for _, tt := range tests {
		if got := tt.status.IsActive(); got != tt.active {
			t.Errorf("%s.IsActive() = %v, want %v", tt.status, got, tt.active)
		}
		if got := tt.status.CanReceiveAudio(); got != tt.canAudio {
			t.Errorf("%s.CanReceiveAudio() = %v, want %v", tt.status, got, tt.canAudio)
		}
	}
}
