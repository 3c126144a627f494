package session

import (
	"sync"
	"time"

	"speech-capture-service/internal/audio"
	"speech-capture-service/internal/transcript"
)

// ProviderSession references the externally bound streaming session.
type ProviderSession struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"`
}

// Session is one live capture session. All mutation goes through Transition,
// Fail, AddSegment and AppendAudio, each of which applies atomically under
// the session mutex or not at all.
type Session struct {
	mu            sync.RWMutex
	id            string
	config        audio.Configuration
	status        Status
	createdAt     time.Time
	updatedAt     time.Time
	provider      *ProviderSession
	transcript    transcript.Collection
	audioBuf      []byte
	maxAudioBytes int
	errMsg        string

	// clock is injectable for testing; defaults to time.Now.
	clock func() time.Time
}

// New creates a session in INITIALIZING.
func New(id string, config audio.Configuration) *Session {
	s := &Session{
		id:     id,
		config: config,
		status: StatusInitializing,
		clock:  time.Now,
	}
	now := s.clock().UTC()
	s.createdAt = now
	s.updatedAt = now
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Config returns the session's recording profile.
func (s *Session) Config() audio.Configuration { return s.config }

// Status returns the current lifecycle status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// ErrorMessage returns the message recorded by Fail, if any.
func (s *Session) ErrorMessage() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// Provider returns the bound provider session reference, or nil.
func (s *Session) Provider() *ProviderSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.provider == nil {
		return nil
	}
	p := *s.provider
	return &p
}

// BindProvider records the provider streaming session backing this capture.
func (s *Session) BindProvider(p ProviderSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = &p
	s.updatedAt = s.clock().UTC()
}

// Transcript returns the session's current transcript collection.
func (s *Session) Transcript() transcript.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcript
}

// Transition moves the session to target if the transition table allows it.
// On TransitionError the status, timestamps and error message are unchanged.
func (s *Session) Transition(target Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.canTransitionTo(target) {
		return &TransitionError{From: s.status, To: target}
	}
	s.status = target
	s.updatedAt = s.clock().UTC()
	return nil
}

// Fail transitions the session to ERROR with an explicit message.
func (s *Session) Fail(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.canTransitionTo(StatusError) {
		return &TransitionError{From: s.status, To: StatusError}
	}
	s.status = StatusError
	s.errMsg = message
	s.updatedAt = s.clock().UTC()
	return nil
}

// AddSegment appends a transcript segment. Permitted only while the session
// is active (INITIALIZING, CONNECTED or RECORDING); the resulting collection
// stays sorted by start time regardless of arrival order.
func (s *Session) AddSegment(seg transcript.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.IsActive() {
		return &InactiveSessionError{Status: s.status, Op: "accept transcript segments"}
	}
	s.transcript = s.transcript.Add(seg)
	s.updatedAt = s.clock().UTC()
	return nil
}

// AttachTranscript records the assembled transcript during finalization.
// Live segments go through AddSegment; this replaces the collection wholesale
// and is permitted only while STOPPING.
func (s *Session) AttachTranscript(c transcript.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusStopping {
		return &InactiveSessionError{Status: s.status, Op: "attach final transcript"}
	}
	s.transcript = c
	s.updatedAt = s.clock().UTC()
	return nil
}

// CanReceiveAudio reports whether raw audio bytes may be fed right now.
func (s *Session) CanReceiveAudio() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.CanReceiveAudio()
}

// SetAudioLimit caps the audio buffer at max bytes. Zero means unbounded.
func (s *Session) SetAudioLimit(max int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxAudioBytes = max
}

// AppendAudio buffers raw audio bytes for the session. Unlike AddSegment this
// requires a confirmed audio channel (CONNECTED or RECORDING). The buffer
// limit is enforced here, under the same mutex as the append, so concurrent
// feeds cannot overshoot it.
func (s *Session) AppendAudio(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.CanReceiveAudio() {
		return &InactiveSessionError{Status: s.status, Op: "receive audio"}
	}
	if s.maxAudioBytes > 0 && len(s.audioBuf)+len(data) > s.maxAudioBytes {
		return &AudioLimitError{
			SessionID: s.id,
			Size:      len(s.audioBuf) + len(data),
			Limit:     s.maxAudioBytes,
		}
	}
	s.audioBuf = append(s.audioBuf, data...)
	s.updatedAt = s.clock().UTC()
	return nil
}

// AudioSize returns the number of buffered audio bytes.
func (s *Session) AudioSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.audioBuf)
}

// AudioBlob returns a copy of the buffered audio.
func (s *Session) AudioBlob() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]byte, len(s.audioBuf))
	copy(out, s.audioBuf)
	return out
}

// Snapshot is a point-in-time view of the session for external callers.
type Snapshot struct {
	ID           string           `json:"id"`
	Status       string           `json:"status"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	SegmentCount int              `json:"segmentCount"`
	AudioBytes   int              `json:"audioBytes"`
	Provider     *ProviderSession `json:"provider,omitempty"`
	Error        string           `json:"error,omitempty"`
}

// Snapshot returns a consistent view of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		ID:           s.id,
		Status:       s.status.String(),
		CreatedAt:    s.createdAt,
		UpdatedAt:    s.updatedAt,
		SegmentCount: s.transcript.Len(),
		AudioBytes:   len(s.audioBuf),
		Error:        s.errMsg,
	}
	if s.provider != nil {
		p := *s.provider
		snap.Provider = &p
	}
	return snap
}
