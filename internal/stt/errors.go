package stt

import "fmt"

// ConnectionError reports a failed dial or a failed send on an established
// connection. The caller decides the retry/fallback policy; the provider
// layers never retry internally.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("stt connection to %s failed: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError reports a malformed or unexpected provider message.
type ProtocolError struct {
	Detail string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stt protocol error: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("stt protocol error: %s", e.Detail)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// TimeoutError reports a bounded wait that was exhausted: a read deadline on
// the realtime channel or the polling attempt budget on the batch path.
type TimeoutError struct {
	Op       string
	Attempts int
}

func (e *TimeoutError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("stt %s timed out after %d attempts", e.Op, e.Attempts)
	}
	return fmt.Sprintf("stt %s timed out", e.Op)
}

// UpstreamJobError reports a batch job the provider marked as failed.
type UpstreamJobError struct {
	JobID   string
	Message string
}

func (e *UpstreamJobError) Error() string {
	return fmt.Sprintf("stt batch job %s failed upstream: %s", e.JobID, e.Message)
}

// SizeLimitExceededError reports an audio blob above the batch ceiling. The
// batch path is skipped entirely for such inputs.
type SizeLimitExceededError struct {
	Size  int
	Limit int
}

func (e *SizeLimitExceededError) Error() string {
	return fmt.Sprintf("audio size %d exceeds batch limit %d", e.Size, e.Limit)
}
