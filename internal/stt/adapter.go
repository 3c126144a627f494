// Package stt defines the interfaces and shared error taxonomy for the
// speech-to-text provider paths: the realtime streaming channel and the
// batch upload/submit/poll pipeline.
package stt

import (
	"context"

	"speech-capture-service/internal/audio"
	"speech-capture-service/internal/transcript"
)

// ProviderRef identifies a bound provider-side streaming session.
type ProviderRef struct {
	SessionID string
	Endpoint  string
}

// RealtimeChannel is one connected realtime transcription session.
//
// Stream sends the audio blob in paced chunks, issues the stop-control
// message and drains the bounded receive loop. Segments accumulated before a
// mid-stream failure are returned together with the error, never discarded.
type RealtimeChannel interface {
	Ref() ProviderRef
	Stream(ctx context.Context, blob []byte) ([]transcript.Segment, error)

	// Close releases the underlying connection. Safe to call on every exit
	// path, including after Stream failed.
	Close() error
}

// RealtimeDialer opens realtime channels for a given recording profile.
type RealtimeDialer interface {
	Dial(ctx context.Context, cfg audio.Configuration) (RealtimeChannel, error)
}

// BatchResult is the outcome of a completed batch transcription job.
type BatchResult struct {
	JobID       string
	Segments    []transcript.Segment
	Annotations *transcript.Annotations
}

// BatchPipeline runs the upload -> submit -> poll fallback path. All returned
// segments are final. Feature flags from the configuration select the
// provider's intelligence annotations.
type BatchPipeline interface {
	Transcribe(ctx context.Context, cfg audio.Configuration, blob []byte) (BatchResult, error)
}
