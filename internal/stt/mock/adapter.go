// Package mock provides scripted provider adapters for testing and for
// running the service without provider credentials. The realtime dialer and
// batch pipeline replay configured segments instead of calling the network.
package mock

import (
	"context"
	"sync"

	"speech-capture-service/internal/audio"
	"speech-capture-service/internal/stt"
	"speech-capture-service/internal/transcript"
)

// DefaultSegments returns a small scripted transcript for keyless demo runs.
func DefaultSegments() []transcript.Segment {
	specs := []struct {
		id, text   string
		start, end float64
		confidence float64
	}{
		{"mock-1", "Thanks for joining me today", 0.0, 2.1, 0.95},
		{"mock-2", "I want to walk you through our proposal", 2.5, 5.4, 0.92},
		{"mock-3", "Let me know if you have any questions", 5.9, 8.2, 0.97},
	}
	segments := make([]transcript.Segment, 0, len(specs))
	for _, s := range specs {
		seg, err := transcript.NewSegment(s.id, s.text, s.start, s.end,
			transcript.AsFinal(), transcript.WithConfidence(s.confidence))
		if err != nil {
			panic(err) // static script, cannot fail
		}
		segments = append(segments, seg)
	}
	return segments
}

// RealtimeDialer implements stt.RealtimeDialer with scripted results.
type RealtimeDialer struct {
	mu sync.Mutex

	// Script: segments and error returned by Stream. Both may be set at
	// once to exercise partial-failure semantics.
	Segments  []transcript.Segment
	StreamErr error
	DialErr   error

	DialCount   int
	StreamCount int
	LastBlob    []byte
}

// Dial returns a scripted channel or the configured dial error.
func (d *RealtimeDialer) Dial(ctx context.Context, cfg audio.Configuration) (stt.RealtimeChannel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.DialCount++
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	return &channel{dialer: d}, nil
}

type channel struct {
	dialer    *RealtimeDialer
	closeOnce sync.Once
	closed    bool
}

func (c *channel) Ref() stt.ProviderRef {
	return stt.ProviderRef{SessionID: "mock-rt-session", Endpoint: "mock://realtime"}
}

func (c *channel) Stream(ctx context.Context, blob []byte) ([]transcript.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.dialer.mu.Lock()
	defer c.dialer.mu.Unlock()
	c.dialer.StreamCount++
	c.dialer.LastBlob = append([]byte(nil), blob...)

	segments := make([]transcript.Segment, len(c.dialer.Segments))
	copy(segments, c.dialer.Segments)
	return segments, c.dialer.StreamErr
}

func (c *channel) Close() error {
	c.closeOnce.Do(func() { c.closed = true })
	return nil
}

// BatchPipeline implements stt.BatchPipeline with a scripted result.
type BatchPipeline struct {
	mu sync.Mutex

	Result stt.BatchResult
	Err    error

	Calls    int
	LastBlob []byte
}

// Transcribe replays the scripted result.
func (b *BatchPipeline) Transcribe(ctx context.Context, cfg audio.Configuration, blob []byte) (stt.BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return stt.BatchResult{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls++
	b.LastBlob = append([]byte(nil), blob...)
	if b.Err != nil {
		return stt.BatchResult{}, b.Err
	}
	return b.Result, nil
}
