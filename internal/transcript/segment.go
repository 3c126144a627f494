// Package transcript provides the immutable transcript data model: timed
// segments, ordered collections, and the assembly layer over them.
package transcript

import (
	"errors"
	"fmt"
	"strings"
)

// Errors for invalid segment construction.
var (
	ErrEmptyText     = errors.New("segment text must not be empty")
	ErrInvalidTiming = errors.New("segment end must not precede start")
)

// Segment is a single timed piece of transcript. Values are immutable once
// constructed; Channel and Confidence are optional and nil when the provider
// did not supply them.
type Segment struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Language   string   `json:"language,omitempty"`
	Channel    *int     `json:"channel,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Final      bool     `json:"final"`
}

// SegmentOption configures optional segment attributes at construction.
type SegmentOption func(*Segment) error

// WithLanguage sets the segment language.
func WithLanguage(language string) SegmentOption {
	return func(s *Segment) error {
		s.Language = language
		return nil
	}
}

// WithChannel attributes the segment to an audio channel.
func WithChannel(channel int) SegmentOption {
	return func(s *Segment) error {
		if channel < 0 {
			return fmt.Errorf("segment channel must be >= 0, got %d", channel)
		}
		ch := channel
		s.Channel = &ch
		return nil
	}
}

// WithConfidence records the provider's confidence for the segment.
func WithConfidence(confidence float64) SegmentOption {
	return func(s *Segment) error {
		if confidence < 0 || confidence > 1 {
			return fmt.Errorf("segment confidence must be within [0,1], got %f", confidence)
		}
		c := confidence
		s.Confidence = &c
		return nil
	}
}

// AsFinal marks the segment as the provider's final (non-revisable) result.
func AsFinal() SegmentOption {
	return func(s *Segment) error {
		s.Final = true
		return nil
	}
}

// NewSegment validates and constructs a transcript segment. Start and End are
// seconds from the beginning of the session.
func NewSegment(id, text string, start, end float64, opts ...SegmentOption) (Segment, error) {
	if strings.TrimSpace(text) == "" {
		return Segment{}, ErrEmptyText
	}
	if end < start || start < 0 {
		return Segment{}, fmt.Errorf("%w: start=%f end=%f", ErrInvalidTiming, start, end)
	}
	s := Segment{
		ID:    id,
		Text:  text,
		Start: start,
		End:   end,
	}
	for _, opt := range opts {
		if err := opt(&s); err != nil {
			return Segment{}, err
		}
	}
	return s, nil
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// WordCount returns the number of whitespace-separated words in the text.
func (s Segment) WordCount() int {
	return len(strings.Fields(s.Text))
}

// OnChannel reports whether the segment is attributed to the given channel.
// Segments without channel attribution match no channel.
func (s Segment) OnChannel(channel int) bool {
	return s.Channel != nil && *s.Channel == channel
}
