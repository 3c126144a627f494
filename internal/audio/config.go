// Package audio defines the immutable recording profile for a capture session.
package audio

import (
	"fmt"
	"time"
)

// Encoding identifies the raw audio encoding sent to the STT provider.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm_s16le"
	EncodingMulaw Encoding = "pcm_mulaw"
)

// Feature is an advanced transcription feature flag. The realtime protocol
// cannot deliver these annotations, so any feature flag marks the
// configuration as batch-required for full fidelity.
type Feature string

const (
	FeatureSentiment     Feature = "sentiment"
	FeatureEmotion       Feature = "emotion"
	FeatureSummarization Feature = "summarization"
	FeatureEntities      Feature = "entities"
	FeatureChapters      Feature = "chapters"
)

const (
	MinChannels = 1
	MaxChannels = 8
)

// ParseFeature validates an advanced-feature name from an external caller.
func ParseFeature(s string) (Feature, error) {
	switch f := Feature(s); f {
	case FeatureSentiment, FeatureEmotion, FeatureSummarization, FeatureEntities, FeatureChapters:
		return f, nil
	default:
		return "", &ConfigurationError{Field: "features", Reason: fmt.Sprintf("unknown feature %q", s)}
	}
}

// ConfigurationError reports an invalid recording profile.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid audio configuration: %s %s", e.Field, e.Reason)
}

// Configuration is the recording profile for one session. Treat values as
// immutable: the With* helpers return copies, nothing mutates in place.
type Configuration struct {
	Encoding   Encoding  `json:"encoding"`
	SampleRate int       `json:"sampleRate"`
	BitDepth   int       `json:"bitDepth"`
	Channels   int       `json:"channels"`
	Features   []Feature `json:"features,omitempty"`
	Language   string    `json:"language,omitempty"`
}

// New validates and constructs a recording profile.
func New(encoding Encoding, sampleRate, bitDepth, channels int) (Configuration, error) {
	if encoding == "" {
		return Configuration{}, &ConfigurationError{Field: "encoding", Reason: "is required"}
	}
	if sampleRate <= 0 {
		return Configuration{}, &ConfigurationError{Field: "sampleRate", Reason: "must be positive"}
	}
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return Configuration{}, &ConfigurationError{Field: "bitDepth", Reason: "must be 8, 16, 24 or 32"}
	}
	if channels < MinChannels || channels > MaxChannels {
		return Configuration{}, &ConfigurationError{
			Field:  "channels",
			Reason: fmt.Sprintf("must be between %d and %d", MinChannels, MaxChannels),
		}
	}
	return Configuration{
		Encoding:   encoding,
		SampleRate: sampleRate,
		BitDepth:   bitDepth,
		Channels:   channels,
	}, nil
}

// Default returns the profile used when the caller does not specify one:
// 16 kHz mono little-endian PCM, the realtime provider's native format.
func Default() Configuration {
	return Configuration{
		Encoding:   EncodingPCM16,
		SampleRate: 16000,
		BitDepth:   16,
		Channels:   1,
	}
}

// WithFeatures returns a copy with the given advanced features enabled.
func (c Configuration) WithFeatures(features ...Feature) Configuration {
	fs := make([]Feature, 0, len(c.Features)+len(features))
	fs = append(fs, c.Features...)
	fs = append(fs, features...)
	c.Features = fs
	return c
}

// WithLanguage returns a copy with a target language set.
func (c Configuration) WithLanguage(language string) Configuration {
	c.Language = language
	return c
}

// HasFeature reports whether the given advanced feature was requested.
func (c Configuration) HasFeature(f Feature) bool {
	for _, have := range c.Features {
		if have == f {
			return true
		}
	}
	return false
}

// RequiresBatchForFullFidelity reports whether full-fidelity results need the
// batch path. True iff any advanced feature flag is set.
func (c Configuration) RequiresBatchForFullFidelity() bool {
	return len(c.Features) > 0
}

// BytesPerSample returns the storage size of a single sample.
func (c Configuration) BytesPerSample() int {
	return c.BitDepth / 8
}

// EstimateDuration converts a raw audio byte count into playback time under
// this profile.
func (c Configuration) EstimateDuration(byteSize int) time.Duration {
	frame := c.BytesPerSample() * c.Channels
	if frame <= 0 || c.SampleRate <= 0 {
		return 0
	}
	samples := byteSize / frame
	return time.Duration(float64(samples) / float64(c.SampleRate) * float64(time.Second))
}
