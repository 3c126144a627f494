// Package realtime implements the provider's realtime transcription protocol
// over a websocket: paced binary audio out, tagged JSON messages in.
package realtime

import (
	"encoding/json"

	"speech-capture-service/internal/stt"
)

// Kind classifies a provider message. Parsing happens once at the protocol
// boundary; anything outside the known set is an explicit KindUnknown, never
// silently dropped mid-loop.
type Kind int

const (
	KindUnknown Kind = iota
	KindTranscript
	KindSessionEnds
	KindError
	KindAnnotation
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindTranscript:
		return "transcript"
	case KindSessionEnds:
		return "session_ends"
	case KindError:
		return "error"
	case KindAnnotation:
		return "annotation"
	default:
		return "unknown"
	}
}

// Message is a parsed provider message.
type Message struct {
	Kind Kind
	Type string // raw wire tag

	// Transcript payload, meaningful when Kind == KindTranscript.
	Text       string
	Start      float64
	End        float64
	Confidence *float64
	Channel    *int
	Final      bool

	// Provider-reported error, meaningful when Kind == KindError.
	ErrorText string
}

type wireMessage struct {
	Type       string   `json:"type"`
	Text       string   `json:"text"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Confidence *float64 `json:"confidence,omitempty"`
	Channel    *int     `json:"channel,omitempty"`
	Final      bool     `json:"final"`
	Error      string   `json:"error,omitempty"`
}

// annotationTypes are feature-annotation tags the realtime protocol may carry
// for providers that stream partial intelligence data. The realtime path does
// not consume them, but they are classified rather than unknown.
var annotationTypes = map[string]struct{}{
	"sentiment": {},
	"emotion":   {},
	"summary":   {},
	"entities":  {},
	"chapters":  {},
}

// ParseMessage decodes one provider message into the tagged union. Malformed
// JSON is a ProtocolError.
func ParseMessage(data []byte) (Message, error) {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return Message{}, &stt.ProtocolError{Detail: "malformed provider message", Err: err}
	}

	msg := Message{
		Kind:       KindUnknown,
		Type:       wire.Type,
		Text:       wire.Text,
		Start:      wire.Start,
		End:        wire.End,
		Confidence: wire.Confidence,
		Channel:    wire.Channel,
		Final:      wire.Final,
		ErrorText:  wire.Error,
	}

	switch wire.Type {
	case "transcript":
		msg.Kind = KindTranscript
	case "session_ends":
		msg.Kind = KindSessionEnds
	case "error":
		msg.Kind = KindError
	default:
		if _, ok := annotationTypes[wire.Type]; ok {
			msg.Kind = KindAnnotation
		}
	}
	return msg, nil
}

// stopControl is the explicit stop message sent after the final audio chunk.
type stopControl struct {
	Type string `json:"type"`
}

func newStopControl() stopControl {
	return stopControl{Type: "stop"}
}
