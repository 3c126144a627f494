package realtime

import (
	"errors"
	"testing"

	"speech-capture-service/internal/stt"
)

func TestParseMessage_Classification(t *testing.T) {
	cases := []struct {
		name string
		data string
		kind Kind
	}{
		{"transcript", `{"type":"transcript","text":"hello","start":0,"end":1.5}`, KindTranscript},
		{"session ends", `{"type":"session_ends"}`, KindSessionEnds},
		{"provider error", `{"type":"error","error":"bad audio"}`, KindError},
		{"sentiment annotation", `{"type":"sentiment"}`, KindAnnotation},
		{"chapters annotation", `{"type":"chapters"}`, KindAnnotation},
		{"unknown tag", `{"type":"heartbeat"}`, KindUnknown},
		{"missing tag", `{"text":"orphan"}`, KindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tc.data))
			if err != nil {
				t.Fatalf("ParseMessage: %v", err)
			}
			if msg.Kind != tc.kind {
				t.Errorf("Kind = %v, want %v", msg.Kind, tc.kind)
			}
		})
	}
}

func TestParseMessage_TranscriptPayload(t *testing.T) {
	data := `{"type":"transcript","text":"payload intact","start":2.5,"end":4.0,"confidence":0.93,"channel":1,"final":true}`

	msg, err := ParseMessage([]byte(data))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}

	if msg.Text != "payload intact" {
		t.Errorf("Text = %q", msg.Text)
	}
	if msg.Start != 2.5 || msg.End != 4.0 {
		t.Errorf("timing = [%v, %v], want [2.5, 4.0]", msg.Start, msg.End)
	}
	if msg.Confidence == nil || *msg.Confidence != 0.93 {
		t.Errorf("Confidence = %v, want 0.93", msg.Confidence)
	}
	if msg.Channel == nil || *msg.Channel != 1 {
		t.Errorf("Channel = %v, want 1", msg.Channel)
	}
	if !msg.Final {
		t.Error("Final = false, want true")
	}
}

func TestParseMessage_OptionalFieldsAbsent(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"transcript","text":"bare","start":0,"end":1}`))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if msg.Confidence != nil {
		t.Errorf("Confidence = %v, want nil", msg.Confidence)
	}
	if msg.Channel != nil {
		t.Errorf("Channel = %v, want nil", msg.Channel)
	}
	if msg.Final {
		t.Error("Final = true, want false")
	}
}

func TestParseMessage_MalformedJSON(t *testing.T) {
	_, err := ParseMessage([]byte(`{"type":`))
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	var protoErr *stt.ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("error = %T, want *stt.ProtocolError", err)
	}
}

func TestKind_String(t *testing.T) {
	cases := []struct {
		kind Kind
		want string
	}{
		{KindTranscript, "transcript"},
		{KindSessionEnds, "session_ends"},
		{KindError, "error"},
		{KindAnnotation, "annotation"},
		{KindUnknown, "unknown"},
	}
	for _, tc := range cases {
		if got := tc.kind.String(); got != tc.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tc.kind, got, tc.want)
		}
	}
}
