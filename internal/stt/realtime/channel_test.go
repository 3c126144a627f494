package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"speech-capture-service/internal/audio"
	"speech-capture-service/internal/stt"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// fastOptions keeps the protocol bounds tight so tests finish quickly.
func fastOptions() Options {
	return Options{
		ChunkSize:              1024,
		ChunkInterval:          time.Millisecond,
		ReadTimeout:            200 * time.Millisecond,
		MaxMessages:            100,
		MaxConsecutiveTimeouts: 10,
		WriteTimeout:           time.Second,
	}
}

// newProviderServer starts a websocket server whose handler receives the
// upgraded connection. The returned dialer points at it.
func newProviderServer(t *testing.T, opts Options, handler func(conn *websocket.Conn, r *http.Request)) *Dialer {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn, r)
	}))
	t.Cleanup(srv.Close)

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	return NewDialer(endpoint, "test-key", opts)
}

// drainUntilStop reads incoming frames until the stop-control message,
// returning the total binary bytes received.
func drainUntilStop(conn *websocket.Conn) (int, error) {
	received := 0
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return received, err
		}
		if msgType == websocket.BinaryMessage {
			received += len(data)
			continue
		}
		if strings.Contains(string(data), `"stop"`) {
			return received, nil
		}
	}
}

func sendJSON(conn *websocket.Conn, payload string) {
	_ = conn.WriteMessage(websocket.TextMessage, []byte(payload))
}

func TestChannel_Stream_HappyPath(t *testing.T) {
	audioBytes := make(chan int, 1)
	dialer := newProviderServer(t, fastOptions(), func(conn *websocket.Conn, r *http.Request) {
		n, err := drainUntilStop(conn)
		if err != nil {
			return
		}
		audioBytes <- n
		sendJSON(conn, `{"type":"transcript","text":"first part","start":0,"end":2,"confidence":0.9,"final":true}`)
		sendJSON(conn, `{"type":"transcript","text":"second part","start":2,"end":4}`)
		sendJSON(conn, `{"type":"session_ends"}`)
	})

	ch, err := dialer.Dial(context.Background(), audio.Default())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	blob := make([]byte, 3000) // spans three chunks at the test chunk size
	segments, err := ch.Stream(context.Background(), blob)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if got := <-audioBytes; got != len(blob) {
		t.Errorf("provider received %d audio bytes, want %d", got, len(blob))
	}
	if len(segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(segments))
	}
	if segments[0].Text != "first part" || segments[1].Text != "second part" {
		t.Errorf("unexpected texts: %q, %q", segments[0].Text, segments[1].Text)
	}
	if !segments[0].Final {
		t.Error("first segment should be final")
	}
	if segments[0].Confidence == nil || *segments[0].Confidence != 0.9 {
		t.Errorf("first segment confidence = %v, want 0.9", segments[0].Confidence)
	}
	wantID := fmt.Sprintf("%s-rt-1", ch.Ref().SessionID)
	if segments[0].ID != wantID {
		t.Errorf("segment ID = %q, want %q", segments[0].ID, wantID)
	}
}

func TestDialer_Dial_SendsRecordingProfile(t *testing.T) {
	params := make(chan map[string]string, 1)
	dialer := newProviderServer(t, fastOptions(), func(conn *websocket.Conn, r *http.Request) {
		q := r.URL.Query()
		params <- map[string]string{
			"sample_rate": q.Get("sample_rate"),
			"encoding":    q.Get("encoding"),
			"channels":    q.Get("channels"),
			"session_id":  q.Get("session_id"),
			"language":    q.Get("language"),
			"auth":        r.Header.Get("Authorization"),
		}
	})

	cfg := audio.Default().WithLanguage("en")
	ch, err := dialer.Dial(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	got := <-params
	if got["sample_rate"] != "16000" {
		t.Errorf("sample_rate = %q, want 16000", got["sample_rate"])
	}
	if got["encoding"] != "pcm_s16le" {
		t.Errorf("encoding = %q, want pcm_s16le", got["encoding"])
	}
	if got["channels"] != "1" {
		t.Errorf("channels = %q, want 1", got["channels"])
	}
	if got["language"] != "en" {
		t.Errorf("language = %q, want en", got["language"])
	}
	if got["session_id"] != ch.Ref().SessionID {
		t.Errorf("session_id = %q, want %q", got["session_id"], ch.Ref().SessionID)
	}
	if got["auth"] != "test-key" {
		t.Errorf("Authorization = %q, want test-key", got["auth"])
	}
}

func TestDialer_Dial_Unreachable(t *testing.T) {
	dialer := NewDialer("ws://127.0.0.1:1", "key", fastOptions())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := dialer.Dial(ctx, audio.Default())
	if err == nil {
		t.Fatal("expected dial failure")
	}
	var connErr *stt.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("error = %T, want *stt.ConnectionError", err)
	}
}

func TestChannel_Stream_ProviderError(t *testing.T) {
	dialer := newProviderServer(t, fastOptions(), func(conn *websocket.Conn, r *http.Request) {
		if _, err := drainUntilStop(conn); err != nil {
			return
		}
		sendJSON(conn, `{"type":"transcript","text":"partial before failure","start":0,"end":1}`)
		sendJSON(conn, `{"type":"error","error":"audio format rejected"}`)
	})

	ch, err := dialer.Dial(context.Background(), audio.Default())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	segments, err := ch.Stream(context.Background(), []byte("audio"))
	if err == nil {
		t.Fatal("expected provider error")
	}
	var protoErr *stt.ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("error = %T, want *stt.ProtocolError", err)
	}
	if !strings.Contains(protoErr.Detail, "audio format rejected") {
		t.Errorf("Detail = %q, want provider text included", protoErr.Detail)
	}
	// The partial transcript survives the failure.
	if len(segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(segments))
	}
}

func TestChannel_Stream_DisconnectKeepsSegments(t *testing.T) {
	dialer := newProviderServer(t, fastOptions(), func(conn *websocket.Conn, r *http.Request) {
		if _, err := drainUntilStop(conn); err != nil {
			return
		}
		sendJSON(conn, `{"type":"transcript","text":"survives disconnect","start":0,"end":1}`)
		// Abrupt close, no session_ends.
		conn.Close()
	})

	ch, err := dialer.Dial(context.Background(), audio.Default())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	segments, err := ch.Stream(context.Background(), []byte("audio"))
	if err == nil {
		t.Fatal("expected connection error")
	}
	var connErr *stt.ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("error = %T, want *stt.ConnectionError", err)
	}
	if len(segments) != 1 || segments[0].Text != "survives disconnect" {
		t.Fatalf("segments = %v, want the pre-disconnect transcript", segments)
	}
}

func TestChannel_Stream_IdleConnectionTimesOut(t *testing.T) {
	opts := fastOptions()
	opts.ReadTimeout = 20 * time.Millisecond
	opts.MaxConsecutiveTimeouts = 3

	done := make(chan struct{})
	dialer := newProviderServer(t, opts, func(conn *websocket.Conn, r *http.Request) {
		_, _ = drainUntilStop(conn)
		// Say nothing; keep the connection open until the client gives up.
		<-done
	})
	defer close(done)

	ch, err := dialer.Dial(context.Background(), audio.Default())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	_, err = ch.Stream(context.Background(), []byte("audio"))
	if err == nil {
		t.Fatal("expected timeout error")
	}
	var toErr *stt.TimeoutError
	if !errors.As(err, &toErr) {
		t.Fatalf("error = %T, want *stt.TimeoutError", err)
	}
	if toErr.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", toErr.Attempts)
	}
}

func TestChannel_Stream_RidesOutIdlePauseWithinBudget(t *testing.T) {
	opts := fastOptions()
	opts.ReadTimeout = 20 * time.Millisecond
	opts.MaxConsecutiveTimeouts = 10

	dialer := newProviderServer(t, opts, func(conn *websocket.Conn, r *http.Request) {
		if _, err := drainUntilStop(conn); err != nil {
			return
		}
		// Stay silent across several read-timeout windows, then deliver.
		time.Sleep(50 * time.Millisecond)
		sendJSON(conn, `{"type":"transcript","text":"late but within budget","start":0,"end":2,"final":true}`)
		sendJSON(conn, `{"type":"session_ends"}`)
	})

	ch, err := dialer.Dial(context.Background(), audio.Default())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	segments, err := ch.Stream(context.Background(), []byte("audio"))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(segments) != 1 || segments[0].Text != "late but within budget" {
		t.Fatalf("segments = %v, want the late transcript delivered", segments)
	}
}

func TestChannel_Stream_MessageCap(t *testing.T) {
	opts := fastOptions()
	opts.MaxMessages = 5

	dialer := newProviderServer(t, opts, func(conn *websocket.Conn, r *http.Request) {
		if _, err := drainUntilStop(conn); err != nil {
			return
		}
		// More transcripts than the cap; never a session_ends.
		for i := 0; i < 20; i++ {
			sendJSON(conn, fmt.Sprintf(`{"type":"transcript","text":"msg %d","start":%d,"end":%d}`, i, i, i+1))
		}
	})

	ch, err := dialer.Dial(context.Background(), audio.Default())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	segments, err := ch.Stream(context.Background(), []byte("audio"))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(segments) != 5 {
		t.Errorf("segments = %d, want the message cap of 5", len(segments))
	}
}

func TestChannel_Stream_SkipsNonTranscriptNoise(t *testing.T) {
	dialer := newProviderServer(t, fastOptions(), func(conn *websocket.Conn, r *http.Request) {
		if _, err := drainUntilStop(conn); err != nil {
			return
		}
		sendJSON(conn, `{"type":"transcript","text":"","start":0,"end":1}`) // empty, skipped
		sendJSON(conn, `{"type":"sentiment","text":"POSITIVE"}`)
		sendJSON(conn, `{"type":"heartbeat"}`)
		sendJSON(conn, `{"type":"transcript","text":"kept","start":1,"end":2}`)
		sendJSON(conn, `{"type":"session_ends"}`)
	})

	ch, err := dialer.Dial(context.Background(), audio.Default())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	segments, err := ch.Stream(context.Background(), []byte("audio"))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if len(segments) != 1 || segments[0].Text != "kept" {
		t.Fatalf("segments = %v, want only the non-empty transcript", segments)
	}
}

func TestChannel_Stream_ContextCancelled(t *testing.T) {
	dialer := newProviderServer(t, fastOptions(), func(conn *websocket.Conn, r *http.Request) {
		_, _ = drainUntilStop(conn)
		time.Sleep(time.Second)
	})

	ch, err := dialer.Dial(context.Background(), audio.Default())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer ch.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = ch.Stream(ctx, make([]byte, 4096))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}

func TestChannel_Close_Idempotent(t *testing.T) {
	dialer := newProviderServer(t, fastOptions(), func(conn *websocket.Conn, r *http.Request) {
		_, _, _ = conn.ReadMessage()
	})

	ch, err := dialer.Dial(context.Background(), audio.Default())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	if err := ch.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := ch.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	var zero Options
	got := zero.withDefaults()
	if got != DefaultOptions() {
		t.Errorf("withDefaults() = %+v, want %+v", got, DefaultOptions())
	}

	partial := Options{ChunkSize: 512}
	got = partial.withDefaults()
	if got.ChunkSize != 512 {
		t.Errorf("ChunkSize = %d, want explicit 512 kept", got.ChunkSize)
	}
	if got.ReadTimeout != DefaultOptions().ReadTimeout {
		t.Errorf("ReadTimeout = %v, want default", got.ReadTimeout)
	}
}
