package realtime

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"speech-capture-service/internal/audio"
	"speech-capture-service/internal/observability/logging"
	"speech-capture-service/internal/observability/metrics"
	"speech-capture-service/internal/stt"
	"speech-capture-service/internal/transcript"
)

// Options bound the channel's lifetime. The defaults pace audio at roughly
// real-time playback and guarantee termination even against a silently idle
// connection.
type Options struct {
	ChunkSize              int           // bytes per binary frame
	ChunkInterval          time.Duration // pacing delay between frames
	ReadTimeout            time.Duration // per-read deadline in the receive loop
	MaxMessages            int           // hard cap on received messages
	MaxConsecutiveTimeouts int           // idle-connection cutoff
	WriteTimeout           time.Duration
}

// DefaultOptions returns the reference protocol bounds.
func DefaultOptions() Options {
	return Options{
		ChunkSize:              4096,
		ChunkInterval:          50 * time.Millisecond,
		ReadTimeout:            3 * time.Second,
		MaxMessages:            100,
		MaxConsecutiveTimeouts: 10,
		WriteTimeout:           5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ChunkSize <= 0 {
		o.ChunkSize = def.ChunkSize
	}
	if o.ChunkInterval <= 0 {
		o.ChunkInterval = def.ChunkInterval
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = def.ReadTimeout
	}
	if o.MaxMessages <= 0 {
		o.MaxMessages = def.MaxMessages
	}
	if o.MaxConsecutiveTimeouts <= 0 {
		o.MaxConsecutiveTimeouts = def.MaxConsecutiveTimeouts
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	return o
}

// Dialer opens realtime channels against the provider endpoint.
type Dialer struct {
	endpoint string
	apiKey   string
	opts     Options
	logger   zerolog.Logger
}

// NewDialer creates a dialer for the given websocket endpoint.
func NewDialer(endpoint, apiKey string, opts Options) *Dialer {
	return &Dialer{
		endpoint: endpoint,
		apiKey:   apiKey,
		opts:     opts.withDefaults(),
		logger:   logging.WithComponent("stt.realtime"),
	}
}

// Dial connects a realtime session for the given recording profile. The
// session correlation id is client-generated and carried as a query
// parameter; the provider echoes it on its side of the binding.
func (d *Dialer) Dial(ctx context.Context, cfg audio.Configuration) (stt.RealtimeChannel, error) {
	sessionID := uuid.NewString()
	wsURL, err := d.connectionURL(cfg, sessionID)
	if err != nil {
		return nil, &stt.ConnectionError{Endpoint: d.endpoint, Err: err}
	}

	header := http.Header{}
	if d.apiKey != "" {
		header.Set("Authorization", d.apiKey)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, &stt.ConnectionError{Endpoint: d.endpoint, Err: err}
	}

	d.logger.Debug().
		Str("sessionId", sessionID).
		Str("endpoint", d.endpoint).
		Msg("Realtime channel connected")

	return &Channel{
		conn: conn,
		ref: stt.ProviderRef{
			SessionID: sessionID,
			Endpoint:  d.endpoint,
		},
		opts:   d.opts,
		logger: d.logger.With().Str("sessionId", sessionID).Logger(),
		done:   make(chan struct{}),
	}, nil
}

func (d *Dialer) connectionURL(cfg audio.Configuration, sessionID string) (string, error) {
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid realtime endpoint: %w", err)
	}
	params := url.Values{}
	params.Add("sample_rate", strconv.Itoa(cfg.SampleRate))
	params.Add("encoding", string(cfg.Encoding))
	params.Add("channels", strconv.Itoa(cfg.Channels))
	params.Add("session_id", sessionID)
	if cfg.Language != "" {
		params.Add("language", cfg.Language)
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// Channel is one connected realtime transcription session.
type Channel struct {
	conn      *websocket.Conn
	ref       stt.ProviderRef
	opts      Options
	logger    zerolog.Logger
	closeOnce sync.Once

	// done releases the reader goroutine when the channel is closed before
	// the receive loop has drained it.
	done chan struct{}
}

// Ref returns the bound provider session reference.
func (c *Channel) Ref() stt.ProviderRef {
	return c.ref
}

// Stream sends the blob in paced chunks, issues the stop-control message and
// drains the bounded receive loop. Whatever segments arrived before a failure
// are returned alongside the error.
func (c *Channel) Stream(ctx context.Context, blob []byte) ([]transcript.Segment, error) {
	if err := c.sendAudio(ctx, blob); err != nil {
		return nil, err
	}
	if err := c.sendStop(); err != nil {
		return nil, err
	}
	return c.receive(ctx)
}

// sendAudio writes fixed-size binary frames paced at the chunk interval so
// the provider's buffer is not overrun. The pacing delay is a cooperative
// cancellation point.
func (c *Channel) sendAudio(ctx context.Context, blob []byte) error {
	for offset := 0; offset < len(blob); offset += c.opts.ChunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := offset + c.opts.ChunkSize
		if end > len(blob) {
			end = len(blob)
		}

		_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.BinaryMessage, blob[offset:end]); err != nil {
			return &stt.ConnectionError{Endpoint: c.ref.Endpoint, Err: err}
		}

		if end < len(blob) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.opts.ChunkInterval):
			}
		}
	}
	return nil
}

func (c *Channel) sendStop() error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := c.conn.WriteJSON(newStopControl()); err != nil {
		return &stt.ConnectionError{Endpoint: c.ref.Endpoint, Err: err}
	}
	return nil
}

type readResult struct {
	data []byte
	err  error
}

// readLoop feeds conn reads into the returned channel. A websocket read error
// is permanent for the connection, so the goroutine exits after delivering
// it; Close unblocks a pending read and the done channel releases the
// goroutine when nobody is left to drain it.
func (c *Channel) readLoop() <-chan readResult {
	reads := make(chan readResult)
	go func() {
		defer close(reads)
		for {
			_, data, err := c.conn.ReadMessage()
			select {
			case reads <- readResult{data: data, err: err}:
			case <-c.done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return reads
}

// receive drains provider messages until session_ends, a provider error, the
// message cap, or too many consecutive idle windows. The read timeout is
// enforced by waiting on the reader goroutine rather than a connection read
// deadline: a deadline would poison the websocket, turning one quiet window
// into an instant burn-through of the whole timeout budget. An idle provider
// that wakes up within the budget still gets its segments through.
func (c *Channel) receive(ctx context.Context) ([]transcript.Segment, error) {
	var segments []transcript.Segment
	messages := 0
	consecutiveTimeouts := 0
	reads := c.readLoop()

	for messages < c.opts.MaxMessages {
		var res readResult
		select {
		case <-ctx.Done():
			return segments, ctx.Err()
		case <-time.After(c.opts.ReadTimeout):
			metrics.DefaultMetrics.RecordStreamingTimeout()
			consecutiveTimeouts++
			if consecutiveTimeouts >= c.opts.MaxConsecutiveTimeouts {
				c.logger.Warn().
					Int("timeouts", consecutiveTimeouts).
					Int("segments", len(segments)).
					Msg("Realtime receive gave up on idle connection")
				return segments, &stt.TimeoutError{Op: "realtime receive", Attempts: consecutiveTimeouts}
			}
			continue
		case res = <-reads:
		}

		if res.err != nil {
			// Mid-stream disconnect: accumulated segments survive.
			return segments, &stt.ConnectionError{Endpoint: c.ref.Endpoint, Err: res.err}
		}
		messages++
		consecutiveTimeouts = 0

		msg, err := ParseMessage(res.data)
		if err != nil {
			return segments, err
		}
		metrics.DefaultMetrics.RecordStreamingMessage(msg.Kind.String())

		switch msg.Kind {
		case KindTranscript:
			if msg.Text == "" {
				continue
			}
			seg, err := c.toSegment(msg, len(segments))
			if err != nil {
				return segments, &stt.ProtocolError{Detail: "invalid transcript message", Err: err}
			}
			// Arrival order; the assembler re-sorts by start time.
			segments = append(segments, seg)
		case KindSessionEnds:
			return segments, nil
		case KindError:
			return segments, &stt.ProtocolError{Detail: "provider reported: " + msg.ErrorText}
		case KindAnnotation, KindUnknown:
			c.logger.Debug().Str("type", msg.Type).Str("kind", msg.Kind.String()).Msg("Skipping message")
		}
	}
	return segments, nil
}

func (c *Channel) toSegment(msg Message, index int) (transcript.Segment, error) {
	opts := []transcript.SegmentOption{}
	if msg.Final {
		opts = append(opts, transcript.AsFinal())
	}
	if msg.Confidence != nil {
		opts = append(opts, transcript.WithConfidence(*msg.Confidence))
	}
	if msg.Channel != nil {
		opts = append(opts, transcript.WithChannel(*msg.Channel))
	}
	id := fmt.Sprintf("%s-rt-%d", c.ref.SessionID, index+1)
	return transcript.NewSegment(id, msg.Text, msg.Start, msg.End, opts...)
}

// Close releases the websocket. Idempotent.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
	return nil
}
