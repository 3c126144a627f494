// Package orchestrator drives the capture session lifecycle end to end:
// create, feed, stop, transcribe over the dual provider paths, analyze and
// hand the finalized result off to scoring.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"speech-capture-service/internal/audio"
	"speech-capture-service/internal/events"
	"speech-capture-service/internal/intelligence"
	"speech-capture-service/internal/observability/logging"
	"speech-capture-service/internal/observability/metrics"
	"speech-capture-service/internal/session"
	"speech-capture-service/internal/stt"
	"speech-capture-service/internal/transcript"
)

// Options tune orchestrator guardrails.
type Options struct {
	// MaxSessionAudioBytes caps the audio one session may buffer. Zero means
	// the default.
	MaxSessionAudioBytes int

	// NotificationBuffer sizes the bounded event channel. Zero means the
	// default.
	NotificationBuffer int

	// HandoffTimeout bounds the asynchronous scoring publish. Zero means the
	// default.
	HandoffTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxSessionAudioBytes <= 0 {
		o.MaxSessionAudioBytes = 50 * 1024 * 1024
	}
	if o.NotificationBuffer <= 0 {
		o.NotificationBuffer = 64
	}
	if o.HandoffTimeout <= 0 {
		o.HandoffTimeout = 10 * time.Second
	}
	return o
}

// SessionResult is the finalized outcome of a stopped session.
type SessionResult struct {
	SessionID   string                  `json:"sessionId"`
	Transcript  transcript.Collection   `json:"transcript"`
	Annotations *transcript.Annotations `json:"annotations,omitempty"`
	Report      intelligence.Report     `json:"report"`
	UsedBatch   bool                    `json:"usedBatch"`
	BatchJobID  string                  `json:"batchJobId,omitempty"`
}

// Orchestrator owns the session registry and the provider adapters. It is the
// only component that mutates session state; external surfaces call into it
// by session id.
type Orchestrator struct {
	registry  *session.Registry
	dialer    stt.RealtimeDialer
	batch     stt.BatchPipeline
	publisher *events.Publisher
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	opts      Options

	mu       sync.Mutex
	channels map[string]stt.RealtimeChannel
	closed   bool

	notifications chan Event
	handoffs      sync.WaitGroup
}

// New wires an orchestrator from its collaborators. The registry is owned by
// the orchestrator, never shared module state.
func New(dialer stt.RealtimeDialer, batch stt.BatchPipeline, publisher *events.Publisher, opts Options) *Orchestrator {
	opts = opts.withDefaults()
	return &Orchestrator{
		registry:      session.NewRegistry(),
		dialer:        dialer,
		batch:         batch,
		publisher:     publisher,
		metrics:       metrics.DefaultMetrics,
		logger:        logging.WithComponent("orchestrator"),
		opts:          opts,
		channels:      make(map[string]stt.RealtimeChannel),
		notifications: make(chan Event, opts.NotificationBuffer),
	}
}

// CreateSession validates nothing about the configuration beyond what its
// constructor already guaranteed; it opens the realtime channel and binds it.
// The session ends up CONNECTED on success, ERROR with a message on failure.
func (o *Orchestrator) CreateSession(ctx context.Context, cfg audio.Configuration) (session.Snapshot, error) {
	sess := session.New(uuid.NewString(), cfg)
	sess.SetAudioLimit(o.opts.MaxSessionAudioBytes)
	o.registry.Put(sess)
	o.metrics.RecordSessionCreated()
	o.notify(Event{Kind: EventStatusChanged, SessionID: sess.ID(), Status: sess.Status().String()})

	logger := logging.WithSession(sess.ID())
	logger.Info().Str("encoding", string(cfg.Encoding)).Int("sampleRate", cfg.SampleRate).Msg("Session created")

	ch, err := o.dialer.Dial(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Realtime dial failed")
		_ = sess.Fail(fmt.Sprintf("realtime connect failed: %v", err))
		o.metrics.RecordSessionEnd(false, 0)
		o.notify(Event{Kind: EventStatusChanged, SessionID: sess.ID(), Status: sess.Status().String()})
		return sess.Snapshot(), err
	}

	ref := ch.Ref()
	sess.BindProvider(session.ProviderSession{ID: ref.SessionID, Endpoint: ref.Endpoint})
	if err := sess.Transition(session.StatusConnected); err != nil {
		_ = ch.Close()
		return sess.Snapshot(), err
	}

	o.mu.Lock()
	o.channels[sess.ID()] = ch
	o.mu.Unlock()

	o.notify(Event{Kind: EventStatusChanged, SessionID: sess.ID(), Status: sess.Status().String()})
	logger.Info().Str("providerSessionId", ref.SessionID).Msg("Realtime channel bound")
	return sess.Snapshot(), nil
}

// FeedAudio buffers raw audio bytes for the session. The first feed moves a
// CONNECTED session into RECORDING.
func (o *Orchestrator) FeedAudio(ctx context.Context, sessionID string, data []byte) (session.Snapshot, error) {
	sess, err := o.registry.Get(sessionID)
	if err != nil {
		return session.Snapshot{}, err
	}

	if err := sess.AppendAudio(data); err != nil {
		o.metrics.RecordAudioRejected()
		return sess.Snapshot(), err
	}
	o.metrics.RecordAudioReceived(len(data))

	if sess.Status() == session.StatusConnected {
		if err := sess.Transition(session.StatusRecording); err == nil {
			o.notify(Event{Kind: EventStatusChanged, SessionID: sessionID, Status: sess.Status().String()})
		}
	}
	return sess.Snapshot(), nil
}

// StopSession finalizes a session: any trailing audio is appended, the
// buffered blob is streamed to the realtime channel, the batch path runs if
// the fallback policy calls for it, and the assembled transcript is analyzed.
// Partial results always beat total failure; the session ends STOPPED with
// whatever was recoverable unless the caller cancelled.
func (o *Orchestrator) StopSession(ctx context.Context, sessionID string, finalAudio []byte) (SessionResult, error) {
	sess, err := o.registry.Get(sessionID)
	if err != nil {
		return SessionResult{}, err
	}
	logger := logging.WithSession(sessionID)

	if len(finalAudio) > 0 {
		if err := sess.AppendAudio(finalAudio); err != nil {
			return SessionResult{}, err
		}
		o.metrics.RecordAudioReceived(len(finalAudio))
	}

	if err := sess.Transition(session.StatusStopping); err != nil {
		return SessionResult{}, err
	}
	o.notify(Event{Kind: EventStatusChanged, SessionID: sessionID, Status: sess.Status().String()})

	blob := sess.AudioBlob()
	cfg := sess.Config()

	streamed, streamErr := o.runStreaming(ctx, sessionID, blob)
	if streamErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			_ = sess.Fail(fmt.Sprintf("stopped mid-drain: %v", ctxErr))
			o.metrics.RecordSessionEnd(false, sess.Snapshot().UpdatedAt.Sub(sess.Snapshot().CreatedAt).Seconds())
			o.notify(Event{Kind: EventStatusChanged, SessionID: sessionID, Status: sess.Status().String()})
			return SessionResult{}, ctxErr
		}
		logger.Warn().Err(streamErr).Int("segments", streamed.Len()).Msg("Streaming path degraded")
	}

	result := SessionResult{
		SessionID:  sessionID,
		Transcript: streamed,
	}

	// The batch path runs only when streaming produced nothing and the
	// configuration asked for annotations the realtime protocol cannot
	// deliver. Its failures are terminal for the batch path alone.
	if streamed.IsEmpty() && cfg.RequiresBatchForFullFidelity() {
		batchRes, batchErr := o.runBatch(ctx, sessionID, cfg, blob)
		if batchErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				_ = sess.Fail(fmt.Sprintf("stopped mid-batch: %v", ctxErr))
				o.notify(Event{Kind: EventStatusChanged, SessionID: sessionID, Status: sess.Status().String()})
				return SessionResult{}, ctxErr
			}
			logger.Warn().Err(batchErr).Msg("Batch fallback failed, keeping streaming result")
		} else {
			result.Transcript = transcript.Assemble(streamed, transcript.NewCollection(batchRes.Segments...))
			result.Annotations = batchRes.Annotations
			result.UsedBatch = true
			result.BatchJobID = batchRes.JobID
		}
	}

	if err := sess.AttachTranscript(result.Transcript); err != nil {
		return SessionResult{}, err
	}
	result.Report = intelligence.Extract(result.Transcript, result.Annotations)

	if err := sess.Transition(session.StatusStopped); err != nil {
		return SessionResult{}, err
	}
	snap := sess.Snapshot()
	o.metrics.RecordSessionEnd(true, snap.UpdatedAt.Sub(snap.CreatedAt).Seconds())
	o.notify(Event{Kind: EventStatusChanged, SessionID: sessionID, Status: snap.Status})
	o.notify(Event{Kind: EventSessionFinalized, SessionID: sessionID, Status: snap.Status, Segments: result.Transcript.Len()})

	logger.Info().
		Int("segments", result.Transcript.Len()).
		Bool("usedBatch", result.UsedBatch).
		Float64("deliveryScore", result.Report.DeliveryScore).
		Msg("Session finalized")

	o.handoff(sessionID, cfg, result)
	return result, nil
}

// runStreaming drains the session's realtime channel over the full blob. The
// channel is always closed and unbound afterwards; segments accumulated
// before a failure come back with the error.
func (o *Orchestrator) runStreaming(ctx context.Context, sessionID string, blob []byte) (transcript.Collection, error) {
	o.mu.Lock()
	ch, ok := o.channels[sessionID]
	delete(o.channels, sessionID)
	o.mu.Unlock()
	if !ok {
		return transcript.NewCollection(), errors.New("no realtime channel bound")
	}
	defer ch.Close()

	start := time.Now()
	segments, err := ch.Stream(ctx, blob)
	o.metrics.RecordStreamingResult(len(segments), errType(err), time.Since(start).Seconds())
	return transcript.NewCollection(segments...), err
}

func (o *Orchestrator) runBatch(ctx context.Context, sessionID string, cfg audio.Configuration, blob []byte) (stt.BatchResult, error) {
	res, err := o.batch.Transcribe(ctx, cfg, blob)

	var sizeErr *stt.SizeLimitExceededError
	if errors.As(err, &sizeErr) {
		o.metrics.RecordBatchSkipped()
	} else {
		o.metrics.RecordBatchResult(errType(err))
	}
	if err == nil {
		batchLogger := logging.WithProvider(sessionID, "batch")
		batchLogger.Info().
			Str("jobId", res.JobID).
			Int("segments", len(res.Segments)).
			Msg("Batch fallback completed")
	}
	return res, err
}

// handoff publishes the scoring event without awaiting the outcome. A failed
// publish is logged and counted, never surfaced to the session caller.
func (o *Orchestrator) handoff(sessionID string, cfg audio.Configuration, result SessionResult) {
	if o.publisher == nil {
		return
	}
	event := events.ScoringEvent{
		SessionID:       sessionID,
		CompletedAt:     time.Now().UTC(),
		Language:        cfg.Language,
		DurationSeconds: result.Transcript.TotalDuration(),
		Transcript:      result.Transcript,
		Annotations:     result.Annotations,
		Report:          result.Report,
	}

	o.handoffs.Add(1)
	go func() {
		defer o.handoffs.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.opts.HandoffTimeout)
		defer cancel()
		if err := o.publisher.Publish(ctx, event); err != nil {
			o.logger.Error().Err(err).Str("sessionId", sessionID).Msg("Scoring handoff failed")
		}
	}()
}

// SessionState returns the current snapshot for a session.
func (o *Orchestrator) SessionState(sessionID string) (session.Snapshot, error) {
	sess, err := o.registry.Get(sessionID)
	if err != nil {
		return session.Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

// Sessions returns the number of sessions the registry currently tracks.
func (o *Orchestrator) Sessions() int {
	return o.registry.Len()
}

// Close releases open realtime channels and waits for in-flight scoring
// handoffs to finish.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	for id, ch := range o.channels {
		_ = ch.Close()
		delete(o.channels, id)
	}
	o.mu.Unlock()
	o.handoffs.Wait()
	close(o.notifications)
	return nil
}

func errType(err error) string {
	if err == nil {
		return ""
	}
	var (
		connErr  *stt.ConnectionError
		protoErr *stt.ProtocolError
		toErr    *stt.TimeoutError
		jobErr   *stt.UpstreamJobError
		sizeErr  *stt.SizeLimitExceededError
	)
	switch {
	case errors.As(err, &connErr):
		return "connection"
	case errors.As(err, &protoErr):
		return "protocol"
	case errors.As(err, &toErr):
		return "timeout"
	case errors.As(err, &jobErr):
		return "upstream_job"
	case errors.As(err, &sizeErr):
		return "size_limit"
	default:
		return "other"
	}
}
