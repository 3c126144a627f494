// Package batch implements the provider's asynchronous transcription path:
// multipart upload, job submission with feature flags, and bounded polling.
// It is the feature-complete fallback behind the realtime channel.
package batch

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"speech-capture-service/internal/audio"
	"speech-capture-service/internal/observability/logging"
	"speech-capture-service/internal/observability/metrics"
	"speech-capture-service/internal/stt"
	"speech-capture-service/internal/transcript"
)

// Options bound the pipeline's waits and payload size.
type Options struct {
	PollInterval    time.Duration // delay between status polls
	MaxPollAttempts int           // attempt budget before TimeoutError
	MaxAudioBytes   int           // size ceiling; larger inputs skip batch
	RequestTimeout  time.Duration // per-HTTP-request deadline
}

// DefaultOptions returns the reference bounds.
func DefaultOptions() Options {
	return Options{
		PollInterval:    2 * time.Second,
		MaxPollAttempts: 30,
		MaxAudioBytes:   10 * 1024 * 1024,
		RequestTimeout:  30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.MaxPollAttempts <= 0 {
		o.MaxPollAttempts = def.MaxPollAttempts
	}
	if o.MaxAudioBytes <= 0 {
		o.MaxAudioBytes = def.MaxAudioBytes
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = def.RequestTimeout
	}
	return o
}

// Pipeline talks to the provider's batch HTTP API.
type Pipeline struct {
	client *resty.Client
	opts   Options
	logger zerolog.Logger
}

// NewPipeline creates a batch pipeline against the given API base URL.
func NewPipeline(baseURL, apiKey string, opts Options) *Pipeline {
	opts = opts.withDefaults()
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(opts.RequestTimeout)
	if apiKey != "" {
		client.SetHeader("Authorization", apiKey)
	}
	return &Pipeline{
		client: client,
		opts:   opts,
		logger: logging.WithComponent("stt.batch"),
	}
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type submitRequest struct {
	AudioURL      string `json:"audio_url"`
	Language      string `json:"language,omitempty"`
	Sentiment     bool   `json:"sentiment_analysis,omitempty"`
	Emotion       bool   `json:"emotion_detection,omitempty"`
	Summarization bool   `json:"summarization,omitempty"`
	Entities      bool   `json:"entity_detection,omitempty"`
	Chapters      bool   `json:"auto_chapters,omitempty"`
	Multichannel  bool   `json:"multichannel,omitempty"`
}

type utterance struct {
	Text       string   `json:"text"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Confidence *float64 `json:"confidence,omitempty"`
	Channel    *int     `json:"channel,omitempty"`
}

type wireSentiment struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
	Start float64 `json:"start"`
}

type wireEntity struct {
	Text string `json:"text"`
	Kind string `json:"kind"`
}

type wireChapter struct {
	Headline string  `json:"headline"`
	Summary  string  `json:"summary,omitempty"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
}

type jobResponse struct {
	ID         string      `json:"id"`
	Status     string      `json:"status"` // queued, processing, done, error
	Error      string      `json:"error,omitempty"`
	Utterances []utterance `json:"utterances,omitempty"`

	Summary    string          `json:"summary,omitempty"`
	Sentiments []wireSentiment `json:"sentiment_analysis_results,omitempty"`
	Emotions   []wireSentiment `json:"emotion_detection_results,omitempty"`
	Entities   []wireEntity    `json:"entities,omitempty"`
	Chapters   []wireChapter   `json:"chapters,omitempty"`
}

const (
	jobStatusDone  = "done"
	jobStatusError = "error"
)

// Transcribe uploads the blob, submits a job with the configuration's feature
// flags and polls to completion. Inputs over the size ceiling are rejected
// before any provider call.
func (p *Pipeline) Transcribe(ctx context.Context, cfg audio.Configuration, blob []byte) (stt.BatchResult, error) {
	if len(blob) > p.opts.MaxAudioBytes {
		return stt.BatchResult{}, &stt.SizeLimitExceededError{Size: len(blob), Limit: p.opts.MaxAudioBytes}
	}

	audioURL, err := p.upload(ctx, blob)
	if err != nil {
		return stt.BatchResult{}, err
	}

	jobID, err := p.submit(ctx, cfg, audioURL)
	if err != nil {
		return stt.BatchResult{}, err
	}
	p.logger.Info().Str("jobId", jobID).Int("audioBytes", len(blob)).Msg("Batch job submitted")

	job, err := p.poll(ctx, jobID)
	if err != nil {
		return stt.BatchResult{}, err
	}
	return p.extract(job)
}

func (p *Pipeline) upload(ctx context.Context, blob []byte) (string, error) {
	var out uploadResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetFileReader("audio", "audio.raw", bytes.NewReader(blob)).
		SetResult(&out).
		Post("/v2/upload")
	if err != nil {
		return "", &stt.ConnectionError{Endpoint: p.client.BaseURL, Err: err}
	}
	if resp.IsError() {
		return "", &stt.UpstreamJobError{Message: fmt.Sprintf("upload rejected with status %d", resp.StatusCode())}
	}
	if out.UploadURL == "" {
		return "", &stt.ProtocolError{Detail: "upload response missing upload_url"}
	}
	return out.UploadURL, nil
}

func (p *Pipeline) submit(ctx context.Context, cfg audio.Configuration, audioURL string) (string, error) {
	req := submitRequest{
		AudioURL:      audioURL,
		Language:      cfg.Language,
		Sentiment:     cfg.HasFeature(audio.FeatureSentiment),
		Emotion:       cfg.HasFeature(audio.FeatureEmotion),
		Summarization: cfg.HasFeature(audio.FeatureSummarization),
		Entities:      cfg.HasFeature(audio.FeatureEntities),
		Chapters:      cfg.HasFeature(audio.FeatureChapters),
		Multichannel:  cfg.Channels > 1,
	}

	var out jobResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/v2/transcripts")
	if err != nil {
		return "", &stt.ConnectionError{Endpoint: p.client.BaseURL, Err: err}
	}
	if resp.IsError() {
		return "", &stt.UpstreamJobError{Message: fmt.Sprintf("submit rejected with status %d", resp.StatusCode())}
	}
	if out.ID == "" {
		return "", &stt.ProtocolError{Detail: "submit response missing job id"}
	}
	return out.ID, nil
}

// poll checks job status at a fixed interval for a bounded number of
// attempts. The inter-poll wait is a cooperative cancellation point.
func (p *Pipeline) poll(ctx context.Context, jobID string) (jobResponse, error) {
	for attempt := 1; attempt <= p.opts.MaxPollAttempts; attempt++ {
		var out jobResponse
		resp, err := p.client.R().
			SetContext(ctx).
			SetResult(&out).
			Get("/v2/transcripts/" + jobID)
		if err != nil {
			return jobResponse{}, &stt.ConnectionError{Endpoint: p.client.BaseURL, Err: err}
		}
		if resp.IsError() {
			return jobResponse{}, &stt.UpstreamJobError{
				JobID:   jobID,
				Message: fmt.Sprintf("status poll rejected with status %d", resp.StatusCode()),
			}
		}

		switch out.Status {
		case jobStatusDone:
			metrics.DefaultMetrics.RecordBatchPollAttempts(attempt)
			p.logger.Info().Str("jobId", jobID).Int("attempts", attempt).Msg("Batch job completed")
			return out, nil
		case jobStatusError:
			return jobResponse{}, &stt.UpstreamJobError{JobID: jobID, Message: out.Error}
		}

		if attempt == p.opts.MaxPollAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return jobResponse{}, ctx.Err()
		case <-time.After(p.opts.PollInterval):
		}
	}
	return jobResponse{}, &stt.TimeoutError{Op: "batch poll", Attempts: p.opts.MaxPollAttempts}
}

// segmentClaimer attributes annotations to segments by start time. Each
// family of annotations gets its own claimer: repeated claims for the same
// start time walk the utterances in order, so multichannel results with
// identical starts resolve to distinct segments instead of colliding.
type segmentClaimer struct {
	idsByStart map[float64][]string
	next       map[float64]int
}

func newSegmentClaimer(idsByStart map[float64][]string) *segmentClaimer {
	return &segmentClaimer{idsByStart: idsByStart, next: make(map[float64]int)}
}

func (c *segmentClaimer) claim(start float64) string {
	ids := c.idsByStart[start]
	i := c.next[start]
	if i >= len(ids) {
		return ""
	}
	c.next[start] = i + 1
	return ids[i]
}

// extract converts a done job into final segments plus the annotation bundle.
func (p *Pipeline) extract(job jobResponse) (stt.BatchResult, error) {
	segments := make([]transcript.Segment, 0, len(job.Utterances))
	idsByStart := make(map[float64][]string, len(job.Utterances))
	for i, u := range job.Utterances {
		opts := []transcript.SegmentOption{transcript.AsFinal()}
		if u.Confidence != nil {
			opts = append(opts, transcript.WithConfidence(*u.Confidence))
		}
		if u.Channel != nil {
			opts = append(opts, transcript.WithChannel(*u.Channel))
		}
		id := fmt.Sprintf("%s-u-%d", job.ID, i+1)
		seg, err := transcript.NewSegment(id, u.Text, u.Start, u.End, opts...)
		if err != nil {
			return stt.BatchResult{}, &stt.ProtocolError{Detail: "invalid utterance in batch result", Err: err}
		}
		segments = append(segments, seg)
		idsByStart[u.Start] = append(idsByStart[u.Start], id)
	}

	ann := &transcript.Annotations{Summary: job.Summary}
	sentimentIDs := newSegmentClaimer(idsByStart)
	for _, s := range job.Sentiments {
		ann.Sentiments = append(ann.Sentiments, transcript.SentimentAnnotation{
			SegmentID: sentimentIDs.claim(s.Start),
			Label:     s.Label,
			Score:     s.Score,
		})
	}
	emotionIDs := newSegmentClaimer(idsByStart)
	for _, e := range job.Emotions {
		ann.Emotions = append(ann.Emotions, transcript.EmotionAnnotation{
			SegmentID: emotionIDs.claim(e.Start),
			Label:     e.Label,
			Score:     e.Score,
		})
	}
	for _, e := range job.Entities {
		ann.Entities = append(ann.Entities, transcript.EntityAnnotation{Text: e.Text, Kind: e.Kind})
	}
	for _, c := range job.Chapters {
		ann.Chapters = append(ann.Chapters, transcript.ChapterAnnotation{
			Headline: c.Headline,
			Summary:  c.Summary,
			Start:    c.Start,
			End:      c.End,
		})
	}
	if ann.IsEmpty() {
		ann = nil
	}

	return stt.BatchResult{
		JobID:       job.ID,
		Segments:    segments,
		Annotations: ann,
	}, nil
}
