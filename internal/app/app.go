// Package app wires the service's collaborators into one runnable unit.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"speech-capture-service/internal/config"
	"speech-capture-service/internal/events"
	apihttp "speech-capture-service/internal/http"
	"speech-capture-service/internal/observability"
	"speech-capture-service/internal/observability/logging"
	"speech-capture-service/internal/orchestrator"
	"speech-capture-service/internal/stt"
	"speech-capture-service/internal/stt/batch"
	"speech-capture-service/internal/stt/mock"
	"speech-capture-service/internal/stt/realtime"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Orchestrator *orchestrator.Orchestrator
	Publisher    *events.Publisher

	apiServer *http.Server
	obsServer *observability.Server
	ready     atomic.Bool
}

// New constructs an Application from the provided configuration.
func New(cfg *config.Config) (*Application, error) {
	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	a := &Application{
		Cfg:    cfg,
		Logger: logging.WithComponent("application"),
	}

	a.Publisher = events.New(&events.Config{
		Enabled:   cfg.Kafka.Enabled,
		Brokers:   cfg.Kafka.Brokers,
		Topic:     cfg.Kafka.Topic,
		Principal: cfg.Kafka.Principal,
	})

	dialer, pipeline, err := buildAdapters(cfg)
	if err != nil {
		return nil, err
	}
	a.Orchestrator = orchestrator.New(dialer, pipeline, a.Publisher, orchestrator.Options{
		MaxSessionAudioBytes: cfg.Session.MaxAudioBytes,
	})

	a.apiServer = &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      apihttp.NewRouter(a.Orchestrator),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // stop requests drain the provider
		IdleTimeout:  60 * time.Second,
	}
	a.obsServer = observability.NewServer(":"+cfg.Observability.MetricsPort, a.ready.Load)

	a.Logger.Info().
		Str("providerMode", cfg.Provider.Mode).
		Str("principal", cfg.Service.Principal).
		Msg("Speech capture service application created")
	return a, nil
}

// buildAdapters selects the provider adapters for the configured mode. Mock
// mode runs the whole service without credentials, replaying scripted
// transcription results.
func buildAdapters(cfg *config.Config) (stt.RealtimeDialer, stt.BatchPipeline, error) {
	switch cfg.Provider.Mode {
	case "mock", "":
		return &mock.RealtimeDialer{Segments: mock.DefaultSegments()}, &mock.BatchPipeline{}, nil
	case "remote":
		if cfg.Provider.RealtimeEndpoint == "" || cfg.Provider.BatchBaseURL == "" {
			return nil, nil, errors.New("remote provider mode requires realtime endpoint and batch base URL")
		}
		dialer := realtime.NewDialer(cfg.Provider.RealtimeEndpoint, cfg.Provider.APIKey, realtime.Options{
			ChunkSize:              cfg.Realtime.ChunkSize,
			ChunkInterval:          cfg.Realtime.ChunkInterval,
			ReadTimeout:            cfg.Realtime.ReadTimeout,
			MaxMessages:            cfg.Realtime.MaxMessages,
			MaxConsecutiveTimeouts: cfg.Realtime.MaxConsecutiveTimeouts,
		})
		pipeline := batch.NewPipeline(cfg.Provider.BatchBaseURL, cfg.Provider.APIKey, batch.Options{
			PollInterval:    cfg.Batch.PollInterval,
			MaxPollAttempts: cfg.Batch.MaxPollAttempts,
			MaxAudioBytes:   cfg.Batch.MaxAudioBytes,
			RequestTimeout:  cfg.Batch.RequestTimeout,
		})
		return dialer, pipeline, nil
	default:
		return nil, nil, fmt.Errorf("unknown provider mode %q", cfg.Provider.Mode)
	}
}

// Start brings up both HTTP servers. The returned channel reports a fatal
// API-server error.
func (a *Application) Start() <-chan error {
	a.StartupTime = time.Now().UTC()
	a.obsServer.Start()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.apiServer.Addr).Msg("Starting session API server")
		if err := a.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	a.ready.Store(true)

	a.Logger.Info().Time("startupTime", a.StartupTime).Msg("Speech capture service started")
	return errCh
}

// Shutdown drains both servers, closes open sessions' channels and flushes
// the scoring publisher.
func (a *Application) Shutdown(ctx context.Context) {
	a.ready.Store(false)
	a.Logger.Info().Msg("Speech capture service shutting down")

	if err := a.apiServer.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("Session API server shutdown failed")
	}
	if err := a.Orchestrator.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("Orchestrator close failed")
	}
	if err := a.Publisher.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("Publisher close failed")
	}
	if err := a.obsServer.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("Observability server shutdown failed")
	}
}
