package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"darkwatch/internal/api"
	"darkwatch/internal/cfg"
	"darkwatch/internal/ingest"
	"darkwatch/internal/metrics"
	"darkwatch/internal/predict"
	"darkwatch/internal/storage"
	"darkwatch/internal/track"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize components
	m := metrics.New()
	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}
	buffer := track.NewBuffer(c.TrackWindow)

	startMetricsServer(ctx, c)

	var wg sync.WaitGroup
	startIngest(ctx, &wg, c, buffer, store, m)

	orch := buildOrchestrator(c, m)
	startAPIServer(ctx, &wg, c, orch, buffer, store)

	// Wait for shutdown signal
	waitForShutdown(ctx, cancel, &wg)
}

// initializeStorage initializes storage if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath != "" {
		store, err := storage.New(c.DataPath)
		if err != nil {
			log.Warn().Err(err).Msg("storage initialization failed, continuing without persistence")
			return nil
		}
		return store
	}
	return nil
}

// buildOrchestrator assembles the forecaster stack from settings.
func buildOrchestrator(c cfg.Settings, m *metrics.Metrics) *predict.Orchestrator {
	opts := []predict.Option{
		predict.WithTimeout(c.RemoteTimeout),
		predict.WithMetrics(m),
		predict.WithCloud(predict.NewCloudGenerator(c.CloudGridSize, c.CloudNumStd)),
		predict.WithUncertainty(predict.UncertaintyModel{
			BaseNM:     c.BaseUncertaintyNM,
			GrowthRate: c.UncertaintyGrowth,
		}),
	}

	if c.RemoteURL != "" {
		remote := predict.NewRemoteClient(c.RemoteURL, c.RemoteTimeout)

		probeCtx, cancel := context.WithTimeout(context.Background(), c.RemoteTimeout)
		if err := remote.Health(probeCtx); err != nil {
			log.Warn().Err(err).Str("url", c.RemoteURL).Msg("remote model service not healthy at startup, requests will fall back until it recovers")
		} else {
			log.Info().Str("url", c.RemoteURL).Dur("timeout", c.RemoteTimeout).Msg("remote model service configured")
		}
		cancel()

		opts = append(opts, predict.WithRemote(remote))
	}

	norm, err := predict.LoadNormalizer(c.NormalizerPath)
	if err != nil {
		log.Warn().Err(err).Str("path", c.NormalizerPath).Msg("normalizer artifact unavailable, learned requests will fall back to dead reckoning")
	} else {
		opts = append(opts, predict.WithLearned(predict.NewLearned(norm, nil)))
	}

	return predict.NewOrchestrator(opts...)
}

// trackSource serves trajectory backfill from the live window first,
// then from persisted history.
type trackSource struct {
	buffer *track.Buffer
	store  *storage.Store
}

func (t trackSource) RecentTrack(vesselID string, n int) ([]predict.TrackPoint, error) {
	points, err := t.buffer.RecentTrack(vesselID, n)
	if err == nil && len(points) > 0 {
		return points, nil
	}
	if t.store != nil {
		return t.store.RecentTrack(vesselID, n)
	}
	return points, err
}

// startAPIServer starts the prediction HTTP API
func startAPIServer(ctx context.Context, wg *sync.WaitGroup, c cfg.Settings, orch *predict.Orchestrator, buffer *track.Buffer, store *storage.Store) {
	var history api.PredictionLog
	if store != nil {
		history = store
	}
	server := api.NewServer(orch, trackSource{buffer: buffer, store: store}, history, c.ListenPort)

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown API server")
		}
	}()

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(ctx context.Context, c cfg.Settings) {
	go func() {
		mux := http.NewServeMux()

		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", c.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// startIngest starts the AIS stream and its report handlers when an
// API key is configured.
func startIngest(ctx context.Context, wg *sync.WaitGroup, c cfg.Settings, buffer *track.Buffer, store *storage.Store, m *metrics.Metrics) {
	if c.AISAPIKey == "" {
		log.Info().Msg("AIS ingest disabled, no API key configured")
		return
	}

	reports := make(chan ingest.PositionReport, 256)
	errors := make(chan error, 32)

	stream := ingest.NewStream(c.AISURL, c.AISAPIKey, c.AISBoundingBox)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := stream.Run(ctx, reports, errors, c.Ping); err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("AIS stream ended")
		}
	}()

	startErrorHandler(ctx, wg, errors, m)
	startReportHandler(ctx, wg, reports, buffer, store, m)
}

// startErrorHandler starts the background error handling goroutine
func startErrorHandler(ctx context.Context, wg *sync.WaitGroup, errors chan error, m *metrics.Metrics) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-errors:
				log.Error().Err(err).Msg("background error")
				m.WSReconnects.Inc()
				m.ErrorsTotal.Inc()
			}
		}
	}()
}

// startReportHandler feeds incoming position reports into the track
// window and persistent storage.
func startReportHandler(ctx context.Context, wg *sync.WaitGroup, reports chan ingest.PositionReport, buffer *track.Buffer, store *storage.Store, m *metrics.Metrics) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case r := <-reports:
				buffer.Add(r.VesselID, r.Point)
				m.PositionsReceived.Inc()

				if store != nil {
					if err := store.StoreTrackPoint(r.VesselID, r.Point); err != nil {
						log.Warn().Err(err).Str("vessel_id", r.VesselID).Msg("failed to persist track point")
						m.ErrorsTotal.Inc()
						continue
					}
					m.TracksStored.Inc()
				}
			}
		}
	}()
}

// waitForShutdown waits for shutdown signals and handles graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	// Wait for all goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
