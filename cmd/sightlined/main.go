// Command sightlined runs the assistive-vision session server.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sightline-ai/sightline/config"
	"github.com/sightline-ai/sightline/framecache"
	"github.com/sightline-ai/sightline/gateway"
	"github.com/sightline-ai/sightline/logger"
	"github.com/sightline-ai/sightline/media"
	"github.com/sightline-ai/sightline/metrics"
	"github.com/sightline-ai/sightline/orchestrator"
	"github.com/sightline-ai/sightline/server"
	"github.com/sightline-ai/sightline/storage"
	"github.com/sightline-ai/sightline/telemetry"
	"github.com/sightline-ai/sightline/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	logger.SetVerbose(*verbose)
	logger.Info("Starting sightlined", version.LogAttrs()...)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	stopTracing, err := telemetry.Setup(context.Background(), cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		logger.Error("Failed to set up tracing", "error", err)
		os.Exit(1)
	}

	srv, err := build(cfg)
	if err != nil {
		logger.Error("Failed to build server", "error", err)
		os.Exit(1)
	}

	httpServer := srv.NewHTTPServer(cfg.Server.Addr)
	exporter := metrics.NewExporter(cfg.Server.MetricsAddr)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("Listening", "addr", cfg.Server.Addr, "base_url", cfg.Server.BaseURL)
		errCh <- httpServer.ListenAndServe()
	}()
	go func() {
		errCh <- exporter.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Shutdown failed", "error", err)
	}
	if err := exporter.Stop(ctx); err != nil {
		logger.Error("Metrics shutdown failed", "error", err)
	}
	if err := stopTracing(ctx); err != nil {
		logger.Error("Trace shutdown failed", "error", err)
	}
	logger.Info("Stopped")
}

// build wires the pipeline from configuration.
func build(cfg *config.Config) (*server.Server, error) {
	decoder := media.NewDecoder(media.DecoderConfig{
		FFmpegPath:  cfg.Media.FFmpegPath,
		FFprobePath: cfg.Media.FFprobePath,
		Timeout:     cfg.Media.DecodeTimeout,
	})
	pool := media.NewPool(cfg.Media.PoolSize)
	processor := media.NewProcessor(decoder, pool)

	gw := newGateway(cfg)

	uploader, err := storage.NewLocalStore(cfg.Server.UploadDir)
	if err != nil {
		return nil, err
	}

	var cache framecache.Cache
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		cache = framecache.NewRedis(client, framecache.WithTTL(cfg.Cache.TTL))
	default:
		cache = framecache.NewMemory(cfg.Cache.TTL)
	}

	orch := orchestrator.New(processor, gw, uploader, cache, orchestrator.Config{
		Thresholds: orchestrator.Thresholds{
			VeryNearArea: cfg.Detect.VeryNearArea,
			NearArea:     cfg.Detect.NearArea,
			VeryFarArea:  cfg.Detect.VeryFarArea,
		},
		Obstacles:      cfg.Detect.Obstacles,
		PromptTemplate: cfg.PromptTemplate,
	})

	return server.New(server.Config{
		BaseURL:   cfg.Server.BaseURL,
		UploadDir: cfg.Server.UploadDir,
	}, orch), nil
}

// newGateway builds the Clarifai client, honoring a configured base URL.
func newGateway(cfg *config.Config) *gateway.Clarifai {
	var opts []gateway.ClarifaiOption
	if cfg.Gateway.BaseURL != "" {
		opts = append(opts, gateway.WithClarifaiBaseURL(cfg.Gateway.BaseURL))
	}
	return gateway.NewClarifai(gateway.ClarifaiConfig{
		APIKey:             cfg.Gateway.APIKey,
		UserID:             cfg.Gateway.UserID,
		AppID:              cfg.Gateway.AppID,
		RecognitionModel:   cfg.Gateway.RecognitionModel,
		DetectionModel:     cfg.Gateway.DetectionModel,
		TranscriptionModel: cfg.Gateway.TranscriptionModel,
		SpeechWorkflow:     cfg.Gateway.SynthesisWorkflow,
		SelectedConcepts:   cfg.Gateway.SelectedConcepts,
		MaxConcepts:        cfg.Gateway.MaxConcepts,
		MinValue:           cfg.Gateway.MinValue,
		RateLimit:          cfg.Gateway.RateLimit,
	}, opts...)
}
