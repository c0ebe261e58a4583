package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lumenml/textvec/internal/cache"
	"github.com/lumenml/textvec/internal/config"
	"github.com/lumenml/textvec/internal/device"
	"github.com/lumenml/textvec/internal/encoder"
	"github.com/lumenml/textvec/internal/hub"
	"github.com/lumenml/textvec/internal/logger"
	"github.com/lumenml/textvec/internal/server"
	"github.com/lumenml/textvec/internal/store"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("textvec %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck {
		performHealthCheck()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting textvec",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
		zap.String("model_name", cfg.Encoder.ModelName),
	)

	fetcher := hub.NewFetcher(hub.Config{
		CacheDir:       cfg.Hub.CacheDir,
		BaseURL:        cfg.Hub.BaseURL,
		AutoDownload:   cfg.Hub.AutoDownload,
		RequestsPerSec: cfg.Hub.RequestsPerSec,
	}, log.WithComponent("hub").Logger)

	enc := encoder.New(encoder.Config{
		ModelName:       cfg.Encoder.ModelName,
		SentEmbedder:    cfg.Encoder.SentEmbedder,
		DesiredError:    cfg.Encoder.DesiredError,
		MaxTrainingTime: cfg.Encoder.MaxTrainingTime,
		CustomTrain:     cfg.Encoder.CustomTrain,
		MaxLength:       cfg.Encoder.MaxLength,
	}, fetcher, log.WithComponent("encoder").Logger,
		encoder.WithDevice(device.Select(cfg.Encoder.Device)))
	defer enc.Close()

	prepareCtx, cancel := context.WithTimeout(context.Background(), cfg.Hub.DownloadTimeout)
	if err := enc.Prepare(prepareCtx); err != nil {
		cancel()
		log.Fatal("Failed to prepare encoder", zap.Error(err))
	}
	cancel()

	var vectors *store.Store
	if cfg.Store.Enabled {
		vectors, err = store.NewStore(&store.Config{
			DatabaseURL:     cfg.Store.DatabaseURL,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
		}, log.WithComponent("store").Logger)
		if err != nil {
			log.Fatal("Failed to connect vector store", zap.Error(err))
		}
		defer vectors.Close()
	}

	var embCache *cache.EmbeddingCache
	if cfg.Cache.Enabled {
		embCache, err = cache.New(&cache.Config{
			RedisURL:       cfg.Cache.RedisURL,
			MaxConnections: cfg.Cache.MaxConnections,
			MinIdleConns:   cfg.Cache.MinIdleConns,
			DefaultTTL:     cfg.Cache.DefaultTTL,
		}, log.WithComponent("cache").Logger)
		if err != nil {
			log.Fatal("Failed to connect embedding cache", zap.Error(err))
		}
		defer embCache.Close()
	}

	srv := server.New(cfg, log, enc, vectors, embCache)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled:  cfg.Logging.File.Enabled,
			Path:     cfg.Logging.File.Path,
			MaxSize:  cfg.Logging.File.MaxSize,
			MaxAge:   cfg.Logging.File.MaxAge,
			Compress: cfg.Logging.File.Compress,
		}
	}
	return logger.New(loggerConfig)
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get("http://localhost:8094/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
