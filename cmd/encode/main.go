package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/lumenml/textvec/internal/cache"
	"github.com/lumenml/textvec/internal/config"
	"github.com/lumenml/textvec/internal/device"
	"github.com/lumenml/textvec/internal/encoder"
	"github.com/lumenml/textvec/internal/hub"
	"github.com/lumenml/textvec/internal/logger"
	"github.com/lumenml/textvec/internal/pipeline"
	"github.com/lumenml/textvec/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "configs/default.yaml", "Configuration file path")
		inputFile  = flag.String("input", "", "Input dataset file (CSV, Parquet, or JSON)")
		column     = flag.String("column", "text", "Name of the text column to encode")
		modelName  = flag.String("model", "", "Model family (distilbert, albert, bart, gpt2); overrides config")
		outputFile = flag.String("output", "", "Parquet file to write encoded vectors to")
		batchSize  = flag.Int("batch-size", 0, "Batch size for processing; overrides config")
		skipCache  = flag.Bool("skip-cache", false, "Skip the Redis embedding cache")
		skipIndex  = flag.Bool("skip-index", false, "Skip creating the vector index")
		showStats  = flag.Bool("stats", false, "Show vector store statistics and exit")
	)
	flag.Parse()

	if *inputFile == "" && !*showStats {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input reviews.csv --column comment --model distilbert\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input posts.parquet --output vectors.parquet\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --stats\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *modelName != "" {
		cfg.Encoder.ModelName = *modelName
	}
	if *batchSize > 0 {
		cfg.Pipeline.BatchSize = *batchSize
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting column encoding",
		zap.String("config", *configPath),
		zap.String("model_name", cfg.Encoder.ModelName))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling operations...")
		cancel()
	}()

	services, err := initializeServices(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.cleanup()

	if *showStats {
		if err := showStoreStats(ctx, services); err != nil {
			log.Fatal("Failed to show stats", zap.Error(err))
		}
		return
	}

	if _, err := os.Stat(*inputFile); os.IsNotExist(err) {
		log.Fatal("Input file does not exist", zap.String("file", *inputFile))
	}

	pipelineConfig := &pipeline.Config{
		BatchSize:      cfg.Pipeline.BatchSize,
		ProgressReport: cfg.Pipeline.ProgressReport,
		UpdateCache:    cfg.Pipeline.UpdateCache && !*skipCache,
		CreateIndex:    cfg.Pipeline.CreateIndex && !*skipIndex,
		OutputPath:     *outputFile,
	}

	p := pipeline.New(services.enc, services.vectors, services.embCache, nil, pipelineConfig, log.WithComponent("pipeline").Logger)

	result, err := p.ProcessFile(ctx, *inputFile, *column)
	if err != nil {
		log.Fatal("Column encoding failed", zap.Error(err))
	}

	log.Info("Column encoding completed",
		zap.String("file", *inputFile),
		zap.String("column", result.Column),
		zap.String("checkpoint", result.Checkpoint),
		zap.Int64("total_rows", result.TotalRows),
		zap.Int64("encoded", result.Encoded),
		zap.Int64("cache_hits", result.CacheHits),
		zap.Int64("failed", result.Failed),
		zap.Duration("total_duration", result.Duration),
		zap.Duration("encode_time", result.EncodeTime),
		zap.Duration("database_time", result.DatabaseTime),
		zap.Float64("rows_per_second", float64(result.Encoded)/result.Duration.Seconds()))

	if len(result.Errors) > 0 {
		log.Warn("Encoding completed with errors", zap.Strings("errors", result.Errors))
	}
}

// services holds all initialized services
type services struct {
	enc      *encoder.Encoder
	vectors  *store.Store
	embCache *cache.EmbeddingCache
}

func (s *services) cleanup() {
	if s.enc != nil {
		s.enc.Close()
	}
	if s.vectors != nil {
		s.vectors.Close()
	}
	if s.embCache != nil {
		s.embCache.Close()
	}
}

// initializeServices prepares the encoder and the optional sinks.
func initializeServices(ctx context.Context, cfg *config.Config, log *logger.Logger) (*services, error) {
	services := &services{}

	fetcher := hub.NewFetcher(hub.Config{
		CacheDir:       cfg.Hub.CacheDir,
		BaseURL:        cfg.Hub.BaseURL,
		AutoDownload:   cfg.Hub.AutoDownload,
		RequestsPerSec: cfg.Hub.RequestsPerSec,
	}, log.WithComponent("hub").Logger)

	log.Info("Preparing encoder...")
	enc := encoder.New(encoder.Config{
		ModelName:       cfg.Encoder.ModelName,
		SentEmbedder:    cfg.Encoder.SentEmbedder,
		DesiredError:    cfg.Encoder.DesiredError,
		MaxTrainingTime: cfg.Encoder.MaxTrainingTime,
		CustomTrain:     cfg.Encoder.CustomTrain,
		MaxLength:       cfg.Encoder.MaxLength,
	}, fetcher, log.WithComponent("encoder").Logger,
		encoder.WithDevice(device.Select(cfg.Encoder.Device)))

	prepareCtx, cancel := context.WithTimeout(ctx, cfg.Hub.DownloadTimeout)
	defer cancel()
	if err := enc.Prepare(prepareCtx); err != nil {
		return nil, fmt.Errorf("failed to prepare encoder: %w", err)
	}
	services.enc = enc

	if cfg.Store.Enabled {
		log.Info("Initializing vector store...")
		vectors, err := store.NewStore(&store.Config{
			DatabaseURL:     cfg.Store.DatabaseURL,
			MaxOpenConns:    cfg.Store.MaxOpenConns,
			MaxIdleConns:    cfg.Store.MaxIdleConns,
			ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
		}, log.WithComponent("store").Logger)
		if err != nil {
			services.cleanup()
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		services.vectors = vectors
	}

	if cfg.Cache.Enabled {
		log.Info("Initializing embedding cache...")
		embCache, err := cache.New(&cache.Config{
			RedisURL:       cfg.Cache.RedisURL,
			MaxConnections: cfg.Cache.MaxConnections,
			MinIdleConns:   cfg.Cache.MinIdleConns,
			DefaultTTL:     cfg.Cache.DefaultTTL,
		}, log.WithComponent("cache").Logger)
		if err != nil {
			services.cleanup()
			return nil, fmt.Errorf("failed to initialize embedding cache: %w", err)
		}
		services.embCache = embCache
	}

	return services, nil
}

// showStoreStats displays current vector store statistics.
func showStoreStats(ctx context.Context, services *services) error {
	if services.vectors == nil {
		return fmt.Errorf("vector store is not enabled")
	}

	stats, err := services.vectors.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get store stats: %w", err)
	}

	fmt.Printf("\n=== Vector Store Statistics ===\n")
	fmt.Printf("Total Vectors:  %d\n", stats.TotalVectors)
	fmt.Printf("Columns:        %d\n", stats.ColumnCount)
	fmt.Printf("Checkpoints:    %d\n", stats.CheckpointCount)

	if services.embCache != nil {
		cacheStats := services.embCache.GetStats()
		fmt.Printf("\n=== Cache Statistics ===\n")
		fmt.Printf("Cache Hits:     %d\n", cacheStats.Hits)
		fmt.Printf("Cache Misses:   %d\n", cacheStats.Misses)
		fmt.Printf("Hit Rate:       %.1f%%\n", cacheStats.HitRate)
	}

	return nil
}
