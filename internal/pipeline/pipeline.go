// Package pipeline drives end-to-end column encoding: read a text column from
// a dataset file, run it through the encoder in batches, and fan the vectors
// out to the store, the cache, and an optional Parquet output.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lumenml/textvec/internal/cache"
	"github.com/lumenml/textvec/internal/dataset"
	"github.com/lumenml/textvec/internal/encoder"
	"github.com/lumenml/textvec/internal/events"
	"github.com/lumenml/textvec/internal/store"
)

// Pipeline encodes dataset columns with a prepared encoder. Store, cache, and
// events are all optional; a nil field disables that sink.
type Pipeline struct {
	enc       *encoder.Encoder
	vectors   *store.Store
	embCache  *cache.EmbeddingCache
	eventHub  *events.Hub
	config    *Config
	logger    *zap.Logger
	startTime time.Time
}

// New creates a column encoding pipeline around a prepared encoder.
func New(
	enc *encoder.Encoder,
	vectors *store.Store,
	embCache *cache.EmbeddingCache,
	eventHub *events.Hub,
	config *Config,
	logger *zap.Logger,
) *Pipeline {
	if config == nil {
		config = DefaultConfig()
	}
	return &Pipeline{
		enc:      enc,
		vectors:  vectors,
		embCache: embCache,
		eventHub: eventHub,
		config:   config,
		logger:   logger,
	}
}

// ProcessFile reads the named column from a dataset file and encodes it.
func (p *Pipeline) ProcessFile(ctx context.Context, filePath, column string) (*Result, error) {
	format := dataset.DetectFileFormat(filePath)
	p.logger.Info("Starting encoding pipeline",
		zap.String("file", filePath),
		zap.String("column", column),
		zap.String("format", string(format)),
		zap.Int("batch_size", p.config.BatchSize))

	texts, err := dataset.ReadColumn(filePath, column)
	if err != nil {
		return nil, fmt.Errorf("failed to read column %q: %w", column, err)
	}

	return p.ProcessColumn(ctx, column, texts)
}

// ProcessColumn encodes a column of nullable texts. Output rows stay in input
// order regardless of cache hits.
func (p *Pipeline) ProcessColumn(ctx context.Context, column string, texts []*string) (*Result, error) {
	p.startTime = time.Now()
	checkpoint := p.enc.Binding().Checkpoint
	result := &Result{
		Column:     column,
		Checkpoint: checkpoint,
		TotalRows:  int64(len(texts)),
		Vectors:    make([][]float32, len(texts)),
	}

	for offset := 0; offset < len(texts); offset += p.config.BatchSize {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		end := offset + p.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		if err := p.processBatch(ctx, column, texts[offset:end], offset, result); err != nil {
			result.Failed += int64(end - offset)
			result.Errors = append(result.Errors, err.Error())
			p.logger.Error("Batch encoding failed",
				zap.String("column", column),
				zap.Int("offset", offset),
				zap.Error(err))
			continue
		}

		result.Encoded += int64(end - offset)
		if p.config.ProgressReport > 0 && result.Encoded%int64(p.config.ProgressReport) == 0 {
			p.reportProgress(result)
		}
	}

	result.Duration = time.Since(p.startTime)

	if p.config.OutputPath != "" {
		if err := dataset.WriteVectors(p.config.OutputPath, column, checkpoint, result.Vectors); err != nil {
			result.Errors = append(result.Errors, err.Error())
			p.logger.Error("Failed to write output file",
				zap.String("path", p.config.OutputPath),
				zap.Error(err))
		} else {
			p.logger.Info("Output file written",
				zap.String("path", p.config.OutputPath),
				zap.Int("rows", len(result.Vectors)))
		}
	}

	if p.config.CreateIndex && p.vectors != nil && result.Encoded > 1000 {
		indexStart := time.Now()
		if err := p.vectors.CreateIndex(ctx); err != nil {
			p.logger.Warn("Failed to create vector index", zap.Error(err))
		} else {
			p.logger.Info("Vector index created", zap.Duration("duration", time.Since(indexStart)))
		}
	}

	if p.eventHub != nil {
		p.eventHub.BroadcastJobDone(events.JobDoneEvent{
			Column:      column,
			Checkpoint:  checkpoint,
			RowsEncoded: result.Encoded,
			Failed:      result.Failed > 0,
		})
	}

	p.logger.Info("Encoding pipeline completed",
		zap.String("column", column),
		zap.Int64("total_rows", result.TotalRows),
		zap.Int64("encoded", result.Encoded),
		zap.Int64("cache_hits", result.CacheHits),
		zap.Int64("failed", result.Failed),
		zap.Duration("total_duration", result.Duration),
		zap.Duration("encode_time", result.EncodeTime),
		zap.Duration("database_time", result.DatabaseTime))

	return result, nil
}

// processBatch encodes one slice of the column. Cached rows skip the forward
// pass; the rest go through the encoder in a single call and land back in
// their original positions.
func (p *Pipeline) processBatch(ctx context.Context, column string, batch []*string, offset int, result *Result) error {
	checkpoint := p.enc.Binding().Checkpoint

	missing := make([]*string, 0, len(batch))
	missingIdx := make([]int, 0, len(batch))
	for i, cell := range batch {
		if p.embCache != nil {
			cached, err := p.embCache.Get(ctx, checkpoint, cellText(cell))
			if err != nil {
				p.logger.Warn("Cache lookup failed", zap.Error(err))
			} else if cached != nil {
				result.Vectors[offset+i] = cached
				result.CacheHits++
				continue
			}
		}
		missing = append(missing, cell)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		encodeStart := time.Now()
		encoded, err := p.enc.Encode(ctx, missing)
		if err != nil {
			return fmt.Errorf("column encoding failed: %w", err)
		}
		result.EncodeTime += time.Since(encodeStart)

		for i, vec := range encoded {
			result.Vectors[offset+missingIdx[i]] = vec
		}

		if p.config.UpdateCache && p.embCache != nil {
			for i, vec := range encoded {
				if err := p.embCache.Set(ctx, checkpoint, cellText(missing[i]), vec); err != nil {
					p.logger.Warn("Cache update failed", zap.Error(err))
					break
				}
			}
		}
	}

	if p.vectors != nil {
		rows := make([]*store.ColumnVector, len(batch))
		for i, cell := range batch {
			rows[i] = &store.ColumnVector{
				ColumnName: column,
				RowIndex:   int64(offset + i),
				TextHash:   computeTextHash(cellText(cell)),
				Checkpoint: checkpoint,
				Embedding:  result.Vectors[offset+i],
			}
		}

		dbStart := time.Now()
		if _, err := p.vectors.BatchInsert(ctx, rows); err != nil {
			return fmt.Errorf("database batch insert failed: %w", err)
		}
		result.DatabaseTime += time.Since(dbStart)
	}

	return nil
}

// reportProgress logs and broadcasts current throughput.
func (p *Pipeline) reportProgress(result *Result) {
	elapsed := time.Since(p.startTime)
	rate := float64(result.Encoded) / elapsed.Seconds()

	p.logger.Info("Encoding progress",
		zap.String("column", result.Column),
		zap.Int64("rows_encoded", result.Encoded),
		zap.Int64("rows_total", result.TotalRows),
		zap.Int64("cache_hits", result.CacheHits),
		zap.Float64("rate_per_sec", rate),
		zap.Duration("elapsed", elapsed))

	if p.eventHub != nil {
		p.eventHub.BroadcastProgress(events.ProgressEvent{
			Column:      result.Column,
			Checkpoint:  result.Checkpoint,
			RowsEncoded: result.Encoded,
			RowsTotal:   result.TotalRows,
			RowsPerSec:  rate,
			CacheHits:   result.CacheHits,
			ElapsedMS:   elapsed.Milliseconds(),
		})
	}
}

// cellText maps a missing cell to the empty string, matching the encoder's
// own null handling so cache keys stay consistent.
func cellText(cell *string) string {
	if cell == nil {
		return ""
	}
	return *cell
}

// computeTextHash computes the SHA-256 hash of the given text.
func computeTextHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}
