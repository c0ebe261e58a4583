// Package store persists encoded column vectors in PostgreSQL with the
// pgvector extension, keeping row order so downstream predictors can join
// vectors back to their source rows.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Config contains database configuration.
type Config struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// Store handles column vector storage operations.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewStore connects to PostgreSQL and verifies the pgvector extension.
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	s := &Store{db: db, logger: logger}

	if err := s.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("vector store initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns))

	return s, nil
}

// initialize checks connectivity and the pgvector extension.
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var extensionExists bool
	query := "SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')"
	if err := s.db.GetContext(ctx, &extensionExists, query); err != nil {
		return fmt.Errorf("failed to check pgvector extension: %w", err)
	}
	if !extensionExists {
		return fmt.Errorf("pgvector extension is not installed")
	}

	// The embedding column stays untyped so one table serves every model
	// family; the ivfflat index fixes the dimension when it is created.
	schema := `
		CREATE TABLE IF NOT EXISTS column_vectors (
			id BIGSERIAL PRIMARY KEY,
			column_name TEXT NOT NULL,
			row_index BIGINT NOT NULL,
			text_hash TEXT NOT NULL,
			checkpoint TEXT NOT NULL,
			embedding VECTOR NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (column_name, row_index, checkpoint)
		)`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create column_vectors table: %w", err)
	}

	return nil
}

// Insert adds a single column vector.
func (s *Store) Insert(ctx context.Context, v *ColumnVector) error {
	query := `
		INSERT INTO column_vectors (column_name, row_index, text_hash, checkpoint, embedding)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		v.ColumnName,
		v.RowIndex,
		v.TextHash,
		v.Checkpoint,
		formatEmbedding(v.Embedding),
	).Scan(&v.ID, &v.CreatedAt)

	if err != nil {
		s.logger.Error("failed to insert vector",
			zap.Error(err),
			zap.String("column", v.ColumnName),
			zap.Int64("row", v.RowIndex))
		return fmt.Errorf("failed to insert vector: %w", err)
	}
	return nil
}

// BatchInsert adds multiple column vectors in one statement, skipping rows
// already stored for the same column/row/checkpoint.
func (s *Store) BatchInsert(ctx context.Context, vectors []*ColumnVector) (*BatchInsertResult, error) {
	if len(vectors) == 0 {
		return &BatchInsertResult{}, nil
	}

	start := time.Now()
	result := &BatchInsertResult{}

	valueStrings := make([]string, 0, len(vectors))
	valueArgs := make([]interface{}, 0, len(vectors)*5)
	for i, v := range vectors {
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)", i*5+1, i*5+2, i*5+3, i*5+4, i*5+5))
		valueArgs = append(valueArgs,
			v.ColumnName, v.RowIndex, v.TextHash, v.Checkpoint, formatEmbedding(v.Embedding))
	}

	query := fmt.Sprintf(`
		INSERT INTO column_vectors (column_name, row_index, text_hash, checkpoint, embedding)
		VALUES %s
		ON CONFLICT (column_name, row_index, checkpoint) DO NOTHING`,
		strings.Join(valueStrings, ","))

	res, err := s.db.ExecContext(ctx, query, valueArgs...)
	if err != nil {
		result.Failed = int64(len(vectors))
		s.logger.Error("batch insert failed", zap.Error(err))
		return result, fmt.Errorf("batch insert failed: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		s.logger.Warn("could not get rows affected", zap.Error(err))
		inserted = int64(len(vectors))
	}

	result.Inserted = inserted
	result.Duplicates = int64(len(vectors)) - inserted
	result.Duration = time.Since(start)

	s.logger.Debug("batch insert completed",
		zap.Int64("inserted", result.Inserted),
		zap.Int64("duplicates_skipped", result.Duplicates),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// FindSimilar returns stored vectors closest to the given embedding by cosine
// distance.
func (s *Store) FindSimilar(ctx context.Context, embedding []float32, options *SearchOptions) ([]*SimilarityResult, error) {
	if options == nil {
		options = &SearchOptions{Limit: 5, MinSimilarity: 0.7}
	}

	embeddingStr := formatEmbedding(embedding)

	whereClause := "WHERE (1 - (embedding <=> $1)) >= $2"
	args := []interface{}{embeddingStr, options.MinSimilarity}
	argIndex := 3

	if options.ColumnFilter != "" {
		whereClause += fmt.Sprintf(" AND column_name = $%d", argIndex)
		args = append(args, options.ColumnFilter)
		argIndex++
	}

	query := fmt.Sprintf(`
		SELECT
			id, column_name, row_index, text_hash, checkpoint, embedding, created_at,
			(1 - (embedding <=> $1)) as similarity,
			(embedding <=> $1) as distance
		FROM column_vectors
		%s
		ORDER BY embedding <=> $1
		LIMIT $%d`, whereClause, argIndex)
	args = append(args, options.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("similarity search failed", zap.Error(err))
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	defer rows.Close()

	var results []*SimilarityResult
	for rows.Next() {
		var result SimilarityResult
		var v ColumnVector
		var embeddingStr string

		err := rows.Scan(
			&v.ID, &v.ColumnName, &v.RowIndex, &v.TextHash, &v.Checkpoint,
			&embeddingStr, &v.CreatedAt,
			&result.Similarity, &result.Distance,
		)
		if err != nil {
			s.logger.Error("failed to scan similarity result", zap.Error(err))
			continue
		}

		v.Embedding, err = parseEmbedding(embeddingStr)
		if err != nil {
			s.logger.Error("failed to parse embedding", zap.Error(err))
			continue
		}

		result.Vector = &v
		results = append(results, &result)
	}

	return results, rows.Err()
}

// GetStats returns storage statistics.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	query := `
		SELECT COUNT(*), COUNT(DISTINCT column_name), COUNT(DISTINCT checkpoint)
		FROM column_vectors`
	err := s.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalVectors, &stats.ColumnCount, &stats.CheckpointCount)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get vector stats: %w", err)
	}

	return stats, nil
}

// CreateIndex creates the cosine similarity index once enough vectors exist.
func (s *Store) CreateIndex(ctx context.Context) error {
	var count int64
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM column_vectors"); err != nil {
		return fmt.Errorf("failed to count vectors: %w", err)
	}

	if count < 1000 {
		s.logger.Info("skipping index creation, not enough vectors", zap.Int64("count", count))
		return nil
	}

	query := `
		CREATE INDEX CONCURRENTLY IF NOT EXISTS idx_column_vectors_embedding
		ON column_vectors USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	s.logger.Info("vector similarity index created", zap.Int64("vector_count", count))
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// formatEmbedding converts a float32 slice to the pgvector text format.
func formatEmbedding(embedding []float32) string {
	if len(embedding) == 0 {
		return "[]"
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// parseEmbedding converts the pgvector text format back to a float32 slice.
func parseEmbedding(embeddingStr string) ([]float32, error) {
	embeddingStr = strings.Trim(embeddingStr, "[]")
	if embeddingStr == "" {
		return []float32{}, nil
	}

	parts := strings.Split(embeddingStr, ",")
	embedding := make([]float32, len(parts))
	for i, part := range parts {
		var val float32
		if _, err := fmt.Sscanf(strings.TrimSpace(part), "%g", &val); err != nil {
			return nil, fmt.Errorf("failed to parse embedding value: %w", err)
		}
		embedding[i] = val
	}
	return embedding, nil
}

// maskDatabaseURL masks the password in a database URL for logging.
func maskDatabaseURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
