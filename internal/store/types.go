package store

import "time"

// ColumnVector is one encoded row of a text column.
type ColumnVector struct {
	ID         int64     `db:"id" json:"id"`
	ColumnName string    `db:"column_name" json:"column_name"`
	RowIndex   int64     `db:"row_index" json:"row_index"`
	TextHash   string    `db:"text_hash" json:"text_hash"`
	Checkpoint string    `db:"checkpoint" json:"checkpoint"`
	Embedding  []float32 `db:"embedding" json:"embedding"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// SimilarityResult is one vector similarity search hit.
type SimilarityResult struct {
	Vector     *ColumnVector `json:"vector"`
	Similarity float32       `json:"similarity"`
	Distance   float32       `json:"distance"`
}

// SearchOptions contains options for vector similarity search.
type SearchOptions struct {
	Limit         int     `json:"limit"`
	MinSimilarity float32 `json:"min_similarity"`
	ColumnFilter  string  `json:"column_filter,omitempty"`
}

// Stats represents storage statistics.
type Stats struct {
	TotalVectors    int64 `json:"total_vectors"`
	ColumnCount     int64 `json:"column_count"`
	CheckpointCount int64 `json:"checkpoint_count"`
}

// BatchInsertResult is the outcome of a batch insert.
type BatchInsertResult struct {
	Inserted   int64         `json:"inserted"`
	Duplicates int64         `json:"duplicates"`
	Failed     int64         `json:"failed"`
	Duration   time.Duration `json:"duration"`
}
