package pipeline

import "time"

// Config contains column encoding pipeline configuration.
type Config struct {
	BatchSize      int    `yaml:"batch_size" mapstructure:"batch_size"`
	ProgressReport int    `yaml:"progress_report" mapstructure:"progress_report"`
	UpdateCache    bool   `yaml:"update_cache" mapstructure:"update_cache"`
	CreateIndex    bool   `yaml:"create_index" mapstructure:"create_index"`
	OutputPath     string `yaml:"output_path" mapstructure:"output_path"`
}

// DefaultConfig returns sensible pipeline defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      1000,
		ProgressReport: 1000,
		UpdateCache:    true,
		CreateIndex:    true,
	}
}

// Result summarizes one column encoding run.
type Result struct {
	Column       string        `json:"column"`
	Checkpoint   string        `json:"checkpoint"`
	TotalRows    int64         `json:"total_rows"`
	Encoded      int64         `json:"encoded"`
	CacheHits    int64         `json:"cache_hits"`
	Failed       int64         `json:"failed"`
	Duration     time.Duration `json:"duration"`
	EncodeTime   time.Duration `json:"encode_time"`
	DatabaseTime time.Duration `json:"database_time"`
	Errors       []string      `json:"errors,omitempty"`

	// Vectors holds the encoded matrix in input row order.
	Vectors [][]float32 `json:"-"`
}
