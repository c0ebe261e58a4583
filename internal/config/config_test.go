package config

import "testing"

func TestGetDefaults(t *testing.T) {
	cfg := GetDefaults()

	if cfg.Server.Port != 8094 {
		t.Errorf("port = %d, want 8094", cfg.Server.Port)
	}
	if cfg.Encoder.ModelName != "gpt2" {
		t.Errorf("model_name = %q, want gpt2", cfg.Encoder.ModelName)
	}
	if cfg.Encoder.SentEmbedder != "mean_norm" {
		t.Errorf("sent_embedder = %q, want mean_norm", cfg.Encoder.SentEmbedder)
	}
	if cfg.Encoder.MaxLength != 512 {
		t.Errorf("max_length = %d, want 512", cfg.Encoder.MaxLength)
	}

	if err := validateConfig(cfg); err != nil {
		t.Errorf("defaults should validate, got: %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = -1 }},
		{"bad sent_embedder", func(c *Config) { c.Encoder.SentEmbedder = "max_pool" }},
		{"bad device", func(c *Config) { c.Encoder.Device = "tpu" }},
		{"bad max_length", func(c *Config) { c.Encoder.MaxLength = 0 }},
		{"bad batch_size", func(c *Config) { c.Pipeline.BatchSize = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := GetDefaults()
			tc.mutate(cfg)
			if err := validateConfig(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidateConfigAcceptsLastToken(t *testing.T) {
	cfg := GetDefaults()
	cfg.Encoder.SentEmbedder = "last_token"
	if err := validateConfig(cfg); err != nil {
		t.Errorf("last_token should validate, got: %v", err)
	}
}
