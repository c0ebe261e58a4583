// Package encoder turns a raw text column into fixed-size feature vectors
// using a pretrained language model. The facade ties together family
// resolution, tokenization, backbone forward passes, and sentence pooling
// behind a prepare-once lifecycle.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lumenml/textvec/internal/backbone"
	"github.com/lumenml/textvec/internal/device"
	"github.com/lumenml/textvec/internal/hub"
	"github.com/lumenml/textvec/internal/pooling"
	"github.com/lumenml/textvec/internal/registry"
	"github.com/lumenml/textvec/internal/tokenizer"
)

// Config is the construction-time configuration of an Encoder. It is fixed
// after New; the binding it resolves to never changes for the instance.
type Config struct {
	// IsTarget marks this column as the prediction target.
	IsTarget bool
	// ModelName keys into the model registry. Unknown names fall back to the
	// default family.
	ModelName string
	// DesiredError is the convergence threshold for the training path; unused
	// at inference time.
	DesiredError float64
	// MaxTrainingTime is the training budget; recorded but enforced by the
	// training loop, not here.
	MaxTrainingTime time.Duration
	// CustomTrain requests fine-tuning on the target column. The path is not
	// implemented and makes Prepare fail.
	CustomTrain bool
	// CustomTokenizer, when set, is used as-is instead of the checkpoint
	// tokenizer.
	CustomTokenizer tokenizer.Tokenizer
	// SentEmbedder selects the sentence pooling strategy by name.
	SentEmbedder string
	// MaxLength truncates token sequences; zero means no truncation.
	MaxLength int
}

// Encoder converts a text column into one sentence vector per input. The
// zero value is not usable; construct with New. An instance is not safe for
// concurrent Prepare/Encode calls: the backbone is a shared mutable compute
// resource.
type Encoder struct {
	name     string
	config   Config
	binding  registry.Binding
	embed    pooling.Strategy
	fetcher  *hub.Fetcher
	load     backbone.Loader
	logger   *zap.Logger
	dev      device.Device

	tok      tokenizer.Tokenizer
	model    backbone.Backbone
	prepared bool
}

// Option customizes encoder construction.
type Option func(*Encoder)

// WithLoader replaces the backbone loader. Tests use it to substitute an
// in-memory backbone for the build-tagged native one.
func WithLoader(load backbone.Loader) Option {
	return func(e *Encoder) { e.load = load }
}

// WithDevice pins the compute device instead of auto-selecting it.
func WithDevice(dev device.Device) Option {
	return func(e *Encoder) { e.dev = dev }
}

// New constructs an encoder for a model family. The family binding and
// pooling strategy are resolved once here and stay fixed for the lifetime of
// the instance.
func New(config Config, fetcher *hub.Fetcher, logger *zap.Logger, opts ...Option) *Encoder {
	if config.ModelName == "" {
		config.ModelName = registry.DefaultFamily
	}
	if config.SentEmbedder == "" {
		config.SentEmbedder = pooling.MeanNorm
	}

	e := &Encoder{
		name:    config.ModelName + " text encoder",
		config:  config,
		binding: registry.Resolve(config.ModelName),
		embed:   pooling.Resolve(config.SentEmbedder),
		fetcher: fetcher,
		load:    backbone.Load,
		logger:  logger,
		dev:     device.Select("auto"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the human-readable encoder name.
func (e *Encoder) Name() string { return e.name }

// IsTarget reports whether this column is the prediction target.
func (e *Encoder) IsTarget() bool { return e.config.IsTarget }

// Binding returns the model binding resolved at construction.
func (e *Encoder) Binding() registry.Binding { return e.binding }

// Dimensions returns the width of produced sentence vectors.
func (e *Encoder) Dimensions() int { return e.binding.HiddenSize }

// Prepare resolves the tokenizer and loads the backbone, transitioning the
// encoder to its prepared state. It runs exactly once; a second call fails
// with ErrAlreadyPrepared. With CustomTrain set it fails with
// ErrUnimplemented after tokenizer resolution, never silently falling back
// to the embeddings path.
func (e *Encoder) Prepare(ctx context.Context) error {
	if e.prepared {
		return ErrAlreadyPrepared
	}

	tok, err := tokenizer.Resolve(ctx, e.config.CustomTokenizer, e.binding, e.fetcher, e.config.MaxLength)
	if err != nil {
		return err
	}
	e.tok = tok

	model, err := e.load(ctx, e.binding, e.fetcher, e.dev, e.config.CustomTrain)
	if err != nil {
		if errors.Is(err, backbone.ErrTrainingUnavailable) {
			return fmt.Errorf("%w: %v", ErrUnimplemented, err)
		}
		return err
	}
	e.model = model

	e.prepared = true
	e.logger.Info("encoder prepared",
		zap.String("encoder", e.name),
		zap.String("checkpoint", e.binding.Checkpoint),
		zap.String("mode", string(model.Mode())),
		zap.String("device", e.dev.String()),
		zap.Int("dimensions", e.binding.HiddenSize))
	return nil
}

// Encode converts a column of nullable texts into a dense matrix of sentence
// vectors, one row per input in input order. Nil entries encode as the empty
// string rather than propagating. Inputs run strictly sequentially, one
// forward pass each.
func (e *Encoder) Encode(ctx context.Context, column []*string) ([][]float32, error) {
	if !e.prepared {
		return nil, ErrNotPrepared
	}
	if e.model.Mode() != backbone.ModeEmbeddingsGenerator {
		return nil, fmt.Errorf("encode requires %s mode, backbone is in %s", backbone.ModeEmbeddingsGenerator, e.model.Mode())
	}

	encoded := make([][]float32, 0, len(column))
	for _, cell := range column {
		text := ""
		if cell != nil {
			text = *cell
		}

		hidden, err := e.model.Forward(ctx, e.tok.Encode(text))
		if err != nil {
			return nil, fmt.Errorf("forward pass failed at row %d: %w", len(encoded), err)
		}

		encoded = append(encoded, e.embed(hidden))
	}

	return encoded, nil
}

// Decode would convert embeddings back to text; it is out of scope for this
// component and always fails.
func (e *Encoder) Decode(encoded [][]float32, maxLength int) ([]string, error) {
	return nil, fmt.Errorf("%w: decoding embeddings to text", ErrUnimplemented)
}

// To relocates the backbone (and its fine-tuning head, when present) to the
// given device and returns the encoder for chaining. Before Prepare it only
// records the device for the upcoming load.
func (e *Encoder) To(dev device.Device) *Encoder {
	e.dev = dev
	if e.model != nil {
		if err := e.model.To(dev); err != nil {
			e.logger.Error("device relocation failed",
				zap.String("encoder", e.name),
				zap.String("device", dev.String()),
				zap.Error(err))
		}
	}
	return e
}

// Close releases backbone resources.
func (e *Encoder) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}
