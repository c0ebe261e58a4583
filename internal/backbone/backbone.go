// Package backbone loads a pretrained transformer body and runs forward
// passes producing per-token hidden states. Native inference runs through
// ONNX Runtime and is gated behind the 'onnx' build tag, matching the CGO
// boundary; the default build returns an explanatory error from the native
// loader so pure-Go builds still compile.
package backbone

import (
	"context"
	"errors"

	"github.com/lumenml/textvec/internal/device"
	"github.com/lumenml/textvec/internal/hub"
	"github.com/lumenml/textvec/internal/registry"
)

// Mode is the operating mode a backbone was prepared in.
type Mode string

const (
	// ModeEmbeddingsGenerator uses the backbone purely for feature
	// extraction, no gradient updates.
	ModeEmbeddingsGenerator Mode = "embeddings_generator"
	// ModeFineTunedClassifier attaches a sequence-classification head trained
	// on the target column.
	ModeFineTunedClassifier Mode = "fine_tuned_classifier"
)

// ErrTrainingUnavailable is returned when a caller requests the fine-tuning
// path. Loading the classifier head and training it on the target is not
// available yet; this is a hard stop, never a silent fallback to the
// embeddings path.
var ErrTrainingUnavailable = errors.New("custom training is not available for this model family")

// Backbone runs forward passes over token-id sequences. A backbone is a
// shared mutable compute resource: concurrent Forward calls against one
// instance are only safe if the underlying runtime serializes device access.
type Backbone interface {
	// Forward returns per-token hidden states with shape tokens×hidden for a
	// single input. There is no batch dimension.
	Forward(ctx context.Context, tokenIDs []int64) ([][]float32, error)
	// HiddenSize returns the embedding dimensionality of the model body.
	HiddenSize() int
	// Mode reports the operating mode the backbone was prepared in.
	Mode() Mode
	// To moves the model body and, if present, the fine-tuning head to the
	// given device. Idempotent.
	To(d device.Device) error
	// Close releases native resources.
	Close() error
}

// Loader produces a prepared backbone for a binding. The encoder facade takes
// a Loader so tests can substitute an in-memory implementation for the
// build-tagged native one.
type Loader func(ctx context.Context, binding registry.Binding, fetcher *hub.Fetcher, dev device.Device, customTrain bool) (Backbone, error)

// Load prepares the backbone for a binding. Requesting customTrain fails with
// ErrTrainingUnavailable; otherwise the embedding-only model body is loaded
// in embeddings-generator mode and placed on dev.
func Load(ctx context.Context, binding registry.Binding, fetcher *hub.Fetcher, dev device.Device, customTrain bool) (Backbone, error) {
	if customTrain {
		return nil, ErrTrainingUnavailable
	}
	return NewNative(ctx, binding, fetcher, dev)
}
