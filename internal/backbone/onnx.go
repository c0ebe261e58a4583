//go:build onnx
// +build onnx

package backbone

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/lumenml/textvec/internal/device"
	"github.com/lumenml/textvec/internal/hub"
	"github.com/lumenml/textvec/internal/registry"
)

var ortInitOnce sync.Once

// onnxBackbone implements Backbone using ONNX Runtime (via yalue/onnxruntime_go).
type onnxBackbone struct {
	binding   registry.Binding
	modelPath string
	session   *ort.DynamicAdvancedSession
	// head is the optional fine-tuning head; nil in embeddings-generator mode
	// but still relocated by To when present.
	head *ort.DynamicAdvancedSession
	dev  device.Device
	mode Mode
	mu   sync.Mutex
}

// NewNative loads the embedding-only model body through ONNX Runtime and
// places it on dev. Requires build tag 'onnx'.
func NewNative(ctx context.Context, binding registry.Binding, fetcher *hub.Fetcher, dev device.Device) (Backbone, error) {
	ortInitOnce.Do(func() {
		if shlib := os.Getenv("ONNXRUNTIME_SHARED_LIB"); shlib != "" {
			ort.SetSharedLibraryPath(shlib)
		}
	})
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("onnx runtime environment init failed: %w", err)
		}
	}

	modelPath, err := fetcher.Resolve(ctx, binding.Checkpoint, binding.ModelFile)
	if err != nil {
		return nil, err
	}

	b := &onnxBackbone{
		binding:   binding,
		modelPath: modelPath,
		dev:       dev,
		mode:      ModeEmbeddingsGenerator,
	}
	if err := b.openSession(); err != nil {
		return nil, err
	}
	return b, nil
}

// openSession (re)creates the inference session on the current device.
func (b *onnxBackbone) openSession() error {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	if b.dev == device.CUDA {
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return fmt.Errorf("failed to create CUDA provider options: %w", err)
		}
		defer cudaOpts.Destroy()
		if err := options.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			return fmt.Errorf("failed to enable CUDA execution: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(
		b.modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"last_hidden_state"},
		options,
	)
	if err != nil {
		return fmt.Errorf("failed to create inference session for %s: %w", b.binding.Checkpoint, err)
	}
	b.session = session
	return nil
}

// Forward runs one forward pass for a single token-id sequence and returns
// per-token hidden states with shape tokens×hidden.
func (b *onnxBackbone) Forward(ctx context.Context, tokenIDs []int64) ([][]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil, fmt.Errorf("backbone session is closed")
	}

	seqLen := len(tokenIDs)
	if seqLen == 0 {
		return nil, fmt.Errorf("empty token sequence")
	}

	shape := ort.NewShape(1, int64(seqLen))
	idsTensor, err := ort.NewTensor(shape, tokenIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	mask := make([]int64, seqLen)
	for i := range mask {
		mask[i] = 1
	}
	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	outputs := make([]ort.Value, 1)
	if err := b.session.Run([]ort.Value{idsTensor, maskTensor}, outputs); err != nil {
		return nil, fmt.Errorf("forward pass failed: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			_ = outputs[0].Destroy()
		}
	}()

	outTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output type (want float32 tensor)")
	}

	data := outTensor.GetData()
	outShape := outTensor.GetShape()
	if len(outShape) != 3 || outShape[0] != 1 {
		return nil, fmt.Errorf("unexpected hidden state shape %v", outShape)
	}
	tokens := int(outShape[1])
	dims := int(outShape[2])
	if dims != b.binding.HiddenSize {
		return nil, fmt.Errorf("unexpected hidden dims %d (want %d)", dims, b.binding.HiddenSize)
	}
	if len(data) != tokens*dims {
		return nil, fmt.Errorf("unexpected flat data length %d for shape %v", len(data), outShape)
	}

	hidden := make([][]float32, tokens)
	for t := 0; t < tokens; t++ {
		row := make([]float32, dims)
		copy(row, data[t*dims:(t+1)*dims])
		hidden[t] = row
	}
	return hidden, nil
}

func (b *onnxBackbone) HiddenSize() int { return b.binding.HiddenSize }

func (b *onnxBackbone) Mode() Mode { return b.mode }

// To relocates the model body and the fine-tuning head (when present) by
// rebuilding their sessions against the target device. Moving to the current
// device is a no-op.
func (b *onnxBackbone) To(d device.Device) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if d == b.dev {
		return nil
	}

	if b.session != nil {
		b.session.Destroy()
		b.session = nil
	}
	if b.head != nil {
		b.head.Destroy()
		b.head = nil
	}

	b.dev = d
	return b.openSession()
}

// Close releases the session; the shared runtime environment stays up for
// other backbones in the process.
func (b *onnxBackbone) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != nil {
		b.session.Destroy()
		b.session = nil
	}
	if b.head != nil {
		b.head.Destroy()
		b.head = nil
	}
	return nil
}
