package encoder

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/lumenml/textvec/internal/backbone"
	"github.com/lumenml/textvec/internal/device"
	"github.com/lumenml/textvec/internal/hub"
	"github.com/lumenml/textvec/internal/registry"
)

// fakeTokenizer emits one id per byte plus a trailing sentinel, so empty text
// still produces a valid single-token sequence.
type fakeTokenizer struct{}

func (fakeTokenizer) Encode(text string) []int64 {
	ids := make([]int64, 0, len(text)+1)
	for _, b := range []byte(text) {
		ids = append(ids, int64(b))
	}
	return append(ids, 1)
}

// fakeBackbone produces deterministic hidden states: one row per token, each
// dimension derived from the token id.
type fakeBackbone struct {
	hiddenSize int
	mode       backbone.Mode
	moves      []device.Device
	closed     bool
}

func (f *fakeBackbone) Forward(ctx context.Context, tokenIDs []int64) ([][]float32, error) {
	if len(tokenIDs) == 0 {
		return nil, errors.New("empty token sequence")
	}
	hidden := make([][]float32, len(tokenIDs))
	for t, id := range tokenIDs {
		row := make([]float32, f.hiddenSize)
		for d := range row {
			row[d] = float32(id) + float32(d)/10
		}
		hidden[t] = row
	}
	return hidden, nil
}

func (f *fakeBackbone) HiddenSize() int     { return f.hiddenSize }
func (f *fakeBackbone) Mode() backbone.Mode { return f.mode }
func (f *fakeBackbone) To(d device.Device) error {
	f.moves = append(f.moves, d)
	return nil
}
func (f *fakeBackbone) Close() error {
	f.closed = true
	return nil
}

func fakeLoader(fb *fakeBackbone) backbone.Loader {
	return func(ctx context.Context, binding registry.Binding, fetcher *hub.Fetcher, dev device.Device, customTrain bool) (backbone.Backbone, error) {
		if customTrain {
			return nil, backbone.ErrTrainingUnavailable
		}
		return fb, nil
	}
}

func newTestEncoder(t *testing.T, config Config) (*Encoder, *fakeBackbone) {
	t.Helper()
	fb := &fakeBackbone{hiddenSize: 8, mode: backbone.ModeEmbeddingsGenerator}
	config.CustomTokenizer = fakeTokenizer{}
	e := New(config, nil, zap.NewNop(), WithLoader(fakeLoader(fb)), WithDevice(device.CPU))
	return e, fb
}

func strptr(s string) *string { return &s }

func TestLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("EncodeBeforePrepareFails", func(t *testing.T) {
		e, _ := newTestEncoder(t, Config{})
		_, err := e.Encode(ctx, []*string{strptr("hi")})
		if !errors.Is(err, ErrNotPrepared) {
			t.Errorf("err = %v, want ErrNotPrepared", err)
		}
	})

	t.Run("DoublePrepareFails", func(t *testing.T) {
		e, _ := newTestEncoder(t, Config{})
		if err := e.Prepare(ctx); err != nil {
			t.Fatalf("first Prepare failed: %v", err)
		}
		if err := e.Prepare(ctx); !errors.Is(err, ErrAlreadyPrepared) {
			t.Errorf("second Prepare err = %v, want ErrAlreadyPrepared", err)
		}
	})

	t.Run("CustomTrainUnimplemented", func(t *testing.T) {
		e, _ := newTestEncoder(t, Config{CustomTrain: true})
		err := e.Prepare(ctx)
		if !errors.Is(err, ErrUnimplemented) {
			t.Errorf("err = %v, want ErrUnimplemented", err)
		}
	})

	t.Run("DecodeAlwaysFails", func(t *testing.T) {
		e, _ := newTestEncoder(t, Config{})
		if _, err := e.Decode(nil, 100); !errors.Is(err, ErrUnimplemented) {
			t.Errorf("unprepared Decode err = %v, want ErrUnimplemented", err)
		}
		if err := e.Prepare(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := e.Decode([][]float32{{1, 2}}, 100); !errors.Is(err, ErrUnimplemented) {
			t.Errorf("prepared Decode err = %v, want ErrUnimplemented", err)
		}
	})
}

func TestEncode(t *testing.T) {
	ctx := context.Background()

	t.Run("RowCountAndOrderMatchInput", func(t *testing.T) {
		e, _ := newTestEncoder(t, Config{})
		if err := e.Prepare(ctx); err != nil {
			t.Fatal(err)
		}

		column := []*string{strptr("a"), strptr("bb"), strptr("ccc"), strptr("a")}
		got, err := e.Encode(ctx, column)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if len(got) != len(column) {
			t.Fatalf("rows = %d, want %d", len(got), len(column))
		}

		// Equal inputs must produce equal rows wherever they appear.
		if !reflect.DeepEqual(got[0], got[3]) {
			t.Error("identical inputs produced different rows")
		}
		// Distinct inputs land in their own positions.
		if reflect.DeepEqual(got[0], got[1]) {
			t.Error("distinct inputs produced identical rows")
		}
	})

	t.Run("NilAndEmptyEncodeIdentically", func(t *testing.T) {
		e, _ := newTestEncoder(t, Config{})
		if err := e.Prepare(ctx); err != nil {
			t.Fatal(err)
		}

		got, err := e.Encode(ctx, []*string{nil, strptr("")})
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if !reflect.DeepEqual(got[0], got[1]) {
			t.Errorf("nil row %v != empty row %v", got[0], got[1])
		}
		if len(got[0]) != e.Dimensions() {
			t.Errorf("nil row width = %d, want %d", len(got[0]), e.Dimensions())
		}
	})

	t.Run("EndToEndColumn", func(t *testing.T) {
		e, _ := newTestEncoder(t, Config{ModelName: "gpt2"})
		if err := e.Prepare(ctx); err != nil {
			t.Fatal(err)
		}

		column := []*string{strptr("hello world"), nil, strptr("a longer sentence with several tokens")}
		got, err := e.Encode(ctx, column)
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("rows = %d, want 3", len(got))
		}

		empty, err := e.Encode(ctx, []*string{strptr("")})
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got[1], empty[0]) {
			t.Error("nil row does not equal the empty-string encoding")
		}
		for i, row := range got {
			if len(row) != e.Dimensions() {
				t.Errorf("row %d width = %d, want %d", i, len(row), e.Dimensions())
			}
		}
	})

	t.Run("RejectsNonEmbeddingsMode", func(t *testing.T) {
		fb := &fakeBackbone{hiddenSize: 8, mode: backbone.ModeFineTunedClassifier}
		e := New(Config{CustomTokenizer: fakeTokenizer{}}, nil, zap.NewNop(),
			WithLoader(fakeLoader(fb)), WithDevice(device.CPU))
		if err := e.Prepare(ctx); err != nil {
			t.Fatal(err)
		}
		if _, err := e.Encode(ctx, []*string{strptr("x")}); err == nil {
			t.Error("Encode succeeded in classifier mode")
		}
	})
}

func TestDeviceRelocation(t *testing.T) {
	ctx := context.Background()
	e, fb := newTestEncoder(t, Config{})
	if err := e.Prepare(ctx); err != nil {
		t.Fatal(err)
	}

	if got := e.To(device.CUDA).To(device.CUDA); got != e {
		t.Error("To did not return the encoder for chaining")
	}
	if len(fb.moves) != 2 || fb.moves[0] != device.CUDA || fb.moves[1] != device.CUDA {
		t.Errorf("backbone moves = %v", fb.moves)
	}
}

func TestDefaults(t *testing.T) {
	e := New(Config{}, nil, zap.NewNop())
	if e.Binding().Family != registry.DefaultFamily {
		t.Errorf("default family = %q, want %q", e.Binding().Family, registry.DefaultFamily)
	}
	if e.Name() != "gpt2 text encoder" {
		t.Errorf("Name = %q", e.Name())
	}

	unknown := New(Config{ModelName: "t5"}, nil, zap.NewNop())
	if unknown.Binding().Family != registry.DefaultFamily {
		t.Errorf("unknown family resolved to %q, want fallback", unknown.Binding().Family)
	}
}
