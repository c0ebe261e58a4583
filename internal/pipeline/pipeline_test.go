package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/lumenml/textvec/internal/backbone"
	"github.com/lumenml/textvec/internal/device"
	"github.com/lumenml/textvec/internal/encoder"
	"github.com/lumenml/textvec/internal/hub"
	"github.com/lumenml/textvec/internal/registry"
)

type fakeTokenizer struct{}

func (fakeTokenizer) Encode(text string) []int64 {
	ids := []int64{1}
	for _, b := range []byte(text) {
		ids = append(ids, int64(b))
	}
	return ids
}

type fakeBackbone struct{}

func (fakeBackbone) Forward(ctx context.Context, ids []int64) ([][]float32, error) {
	hidden := make([][]float32, len(ids))
	for i, id := range ids {
		hidden[i] = []float32{float32(id), float32(id) * 2, float32(id) * 3, float32(id) * 4}
	}
	return hidden, nil
}

func (fakeBackbone) HiddenSize() int              { return 4 }
func (fakeBackbone) Mode() backbone.Mode          { return backbone.ModeEmbeddingsGenerator }
func (fakeBackbone) To(dev device.Device) error   { return nil }
func (fakeBackbone) Close() error                 { return nil }

func fakeLoader(ctx context.Context, binding registry.Binding, fetcher *hub.Fetcher, dev device.Device, customTrain bool) (backbone.Backbone, error) {
	if customTrain {
		return nil, backbone.ErrTrainingUnavailable
	}
	return fakeBackbone{}, nil
}

func preparedEncoder(t *testing.T) *encoder.Encoder {
	t.Helper()
	enc := encoder.New(encoder.Config{
		ModelName:       "gpt2",
		CustomTokenizer: fakeTokenizer{},
	}, nil, zap.NewNop(), encoder.WithLoader(fakeLoader), encoder.WithDevice(device.CPU))
	if err := enc.Prepare(context.Background()); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	return enc
}

func TestProcessFileCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	content := "id,comment\n1,hello\n2,\n3,world\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "vectors.parquet")
	p := New(preparedEncoder(t), nil, nil, nil, &Config{
		BatchSize:  2,
		OutputPath: out,
	}, zap.NewNop())

	result, err := p.ProcessFile(context.Background(), path, "comment")
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}

	if result.TotalRows != 3 || result.Encoded != 3 {
		t.Errorf("rows = %d encoded = %d, want 3 and 3", result.TotalRows, result.Encoded)
	}
	if result.Failed != 0 {
		t.Errorf("failed = %d, want 0", result.Failed)
	}
	if len(result.Vectors) != 3 {
		t.Fatalf("vectors = %d, want 3", len(result.Vectors))
	}
	for i, vec := range result.Vectors {
		if len(vec) != 4 {
			t.Errorf("row %d width = %d, want 4", i, len(vec))
		}
	}
	if result.Checkpoint != "gpt2" {
		t.Errorf("checkpoint = %q, want gpt2", result.Checkpoint)
	}

	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if info.Size() == 0 {
		t.Error("output file is empty")
	}
}

func TestProcessColumnOrder(t *testing.T) {
	a, b := "alpha", "bravo"
	texts := []*string{&a, nil, &b}

	p := New(preparedEncoder(t), nil, nil, nil, DefaultConfig(), zap.NewNop())
	result, err := p.ProcessColumn(context.Background(), "comment", texts)
	if err != nil {
		t.Fatalf("ProcessColumn failed: %v", err)
	}

	// Encoding the same texts directly must match row for row.
	want, err := preparedEncoder(t).Encode(context.Background(), texts)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	for i := range want {
		for j := range want[i] {
			if result.Vectors[i][j] != want[i][j] {
				t.Fatalf("row %d differs from direct encoding", i)
			}
		}
	}
}

func TestProcessColumnEmpty(t *testing.T) {
	p := New(preparedEncoder(t), nil, nil, nil, DefaultConfig(), zap.NewNop())
	result, err := p.ProcessColumn(context.Background(), "comment", nil)
	if err != nil {
		t.Fatalf("ProcessColumn failed: %v", err)
	}
	if result.TotalRows != 0 || result.Encoded != 0 || len(result.Vectors) != 0 {
		t.Errorf("empty column produced %+v", result)
	}
}
