// Package pooling reduces per-token hidden states into one fixed-length
// sentence vector per input. This path is inference-only; results are plain
// detached slices.
package pooling

// Strategy reduces a tokens×hidden matrix to a single hidden-sized vector.
type Strategy func(hidden [][]float32) []float32

// Strategy names accepted in encoder configuration.
const (
	MeanNorm  = "mean_norm"
	LastToken = "last_token"
)

// Mean averages all token embeddings into one vector. Token order does not
// affect the result.
func Mean(hidden [][]float32) []float32 {
	if len(hidden) == 0 {
		return []float32{}
	}

	dims := len(hidden[0])
	pooled := make([]float32, dims)
	for _, row := range hidden {
		for d := 0; d < dims; d++ {
			pooled[d] += row[d]
		}
	}

	inv := 1.0 / float32(len(hidden))
	for d := 0; d < dims; d++ {
		pooled[d] *= inv
	}
	return pooled
}

// Last returns a copy of the final token's hidden state only.
func Last(hidden [][]float32) []float32 {
	if len(hidden) == 0 {
		return []float32{}
	}
	last := hidden[len(hidden)-1]
	out := make([]float32, len(last))
	copy(out, last)
	return out
}

// Resolve maps a configured strategy name to its implementation. The
// last_token name is accepted but still routes to mean pooling: columns
// encoded by earlier releases used mean for both names, and switching the
// reduction would silently change every stored encoding.
// TODO: route last_token to Last once stored column encodings carry a
// strategy version.
func Resolve(name string) Strategy {
	switch name {
	case LastToken:
		return Mean
	default:
		return Mean
	}
}
