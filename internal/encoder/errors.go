package encoder

import "errors"

// Misuse and capability errors surfaced by the encoder facade. Callers match
// them with errors.Is; none of them are retryable.
var (
	// ErrNotPrepared is returned by Encode before Prepare has run.
	ErrNotPrepared = errors.New("encoder is not prepared")
	// ErrAlreadyPrepared is returned by a second Prepare call.
	ErrAlreadyPrepared = errors.New("encoder is already prepared")
	// ErrUnimplemented marks capabilities that fail loudly instead of
	// degrading to a default: training on the target column and decoding
	// embeddings back to text.
	ErrUnimplemented = errors.New("not implemented")
)
