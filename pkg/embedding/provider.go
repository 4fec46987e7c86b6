package embedding

import "fmt"

// EmbeddingProvider generates text embeddings. Output is deterministic for
// identical input and model; cost is not assumed idempotent.
type EmbeddingProvider interface {
	Generate(text string, taskType string) (*EmbeddingResponse, error)
}

type EmbeddingResponse struct {
	Embedding EmbeddingResponseEmbedding
}

type EmbeddingResponseEmbedding struct {
	Values []float32
}

// Error marks an upstream embedding call failure (auth, connectivity,
// quota). It propagates to the caller; retries are the caller's policy.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("embedding failed (%s): %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
