package embedding

import "context"

// Embedder is the opaque embedding capability consumed by the vector index.
// Implementations must be deterministic per model version and safe for
// concurrent use.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one embedding per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// ModelName identifies the embedding model for health reporting.
	ModelName() string
}
