package repositories

import "context"

// LargeLanguageModel abstracts any text-completion provider used to turn raw
// headlines into a broadcast script or to soften generated text.
type LargeLanguageModel interface {
	// Generate takes a prompt and returns the model's reply.
	Generate(ctx context.Context, prompt string) (string, error)
}
