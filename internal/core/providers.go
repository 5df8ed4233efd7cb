package core

import "context"

// Extractor is the black-box generation/extraction collaborator (an LLM).
// It is called only from the write path, never from relevance scoring or
// graph decay.
type Extractor interface {
	// ExtractFacts pulls candidate facts out of a conversation transcript.
	ExtractFacts(ctx context.Context, transcript string) ([]ExtractedFact, error)
	// Generate produces conversational text from a prompt. Not used by the
	// memory core itself; exposed for the orchestration layer.
	Generate(ctx context.Context, prompt string) (string, error)
}
