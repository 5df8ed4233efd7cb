package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sandevgo/trunk/internal/core"
)

const extractionSystemPrompt = "You are a fact extraction system. Output only valid JSON."

// ExtractFacts asks the model for distinct, self-contained facts in the
// transcript. Implements core.Extractor.
func (c *Client) ExtractFacts(ctx context.Context, transcript string) ([]core.ExtractedFact, error) {
	resp, err := c.chat(ctx, []chatMessage{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: buildExtractionPrompt(transcript)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrExtractionFailure, err)
	}

	facts, err := parseExtractionResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrExtractionFailure, err)
	}
	return facts, nil
}

// Generate produces conversational text from a prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	return c.chat(ctx, []chatMessage{{Role: "user", Content: prompt}})
}

func buildExtractionPrompt(transcript string) string {
	return fmt.Sprintf(
		`Extract distinct, lasting facts from the conversation. Output format: JSON list of objects {text, source}. Rules: 1. Ignore greetings and small talk. 2. Facts must be self-contained (replace "he" with the person's name). 3. Set source to the speaker the fact came from. Conversation: %s`,
		transcript,
	)
}

func parseExtractionResponse(content string) ([]core.ExtractedFact, error) {
	jsonStr := extractJSONArray(content)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON array found in response")
	}

	var facts []core.ExtractedFact
	if err := json.Unmarshal([]byte(jsonStr), &facts); err != nil {
		return nil, fmt.Errorf("unmarshal facts: %w", err)
	}
	return facts, nil
}

// extractJSONArray tolerates prose around the array in the model
// output.
func extractJSONArray(content string) string {
	start := strings.Index(content, "[")
	if start == -1 {
		return ""
	}
	end := strings.LastIndex(content[start:], "]")
	if end == -1 {
		return ""
	}
	return content[start : start+end+1]
}
