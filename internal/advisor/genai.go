package advisor

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GenAIGenerator calls the Gemini API.
type GenAIGenerator struct {
	client *genai.Client
}

// NewGenAIGenerator creates a Gemini API client for apiKey.
func NewGenAIGenerator(ctx context.Context, apiKey string) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIGenerator{client: client}, nil
}

// Generate returns the text of the first candidate, skipping thought parts.
func (g *GenAIGenerator) Generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", err
	}
	return firstCandidateText(resp), nil
}

func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}
