// Package advisor forwards visitor questions to Gemini with a configured
// system prompt and renders the reply.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/sinergia/backend/internal/adapter"
	"github.com/sinergia/backend/internal/markdown"
)

const (
	opAnalysis   = "advisor analysis"
	opEvaluation = "advisor evaluation"
)

// Analysis modes.
const (
	ModeDeep  = "deep"
	ModeQuick = "quick"
)

// Generator produces a model reply.
type Generator interface {
	Generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error)
}

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is the model's answer as markdown and sanitized HTML.
type Reply struct {
	Text string `json:"reply"`
	HTML string `json:"html"`
}

// Advisor answers questions using the prompt catalog.
type Advisor struct {
	gen      Generator
	catalog  *Catalog
	renderer *markdown.Renderer
	logger   *zap.Logger
}

// New creates an Advisor. A nil gen makes every call fail with a
// configuration error.
func New(gen Generator, catalog *Catalog, renderer *markdown.Renderer, logger *zap.Logger) *Advisor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advisor{gen: gen, catalog: catalog, renderer: renderer, logger: logger}
}

// Analyze answers a single query. Mode selects the deep or quick prompt; an
// empty mode is quick.
func (a *Advisor) Analyze(ctx context.Context, query, mode string) (*Reply, error) {
	if strings.TrimSpace(query) == "" {
		return nil, adapter.NewError(adapter.KindMissingParameter, opAnalysis, "query is required", nil)
	}
	name := PromptQuick
	switch mode {
	case "", ModeQuick:
	case ModeDeep:
		name = PromptDeep
	default:
		return nil, adapter.NewError(adapter.KindInvalidParameter, opAnalysis, fmt.Sprintf(`unknown mode %q, want "deep" or "quick"`, mode), nil)
	}
	return a.ask(ctx, opAnalysis, name, []*genai.Content{genai.NewContentFromText(query, genai.RoleUser)})
}

// Evaluate continues the service-fit conversation. Assistant turns are sent
// with the model role.
func (a *Advisor) Evaluate(ctx context.Context, history []Message) (*Reply, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" || m.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	if len(contents) == 0 {
		return nil, adapter.NewError(adapter.KindMissingParameter, opEvaluation, "history is required", nil)
	}
	return a.ask(ctx, opEvaluation, PromptEvaluation, contents)
}

func (a *Advisor) ask(ctx context.Context, op, name string, contents []*genai.Content) (*Reply, error) {
	if a.gen == nil {
		return nil, adapter.NewError(adapter.KindConfiguration, op, "generative API key not configured", nil)
	}
	p := a.catalog.Prompts[name]

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.System, genai.RoleUser),
		Temperature:       genai.Ptr(p.Temperature),
		MaxOutputTokens:   p.MaxOutputTokens,
	}
	if p.Thinking {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](-1)}
	}

	text, err := a.gen.Generate(ctx, p.Model, contents, cfg)
	if err != nil {
		return nil, adapter.NewError(adapter.KindUpstream, op, "Gemini API Error: "+err.Error(), err)
	}

	html, err := a.renderer.Render([]byte(text))
	if err != nil {
		a.logger.Warn("render advisor reply", zap.String("prompt", name), zap.Error(err))
	}
	a.logger.Debug("advisor replied", zap.String("prompt", name), zap.String("model", p.Model), zap.Int("chars", len(text)))
	return &Reply{Text: text, HTML: string(html)}, nil
}
