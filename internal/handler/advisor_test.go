package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"google.golang.org/genai"

	"github.com/sinergia/backend/internal/advisor"
	"github.com/sinergia/backend/internal/handler"
	"github.com/sinergia/backend/internal/markdown"
)

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (string, error) {
	return "# " + model + "\n" + contents[len(contents)-1].Parts[0].Text, nil
}

func newAdvisorHandler(t *testing.T, gen advisor.Generator) *handler.AdvisorHandler {
	t.Helper()
	catalog, err := advisor.LoadCatalog("")
	if err != nil {
		t.Fatalf("LoadCatalog failed: %v", err)
	}
	return handler.NewAdvisorHandler(advisor.New(gen, catalog, markdown.NewRenderer(), nil), nil)
}

func TestAdvisorHandler_Analysis(t *testing.T) {
	h := newAdvisorHandler(t, echoGenerator{})

	resp, err := h.Analysis(context.Background(), events.APIGatewayProxyRequest{Body: `{"query":"hola","mode":"deep"}`})
	if err != nil {
		t.Fatalf("Analysis returned error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}

	var reply advisor.Reply
	decode(t, resp.Body, &reply)
	if reply.Text != "# gemini-2.5-pro\nhola" {
		t.Errorf("unexpected reply: %q", reply.Text)
	}
	if reply.HTML == "" {
		t.Error("Expected rendered HTML")
	}
}

func TestAdvisorHandler_Analysis_Errors(t *testing.T) {
	tests := []struct {
		name   string
		gen    advisor.Generator
		body   string
		status int
	}{
		{name: "invalid json", gen: echoGenerator{}, body: `nope`, status: http.StatusBadRequest},
		{name: "empty query", gen: echoGenerator{}, body: `{"query":""}`, status: http.StatusBadRequest},
		{name: "unknown mode", gen: echoGenerator{}, body: `{"query":"hola","mode":"creative"}`, status: http.StatusBadRequest},
		{name: "no api key", gen: nil, body: `{"query":"hola"}`, status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAdvisorHandler(t, tt.gen)
			resp, _ := h.Analysis(context.Background(), events.APIGatewayProxyRequest{Body: tt.body})
			if resp.StatusCode != tt.status {
				t.Errorf("Expected %d, got %d: %s", tt.status, resp.StatusCode, resp.Body)
			}
		})
	}
}

func TestAdvisorHandler_Evaluation(t *testing.T) {
	h := newAdvisorHandler(t, echoGenerator{})

	body := `{"history":[{"role":"user","content":"Hola"},{"role":"assistant","content":"¿Qué vendes?"},{"role":"user","content":"Café"}]}`
	resp, _ := h.Evaluation(context.Background(), events.APIGatewayProxyRequest{Body: body})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}

	var reply advisor.Reply
	decode(t, resp.Body, &reply)
	if reply.Text != "# gemini-2.5-flash\nCafé" {
		t.Errorf("unexpected reply: %q", reply.Text)
	}

	resp, _ = h.Evaluation(context.Background(), events.APIGatewayProxyRequest{Body: `{"history":[]}`})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty history, got %d", resp.StatusCode)
	}
}
