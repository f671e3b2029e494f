package advisor

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Prompt names the catalog must define.
const (
	PromptDeep       = "deep"
	PromptQuick      = "quick"
	PromptEvaluation = "evaluation"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// Prompt is one configured system prompt and its generation settings.
type Prompt struct {
	Model           string  `yaml:"model"`
	System          string  `yaml:"system"`
	Temperature     float32 `yaml:"temperature"`
	MaxOutputTokens int32   `yaml:"max_output_tokens"`
	Thinking        bool    `yaml:"thinking"`
}

// Catalog is the versioned prompt file.
type Catalog struct {
	Version int               `yaml:"version"`
	Prompts map[string]Prompt `yaml:"prompts"`
}

// LoadCatalog reads the catalog at path, or the embedded default when path is
// empty.
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultPrompts
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read prompt catalog: %w", err)
		}
		data = b
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}
	for _, name := range []string{PromptDeep, PromptQuick, PromptEvaluation} {
		p, ok := c.Prompts[name]
		if !ok {
			return nil, fmt.Errorf("prompt catalog: missing prompt %q", name)
		}
		if p.Model == "" || p.System == "" {
			return nil, fmt.Errorf("prompt catalog: prompt %q needs model and system", name)
		}
		if p.MaxOutputTokens <= 0 {
			p.MaxOutputTokens = 2048
			c.Prompts[name] = p
		}
	}
	return &c, nil
}
