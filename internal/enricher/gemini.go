package enricher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"trendpulse/internal/core"
	"trendpulse/internal/llm"
)

var extractableKinds = []string{
	string(core.EntityArtist),
	string(core.EntityCreator),
	string(core.EntityBrand),
	string(core.EntityPlace),
	string(core.EntityOrganization),
	string(core.EntityEvent),
	string(core.EntityPerson),
}

const entityPromptTemplate = `Extract the named entities from this African pop-culture news text.
Classify musicians and DJs as "artist", social media personalities as "creator",
companies and products as "brand". Return an empty array when there are none.

Text:
%s`

// generator is the subset of llm.Client used for extraction.
type generator interface {
	Generate(ctx context.Context, prompt string, options llm.GenerationOptions) (string, error)
}

// GeminiExtractor extracts entities with a Gemini model.
type GeminiExtractor struct {
	client  generator
	timeout time.Duration
}

// NewGeminiExtractor wraps an LLM client as an EntityExtractor.
func NewGeminiExtractor(client *llm.Client, timeout time.Duration) *GeminiExtractor {
	return &GeminiExtractor{client: client, timeout: timeout}
}

// Extract asks the model for entities in text.
func (g *GeminiExtractor) Extract(ctx context.Context, text string) ([]core.Entity, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	text = core.Truncate(text, 4000)

	raw, err := g.client.Generate(ctx, fmt.Sprintf(entityPromptTemplate, text), llm.GenerationOptions{
		Temperature:    0.1,
		ResponseSchema: llm.EntitySchema(extractableKinds),
	})
	if err != nil {
		return nil, err
	}

	var parsed []struct {
		Name string `json:"name"`
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse entity response: %w", err)
	}

	entities := make([]core.Entity, 0, len(parsed))
	for _, p := range parsed {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		entities = append(entities, core.Entity{Name: strings.TrimSpace(p.Name), Kind: core.EntityKind(p.Kind)})
	}
	return entities, nil
}
