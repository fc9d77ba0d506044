package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	// DefaultModel is the default Gemini model used for entity extraction.
	DefaultModel = "gemini-flash-lite-latest" // Gemini Flash Lite (latest version)
)

// Client wraps the Gemini SDK for structured JSON generation.
type Client struct {
	apiKey    string
	modelName string
	gClient   *genai.Client // Store the main client (new SDK)
}

// GenerationOptions contains options for a single request
type GenerationOptions struct {
	MaxTokens      int32         // Maximum number of tokens to generate
	Temperature    float32       // Temperature for randomness (0.0 to 1.0)
	ResponseSchema *genai.Schema // Optional: Schema for structured output
}

// NewClient creates a Gemini client. The API key comes from configuration;
// callers decide whether a missing key disables the feature.
func NewClient(ctx context.Context, apiKey, modelName string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY or enrichment.gemini.api_key")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		apiKey:    apiKey,
		modelName: modelName,
		gClient:   gClient,
	}, nil
}

// Model returns the model name in use.
func (c *Client) Model() string { return c.modelName }

// Generate sends a single user prompt and returns the text response.
func (c *Client) Generate(ctx context.Context, prompt string, options GenerationOptions) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	var config *genai.GenerateContentConfig
	if options.MaxTokens > 0 || options.Temperature > 0 || options.ResponseSchema != nil {
		config = &genai.GenerateContentConfig{}
		if options.MaxTokens > 0 {
			config.MaxOutputTokens = options.MaxTokens
		}
		if options.Temperature > 0 {
			temp := options.Temperature
			config.Temperature = &temp
		}
		if options.ResponseSchema != nil {
			config.ResponseMIMEType = "application/json"
			config.ResponseSchema = options.ResponseSchema
		}
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

// EntitySchema is the response schema for named-entity extraction: an array
// of {name, kind} objects.
func EntitySchema(kinds []string) *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"name": {
					Type:        genai.TypeString,
					Description: "Entity name exactly as written in the text",
				},
				"kind": {
					Type:        genai.TypeString,
					Description: "Entity type",
					Enum:        kinds,
				},
			},
			Required: []string{"name", "kind"},
		},
	}
}
