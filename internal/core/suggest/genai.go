// Package suggest generates profile tags with Google's Gemini API.
package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

const promptTemplate = `You are an expert in creating profile tags for mentors.
Based on the skills entered by the mentor, suggest relevant tags that mentees
would search for. Return between 5 and 12 short tags.

Entered skills: %s`

// GenAIGenerator asks a Gemini model for profile tags as structured JSON.
type GenAIGenerator struct {
	client *genai.Client
	model  string
}

// NewGenAIGenerator creates a generator using the Gemini API.
func NewGenAIGenerator(ctx context.Context, apiKey, model string) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIGenerator{client: client, model: model}, nil
}

// tagsSchema constrains the response to {"suggestedTags": [string]}.
var tagsSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"suggestedTags": {
			Type:  genai.TypeArray,
			Items: &genai.Schema{Type: genai.TypeString},
		},
	},
	Required: []string{"suggestedTags"},
}

type tagsResponse struct {
	SuggestedTags []string `json:"suggestedTags"`
}

// GenerateTags implements v1.TagGenerator.
func (g *GenAIGenerator) GenerateTags(ctx context.Context, skills string) ([]string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(fmt.Sprintf(promptTemplate, skills), genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   tagsSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("GenAI generate failed: %w", err)
	}

	return parseTags(result.Text())
}

func parseTags(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty GenAI response")
	}

	var resp tagsResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, fmt.Errorf("decode GenAI response: %w", err)
	}
	return resp.SuggestedTags, nil
}
