// gemini.go implements the Provider interface on the Gemini API.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/marcus/triage/internal/logging"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Gemini calls generateContent through the genai client.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float64
	endpoint    string
	httpClient  *http.Client
	logger      *logging.Logger
}

// GeminiOption configures a Gemini provider.
type GeminiOption func(*Gemini)

// WithModel sets the model name, with or without the "models/" prefix.
func WithModel(model string) GeminiOption {
	return func(g *Gemini) {
		if model != "" {
			g.model = strings.TrimPrefix(model, "models/")
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GeminiOption {
	return func(g *Gemini) {
		g.temperature = t
	}
}

// WithEndpoint overrides the API base URL.
func WithEndpoint(endpoint string) GeminiOption {
	return func(g *Gemini) {
		g.endpoint = endpoint
	}
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) GeminiOption {
	return func(g *Gemini) {
		g.httpClient = c
	}
}

// NewGemini creates a Gemini API provider.
func NewGemini(ctx context.Context, apiKey string, opts ...GeminiOption) (*Gemini, error) {
	g := &Gemini{
		model:       DefaultModel,
		temperature: 0.2,
		logger:      logging.Component("gemini"),
	}
	for _, opt := range opts {
		opt(g)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  g.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: g.endpoint},
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	g.client = client
	return g, nil
}

// Name returns "gemini".
func (g *Gemini) Name() string {
	return "gemini"
}

// Model returns the configured model.
func (g *Gemini) Model() string {
	return g.model
}

// Generate sends the prompt with a JSON response schema. Thinking is
// disabled so the whole output budget goes to the answer.
func (g *Gemini) Generate(ctx context.Context, req Request) (*Response, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr(float32(g.temperature)),
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
	}
	if req.Schema != nil {
		genCfg.ResponseMIMEType = "application/json"
		genCfg.ResponseSchema = toGenaiSchema(req.Schema)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), genCfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("gemini %s: %d %s", g.model, apiErr.Code, apiErr.Message)
		}
		return nil, fmt.Errorf("gemini %s: %w", g.model, err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	out := &Response{Text: text}
	if u := resp.UsageMetadata; u != nil {
		out.PromptTokens = int64(u.PromptTokenCount)
		out.OutputTokens = int64(u.CandidatesTokenCount)
	}
	g.logger.DebugCtx("generate complete", map[string]any{
		"model":         g.model,
		"prompt_tokens": out.PromptTokens,
		"output_tokens": out.OutputTokens,
	})
	return out, nil
}

func toGenaiSchema(s *Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Items:       toGenaiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}
