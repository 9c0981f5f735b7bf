// Package providers sends triage prompts to a language model and returns
// its raw JSON reply. Two backends are supported: the Gemini REST API and
// the Gemini CLI.
package providers

import (
	"context"
	"errors"
	"fmt"

	"github.com/marcus/triage/internal/agents"
	"github.com/marcus/triage/internal/config"
)

// Provider is the interface every model backend implements.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Model returns the model the provider sends requests to.
	Model() string

	// Generate sends one prompt and returns the model's reply.
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Request is a single structured-output prompt.
type Request struct {
	Prompt string
	Schema *Schema // Expected shape of the reply; nil for free text
}

// Response holds a model reply and its token usage.
type Response struct {
	Text         string
	PromptTokens int64
	OutputTokens int64
}

// Schema types, using the names the Gemini API expects.
const (
	TypeObject  = "OBJECT"
	TypeArray   = "ARRAY"
	TypeString  = "STRING"
	TypeNumber  = "NUMBER"
	TypeInteger = "INTEGER"
)

// Schema describes a JSON value the model must produce.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// Provider errors.
var (
	ErrEmptyResponse  = errors.New("model returned an empty response")
	ErrBlocked        = errors.New("model refused the prompt")
	ErrUnknownBackend = errors.New("unknown provider backend")
)

// New builds the provider selected by cfg.Gemini.Backend.
func New(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.Gemini.Backend {
	case "", "api":
		key, err := cfg.RequireAPIKey()
		if err != nil {
			return nil, err
		}
		return NewGemini(ctx, key,
			WithModel(cfg.Gemini.Model),
			WithTemperature(cfg.Gemini.Temperature),
			WithEndpoint(cfg.Gemini.Endpoint),
		)
	case "cli":
		agent := agents.NewGeminiAgent(
			agents.WithGeminiBinaryPath(cfg.Gemini.BinaryPath),
			agents.WithGeminiModel(cfg.Gemini.Model),
			agents.WithGeminiDefaultTimeout(cfg.PassTimeout()),
		)
		return NewAgentProvider(agent, agent.Model()), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Gemini.Backend)
	}
}
