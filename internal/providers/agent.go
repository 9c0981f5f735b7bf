// agent.go adapts a CLI agent to the Provider interface.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/marcus/triage/internal/agents"
)

// AgentProvider runs prompts through a CLI agent. The CLI has no schema
// parameter, so the schema is appended to the prompt and the first JSON
// value in the output is returned.
type AgentProvider struct {
	agent agents.Agent
	model string
}

// NewAgentProvider wraps agent. model is informational.
func NewAgentProvider(agent agents.Agent, model string) *AgentProvider {
	return &AgentProvider{agent: agent, model: model}
}

// Name returns the agent name with a cli suffix.
func (p *AgentProvider) Name() string {
	return p.agent.Name() + "-cli"
}

// Model returns the model passed to the CLI, or "default".
func (p *AgentProvider) Model() string {
	if p.model == "" {
		return "default"
	}
	return p.model
}

// Generate runs the agent and extracts its JSON reply.
func (p *AgentProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	prompt, err := schemaPrompt(req)
	if err != nil {
		return nil, err
	}

	res, err := p.agent.Execute(ctx, agents.ExecuteOptions{Prompt: prompt})
	if err != nil {
		if res != nil && res.Error != "" {
			return nil, fmt.Errorf("%s: %s: %w", p.Name(), res.Error, err)
		}
		return nil, fmt.Errorf("%s: %w", p.Name(), err)
	}

	text := string(res.JSON)
	if text == "" {
		text = res.Output
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}
	return &Response{Text: text}, nil
}

func schemaPrompt(req Request) (string, error) {
	if req.Schema == nil {
		return req.Prompt, nil
	}
	data, err := json.MarshalIndent(req.Schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding schema: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(req.Prompt)
	sb.WriteString("\n\nRespond with a single JSON object and nothing else. It must match this schema:\n")
	sb.Write(data)
	sb.WriteString("\n")
	return sb.String(), nil
}
