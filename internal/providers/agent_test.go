package providers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/marcus/triage/internal/agents"
)

type mockAgent struct {
	result *agents.ExecuteResult
	err    error
	prompt string
}

func (m *mockAgent) Name() string { return "gemini" }

func (m *mockAgent) Execute(_ context.Context, opts agents.ExecuteOptions) (*agents.ExecuteResult, error) {
	m.prompt = opts.Prompt
	return m.result, m.err
}

func TestAgentProvider_Generate(t *testing.T) {
	agent := &mockAgent{result: &agents.ExecuteResult{
		Output: "Sure:\n```json\n{\"items\":[]}\n```",
		JSON:   []byte(`{"items":[]}`),
	}}
	p := NewAgentProvider(agent, "gemini-2.5-flash")

	resp, err := p.Generate(context.Background(), Request{Prompt: "list things", Schema: testSchema()})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if resp.Text != `{"items":[]}` {
		t.Errorf("Text = %q", resp.Text)
	}
	if !strings.HasPrefix(agent.prompt, "list things") {
		t.Errorf("prompt should start with the request prompt: %q", agent.prompt)
	}
	if !strings.Contains(agent.prompt, `"type": "ARRAY"`) {
		t.Errorf("prompt should embed the schema: %q", agent.prompt)
	}
}

func TestAgentProvider_NameAndModel(t *testing.T) {
	p := NewAgentProvider(&mockAgent{}, "")
	if p.Name() != "gemini-cli" {
		t.Errorf("Name() = %q", p.Name())
	}
	if p.Model() != "default" {
		t.Errorf("Model() = %q", p.Model())
	}
}

func TestAgentProvider_NoSchemaPassesPromptThrough(t *testing.T) {
	agent := &mockAgent{result: &agents.ExecuteResult{Output: "plain"}}
	p := NewAgentProvider(agent, "m")

	resp, err := p.Generate(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if agent.prompt != "hi" || resp.Text != "plain" {
		t.Errorf("prompt=%q text=%q", agent.prompt, resp.Text)
	}
}

func TestAgentProvider_Errors(t *testing.T) {
	boom := errors.New("exit status 2")
	p := NewAgentProvider(&mockAgent{result: &agents.ExecuteResult{Error: "not logged in"}, err: boom}, "m")
	_, err := p.Generate(context.Background(), Request{Prompt: "x"})
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "not logged in") {
		t.Errorf("error = %v", err)
	}

	p = NewAgentProvider(&mockAgent{result: &agents.ExecuteResult{Output: "   "}}, "m")
	if _, err := p.Generate(context.Background(), Request{Prompt: "x"}); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("error = %v, want ErrEmptyResponse", err)
	}
}
