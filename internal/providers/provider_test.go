package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/marcus/triage/internal/config"
)

func TestNew(t *testing.T) {
	t.Setenv("TRIAGE_PROVIDER_KEY", "secret")
	t.Setenv(config.FallbackAPIKeyEnv, "")

	tests := []struct {
		name     string
		cfg      config.GeminiConfig
		wantName string
		wantErr  error
	}{
		{
			name:     "api",
			cfg:      config.GeminiConfig{Backend: "api", Model: "gemini-2.5-pro", APIKeyEnv: "TRIAGE_PROVIDER_KEY"},
			wantName: "gemini",
		},
		{
			name:     "cli",
			cfg:      config.GeminiConfig{Backend: "cli", Model: "gemini-2.5-pro", APIKeyEnv: "TRIAGE_UNSET_KEY"},
			wantName: "gemini-cli",
		},
		{
			name:    "api without key",
			cfg:     config.GeminiConfig{Backend: "api", APIKeyEnv: "TRIAGE_UNSET_KEY"},
			wantErr: config.ErrMissingAPIKey,
		},
		{
			name:    "unknown backend",
			cfg:     config.GeminiConfig{Backend: "ollama"},
			wantErr: ErrUnknownBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(context.Background(), &config.Config{Gemini: tt.cfg})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New error: %v", err)
			}
			if p.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", p.Name(), tt.wantName)
			}
			if p.Model() != "gemini-2.5-pro" {
				t.Errorf("Model() = %q", p.Model())
			}
		})
	}
}

// testSchema is shared by the backend tests.
func testSchema() *Schema {
	return &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"items": {Type: TypeArray, Items: &Schema{Type: TypeString}},
		},
		Required: []string{"items"},
	}
}
