package llm

import (
	"context"
	"errors"
	"testing"
)

func TestValidateGeminiConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  GeminiConfig
		wantErr bool
	}{
		{
			name:   "valid minimal config",
			config: GeminiConfig{APIKey: "key-1"},
		},
		{
			name:   "valid full config",
			config: GeminiConfig{APIKey: "key-1", Model: "gemini-2.0-flash", Temperature: 0.7, MaxOutputTokens: 1024, TimeoutSeconds: 30},
		},
		{
			name:    "missing api key",
			config:  GeminiConfig{},
			wantErr: true,
		},
		{
			name:    "temperature out of range",
			config:  GeminiConfig{APIKey: "key-1", Temperature: 2.5},
			wantErr: true,
		},
		{
			name:    "negative max tokens",
			config:  GeminiConfig{APIKey: "key-1", MaxOutputTokens: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGeminiConfig(tt.config)
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestNewGeminiConfigFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("GEMINI_TEMPERATURE", "0.3")
	t.Setenv("GEMINI_MAX_OUTPUT_TOKENS", "512")

	config := NewGeminiConfigFromEnv()
	if config.APIKey != "env-key" || config.Model != "gemini-2.5-pro" {
		t.Errorf("unexpected config %+v", config)
	}
	if config.Temperature != 0.3 {
		t.Errorf("expected temperature 0.3, got %f", config.Temperature)
	}
	if config.MaxOutputTokens != 512 {
		t.Errorf("expected 512 max tokens, got %d", config.MaxOutputTokens)
	}
}

func TestMockLLM(t *testing.T) {
	mock := &MockLLM{Reply: "canned"}
	got, err := mock.Generate(context.Background(), "prompt one")
	if err != nil || got != "canned" {
		t.Errorf("expected canned reply, got %q (%v)", got, err)
	}

	mock.Err = errors.New("down")
	if _, err := mock.Generate(context.Background(), "prompt two"); err == nil {
		t.Error("expected the canned error")
	}

	if len(mock.Prompts) != 2 || mock.Prompts[0] != "prompt one" {
		t.Errorf("prompts should be recorded in order, got %v", mock.Prompts)
	}
}
