package llm

import (
	"context"

	"github.com/mihomelab/xiaoai-broadcast/domain/repositories"
)

// MockLLM is a canned LargeLanguageModel for tests and offline runs.
type MockLLM struct {
	Reply   string
	Err     error
	Prompts []string
}

// Ensure MockLLM implements the LargeLanguageModel interface
var _ repositories.LargeLanguageModel = (*MockLLM)(nil)

// Generate records the prompt and returns the canned reply.
func (m *MockLLM) Generate(_ context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}
