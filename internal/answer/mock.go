package answer

import (
	"context"
	"fmt"
	"strings"
)

// MockCompleter echoes the question with the first source marker. Used
// in tests and local development.
type MockCompleter struct{}

func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	lines := strings.Split(prompt, "\n")
	question := ""
	for _, line := range lines {
		if strings.HasPrefix(line, "Question: ") {
			question = strings.TrimPrefix(line, "Question: ")
		}
	}
	return fmt.Sprintf("Mock answer to %q based on the provided context [1].", question), nil
}
