package answer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archivista/knowledge-pipeline/internal/models"
	"github.com/archivista/knowledge-pipeline/internal/search"
	"github.com/archivista/knowledge-pipeline/internal/store"
)

// capturingCompleter records the prompt it receives.
type capturingCompleter struct {
	prompt string
	reply  string
	err    error
}

func (c *capturingCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	c.prompt = prompt
	return c.reply, c.err
}

func result(text string, page *int, score float64) search.Result {
	return search.Result{
		Chunk: store.ScoredChunk{
			Chunk: models.Chunk{
				ChunkID:    uuid.New(),
				DocumentID: uuid.New(),
				Text:       text,
				PageNumber: page,
			},
		},
		FusionScore: score,
		Method:      "hybrid",
	}
}

func TestGenerateEmptyResults(t *testing.T) {
	completer := &capturingCompleter{reply: "should not be called"}
	g := NewGenerator(completer)

	ans, err := g.Generate(context.Background(), "what happened", nil)
	require.NoError(t, err)
	assert.Equal(t, "No relevant information found.", ans.Answer)
	assert.Empty(t, ans.Citations)
	// The model is never consulted without context.
	assert.Empty(t, completer.prompt)
}

func TestGenerateBuildsCitations(t *testing.T) {
	page := 3
	completer := &capturingCompleter{reply: "The budget grew by 4% [1]."}
	g := NewGenerator(completer)

	long := strings.Repeat("budget detail ", 20) // > 100 chars
	results := []search.Result{
		result(long, &page, 0.031),
		result("short note about staffing", nil, 0.016),
	}

	ans, err := g.Generate(context.Background(), "how did the budget change", results)
	require.NoError(t, err)
	assert.Equal(t, "The budget grew by 4% [1].", ans.Answer)
	require.Len(t, ans.Citations, 2)

	first := ans.Citations[0]
	assert.Equal(t, "[1]", first.Marker)
	assert.Equal(t, results[0].Chunk.Chunk.DocumentID, first.DocumentID)
	assert.Equal(t, 0.031, first.Score)
	require.NotNil(t, first.PageNumber)
	assert.Equal(t, 3, *first.PageNumber)
	assert.True(t, strings.HasSuffix(first.Snippet, "..."))
	assert.Len(t, first.Snippet, 103)

	second := ans.Citations[1]
	assert.Equal(t, "[2]", second.Marker)
	assert.Equal(t, "short note about staffing", second.Snippet)
	assert.Nil(t, second.PageNumber)

	// The prompt carries every source and the question.
	assert.Contains(t, completer.prompt, "Source [1]:")
	assert.Contains(t, completer.prompt, "Source [2]:")
	assert.Contains(t, completer.prompt, "Question: how did the budget change")
	assert.Contains(t, completer.prompt, "ONLY the context provided")
}

func TestGenerateSnippetKeepsValidUTF8(t *testing.T) {
	g := NewGenerator(&capturingCompleter{reply: "ok [1]"})

	// Two-byte runes at odd byte offsets: a byte-indexed cut would split one.
	text := strings.Repeat("aé", 120)
	ans, err := g.Generate(context.Background(), "anything", []search.Result{
		result(text, nil, 0.02),
	})
	require.NoError(t, err)
	require.Len(t, ans.Citations, 1)

	snippet := ans.Citations[0].Snippet
	assert.True(t, utf8.ValidString(snippet))
	assert.True(t, strings.HasSuffix(snippet, "..."))
	assert.Equal(t, snippetLen, utf8.RuneCountInString(strings.TrimSuffix(snippet, "...")))
}

func TestGenerateCompleterError(t *testing.T) {
	wantErr := errors.New("model unavailable")
	g := NewGenerator(&capturingCompleter{err: wantErr})

	_, err := g.Generate(context.Background(), "anything", []search.Result{
		result("some chunk", nil, 0.01),
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestMockCompleterEchoesQuestion(t *testing.T) {
	g := NewGenerator(NewMockCompleter())
	ans, err := g.Generate(context.Background(), "what is the plan", []search.Result{
		result("the plan is written here", nil, 0.02),
	})
	require.NoError(t, err)
	assert.Contains(t, ans.Answer, "what is the plan")
}
