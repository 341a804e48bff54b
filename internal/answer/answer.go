// Package answer turns ranked fragments into a cited natural-language
// answer via an LLM collaborator.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/archivista/knowledge-pipeline/internal/search"
)

// Citation ties a marker in the answer text back to its source chunk.
type Citation struct {
	Marker     string    `json:"citationMarker"`
	DocumentID uuid.UUID `json:"documentId"`
	Snippet    string    `json:"textSnippet"`
	PageNumber *int      `json:"pageNumber,omitempty"`
	Score      float64   `json:"score"`
}

// Answer is the generated response plus its citations.
type Answer struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// Completer is the LLM capability: prompt in, completion out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Generator assembles the context prompt and citation list around a
// Completer.
type Generator struct {
	completer Completer
}

func NewGenerator(completer Completer) *Generator {
	return &Generator{completer: completer}
}

const snippetLen = 100

// Generate answers the query from the provided fragments only. An empty
// fragment list yields a fixed "nothing found" answer without calling
// the model.
func (g *Generator) Generate(ctx context.Context, query string, results []search.Result) (*Answer, error) {
	if len(results) == 0 {
		return &Answer{Answer: "No relevant information found.", Citations: []Citation{}}, nil
	}

	var contextBuilder strings.Builder
	citations := make([]Citation, 0, len(results))

	for i, r := range results {
		marker := fmt.Sprintf("[%d]", i+1)
		fmt.Fprintf(&contextBuilder, "Source %s:\n%s\n\n", marker, r.Chunk.Chunk.Text)

		// Truncate on rune boundaries so the citation stays valid UTF-8.
		snippet := r.Chunk.Chunk.Text
		if runes := []rune(snippet); len(runes) > snippetLen {
			snippet = string(runes[:snippetLen]) + "..."
		}
		citations = append(citations, Citation{
			Marker:     marker,
			DocumentID: r.Chunk.Chunk.DocumentID,
			Snippet:    snippet,
			PageNumber: r.Chunk.Chunk.PageNumber,
			Score:      r.FusionScore,
		})
	}

	prompt := fmt.Sprintf(`You are an intelligent research assistant.
Answer the user's question using ONLY the context provided below.
If the answer is not in the context, state that you do not have enough information.
Cite your sources using the [number] format provided in the context.

Context:
%s
Question: %s

Answer:`, contextBuilder.String(), query)

	text, err := g.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return &Answer{Answer: text, Citations: citations}, nil
}
