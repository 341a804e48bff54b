// Package chunker splits extracted text into sentence-aligned,
// token-bounded fragments with provenance (word timestamps for
// transcripts, page ranges for documents).
package chunker

import (
	"fmt"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
	"github.com/pkoukk/tiktoken-go"

	"github.com/archivista/knowledge-pipeline/internal/extraction"
	"github.com/archivista/knowledge-pipeline/internal/transcription"
)

// Params controls chunk packing.
type Params struct {
	MaxTokens     int
	OverlapTokens int
}

// DefaultParams returns the standard packing budget.
func DefaultParams() Params {
	return Params{MaxTokens: 800, OverlapTokens: 100}
}

func (p Params) normalized() Params {
	if p.MaxTokens <= 0 {
		p.MaxTokens = 800
	}
	if p.OverlapTokens < 0 {
		p.OverlapTokens = 100
	}
	return p
}

// Fragment is one produced chunk with its provenance.
type Fragment struct {
	Text       string
	ChunkIndex int
	StartTime  *float64 // transcript chunks
	EndTime    *float64
	PageNumber *int // document chunks: first page of the range
	Metadata   map[string]any
}

// Chunker owns the tokenizer and sentence splitter. Safe for concurrent
// use; both underlying models are read-only after construction.
type Chunker struct {
	encoding *tiktoken.Tiktoken
	splitter *sentences.DefaultSentenceTokenizer
}

// New loads the cl100k_base encoding and the English sentence model.
// Token counts must come from the same subword encoding the embedding
// and LLM collaborators consume, not from whitespace word counts.
func New() (*Chunker, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("loading cl100k_base encoding: %w", err)
	}
	splitter, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("loading sentence tokenizer: %w", err)
	}
	return &Chunker{encoding: encoding, splitter: splitter}, nil
}

// CountTokens returns the subword token count of text.
func (c *Chunker) CountTokens(text string) int {
	return len(c.encoding.Encode(text, nil, nil))
}

func (c *Chunker) splitSentences(text string) []string {
	var out []string
	for _, s := range c.splitter.Tokenize(text) {
		t := strings.TrimSpace(s.Text)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// sentence is the packer's unit: text, token count, and provenance.
type sentence struct {
	text      string
	tokens    int
	startTime *float64
	endTime   *float64
	page      *int
}

// ChunkTranscript segments a transcript into sentences, aligns each
// sentence with a contiguous run of timestamped words, and packs the
// result. Chunk text is always the literal join of the consumed words,
// not the splitter's sentence string, so the time range stays
// trustworthy even when the two disagree on punctuation.
func (c *Chunker) ChunkTranscript(transcript string, words []transcription.Word, p Params) []Fragment {
	sents := c.alignTranscript(transcript, words)
	return c.pack(sents, p.normalized(), provenanceTime)
}

func (c *Chunker) alignTranscript(transcript string, words []transcription.Word) []sentence {
	split := c.splitSentences(transcript)

	var sents []sentence
	wordIdx := 0
	total := len(words)

	for _, sentText := range split {
		targetLen := len(strippedLower(sentText))

		var consumed []string
		var start, end *float64
		collectedLen := 0

		// Consume words until we have roughly the sentence's worth of
		// characters. This alignment is a best-effort heuristic; exact
		// token equality with the splitter output is not guaranteed.
		for wordIdx < total {
			w := words[wordIdx]
			if start == nil {
				s := w.StartTime
				start = &s
			}
			consumed = append(consumed, w.Text)
			collectedLen += len(strippedLower(w.Text))
			e := w.EndTime
			end = &e
			wordIdx++

			if collectedLen >= targetLen {
				break
			}
		}

		if len(consumed) == 0 {
			continue
		}
		text := strings.Join(consumed, " ")
		sents = append(sents, sentence{
			text:      text,
			tokens:    c.CountTokens(text),
			startTime: start,
			endTime:   end,
		})
	}
	return sents
}

// ChunkDocument packs per-page sentences, recording the page range each
// chunk spans.
func (c *Chunker) ChunkDocument(pages []extraction.Page, p Params) []Fragment {
	var sents []sentence
	for _, page := range pages {
		pageNum := page.PageNumber
		for _, text := range c.splitSentences(page.Text) {
			sents = append(sents, sentence{
				text:   text,
				tokens: c.CountTokens(text),
				page:   &pageNum,
			})
		}
	}
	return c.pack(sents, p.normalized(), provenancePage)
}

func strippedLower(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

type provenanceMode int

const (
	provenanceTime provenanceMode = iota
	provenancePage
)

// pack groups sentences into chunks of at most MaxTokens, carrying an
// overlap seed of trailing sentences (bounded by OverlapTokens) across
// chunk boundaries. A sentence whose own token count exceeds MaxTokens
// is never split; it is emitted as an oversized single-sentence chunk.
func (c *Chunker) pack(sents []sentence, p Params, mode provenanceMode) []Fragment {
	var chunks []Fragment
	var buffer []sentence
	running := 0
	chunkIdx := 0

	finalize := func() {
		chunks = append(chunks, buildFragment(buffer, chunkIdx, mode))
		chunkIdx++
	}

	for _, sent := range sents {
		if running+sent.tokens > p.MaxTokens && len(buffer) > 0 {
			finalize()

			// Overlap seed: scan the finalized buffer from its end
			// backward, keeping sentences while the accumulated token
			// count stays within the overlap budget.
			var seed []sentence
			seedTokens := 0
			for i := len(buffer) - 1; i >= 0; i-- {
				if seedTokens+buffer[i].tokens > p.OverlapTokens {
					break
				}
				seed = append([]sentence{buffer[i]}, seed...)
				seedTokens += buffer[i].tokens
			}
			buffer = seed
			running = seedTokens
		}

		// Always append, even when the sentence alone exceeds the
		// budget; the next iteration finalizes it as its own chunk.
		buffer = append(buffer, sent)
		running += sent.tokens
	}

	if len(buffer) > 0 {
		finalize()
	}
	return chunks
}

func buildFragment(buffer []sentence, idx int, mode provenanceMode) Fragment {
	texts := make([]string, 0, len(buffer))
	for _, s := range buffer {
		texts = append(texts, s.text)
	}
	frag := Fragment{
		Text:       strings.Join(texts, " "),
		ChunkIndex: idx,
	}

	first, last := buffer[0], buffer[len(buffer)-1]
	switch mode {
	case provenanceTime:
		frag.StartTime = first.startTime
		frag.EndTime = last.endTime
	case provenancePage:
		frag.PageNumber = first.page
		if first.page != nil && last.page != nil {
			frag.Metadata = map[string]any{
				"start_page": *first.page,
				"end_page":   *last.page,
			}
		}
	}
	return frag
}
