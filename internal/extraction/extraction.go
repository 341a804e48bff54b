package extraction

import (
	"context"
	"strings"

	"github.com/archivista/knowledge-pipeline/internal/models"
	"github.com/archivista/knowledge-pipeline/pkg/logger"
)

// Page is the extracted text of one page. Page numbers are 1-based.
type Page struct {
	PageNumber int    `json:"pageNumber"`
	Text       string `json:"text"`
}

// Content is the result of text extraction over a whole document.
type Content struct {
	FullText string `json:"fullText"`
	Pages    []Page `json:"pages"`
}

// Extractor converts raw document bytes into per-page text. Extraction
// is best-effort: malformed input yields empty content, not an error.
type Extractor struct {
	logger logger.Logger
}

func NewExtractor(log logger.Logger) *Extractor {
	return &Extractor{logger: log}
}

// Extract dispatches on the document's source kind. Kinds without an
// extraction path return empty content; the pipeline treats that as an
// extraction failure.
func (e *Extractor) Extract(ctx context.Context, data []byte, kind models.SourceType) Content {
	switch kind {
	case models.SourcePDF:
		return e.extractPDF(ctx, data)
	case models.SourceMarkdown, models.SourceText:
		return e.extractPlainText(data)
	default:
		e.logger.Warn("No extraction path for source kind",
			logger.String("sourceType", string(kind)),
		)
		return Content{}
	}
}

func (e *Extractor) extractPlainText(data []byte) Content {
	text := strings.ToValidUTF8(string(data), "�")
	if strings.TrimSpace(text) == "" {
		return Content{}
	}
	return Content{
		FullText: text,
		Pages:    []Page{{PageNumber: 1, Text: text}},
	}
}
