package extraction

import (
	"bytes"
	"context"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/archivista/knowledge-pipeline/pkg/logger"
)

// Pages are extracted concurrently; text layout inside a page is
// whatever the PDF reports, so per-page independence is safe.
const maxPageWorkers = 4

func (e *Extractor) extractPDF(ctx context.Context, data []byte) Content {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		e.logger.Error("Failed to open PDF", logger.Error(err))
		return Content{}
	}

	numPages := pdfReader.NumPage()
	pages := make([]Page, 0, numPages)

	g, ctx := errgroup.WithContext(ctx)
	pageChan := make(chan Page, numPages)
	sem := make(chan struct{}, maxPageWorkers)

	for i := 1; i <= numPages; i++ {
		pageNum := i
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return ctx.Err()
			}

			page := pdfReader.Page(pageNum)
			if page.V.IsNull() {
				return nil
			}
			text, err := page.GetPlainText(nil)
			if err != nil {
				// Best-effort: skip unreadable pages rather than
				// failing the whole document.
				e.logger.Warn("Failed to extract PDF page",
					logger.Int("page", pageNum),
					logger.Error(err),
				)
				return nil
			}

			select {
			case pageChan <- Page{PageNumber: pageNum, Text: text}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}

	go func() {
		g.Wait()
		close(pageChan)
	}()

	for page := range pageChan {
		pages = append(pages, page)
	}
	if err := g.Wait(); err != nil {
		e.logger.Error("PDF extraction aborted", logger.Error(err))
		return Content{}
	}

	sort.Slice(pages, func(i, j int) bool {
		return pages[i].PageNumber < pages[j].PageNumber
	})

	fullText := make([]string, 0, len(pages))
	for _, p := range pages {
		fullText = append(fullText, p.Text)
	}
	return Content{
		FullText: strings.Join(fullText, "\n\n"),
		Pages:    pages,
	}
}
