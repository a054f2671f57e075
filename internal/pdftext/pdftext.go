// Package pdftext extracts plain text from PDF documents held in memory.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/spigell/resume-evaluator/internal/logger"
)

var (
	// ErrUnreadable means the bytes could not be parsed as a PDF document.
	ErrUnreadable = errors.New("unreadable pdf")
	// ErrNoText means no page yielded any text, e.g. a scanned document.
	ErrNoText = errors.New("no text could be extracted from the pdf")
)

const pageSeparator = "\n\n"

// Extractor reads every page it can and skips the ones it cannot.
type Extractor struct {
	logger *zap.Logger
}

func New(log *zap.Logger) *Extractor {
	return &Extractor{logger: logger.WithFields(log)}
}

// ExtractText returns the text of all readable pages joined by a blank line.
func (e *Extractor) ExtractText(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty document", ErrUnreadable)
	}

	reader, err := openReader(data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnreadable, err)
	}

	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		text, err := pageText(reader, i)
		if err != nil {
			e.logger.Warn("skipping unreadable pdf page", zap.Int("page", i), zap.Error(err))
			continue
		}
		// Pages start and end with line breaks from text positioning operators.
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, text)
	}

	e.logger.Debug("pdf text extracted", zap.Int("pages", total), zap.Int("pages_with_text", len(pages)))

	if len(pages) == 0 {
		return "", ErrNoText
	}

	return strings.Join(pages, pageSeparator), nil
}

// openReader guards against the parser panicking on corrupted cross-reference tables.
func openReader(data []byte) (reader *pdf.Reader, err error) {
	defer func() {
		if r := recover(); r != nil {
			reader, err = nil, fmt.Errorf("parse pdf: %v", r)
		}
	}()

	return pdf.NewReader(bytes.NewReader(data), int64(len(data)))
}

func pageText(reader *pdf.Reader, index int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read page: %v", r)
		}
	}()

	page := reader.Page(index)
	if page.V.IsNull() {
		return "", nil
	}

	return page.GetPlainText(nil)
}
