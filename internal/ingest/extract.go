package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrUnsupportedFormat is returned for file extensions no extractor handles.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrExtraction is returned when a source cannot be read or decoded.
	ErrExtraction = errors.New("extraction failed")
)

// Extractor pulls raw text out of a source file.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Recognizer performs optical character recognition on an image.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// PDFExtractor reads the text layer of born-digital PDFs.
type PDFExtractor struct{}

// Extract concatenates the plain text of every page.
func (PDFExtractor) Extract(ctx context.Context, path string) (text string, err error) {
	// The PDF reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrExtraction, path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrExtraction, path, err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		s, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("%w: %s page %d: %v", ErrExtraction, path, i, err)
		}
		b.WriteString(s)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// OCRExtractor extracts text from images through a Recognizer.
type OCRExtractor struct {
	Recognizer Recognizer
}

func (o OCRExtractor) Extract(ctx context.Context, path string) (string, error) {
	if o.Recognizer == nil {
		return "", fmt.Errorf("%w: no OCR backend configured", ErrExtraction)
	}
	text, err := o.Recognizer.Recognize(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%w: ocr %s: %v", ErrExtraction, path, err)
	}
	return text, nil
}

// TextExtractor reads plain-text sources as-is.
type TextExtractor struct{}

func (TextExtractor) Extract(_ context.Context, path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	return string(b), nil
}

// TesseractRecognizer runs the tesseract command line tool.
type TesseractRecognizer struct {
	Binary   string // defaults to "tesseract"
	Language string // defaults to "eng"
}

// Recognize returns the text tesseract reads from imagePath.
func (t TesseractRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	bin := t.Binary
	if bin == "" {
		bin = "tesseract"
	}
	lang := t.Language
	if lang == "" {
		lang = "eng"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, imagePath, "stdout", "-l", lang)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
