package licenses

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	gopdf "github.com/ledongthuc/pdf"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	xhtml "golang.org/x/net/html"
)

// ExtractText reads a license file and returns its plain text. Plain text
// files are read as-is; Markdown, HTML and PDF files are converted first so
// that template matching sees the license words without markup.
func ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return extractFromMarkdown(path)
	case ".html", ".htm":
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		return extractFromHTML(f)
	case ".pdf":
		return extractFromPDF(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Table),
)

func extractFromMarkdown(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := markdown.Convert(data, &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return extractFromHTML(&buf)
}

func extractFromHTML(r io.Reader) (string, error) {
	tokenizer := xhtml.NewTokenizer(r)

	var b strings.Builder
	skipTags := map[string]bool{"script": true, "style": true}
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case xhtml.ErrorToken:
			err := tokenizer.Err()
			if err == io.EOF {
				return strings.TrimSpace(b.String()), nil
			}
			return "", err

		case xhtml.StartTagToken:
			tn, _ := tokenizer.TagName()
			if skipTags[string(tn)] {
				skipDepth++
			}

		case xhtml.EndTagToken:
			tn, _ := tokenizer.TagName()
			if skipTags[string(tn)] && skipDepth > 0 {
				skipDepth--
			}

		case xhtml.TextToken:
			if skipDepth > 0 {
				continue
			}
			content := strings.TrimSpace(string(tokenizer.Text()))
			if content == "" {
				continue
			}
			b.WriteString(content)
			b.WriteByte(' ')
		}
	}
}

var (
	hasPdftotext     bool
	pdftotextChecked sync.Once
)

func checkPdftotext() {
	_, err := exec.LookPath("pdftotext")
	hasPdftotext = err == nil
}

// extractFromPDF tries pdftotext (poppler-utils) first for best quality and
// falls back to ledongthuc/pdf if it is not installed.
func extractFromPDF(path string) (string, error) {
	pdftotextChecked.Do(checkPdftotext)

	if hasPdftotext {
		text, err := extractWithPdftotext(path)
		if err == nil {
			return text, nil
		}
		// Fall through to pure Go on error
	}

	return extractWithGoPDF(path)
}

func extractWithPdftotext(path string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "pdftotext", "-layout", path, "-")
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", err
	}
	return out.String(), nil
}

func extractWithGoPDF(path string) (string, error) {
	f, reader, err := gopdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var buf bytes.Buffer
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(pageText)
		buf.WriteByte('\n')
	}
	return buf.String(), nil
}
