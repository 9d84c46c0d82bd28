// Package dataset loads operator-supplied grounding text (care notes, family
// facts, routines) from plain text, Markdown, HTML or PDF files.
package dataset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// ErrUnsupported is returned for file types the loader cannot read.
var ErrUnsupported = errors.New("unsupported dataset file type")

// maxFileSize bounds a single dataset file.
const maxFileSize = 8 << 20

// Load reads the file at path and returns its plain text.
func Load(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("reading dataset: %w", err)
	}
	if info.Size() > maxFileSize {
		return "", fmt.Errorf("dataset %s is %d bytes, limit is %d", path, info.Size(), maxFileSize)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".md", "":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading dataset: %w", err)
		}
		return clean(string(b)), nil
	case ".html", ".htm":
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("reading dataset: %w", err)
		}
		defer f.Close()
		text, err := HTMLText(f)
		if err != nil {
			return "", fmt.Errorf("parsing html dataset: %w", err)
		}
		return text, nil
	case ".pdf":
		text, err := pdfText(path)
		if err != nil {
			return "", fmt.Errorf("parsing pdf dataset: %w", err)
		}
		return text, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
}

// LoadAll concatenates the text of every path, separated by blank lines.
// Paths may be files or directories; directory entries with unsupported
// extensions are skipped.
func LoadAll(paths []string) (string, error) {
	var parts []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return "", fmt.Errorf("reading dataset: %w", err)
		}
		if !info.IsDir() {
			text, err := Load(p)
			if err != nil {
				return "", err
			}
			parts = appendText(parts, text)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return "", fmt.Errorf("reading dataset dir: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			text, err := Load(filepath.Join(p, e.Name()))
			if errors.Is(err, ErrUnsupported) {
				continue
			}
			if err != nil {
				return "", err
			}
			parts = appendText(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func appendText(parts []string, text string) []string {
	if text == "" {
		return parts
	}
	return append(parts, text)
}

// HTMLText extracts visible text from an HTML document. Block elements
// start a new line; script and style content is dropped.
func HTMLText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var sb strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", err
			}
			return clean(sb.String()), nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "noscript":
				skip++
			case "br", "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6":
				sb.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script", "style", "noscript":
				if skip > 0 {
					skip--
				}
			case "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6":
				sb.WriteByte('\n')
			}
		case html.TextToken:
			if skip == 0 {
				sb.Write(z.Text())
			}
		}
	}
}

func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		if f != nil {
			f.Close()
		}
		return "", err
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return clean(buf.String()), nil
}

// clean collapses runs of whitespace within lines and drops empty lines.
func clean(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
