// Package documents stores user-facing markdown documents with YAML frontmatter.
//
// The document store is the authoritative copy of user content. Keys are
// slash-separated paths relative to a user's root, for example
// "captures/2026-02-20-090503.md".
package documents

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontmatterDelimiter = "---"

// DocumentTypeCapture marks a quick-capture document
const DocumentTypeCapture = "capture"

// ErrNotFound is returned when a document key does not exist
var ErrNotFound = errors.New("document not found")

// Header is the YAML frontmatter of a document
type Header struct {
	Type           string   `yaml:"type" json:"type"`
	Date           string   `yaml:"date" json:"date"`
	InputMode      string   `yaml:"input_mode,omitempty" json:"input_mode,omitempty"`
	Timestamp      string   `yaml:"timestamp" json:"timestamp"`
	Classification string   `yaml:"classification,omitempty" json:"classification,omitempty"`
	Tags           []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Document is a parsed markdown document
type Document struct {
	Key    string `json:"key"`
	Header Header `json:"header"`
	Body   string `json:"body"`
}

// Marshal renders the document as frontmatter followed by the body
func (d *Document) Marshal() ([]byte, error) {
	header, err := yaml.Marshal(&d.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(frontmatterDelimiter + "\n")
	buf.Write(header)
	buf.WriteString(frontmatterDelimiter + "\n\n")
	buf.WriteString(d.Body)
	// The file always ends in a newline; Parse drops exactly this one.
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// Parse splits raw content into header and body
func Parse(key string, raw []byte) (*Document, error) {
	content := strings.ReplaceAll(string(raw), "\r\n", "\n")
	if !strings.HasPrefix(content, frontmatterDelimiter+"\n") {
		return nil, fmt.Errorf("document %s has no frontmatter", key)
	}

	rest := content[len(frontmatterDelimiter)+1:]
	end := strings.Index(rest, "\n"+frontmatterDelimiter+"\n")
	var headerText, body string
	switch {
	case end >= 0:
		headerText = rest[:end+1]
		body = rest[end+len(frontmatterDelimiter)+2:]
	case strings.HasSuffix(rest, "\n"+frontmatterDelimiter):
		headerText = strings.TrimSuffix(rest, frontmatterDelimiter)
	default:
		return nil, fmt.Errorf("document %s has unterminated frontmatter", key)
	}

	doc := &Document{Key: key}
	if err := yaml.Unmarshal([]byte(headerText), &doc.Header); err != nil {
		return nil, fmt.Errorf("failed to decode frontmatter of %s: %w", key, err)
	}
	doc.Body = strings.TrimSuffix(strings.TrimPrefix(body, "\n"), "\n")
	return doc, nil
}
