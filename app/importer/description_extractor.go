package importer

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-shiori/go-readability"
)

// DescriptionExtractor pulls readable text out of an event's web page, used
// to fill in descriptions for events whose feed carried none.
type DescriptionExtractor struct{}

func NewDescriptionExtractor() *DescriptionExtractor {
	return &DescriptionExtractor{}
}

func (e *DescriptionExtractor) Run(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("HTML data is empty")
	}

	article, err := readability.FromReader(bytes.NewReader(data), nil)
	if err != nil {
		return "", fmt.Errorf("failed to extract description: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", fmt.Errorf("no text extracted from HTML data")
	}

	slog.Debug("Description extracted successfully",
		"title", article.Title,
		"text_length", len(text))

	return text, nil
}
