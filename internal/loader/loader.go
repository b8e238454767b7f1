// Package loader normalizes fetched documents to plain text before they
// enter the extraction pipeline.
package loader

import (
	"bytes"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"codeberg.org/readeck/go-readability/v2"
)

// documents come from the object store, not the web; readability still
// wants a base URL for link resolution
var localBase = &url.URL{Scheme: "file", Path: "/"}

// ErrUnsupportedType marks content the pipeline cannot normalize. It is a
// recoverable per-document failure, not a pipeline fault.
type ErrUnsupportedType struct {
	ContentType string
}

func (e ErrUnsupportedType) Error() string {
	return fmt.Sprintf("unsupported content type %q", e.ContentType)
}

// Normalize reduces document content to plain text. Plain text and markdown
// pass through; HTML is reduced to its readable article text.
func Normalize(content []byte, contentType string) (string, error) {
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}

	switch mediaType {
	case "", "text/plain", "text/markdown":
		return string(content), nil
	case "text/html", "application/xhtml+xml":
		return htmlText(content)
	default:
		return "", ErrUnsupportedType{ContentType: contentType}
	}
}

func htmlText(content []byte) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(content), localBase)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var builder strings.Builder
	if err := article.RenderText(&builder); err != nil {
		return "", fmt.Errorf("render article text: %w", err)
	}
	return builder.String(), nil
}
