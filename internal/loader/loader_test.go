package loader

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizePlainText(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
	}{
		{name: "plain", contentType: "text/plain"},
		{name: "plain with charset", contentType: "text/plain; charset=utf-8"},
		{name: "markdown", contentType: "text/markdown"},
		{name: "missing type", contentType: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize([]byte("hello"), tt.contentType)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != "hello" {
				t.Errorf("expected passthrough, got %q", got)
			}
		})
	}
}

func TestNormalizeHTML(t *testing.T) {
	html := `<html><head><title>t</title></head><body><article><p>De Gemeente Utrecht publiceert documenten.</p></article></body></html>`
	got, err := Normalize([]byte(html), "text/html; charset=utf-8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(got, "Gemeente Utrecht") {
		t.Errorf("expected readable text, got %q", got)
	}
	if strings.Contains(got, "<p>") {
		t.Errorf("markup must be stripped, got %q", got)
	}
}

func TestNormalizeUnsupported(t *testing.T) {
	_, err := Normalize([]byte{0x25, 0x50, 0x44, 0x46}, "application/pdf")
	var unsupported ErrUnsupportedType
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if unsupported.ContentType != "application/pdf" {
		t.Errorf("unexpected content type in error: %v", unsupported)
	}
}
