package domain

import (
	"strings"
	"time"
)

// SourceType identifies where a document's text came from.
type SourceType string

const (
	SourceTypeYouTube SourceType = "youtube"
	SourceTypePDF     SourceType = "pdf"
)

// IsValidSourceType reports whether t is a known source type.
func IsValidSourceType(t SourceType) bool {
	switch t {
	case SourceTypeYouTube, SourceTypePDF:
		return true
	}
	return false
}

// Document represents one ingested knowledge source. Documents are immutable
// after a successful ingestion; deleting one cascades to its chunks.
type Document struct {
	ID         string
	Title      string
	SourceType SourceType
	SourceURL  string
	CreatedAt  time.Time
}

// Validate checks the invariants required before a document is persisted.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrMissingRequiredField
	}
	if !IsValidSourceType(d.SourceType) {
		return ErrInvalidSourceType
	}
	return nil
}
