package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownContentType is returned for names outside AllContentTypes.
var ErrUnknownContentType = errors.New("unsupported content type")

// ContentType identifies the kind of content held by one collection.
type ContentType string

const (
	ContentTypeDocument ContentType = "document"
	ContentTypeOffice   ContentType = "office"
	ContentTypeSchool   ContentType = "school"
	ContentTypeEvent    ContentType = "event"
)

// StructuredTypes lists the typed record kinds in search order.
var StructuredTypes = []ContentType{ContentTypeOffice, ContentTypeSchool, ContentTypeEvent}

// AllContentTypes lists every content type a tenant may own.
var AllContentTypes = []ContentType{ContentTypeDocument, ContentTypeOffice, ContentTypeSchool, ContentTypeEvent}

// Structured reports whether the type holds typed records rather than free text.
func (t ContentType) Structured() bool {
	switch t {
	case ContentTypeOffice, ContentTypeSchool, ContentTypeEvent:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (t ContentType) String() string { return string(t) }

// ParseContentType parses s case-insensitively.
func ParseContentType(s string) (ContentType, error) {
	t := ContentType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllContentTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownContentType, s)
}
