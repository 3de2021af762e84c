package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Document is a single bibliographic entry as returned by the Scopus search
// API. The raw JSON is preserved byte for byte and exposed through Raw so
// that a persisted document list round-trips without re-encoding or
// normalizing the source payload.
type Document struct {
	raw json.RawMessage
}

// NewDocument creates a Document from a raw JSON entry.
func NewDocument(raw json.RawMessage) Document {
	buf := make(json.RawMessage, len(raw))
	copy(buf, raw)
	return Document{raw: buf}
}

// Raw returns the unmodified JSON bytes of the entry.
func (d Document) Raw() json.RawMessage {
	return d.raw
}

// MarshalJSON emits the preserved bytes. encoding/json compacts interior
// whitespace in the result; key order and values are untouched. Callers
// needing the exact source bytes use Raw instead.
func (d Document) MarshalJSON() ([]byte, error) {
	if len(d.raw) == 0 {
		return []byte("null"), nil
	}
	return d.raw, nil
}

// UnmarshalJSON stores the raw bytes without interpretation.
func (d *Document) UnmarshalJSON(b []byte) error {
	d.raw = make(json.RawMessage, len(b))
	copy(d.raw, b)
	return nil
}

// Summary decodes the typed tabular projection of the entry.
func (d Document) Summary() (DocumentSummary, error) {
	var s DocumentSummary
	if len(d.raw) == 0 {
		return s, fmt.Errorf("empty document: %w", ErrNoData)
	}
	if err := json.Unmarshal(d.raw, &s); err != nil {
		return DocumentSummary{}, fmt.Errorf("decoding document summary: %w", err)
	}
	return s, nil
}

// DocumentSummary is the tabular, read-only projection of a search entry.
// It is rebuilt from the raw documents on every fetch and never mutated
// independently.
type DocumentSummary struct {
	Identifier      string  `json:"dc:identifier"` // "SCOPUS_ID:85012345678"
	EID             string  `json:"eid"`           // "2-s2.0-85012345678"
	DOI             string  `json:"prism:doi"`
	Title           string  `json:"dc:title"`
	Creator         string  `json:"dc:creator"`
	PublicationName string  `json:"prism:publicationName"`
	Volume          string  `json:"prism:volume"`
	PageRange       string  `json:"prism:pageRange"`
	CoverDate       string  `json:"prism:coverDate"` // "2024-01-15"
	CitedByCount    FlexInt `json:"citedby-count"`
	AggregationType string  `json:"prism:aggregationType"`
	SubType         string  `json:"subtype"`
}

// ScopusID returns the identifier with the "SCOPUS_ID:" prefix stripped.
func (s DocumentSummary) ScopusID() string {
	return strings.TrimSpace(strings.TrimPrefix(s.Identifier, "SCOPUS_ID:"))
}

// FlexInt is an integer that unmarshals from either a JSON number or a JSON
// string. Scopus returns most counters as quoted strings.
type FlexInt int

// Int returns the value as a plain int.
func (f FlexInt) Int() int {
	return int(f)
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("parsing %q as integer: %w", s, err)
		}
		*f = FlexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexInt(n)
	return nil
}
