package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	MinPairCount = 1
	MaxPairCount = 10
)

var ErrInvalidWordPair = errors.New("word pair must be an array of two strings")

// ClampPairCount forces n into [MinPairCount, MaxPairCount].
func ClampPairCount(n int) int {
	if n < MinPairCount {
		return MinPairCount
	}
	if n > MaxPairCount {
		return MaxPairCount
	}
	return n
}

// WordPair is an ordered pair of terms. On the wire it is ["a","b"].
type WordPair struct {
	A string
	B string
}

func (p WordPair) String() string {
	return p.A + " - " + p.B
}

func (p WordPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{p.A, p.B})
}

func (p *WordPair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return ErrInvalidWordPair
	}
	if len(raw) != 2 {
		return ErrInvalidWordPair
	}
	var a, b string
	if err := json.Unmarshal(raw[0], &a); err != nil {
		return ErrInvalidWordPair
	}
	if err := json.Unmarshal(raw[1], &b); err != nil {
		return ErrInvalidWordPair
	}
	p.A, p.B = a, b
	return nil
}

// CardID identifies a persisted card set. Servers have used both integer
// and UUID keys, so it decodes from a JSON number or string.
type CardID string

func (id CardID) String() string {
	return string(id)
}

func (id *CardID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = CardID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("card id: %w", err)
	}
	*id = CardID(n.String())
	return nil
}

func (id CardID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// ArtifactRef locates a downloadable rendering of a card set.
type ArtifactRef struct {
	URL      string
	Path     string
	Filename string
}

// Artifact is a downloaded rendering.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// GenerationResult is the outcome of one generation cycle.
type GenerationResult struct {
	Category string
	Pairs    []WordPair
	Artifact ArtifactRef
	// CardID is set when the result was persisted together with generation.
	CardID CardID
}

// SavedCardSet is a card set persisted on the server.
type SavedCardSet struct {
	ID          CardID     `json:"id"`
	OwnerID     CardID     `json:"user_id,omitempty"`
	DisplayName string     `json:"name,omitempty"`
	Category    string     `json:"category,omitempty"`
	Pairs       []WordPair `json:"word_pairs"`
	NumPairs    int        `json:"num_pairs,omitempty"`
	PDFFilename string     `json:"pdf_filename,omitempty"`
	CreatedAt   time.Time  `json:"-"`
	RawCreated  string     `json:"created_at,omitempty"`

	Artifact ArtifactRef `json:"-"`
}

// Normalize fills derived fields after decoding.
func (s *SavedCardSet) Normalize() {
	if s.DisplayName == "" {
		s.DisplayName = s.Category
	}
	if s.NumPairs == 0 {
		s.NumPairs = len(s.Pairs)
	}
	if s.RawCreated != "" && s.CreatedAt.IsZero() {
		s.CreatedAt = parseTimestamp(s.RawCreated)
	}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// RemoveCardSet returns list without the first entry whose ID is id, and
// whether such an entry existed. The input slice is not modified.
func RemoveCardSet(list []SavedCardSet, id CardID) ([]SavedCardSet, bool) {
	for i := range list {
		if list[i].ID == id {
			out := make([]SavedCardSet, 0, len(list)-1)
			out = append(out, list[:i]...)
			out = append(out, list[i+1:]...)
			return out, true
		}
	}
	return list, false
}
