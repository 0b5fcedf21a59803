package codec

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONCodec handles JSON fixtures
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Format returns the codec format identifier
func (c *JSONCodec) Format() string {
	return "json"
}

// Parse reads and validates a JSON fixture
func (c *JSONCodec) Parse(r io.Reader) (*Fixture, error) {
	var f Fixture
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fixture: %w", err)
	}
	return &f, nil
}

// Export writes the fixture as indented JSON
func (c *JSONCodec) Export(f *Fixture, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(f); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}
