// Package decode reads configuration documents that may be written either
// as JSON or as YAML.
package decode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Document decodes data into v. Documents whose first non-blank byte opens
// a JSON object or array are decoded as strict JSON; everything else goes
// through the YAML decoder.
func Document(data []byte, v interface{}) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return io.ErrUnexpectedEOF
	}
	if IsJSON(trimmed) {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("json: %w", err)
		}
		if dec.More() {
			return fmt.Errorf("json: trailing data after document")
		}
		return nil
	}
	if err := yaml.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("yaml: %w", err)
	}
	return nil
}

// IsJSON reports whether data looks like a JSON document.
func IsJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}
