// Encodes and decodes whole-collection snapshots.

package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned by Decode when data is not a snapshot.
var ErrMalformed = errors.New("malformed snapshot")

// Encode serializes c as an indented JSON object terminated by a newline.
func Encode(c *Collection) ([]byte, error) {
	raw, err := c.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal collection: %w", err)
	}
	var buf bytes.Buffer
	buf.Grow(len(raw) + len(raw)/4)
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to indent snapshot: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Decode parses a snapshot. The top level must be a JSON object.
func Decode(data []byte) (*Collection, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrMalformed)
	}
	if data[0] != '{' {
		return nil, fmt.Errorf("%w: top level is not an object", ErrMalformed)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	c := &Collection{}
	if err := c.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return c, nil
}
