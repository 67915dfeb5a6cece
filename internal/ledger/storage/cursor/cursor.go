// Package cursor provides opaque pagination token encoding/decoding.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Cursor marks the last record of a page in the recent-products ordering
// (creation time descending, id descending as tiebreak).
type Cursor struct {
	// CreatedAtMillis is the creation timestamp of the last returned record.
	CreatedAtMillis int64 `json:"at"`
	// ID is the id of the last returned record, breaking timestamp ties.
	ID string `json:"id"`
}

// Encode encodes a cursor to an opaque base64 string.
func Encode(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

// Decode decodes an opaque base64 string to a cursor.
// Returns an error if the token is invalid or malformed.
func Decode(token string) (Cursor, error) {
	if token == "" {
		return Cursor{}, fmt.Errorf("empty token")
	}

	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("decode base64: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return Cursor{}, fmt.Errorf("unmarshal cursor: %w", err)
	}

	if strings.TrimSpace(c.ID) == "" {
		return Cursor{}, fmt.Errorf("cursor id is required")
	}

	return c, nil
}
