package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// EncodeCursor turns a continuation key into an opaque URL-safe token.
// A nil or empty key encodes to "".
func EncodeCursor(key Key) string {
	if len(key) == 0 {
		return ""
	}
	b, err := json.Marshal(key)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor reverses EncodeCursor. An empty token decodes to a nil key.
func DecodeCursor(token string) (Key, error) {
	if token == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var key Key
	if err := json.Unmarshal(b, &key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidCursor)
	}
	return key, nil
}
