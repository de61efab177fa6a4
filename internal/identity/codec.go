package identity

import (
	"fmt"

	"github.com/segmentio/encoding/json"

	"authindex/internal/authority"
)

// EncodeEntry serializes an entry into the payload stored under both keys.
func EncodeEntry(e *authority.Entry) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("encode entry: nil entry")
	}
	return json.Marshal(e)
}

// DecodeEntry parses a stored payload.
func DecodeEntry(raw []byte) (*authority.Entry, error) {
	var e authority.Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	return &e, nil
}

func encodeExternal(ids map[string]string) ([]byte, error) {
	return json.Marshal(ids)
}

func decodeExternal(raw []byte) (map[string]string, error) {
	ids := make(map[string]string)
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode external ids: %w", err)
	}
	return ids, nil
}
