package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jonwraymond/querycache/transport"
)

// MaxKeyLength is the maximum allowed length for a request key.
const MaxKeyLength = 512

// RequestKey is the deterministic identity of a query or mutation call.
type RequestKey string

// Keyer derives request keys from an operation and its parameters.
//
// Contract:
// - Determinism: semantically equal parameters produce the same key regardless
//   of map iteration order or struct field order.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(kind transport.Kind, name string, params any) (RequestKey, error)
}

// DefaultKeyer generates SHA-256 based request keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Key generates a deterministic request key.
// Format: <kind>:<name>:<hash>
// where hash is the first 32 hex characters of SHA-256(canonical JSON(params)).
//
// Parameters are normalized through JSON first, so a struct and a map with the
// same JSON fields share a key. Numbers keep their JSON literal form, so the
// raw literals 5 and 5.0 (json.Number or json.RawMessage) are different keys.
func (k *DefaultKeyer) Key(kind transport.Kind, name string, params any) (RequestKey, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: empty operation name", ErrInvalidKey)
	}

	normalized, err := normalize(params)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	canonical, err := canonicalize(normalized)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	hash := sha256.Sum256(canonical)
	key := RequestKey(kind.String() + ":" + name + ":" + hex.EncodeToString(hash[:16]))
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// ValidateKey checks that key is usable as a request key.
func ValidateKey(key RequestKey) error {
	if strings.TrimSpace(string(key)) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(string(key), "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

// normalize converts arbitrary parameters into the generic JSON value tree.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// canonicalize produces a deterministic JSON representation of the input.
// Maps are sorted by key to ensure consistent ordering.
func canonicalize(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}

	switch val := v.(type) {
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	default:
		return json.Marshal(v)
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}
		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, ']'), nil
}

var _ Keyer = (*DefaultKeyer)(nil)
