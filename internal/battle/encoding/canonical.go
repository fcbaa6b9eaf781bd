// Package encoding provides canonical JSON and content hashes for battle logs.
package encoding

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/louisbranch/arena/internal/battle"
)

// CanonicalJSON produces deterministic JSON: object keys sorted
// lexicographically, no insignificant whitespace and no HTML escaping.
// Numbers keep their literal form so large integers survive the round trip.
func CanonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	w := canonicalWriter{}
	w.enc = json.NewEncoder(&w.scratch)
	w.enc.SetEscapeHTML(false)
	if err := w.write(tree); err != nil {
		return nil, err
	}
	return w.out.Bytes(), nil
}

// canonicalWriter walks a decoded JSON tree. Scalars go through an encoder
// with HTML escaping off; containers are written by hand.
type canonicalWriter struct {
	out     bytes.Buffer
	scratch bytes.Buffer
	enc     *json.Encoder
}

func (w *canonicalWriter) write(v any) error {
	switch val := v.(type) {
	case map[string]any:
		w.out.WriteByte('{')
		for i, k := range slices.Sorted(maps.Keys(val)) {
			if i > 0 {
				w.out.WriteByte(',')
			}
			if err := w.scalar(k); err != nil {
				return err
			}
			w.out.WriteByte(':')
			if err := w.write(val[k]); err != nil {
				return err
			}
		}
		w.out.WriteByte('}')
	case []any:
		w.out.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				w.out.WriteByte(',')
			}
			if err := w.write(item); err != nil {
				return err
			}
		}
		w.out.WriteByte(']')
	default:
		return w.scalar(val)
	}
	return nil
}

func (w *canonicalWriter) scalar(v any) error {
	w.scratch.Reset()
	if err := w.enc.Encode(v); err != nil {
		return fmt.Errorf("encode %T: %w", v, err)
	}
	w.out.Write(bytes.TrimSuffix(w.scratch.Bytes(), []byte{'\n'}))
	return nil
}

// ContentHash returns the SHA-256 of v's canonical JSON truncated to 128 bits
// (32 hex characters).
func ContentHash(v any) (string, error) {
	canonical, err := CanonicalJSON(v)
	if err != nil {
		return "", fmt.Errorf("canonical json: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:16]), nil
}

// LogHash identifies an action log. Two runs of the same battle with the same
// seed and inputs produce the same hash; a nil log hashes like an empty one.
func LogHash(actions []battle.Action) (string, error) {
	if actions == nil {
		actions = []battle.Action{}
	}
	return ContentHash(actions)
}
