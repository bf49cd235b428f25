// Package canon implements the deterministic JSON encoding used for every
// cross-process integrity check in the system: decision hashes, turn
// proofs, outcome hashes, policy hashes, and attestation payload hashes.
// A reimplementation that does not byte-match this encoding will produce
// attestations that verify as invalid against ours, and vice versa.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Marshal serializes v into the canonical byte form: object keys are
// sorted by lexicographic comparison of their UTF-8 code points, arrays
// preserve order, and primitives are emitted in their shortest
// round-trip form. v is first round-tripped through encoding/json so
// that structs, maps, and already-decoded json.Number/interface{} trees
// are normalized identically.
func Marshal(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: marshal input: %w", err)
	}

	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canon: decode for canonicalization: %w", err)
	}

	var buf []byte
	buf, err = encodeValue(buf, generic)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Hash returns the SHA-256 digest of the canonical encoding of v.
func Hash(v any) ([32]byte, error) {
	b, err := Marshal(v)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(b), nil
}

// HashHex returns Hash as a lowercase hex string, unprefixed.
func HashHex(v any) (string, error) {
	h, err := Hash(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h), nil
}

func encodeValue(buf []byte, v any) ([]byte, error) {
	switch t := v.(type) {
	case nil:
		return append(buf, "null"...), nil
	case bool:
		if t {
			return append(buf, "true"...), nil
		}
		return append(buf, "false"...), nil
	case json.Number:
		return encodeNumber(buf, t)
	case string:
		return encodeString(buf, t), nil
	case []any:
		buf = append(buf, '[')
		for i, item := range t {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			buf, err = encodeValue(buf, item)
			if err != nil {
				return nil, err
			}
		}
		return append(buf, ']'), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = encodeString(buf, k)
			buf = append(buf, ':')
			var err error
			buf, err = encodeValue(buf, t[k])
			if err != nil {
				return nil, err
			}
		}
		return append(buf, '}'), nil
	default:
		return nil, fmt.Errorf("canon: unsupported value type %T", v)
	}
}

func encodeNumber(buf []byte, n json.Number) ([]byte, error) {
	if i, err := n.Int64(); err == nil {
		return append(buf, strconv.FormatInt(i, 10)...), nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, fmt.Errorf("canon: invalid number %q: %w", n.String(), err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("canon: non-finite number %q", n.String())
	}
	return append(buf, strconv.FormatFloat(f, 'g', -1, 64)...), nil
}

func encodeString(buf []byte, s string) []byte {
	// Round-trip through encoding/json for escaping; it already produces
	// the shortest valid representation for the code points involved.
	b, _ := json.Marshal(s)
	return append(buf, b...)
}
