package types

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// CanonicalJSON re-encodes v with sorted object keys and no insignificant
// whitespace, mirroring json.dumps(..., sort_keys=True) in the Python
// harness this package is ported from. Go's encoding/json already sorts
// map[string]any keys and emits compact output; round-tripping through an
// untyped value guarantees struct fields are sorted too, so hashes stay
// stable regardless of the Go struct's declared field order.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// SHA256Hex returns the lowercase hex SHA-256 digest of b.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// CanonicalSHA256 canonicalizes v and returns its SHA-256 hex digest.
// Panics only on programmer error (v not JSON-marshalable), matching the
// Python harness's assumption that hashed structures are always plain
// dicts/lists of JSON-safe values.
func CanonicalSHA256(v any) string {
	b, err := CanonicalJSON(v)
	if err != nil {
		panic("types: CanonicalSHA256: value is not JSON-marshalable: " + err.Error())
	}
	return SHA256Hex(b)
}
