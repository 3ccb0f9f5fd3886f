// Package keys builds storage keys for cached responses.
package keys

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// Call returns a deterministic key "<ns>:<method>:<hash>" where hash is the
// first 16 hex chars of the SHA-256 of the compacted params. Params that differ
// only in insignificant whitespace share a key.
func Call(ns, method string, params []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, params); err != nil {
		buf.Reset()
		buf.Write(params)
	}
	sum := sha256.Sum256(buf.Bytes())
	return fmt.Sprintf("%s:%s:%x", ns, method, sum[:8])
}
