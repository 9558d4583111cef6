package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// MaxKeyLen bounds storage keys; longer user keys are replaced by a digest.
const MaxKeyLen = 250

// StorageKey isolates key under namespace. Keys that would push the result over
// MaxKeyLen (long URLs, composite keys) are replaced by "h:" + sha256 hex, which
// stays deterministic for the same input.
func StorageKey(namespace, key string) string {
	if len(namespace)+1+len(key) <= MaxKeyLen {
		return namespace + ":" + key
	}
	sum := sha256.Sum256([]byte(key))
	return namespace + ":h:" + hex.EncodeToString(sum[:])
}
