package storage

import (
	"crypto/sha256"
	"encoding/hex"
)

// DocumentID derives the deterministic document id
// "{source_id}_{first 12 hex chars of SHA-256(path)}", upholding the
// invariant that reinserting the same (source_id, path) always yields the
// same id.
func DocumentID(sourceID, path string) string {
	sum := sha256.Sum256([]byte(path))
	return sourceID + "_" + hex.EncodeToString(sum[:])[:12]
}

// ContentHash returns the SHA-256 hash of content, hex-encoded.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
