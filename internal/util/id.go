package util

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// FileID derives a stable identifier from a storage path. The same path
// always yields the same id, so a redelivered upload event collides with
// the existing row instead of creating a second one.
func FileID(storagePath string) string {
	sum := sha256.Sum256([]byte(storagePath))
	return "file_" + hex.EncodeToString(sum[:16])
}
