// Package fileid derives stable identifiers for inbox batch files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const (
	pathPrefix    = "file:"
	contentPrefix = "batch:"
)

// PathID returns a stable ID for a file path. Same cleaned path, same ID.
func PathID(path string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(path)))
	return pathPrefix + hex.EncodeToString(hash[:])
}

// ContentID returns a stable ID for file contents, so a batch copied or rewritten
// unchanged is recognized as already applied.
func ContentID(data []byte) string {
	hash := sha256.Sum256(data)
	return contentPrefix + hex.EncodeToString(hash[:])
}
