package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// FileChecksum returns the hex sha256 of a file's contents.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %v", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CombinedChecksum hashes several files together; a missing file contributes
// its path only, so removals also change the result.
func CombinedChecksum(paths ...string) string {
	var parts []string
	for _, p := range paths {
		sum, err := FileChecksum(p)
		if err != nil {
			sum = "missing"
		}
		parts = append(parts, p+"="+sum)
	}
	h := sha256.Sum256([]byte(strings.Join(parts, ";")))
	return hex.EncodeToString(h[:])
}

// HashKey builds a stable cache key from arbitrary string parts.
func HashKey(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h[:])
}
