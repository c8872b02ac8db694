package importer

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// HashContent computes the SHA256 hex digest of a document
func HashContent(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

// HashFile computes the SHA256 hex digest of a file on disk
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
