// Package verify computes and checks whole-file digests across the
// three supported HashType values: MD5, CRC32 and SHA-256.
package verify

import (
	"crypto/md5"  //nolint:gosec
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"strings"

	"github.com/zoedl/zoedl/internal/model"
)

// MismatchError is returned by Verify when the computed digest doesn't
// match the expected value.
type MismatchError struct {
	Kind     model.HashType
	Expected string
	Actual   string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("verify: %s mismatch: expected %s got %s", e.Kind, e.Expected, e.Actual)
}

func newHasher(kind model.HashType) (hash.Hash, error) {
	switch kind {
	case model.HashMD5:
		return md5.New(), nil //nolint:gosec
	case model.HashCRC32:
		return crc32.NewIEEE(), nil
	case model.HashSHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("verify: unsupported hash kind %v", kind)
	}
}

// Compute returns the lowercase hex digest of path using kind.
func Compute(path string, kind model.HashType) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := newHasher(kind)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("verify: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify computes path's digest and compares it case-insensitively
// against expectedHex, returning a *MismatchError on failure.
func Verify(path string, kind model.HashType, expectedHex string) error {
	actual, err := Compute(path, kind)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, expectedHex) {
		return &MismatchError{Kind: kind, Expected: expectedHex, Actual: actual}
	}
	return nil
}
