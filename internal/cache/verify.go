package cache

import (
	"fmt"

	"github.com/blackwell-systems/romctl/internal/util"
)

// VerifyFile checks the size and sha256 of the file at path. A negative
// size or empty checksum skips that check.
func VerifyFile(path string, expectedSize int64, expectedSHA256 string) error {
	got, n, err := util.HashFile(path)
	if err != nil {
		return fmt.Errorf("computing checksum: %w", err)
	}
	if expectedSize >= 0 && n != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, n)
	}
	if expectedSHA256 != "" && got != expectedSHA256 {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expectedSHA256, got)
	}
	return nil
}
