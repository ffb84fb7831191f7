package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Verify reports an error when data does not hash to want.
// An empty want is accepted for entries written before checksums were recorded.
func Verify(data []byte, want string) error {
	if want == "" {
		return nil
	}
	if got := Sum(data); got != want {
		return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
	}
	return nil
}
