package cache

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

// hashKey builds "prefix:digest" where digest covers parts joined by NUL,
// so keys stay short whatever the length of a package reference.
func hashKey(prefix string, parts ...string) string {
	return prefix + ":" + Hash([]byte(strings.Join(parts, "\x00")))
}

// Hash returns the 64-character hex blake3 digest of data.
func Hash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
