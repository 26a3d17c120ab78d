package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key builds a deterministic cache key from a readable prefix and
// arbitrary parts. Parts are JSON encoded (map keys sorted) and hashed, so
// equal inputs always yield equal keys regardless of their size.
func Key(prefix string, parts ...any) string {
	data, err := json.Marshal(parts)
	if err != nil {
		data = []byte(fmt.Sprintf("%#v", parts))
	}

	hash := sha256.Sum256(data)
	// 16 bytes keep keys short while staying collision-free in practice
	return prefix + ":" + hex.EncodeToString(hash[:16])
}
