// Package publicid derives the read-only identifiers handed to viewers in
// place of the write-capable user key.
package publicid

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Length is the number of hex characters kept from the digest.
const Length = 16

// Derive returns the public id for a user key and optional player id.
// A zero player id derives from the user key alone.
func Derive(userKey string, playerID int64) string {
	input := userKey
	if playerID != 0 {
		input = userKey + ":" + strconv.FormatInt(playerID, 10)
	}
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:Length]
}
