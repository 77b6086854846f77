// Package manifest computes zone manifest digests.
package manifest

import (
	"bytes"
	"crypto/sha256"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// DigestSize is the length of a manifest digest.
const DigestSize = sha256.Size

// Digest returns SHA256(join("|", sort(uuids))). The order of uuids does not
// matter; the caller passes only non-tombstoned sync record UUIDs.
func Digest(uuids []uuid.UUID) []byte {
	ids := make([]string, 0, len(uuids))
	for _, id := range uuids {
		ids = append(ids, id.String())
	}
	slices.Sort(ids)

	sum := sha256.Sum256([]byte(strings.Join(ids, "|")))
	return sum[:]
}

// Equal compares two digests. Empty digests never match, so a replica that
// has not computed its manifest yet is always treated as divergent.
func Equal(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return bytes.Equal(a, b)
}
