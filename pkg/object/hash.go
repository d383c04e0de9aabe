package object

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashBytes computes the raw SHA-256 hash of data and returns it as a
// lowercase hex-encoded Hash.
func HashBytes(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashOf computes the content identifier of an object: SHA-256 over the
// envelope "kind len\0" followed by the canonical text encoding. The
// identity format is fixed and independent of whichever codec persists the
// object, so both codecs address identical content at identical keys.
func HashOf(o Object) Hash {
	data := canonicalEncode(o)
	header := fmt.Sprintf("%s %d\x00", o.Kind(), len(data))
	h := sha256.New()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// BucketCount is the fan-out of a sharded tree level.
const BucketCount = 32

// NormalizedSizeLimit is the maximum number of direct entries a tree level
// holds before it is redistributed into buckets.
const NormalizedSizeLimit = 256

// bucketIndex selects the bucket for an entry name at the given sharding
// depth. It depends only on the name, never on insertion order, which is
// what makes tree identifiers insertion-order independent. Changing this
// function is a breaking format change.
func bucketIndex(name string, depth int) int {
	sum := sha256.Sum256([]byte(name))
	return int(sum[depth%len(sum)]) % BucketCount
}
