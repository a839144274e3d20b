package cidutil

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// Fingerprint returns a CIDv1 string (raw multicodec, sha2-256 multihash)
// identifying value. Equal values always produce equal fingerprints.
func Fingerprint(value []byte) string {
	id, err := FingerprintCID(value)
	if err != nil {
		// multihash.Sum only errors for invalid inputs; with SHA2_256 and -1 length,
		// this should be unreachable.
		return ""
	}
	return id.String()
}

// FingerprintCID is Fingerprint returning the parsed cid.Cid.
func FingerprintCID(value []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(value, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// Short returns the last n characters of a fingerprint string. The tail is used
// because every CIDv1 raw/sha256 string shares the same multibase prefix.
func Short(fp string, n int) string {
	if n <= 0 || len(fp) <= n {
		return fp
	}
	return fp[len(fp)-n:]
}
