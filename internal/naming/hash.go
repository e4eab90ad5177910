package naming

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"

	"github.com/minio/crc64nvme"
	"github.com/mr-tron/base58"
)

// Hash functions
const (
	HashCRC64NVME = "crc64nvme"
	HashSHA256    = "sha256"
)

// Digest encodings
const (
	DigestHex       = "hex"
	DigestBase58    = "base58"
	DigestBase64URL = "base64url"
)

// DefaultHashLength matches the 16 hex characters of a crc64 digest.
const DefaultHashLength = 16

var (
	// ErrUnknownHashFunction indicates an unsupported output.hashFunction
	ErrUnknownHashFunction = errors.New("unknown hash function")
	// ErrUnknownDigest indicates an unsupported output.hashDigest
	ErrUnknownDigest = errors.New("unknown hash digest")
)

// Hasher produces the content hashes used by [contenthash], [chunkhash] and [fullhash].
type Hasher struct {
	function string
	digest   string
	length   int
}

// NewHasher validates the hash settings. Empty values select the defaults.
func NewHasher(function, digest string, length int) (Hasher, error) {
	if function == "" {
		function = HashCRC64NVME
	}
	if digest == "" {
		digest = DigestHex
	}
	if length <= 0 {
		length = DefaultHashLength
	}

	switch function {
	case HashCRC64NVME, HashSHA256:
	default:
		return Hasher{}, fmt.Errorf("%w: %q", ErrUnknownHashFunction, function)
	}

	switch digest {
	case DigestHex, DigestBase58, DigestBase64URL:
	default:
		return Hasher{}, fmt.Errorf("%w: %q", ErrUnknownDigest, digest)
	}

	return Hasher{function: function, digest: digest, length: length}, nil
}

// Sum hashes the given parts in order and returns the encoded, truncated digest.
func (h Hasher) Sum(parts ...[]byte) string {
	var sum []byte
	switch h.function {
	case HashSHA256:
		sum = write(sha256.New(), parts)
	default:
		c := crc64nvme.New()
		for _, p := range parts {
			c.Write(p)
		}
		sum = binary.BigEndian.AppendUint64(nil, c.Sum64())
	}

	var encoded string
	switch h.digest {
	case DigestBase58:
		encoded = base58.Encode(sum)
	case DigestBase64URL:
		encoded = base64.RawURLEncoding.EncodeToString(sum)
	default:
		encoded = hex.EncodeToString(sum)
	}

	if h.length > 0 && len(encoded) > h.length {
		return encoded[:h.length]
	}
	return encoded
}

func write(h hash.Hash, parts [][]byte) []byte {
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}
