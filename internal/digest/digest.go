package digest

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
)

// ErrUnsupportedAlgorithm is returned for hash algorithm names the gateway
// integration does not know about. There is no fallback.
var ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")

// Algorithm identifies a digest function accepted by IPG Connect.
type Algorithm string

const (
	SHA1   Algorithm = "SHA1"
	SHA256 Algorithm = "SHA256"
	SHA384 Algorithm = "SHA384"
	SHA512 Algorithm = "SHA512"
)

// Default is the algorithm the gateway assumes when hash_algorithm is not sent.
const Default = SHA256

var constructors = map[Algorithm]func() hash.Hash{
	SHA1:   sha1.New,
	SHA256: sha256.New,
	SHA384: sha512.New384,
	SHA512: sha512.New,
}

// ParseAlgorithm resolves a gateway algorithm name such as "SHA256",
// "sha512" or "SHA-256".
func ParseAlgorithm(name string) (Algorithm, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), "-", ""))
	alg := Algorithm(normalized)
	if _, ok := constructors[alg]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
	return alg, nil
}

func (a Algorithm) String() string {
	return string(a)
}

// Compute hex-encodes material and hashes the encoded text with alg.
// The result is a lowercase hex string.
func Compute(material string, alg Algorithm) (string, error) {
	newHash, ok := constructors[alg]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(alg))
	}
	h := newHash()
	h.Write([]byte(hex.EncodeToString([]byte(material))))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Equal compares two digests in constant time. Hex case is significant.
func Equal(expected, supplied string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) == 1
}
