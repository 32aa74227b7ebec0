package graph

import (
	"hash"

	"github.com/minio/highwayhash"
)

var key = []byte("0123456789ABCDEF0123456789ABCDEF")

// Fingerprint accumulates project sources into a single digest used to detect changes
type Fingerprint struct {
	hash hash.Hash64
}

// NewFingerprint creates an empty fingerprint
func NewFingerprint() (*Fingerprint, error) {
	h, err := highwayhash.New64(key)
	if err != nil {
		return nil, err
	}
	return &Fingerprint{hash: h}, nil
}

// Add adds one file; callers add files in a stable order
func (f *Fingerprint) Add(path string, content []byte) {
	f.hash.Write([]byte(path))
	f.hash.Write([]byte{0})
	f.hash.Write(content)
	f.hash.Write([]byte{0})
}

// Sum returns the digest
func (f *Fingerprint) Sum() uint64 {
	return f.hash.Sum64()
}
