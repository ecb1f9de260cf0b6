package store

import (
	"crypto/rand"
	"encoding/binary"
)

// Row ids are minted independently on every device, offline, with no
// coordination. A 2^50 space keeps the chance of any collision among
// 100k ids around 5e-6; a collision surfaces as a unique-constraint
// failure and is retried once with a fresh id.
const idSpace = int64(1) << 50

// NewID returns a sparse random row id in [1, 2^50).
func NewID() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	n := int64(binary.BigEndian.Uint64(buf[:]) & (uint64(idSpace) - 1))
	if n == 0 {
		n = 1
	}
	return n
}
