package sampling

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"sync"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

// KeySize is the size in bytes of the keys produced by [DeriveKey].
const KeySize = 32

// PRNG is an interface for secure generation of random bytes.
// It is the randomness source consumed by the share conversion and
// the matrix-vector protocols.
type PRNG interface {
	io.Reader
}

// KeyedPRNG deterministically expands a key into a stream of bytes using the
// blake2b XOF. Two [KeyedPRNG] created with the same key produce the same stream.
// Read is guarded by a mutex, but the stream is only reproducible if the
// calls are not concurrent.
type KeyedPRNG struct {
	mutex sync.Mutex
	key   []byte
	xof   blake2b.XOF
}

// NewKeyedPRNG creates a new instance of [KeyedPRNG].
// A nil key is treated as an empty key, which is INSECURE.
func NewKeyedPRNG(key []byte) (*KeyedPRNG, error) {
	var err error
	prng := new(KeyedPRNG)
	prng.key = make([]byte, len(key))
	copy(prng.key, key)
	prng.xof, err = blake2b.NewXOF(blake2b.OutputLengthUnknown, key)
	return prng, err
}

// NewPRNG creates a new instance of [KeyedPRNG] seeded with a fresh
// random key read from crypto/rand.
func NewPRNG() (*KeyedPRNG, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return NewKeyedPRNG(key)
}

// Key returns a copy of the key used to seed the PRNG.
func (prng *KeyedPRNG) Key() (key []byte) {
	key = make([]byte, len(prng.key))
	copy(key, prng.key)
	return
}

// Read reads len(sum) bytes from the stream.
func (prng *KeyedPRNG) Read(sum []byte) (n int, err error) {
	prng.mutex.Lock()
	defer prng.mutex.Unlock()
	return prng.xof.Read(sum)
}

// Reset resets the PRNG to the start of its stream.
func (prng *KeyedPRNG) Reset() {
	prng.mutex.Lock()
	defer prng.mutex.Unlock()
	prng.xof.Reset()
}

// DeriveKey derives a [KeySize]-byte key from a master seed, a label and
// a list of integer indices (for example a party identifier) with blake3.
// Distinct (label, indices) pairs yield independent keys.
func DeriveKey(seed []byte, label string, indices ...uint64) []byte {
	hasher := blake3.New()

	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(len(seed)))
	hasher.Write(buf[:])
	hasher.Write(seed)

	binary.LittleEndian.PutUint64(buf[:], uint64(len(label)))
	hasher.Write(buf[:])
	hasher.Write([]byte(label))

	for _, idx := range indices {
		binary.LittleEndian.PutUint64(buf[:], idx)
		hasher.Write(buf[:])
	}

	return hasher.Sum(nil)[:KeySize]
}

// NewDerivedPRNG returns a [KeyedPRNG] keyed with DeriveKey(seed, label, indices...).
func NewDerivedPRNG(seed []byte, label string, indices ...uint64) (*KeyedPRNG, error) {
	return NewKeyedPRNG(DeriveKey(seed, label, indices...))
}
