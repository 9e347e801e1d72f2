package signing

import (
	"crypto/rand"

	"github.com/btcsuite/btcd/btcec"
	"github.com/pkg/errors"
)

const (
	typePrivKey = 0x80
	keyLength   = 32
)

var (
	// ErrBadKeyLength is returned when a serialized private key is not 32 bytes.
	ErrBadKeyLength = errors.New("Key has invalid length")
)

// Key is a secp256k1 private key used to sign payment assertions.
type Key struct {
	key *btcec.PrivateKey
}

// GenerateKey randomly generates a new key.
func GenerateKey() (*Key, error) {
	b := make([]byte, keyLength)
	for {
		if _, err := rand.Read(b); err != nil {
			return nil, errors.Wrap(err, "read random")
		}

		// Reject zero and values outside the curve order.
		k, err := KeyFromBytes(b)
		if err == nil {
			return k, nil
		}
	}
}

// KeyFromBytes creates a key from a 256 bit big-endian integer.
func KeyFromBytes(b []byte) (*Key, error) {
	if len(b) != keyLength {
		return nil, ErrBadKeyLength
	}

	n := btcec.S256().N
	privkey, _ := btcec.PrivKeyFromBytes(btcec.S256(), b)
	if privkey.D.Sign() == 0 || privkey.D.Cmp(n) >= 0 {
		return nil, ErrBadKeyLength
	}

	return &Key{key: privkey}, nil
}

// DecodeKeyString converts key text, as produced by String, to a key.
func DecodeKeyString(s string) (*Key, error) {
	b, err := decodeCheck(s)
	if err != nil {
		return nil, err
	}

	if len(b) == 0 || b[0] != typePrivKey {
		return nil, ErrBadType
	}

	return KeyFromBytes(b[1:])
}

// String returns the type followed by the key data with a checksum, encoded with Base58.
func (k *Key) String() string {
	return encodeCheck(append([]byte{typePrivKey}, k.key.Serialize()...))
}

// PublicKey returns the public key.
func (k *Key) PublicKey() PublicKey {
	return PublicKey{key: k.key.PubKey()}
}

// Sign returns the signature of the hash.
func (k *Key) Sign(hash []byte) (Signature, error) {
	sig, err := k.key.Sign(hash)
	if err != nil {
		return Signature{}, errors.Wrap(err, "sign")
	}

	return Signature{sig: sig}, nil
}
