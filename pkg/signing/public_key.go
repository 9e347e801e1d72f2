package signing

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ripemd160"
)

// PublicKey is a secp256k1 public key.
type PublicKey struct {
	key *btcec.PublicKey
}

// DecodePublicKeyString converts key text to a key.
func DecodePublicKeyString(s string) (PublicKey, error) {
	b, err := decodeCheck(s)
	if err != nil {
		return PublicKey{}, err
	}

	return PublicKeyFromBytes(b)
}

// PublicKeyFromBytes parses a serialized public key.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	pubkey, err := btcec.ParsePubKey(b, btcec.S256())
	if err != nil {
		return PublicKey{}, errors.Wrap(err, "parse public key")
	}

	return PublicKey{key: pubkey}, nil
}

// String returns the compressed key data with a checksum, encoded with Base58.
func (k PublicKey) String() string {
	return encodeCheck(k.Bytes())
}

// Bytes returns serialized compressed key data.
func (k PublicKey) Bytes() []byte {
	if k.key == nil {
		return nil
	}
	return k.key.SerializeCompressed()
}

// IsEmpty returns true if the key was never set.
func (k PublicKey) IsEmpty() bool {
	return k.key == nil
}

// ID returns the hex encoded hash160 of the compressed key. It identifies a key in logs and
// audit records without exposing the key itself.
func (k PublicKey) ID() string {
	return hex.EncodeToString(hash160(k.Bytes()))
}

// MarshalText implements encoding.TextMarshaler.
func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PublicKey) UnmarshalText(text []byte) error {
	pk, err := DecodePublicKeyString(string(text))
	if err != nil {
		return err
	}

	*k = pk
	return nil
}

func hash160(b []byte) []byte {
	h := ripemd160.New()
	h.Write(Sha256(b))
	return h.Sum(nil)
}
