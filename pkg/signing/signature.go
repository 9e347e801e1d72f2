package signing

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec"
	"github.com/pkg/errors"
)

// Signature is a DER encoded secp256k1 ECDSA signature.
type Signature struct {
	sig *btcec.Signature
}

// DecodeSignatureString converts signature text to a signature.
func DecodeSignatureString(s string) (Signature, error) {
	b, err := decodeCheck(s)
	if err != nil {
		return Signature{}, err
	}

	return SignatureFromBytes(b)
}

// SignatureFromBytes parses a strict DER signature.
func SignatureFromBytes(b []byte) (Signature, error) {
	sig, err := btcec.ParseDERSignature(b, btcec.S256())
	if err != nil {
		return Signature{}, errors.Wrap(err, "parse signature")
	}

	return Signature{sig: sig}, nil
}

// String returns the signature data with a checksum, encoded with Base58.
func (s Signature) String() string {
	return encodeCheck(s.Bytes())
}

// Bytes returns the DER serialization.
func (s Signature) Bytes() []byte {
	if s.sig == nil {
		return nil
	}
	return s.sig.Serialize()
}

// Verify returns true if the signature is valid for this public key and hash.
func (s Signature) Verify(hash []byte, pubkey PublicKey) bool {
	if s.sig == nil || pubkey.key == nil {
		return false
	}

	return s.sig.Verify(hash, pubkey.key)
}

// Sha256 returns the sha256 digest of b.
func Sha256(b []byte) []byte {
	h := sha256.Sum256(b)
	return h[:]
}
