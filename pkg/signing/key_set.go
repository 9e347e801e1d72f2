package signing

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrNoTrustedKey is returned when a signature does not verify against any key in the set.
var ErrNoTrustedKey = errors.New("No trusted key matches signature")

// KeySet is the set of public keys trusted to sign payment assertions. More than one key may be
// trusted at a time so that rail keys can be rotated without downtime.
type KeySet struct {
	keys []PublicKey
}

// NewKeySet returns a key set trusting the given keys.
func NewKeySet(keys ...PublicKey) *KeySet {
	ks := &KeySet{}
	for _, k := range keys {
		if !k.IsEmpty() {
			ks.keys = append(ks.keys, k)
		}
	}
	return ks
}

// ParseKeySet decodes a comma separated list of public key strings.
func ParseKeySet(s string) (*KeySet, error) {
	var keys []PublicKey
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if len(part) == 0 {
			continue
		}

		k, err := DecodePublicKeyString(part)
		if err != nil {
			return nil, errors.Wrapf(err, "trusted key %q", part)
		}
		keys = append(keys, k)
	}

	return NewKeySet(keys...), nil
}

// Len returns the number of trusted keys.
func (ks *KeySet) Len() int {
	return len(ks.keys)
}

// Keys returns a copy of the trusted keys.
func (ks *KeySet) Keys() []PublicKey {
	return append([]PublicKey(nil), ks.keys...)
}

// Verify checks the signature against every trusted key and returns the key that produced it.
func (ks *KeySet) Verify(hash []byte, sig Signature) (PublicKey, error) {
	for _, k := range ks.keys {
		if sig.Verify(hash, k) {
			return k, nil
		}
	}

	return PublicKey{}, ErrNoTrustedKey
}
