package signing

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcutil/base58"
	"github.com/pkg/errors"
)

var (
	// ErrBadCheckSum is returned when the trailing checksum of encoded text does not match.
	ErrBadCheckSum = errors.New("Bad checksum")

	// ErrBadType is returned when an encoded key carries an unknown type byte.
	ErrBadType = errors.New("Unknown key type")
)

// DoubleSha256 returns sha256(sha256(b)).
func DoubleSha256(b []byte) []byte {
	return chainhash.DoubleHashB(b)
}

// encodeCheck appends a 4 byte double sha256 checksum and encodes the result with Base58.
func encodeCheck(b []byte) string {
	checksum := DoubleSha256(b)

	out := make([]byte, 0, len(b)+4)
	out = append(out, b...)
	out = append(out, checksum[:4]...)

	return base58.Encode(out)
}

// decodeCheck reverses encodeCheck.
func decodeCheck(s string) ([]byte, error) {
	b := base58.Decode(s)
	if len(b) < 5 {
		return nil, ErrBadCheckSum
	}

	checksum := DoubleSha256(b[:len(b)-4])
	if !bytes.Equal(checksum[:4], b[len(b)-4:]) {
		return nil, ErrBadCheckSum
	}

	return b[:len(b)-4], nil
}
