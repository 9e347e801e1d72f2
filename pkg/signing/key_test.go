package signing

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestKey(t *testing.T) {
	pk := "619c335025c7f4012e556c2a58b2506e30b8511b53ade95ea316fd8c3286feb9"

	data, err := hex.DecodeString(pk)
	if err != nil {
		t.Fatal(err)
	}

	key, err := KeyFromBytes(data)
	if err != nil {
		t.Fatal(err)
	}

	reverseKey, err := DecodeKeyString(key.String())
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(reverseKey.PublicKey().Bytes(), key.PublicKey().Bytes()) {
		t.Errorf("Key decode: got %s, want %s", reverseKey.PublicKey(), key.PublicKey())
	}

	pub, err := DecodePublicKeyString(key.PublicKey().String())
	if err != nil {
		t.Fatal(err)
	}

	if pub.ID() != key.PublicKey().ID() {
		t.Errorf("Public key id: got %s, want %s", pub.ID(), key.PublicKey().ID())
	}

	if len(pub.ID()) != 40 {
		t.Errorf("Public key id length: got %d, want 40", len(pub.ID()))
	}
}

func TestKeyFromBytesRejectsBadLength(t *testing.T) {
	if _, err := KeyFromBytes(make([]byte, 31)); err != ErrBadKeyLength {
		t.Fatalf("got %v, want %v", err, ErrBadKeyLength)
	}

	if _, err := KeyFromBytes(make([]byte, 32)); err != ErrBadKeyLength {
		t.Fatalf("zero key : got %v, want %v", err, ErrBadKeyLength)
	}
}

func TestSignVerify(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	other, err := GenerateKey()
	if err != nil {
		t.Fatal(err)
	}

	hash := DoubleSha256([]byte("escrow release"))

	sig, err := key.Sign(hash)
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := DecodeSignatureString(sig.String())
	if err != nil {
		t.Fatal(err)
	}

	if !decoded.Verify(hash, key.PublicKey()) {
		t.Errorf("Signature should verify with signing key")
	}

	if decoded.Verify(hash, other.PublicKey()) {
		t.Errorf("Signature should not verify with other key")
	}

	if decoded.Verify(DoubleSha256([]byte("escrow refund")), key.PublicKey()) {
		t.Errorf("Signature should not verify different hash")
	}
}

func TestDecodeCheck(t *testing.T) {
	encoded := encodeCheck([]byte{1, 2, 3, 4, 5})

	b, err := decodeCheck(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("got %x", b)
	}

	if _, err := decodeCheck("1"); err != ErrBadCheckSum {
		t.Errorf("short input : got %v, want %v", err, ErrBadCheckSum)
	}

	raw := []byte(encoded)
	if raw[0] == '2' {
		raw[0] = '3'
	} else {
		raw[0] = '2'
	}
	if _, err := decodeCheck(string(raw)); err == nil {
		t.Errorf("Corrupted text should fail checksum")
	}
}

func TestKeySet(t *testing.T) {
	first, _ := GenerateKey()
	second, _ := GenerateKey()
	stranger, _ := GenerateKey()

	ks, err := ParseKeySet(first.PublicKey().String() + ", " + second.PublicKey().String() + ",")
	if err != nil {
		t.Fatal(err)
	}

	if ks.Len() != 2 {
		t.Fatalf("Key count : got %d, want 2", ks.Len())
	}

	hash := DoubleSha256([]byte("payload"))

	sig, _ := second.Sign(hash)
	k, err := ks.Verify(hash, sig)
	if err != nil {
		t.Fatalf("Verify rotated key : %s", err)
	}
	if k.ID() != second.PublicKey().ID() {
		t.Errorf("Matched key : got %s, want %s", k.ID(), second.PublicKey().ID())
	}

	sig, _ = stranger.Sign(hash)
	if _, err := ks.Verify(hash, sig); err != ErrNoTrustedKey {
		t.Errorf("Untrusted key : got %v, want %v", err, ErrNoTrustedKey)
	}

	if _, err := ParseKeySet("not-a-key"); err == nil {
		t.Errorf("Invalid key text should fail")
	}
}
