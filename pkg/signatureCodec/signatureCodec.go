// Package signatureCodec converts remote-signer output into the custom signature
// formats understood by the account-abstraction validator contracts.
// It decodes ASN.1 DER ECDSA signatures into fixed-width (r, s) scalars and
// ABI-encodes them, together with validator metadata, into the on-chain wire format.
// Everything in this package is pure: no I/O and no shared state.
package signatureCodec

import (
	"errors"
	"fmt"
	"math/big"
)

const (
	// ScalarLength is the width of each ECDSA scalar in the wire format
	ScalarLength = 32
	// RawSignatureLength is the length of r ‖ s without DER framing or recovery id
	RawSignatureLength = 2 * ScalarLength
)

var (
	// ErrDecode is returned for malformed DER input or raw signatures of the wrong size
	ErrDecode = errors.New("signature decode error")
)

// SignatureComponents holds the two ECDSA scalars, big-endian and left zero-padded.
type SignatureComponents struct {
	R [ScalarLength]byte
	S [ScalarLength]byte
}

// Bytes returns the 64-byte r ‖ s concatenation expected by the validator.
func (sc *SignatureComponents) Bytes() []byte {
	out := make([]byte, 0, RawSignatureLength)
	out = append(out, sc.R[:]...)
	return append(out, sc.S[:]...)
}

// BigInts returns r and s as big integers.
func (sc *SignatureComponents) BigInts() (*big.Int, *big.Int) {
	return new(big.Int).SetBytes(sc.R[:]), new(big.Int).SetBytes(sc.S[:])
}

// ComponentsFromRaw splits a 64-byte r ‖ s signature.
func ComponentsFromRaw(raw []byte) (*SignatureComponents, error) {
	if len(raw) != RawSignatureLength {
		return nil, fmt.Errorf("%w: raw signature must be %d bytes, got %d", ErrDecode, RawSignatureLength, len(raw))
	}
	sc := &SignatureComponents{}
	copy(sc.R[:], raw[:ScalarLength])
	copy(sc.S[:], raw[ScalarLength:])
	return sc, nil
}
