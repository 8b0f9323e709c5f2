package signatureCodec

import (
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// DecodeDer parses an ASN.1 DER ECDSA-Sig-Value (SEQUENCE { INTEGER r, INTEGER s })
// into fixed-width components.
//
// Integer contents are read as unsigned big-endian values, so a 32-byte integer with
// its high bit set is accepted without a sign pad. A 33-byte integer must start with
// the 0x00 sign pad, which is dropped; shorter integers are left-padded to 32 bytes.
// Wrong tags, inconsistent lengths, trailing data, zero values or values wider than
// 256 bits return ErrDecode.
func DecodeDer(der []byte) (*SignatureComponents, error) {
	if len(der) < 8 {
		return nil, fmt.Errorf("%w: DER signature too short (%d bytes)", ErrDecode, len(der))
	}
	if der[0] != 0x30 {
		return nil, fmt.Errorf("%w: expected SEQUENCE tag, got 0x%02x", ErrDecode, der[0])
	}

	input := cryptobyte.String(der)
	var inner cryptobyte.String
	if !input.ReadASN1(&inner, cbasn1.SEQUENCE) {
		return nil, fmt.Errorf("%w: invalid SEQUENCE length", ErrDecode)
	}
	if !input.Empty() {
		return nil, fmt.Errorf("%w: %d trailing bytes after SEQUENCE", ErrDecode, len(input))
	}

	sc := &SignatureComponents{}
	if err := readScalar(&inner, "r", &sc.R); err != nil {
		return nil, err
	}
	if err := readScalar(&inner, "s", &sc.S); err != nil {
		return nil, err
	}
	if !inner.Empty() {
		return nil, fmt.Errorf("%w: unexpected data after s", ErrDecode)
	}
	return sc, nil
}

func readScalar(in *cryptobyte.String, name string, out *[ScalarLength]byte) error {
	var content cryptobyte.String
	if !in.ReadASN1(&content, cbasn1.INTEGER) {
		return fmt.Errorf("%w: expected INTEGER for %s", ErrDecode, name)
	}
	switch {
	case len(content) == 0:
		return fmt.Errorf("%w: empty INTEGER for %s", ErrDecode, name)
	case len(content) == ScalarLength+1:
		if content[0] != 0x00 {
			return fmt.Errorf("%w: %s exceeds %d bytes", ErrDecode, name, ScalarLength)
		}
		content = content[1:]
	case len(content) > ScalarLength+1:
		return fmt.Errorf("%w: %s exceeds %d bytes", ErrDecode, name, ScalarLength)
	}

	v := new(big.Int).SetBytes(content)
	if v.Sign() == 0 {
		return fmt.Errorf("%w: %s must be non-zero", ErrDecode, name)
	}
	v.FillBytes(out[:])
	return nil
}

// EncodeDer produces the canonical DER encoding of the components.
func EncodeDer(sc *SignatureComponents) ([]byte, error) {
	r, s := sc.BigInts()
	var b cryptobyte.Builder
	b.AddASN1(cbasn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(r)
		b.AddASN1BigInt(s)
	})
	return b.Bytes()
}
