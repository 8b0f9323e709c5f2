package signatureCodec

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	bytesType, _    = abi.NewType("bytes", "", nil)
	addressType, _  = abi.NewType("address", "", nil)
	bytesArrType, _ = abi.NewType("bytes[]", "", nil)
	uint256Pair, _  = abi.NewType("uint256[2]", "", nil)

	// fatSignatureArgs is (bytes signature, address validator, bytes[] hookData)
	fatSignatureArgs = abi.Arguments{
		{Name: "signature", Type: bytesType},
		{Name: "validator", Type: addressType},
		{Name: "hookData", Type: bytesArrType},
	}

	// coordinateSignatureArgs is (uint256[2] rs, uint256[2] xy)
	coordinateSignatureArgs = abi.Arguments{
		{Name: "rs", Type: uint256Pair},
		{Name: "xy", Type: uint256Pair},
	}
)

// FatSignatureArguments exposes the ABI layout of the validator/hook fat signature.
func FatSignatureArguments() abi.Arguments {
	return fatSignatureArgs
}

// CoordinateSignatureArguments exposes the ABI layout of the public-key coordinate signature.
func CoordinateSignatureArguments() abi.Arguments {
	return coordinateSignatureArgs
}

// EncodeFat ABI-encodes (bytes signature, address validator, bytes[] hookData).
// signature must be the 64-byte r ‖ s form.
func EncodeFat(signature []byte, validator common.Address, hookData [][]byte) ([]byte, error) {
	if len(signature) != RawSignatureLength {
		return nil, fmt.Errorf("%w: expected %d byte signature, got %d", ErrDecode, RawSignatureLength, len(signature))
	}
	if hookData == nil {
		hookData = [][]byte{}
	}
	return fatSignatureArgs.Pack(signature, validator, hookData)
}

// CoordinatesFromPublicKey splits an uncompressed P-256 public key into X and Y.
// Both the 65-byte 0x04-prefixed form and the bare 64-byte X ‖ Y form are accepted.
func CoordinatesFromPublicKey(pub []byte) ([ScalarLength]byte, [ScalarLength]byte, error) {
	var x, y [ScalarLength]byte
	switch {
	case len(pub) == 2*ScalarLength+1 && pub[0] == 0x04:
		pub = pub[1:]
	case len(pub) == 2*ScalarLength:
	default:
		return x, y, fmt.Errorf("%w: unsupported public key encoding (%d bytes)", ErrDecode, len(pub))
	}
	copy(x[:], pub[:ScalarLength])
	copy(y[:], pub[ScalarLength:])
	return x, y, nil
}

// EncodeCoordinates ABI-encodes (uint256[2] rs, uint256[2] xy) for validators that
// verify against the signer's public key rather than a registered validator.
func EncodeCoordinates(sc *SignatureComponents, x, y [ScalarLength]byte) ([]byte, error) {
	r, s := sc.BigInts()
	return coordinateSignatureArgs.Pack(
		[2]*big.Int{r, s},
		[2]*big.Int{new(big.Int).SetBytes(x[:]), new(big.Int).SetBytes(y[:])},
	)
}
