package signatureCodec

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// SchemeKind tags the custom-signature wire format a wallet's validator expects.
type SchemeKind uint8

const (
	// SchemeValidatorHooks encodes (bytes r‖s, address validator, bytes[] hookData)
	SchemeValidatorHooks SchemeKind = iota + 1
	// SchemePublicKeyCoordinates encodes (uint256[2] rs, uint256[2] xy)
	SchemePublicKeyCoordinates
)

func (k SchemeKind) String() string {
	switch k {
	case SchemeValidatorHooks:
		return "validator-hooks"
	case SchemePublicKeyCoordinates:
		return "public-key-coordinates"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ParseSchemeKind maps a configuration string onto a SchemeKind.
func ParseSchemeKind(s string) (SchemeKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "validator-hooks":
		return SchemeValidatorHooks, nil
	case "public-key-coordinates":
		return SchemePublicKeyCoordinates, nil
	default:
		return 0, fmt.Errorf("unknown signature scheme %q", s)
	}
}

// Scheme is the signature-format variant chosen when a wallet is constructed.
// PublicKey is only consulted by SchemePublicKeyCoordinates.
type Scheme struct {
	Kind      SchemeKind
	PublicKey []byte
}

// NewValidatorHooksScheme returns the default scheme.
func NewValidatorHooksScheme() Scheme {
	return Scheme{Kind: SchemeValidatorHooks}
}

// NewPublicKeyCoordinatesScheme returns the coordinate scheme bound to pub.
func NewPublicKeyCoordinatesScheme(pub []byte) (Scheme, error) {
	if _, _, err := CoordinatesFromPublicKey(pub); err != nil {
		return Scheme{}, err
	}
	return Scheme{Kind: SchemePublicKeyCoordinates, PublicKey: common.CopyBytes(pub)}, nil
}

// Encode produces the custom signature for a raw 64-byte r ‖ s signature.
// validator and hookData are ignored by SchemePublicKeyCoordinates.
func (s Scheme) Encode(signature []byte, validator common.Address, hookData [][]byte) ([]byte, error) {
	switch s.Kind {
	case SchemeValidatorHooks:
		return EncodeFat(signature, validator, hookData)
	case SchemePublicKeyCoordinates:
		sc, err := ComponentsFromRaw(signature)
		if err != nil {
			return nil, err
		}
		x, y, err := CoordinatesFromPublicKey(s.PublicKey)
		if err != nil {
			return nil, err
		}
		return EncodeCoordinates(sc, x, y)
	default:
		return nil, fmt.Errorf("unsupported signature scheme %s", s.Kind)
	}
}
