package digestSigner

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/Layr-Labs/aawallet-go/pkg/signatureCodec"
	"github.com/Layr-Labs/aawallet-go/pkg/util"
	"github.com/ethereum/go-ethereum/crypto"
)

// Curve names the elliptic curve of a local private key.
type Curve string

const (
	CurveP256      Curve = "secp256r1"
	CurveSecp256k1 Curve = "secp256k1"
)

// PrivateKeySigner signs digests with an in-memory key. It produces the same DER
// output as a remote signer and is meant for development networks and tests.
type PrivateKeySigner struct {
	identity   string
	curve      Curve
	privateKey *ecdsa.PrivateKey
}

// NewPrivateKeySigner creates a signer from a hex-encoded private key scalar, answering
// only for identity.
func NewPrivateKeySigner(identity string, privateKeyHex string, curve Curve) (*PrivateKeySigner, error) {
	keyBytes, err := hex.DecodeString(util.StripHexPrefix(strings.TrimSpace(privateKeyHex)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}

	var privateKey *ecdsa.PrivateKey
	switch curve {
	case CurveSecp256k1:
		privateKey, err = crypto.ToECDSA(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
	case CurveP256, "":
		curve = CurveP256
		privateKey, err = p256PrivateKey(keyBytes)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported curve %q", curve)
	}

	return &PrivateKeySigner{
		identity:   identity,
		curve:      curve,
		privateKey: privateKey,
	}, nil
}

func p256PrivateKey(keyBytes []byte) (*ecdsa.PrivateKey, error) {
	curve := elliptic.P256()
	d := new(big.Int).SetBytes(keyBytes)
	if len(keyBytes) != 32 || d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, fmt.Errorf("invalid P-256 private key")
	}
	privateKey := &ecdsa.PrivateKey{D: d}
	privateKey.PublicKey.Curve = curve
	privateKey.PublicKey.X, privateKey.PublicKey.Y = curve.ScalarBaseMult(keyBytes)
	return privateKey, nil
}

// PublicKey returns the uncompressed public key, 0x04 ‖ X ‖ Y.
func (p *PrivateKeySigner) PublicKey() []byte {
	out := make([]byte, 65)
	out[0] = 0x04
	p.privateKey.PublicKey.X.FillBytes(out[1:33])
	p.privateKey.PublicKey.Y.FillBytes(out[33:])
	return out
}

// SignerFn returns a callback that signs digests with the local key.
func (p *PrivateKeySigner) SignerFn() SignerFn {
	return p.signDigest
}

func (p *PrivateKeySigner) signDigest(_ context.Context, identity string, digestHex string) (string, error) {
	if identity != p.identity {
		return "", fmt.Errorf("unknown identity %q", identity)
	}
	digest, err := hex.DecodeString(util.StripHexPrefix(digestHex))
	if err != nil {
		return "", fmt.Errorf("invalid digest hex: %w", err)
	}
	if len(digest) != 32 {
		return "", fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}

	if p.curve == CurveSecp256k1 {
		sig, err := crypto.Sign(digest, p.privateKey)
		if err != nil {
			return "", fmt.Errorf("failed to sign digest: %w", err)
		}
		sc, err := signatureCodec.ComponentsFromRaw(sig[:signatureCodec.RawSignatureLength])
		if err != nil {
			return "", err
		}
		der, err := signatureCodec.EncodeDer(sc)
		if err != nil {
			return "", err
		}
		return hex.EncodeToString(der), nil
	}

	der, err := ecdsa.SignASN1(rand.Reader, p.privateKey, digest)
	if err != nil {
		return "", fmt.Errorf("failed to sign digest: %w", err)
	}
	return hex.EncodeToString(der), nil
}
