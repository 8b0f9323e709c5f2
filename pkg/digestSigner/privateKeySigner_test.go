package digestSigner

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/Layr-Labs/aawallet-go/pkg/signatureCodec"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testPrivateKeyHex = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestPrivateKeySigner_P256(t *testing.T) {
	signer, err := NewPrivateKeySigner("alice", testPrivateKeyHex, CurveP256)
	require.NoError(t, err)

	digest := crypto.Keccak256Hash([]byte("payload"))
	ds, err := NewDigestSigner("alice", signer.SignerFn(), zap.NewNop())
	require.NoError(t, err)

	der, err := ds.SignDigest(context.Background(), digest)
	require.NoError(t, err)

	pub := signer.PublicKey()
	require.Len(t, pub, 65)
	publicKey := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(pub[1:33]),
		Y:     new(big.Int).SetBytes(pub[33:]),
	}
	assert.True(t, ecdsa.VerifyASN1(publicKey, digest.Bytes(), der))

	_, err = signatureCodec.DecodeDer(der)
	assert.NoError(t, err)
}

func TestPrivateKeySigner_Secp256k1(t *testing.T) {
	signer, err := NewPrivateKeySigner("alice", testPrivateKeyHex, CurveSecp256k1)
	require.NoError(t, err)

	digest := crypto.Keccak256Hash([]byte("payload"))
	derHex, err := signer.SignerFn()(context.Background(), "alice", hex.EncodeToString(digest.Bytes()))
	require.NoError(t, err)

	der, err := hex.DecodeString(derHex)
	require.NoError(t, err)
	sc, err := signatureCodec.DecodeDer(der)
	require.NoError(t, err)

	privateKey, err := crypto.HexToECDSA(testPrivateKeyHex[2:])
	require.NoError(t, err)
	assert.True(t, crypto.VerifySignature(crypto.FromECDSAPub(&privateKey.PublicKey), digest.Bytes(), sc.Bytes()))
	assert.Equal(t, crypto.FromECDSAPub(&privateKey.PublicKey), signer.PublicKey())
}

func TestPrivateKeySigner_Errors(t *testing.T) {
	_, err := NewPrivateKeySigner("alice", "0xzz", CurveP256)
	assert.Error(t, err)

	_, err = NewPrivateKeySigner("alice", "0x01", CurveP256)
	assert.Error(t, err)

	_, err = NewPrivateKeySigner("alice", testPrivateKeyHex, Curve("ed25519"))
	assert.Error(t, err)

	signer, err := NewPrivateKeySigner("alice", testPrivateKeyHex, "")
	require.NoError(t, err)

	_, err = signer.SignerFn()(context.Background(), "bob", common.Hash{}.Hex())
	assert.Error(t, err)

	_, err = signer.SignerFn()(context.Background(), "alice", "0x0102")
	assert.Error(t, err)
}
