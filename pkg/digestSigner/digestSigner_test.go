package digestSigner

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedCall struct {
	identity  string
	digestHex string
}

func recordingSignerFn(calls *[]recordedCall, result string, err error) SignerFn {
	return func(_ context.Context, identity string, digestHex string) (string, error) {
		*calls = append(*calls, recordedCall{identity: identity, digestHex: digestHex})
		return result, err
	}
}

func TestNewDigestSigner_Validation(t *testing.T) {
	_, err := NewDigestSigner("", recordingSignerFn(&[]recordedCall{}, "", nil), nil)
	assert.Error(t, err)

	_, err = NewDigestSigner("alias", nil, nil)
	assert.Error(t, err)

	s, err := NewDigestSigner("alias", recordingSignerFn(&[]recordedCall{}, "", nil), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "alias", s.Identity())
}

func TestDigestSigner_Sign_StripsPrefixAndCallsOnce(t *testing.T) {
	var calls []recordedCall
	s, err := NewDigestSigner("wallet-1", recordingSignerFn(&calls, "0x3006020101020102", nil), nil)
	require.NoError(t, err)

	digest := common.HexToHash("0x0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20")
	sig, err := s.SignDigest(context.Background(), digest)
	require.NoError(t, err)

	require.Len(t, calls, 1)
	assert.Equal(t, "wallet-1", calls[0].identity)
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20", calls[0].digestHex)
	assert.Equal(t, []byte{0x30, 0x06, 0x02, 0x01, 0x01, 0x02, 0x01, 0x02}, sig)
}

func TestDigestSigner_Sign_AcceptsBareHex(t *testing.T) {
	var calls []recordedCall
	s, err := NewDigestSigner("wallet-1", recordingSignerFn(&calls, "300602010102010A", nil), nil)
	require.NoError(t, err)

	sig, err := s.Sign(context.Background(), "abcdef")
	require.NoError(t, err)
	assert.Equal(t, "abcdef", calls[0].digestHex)
	assert.Equal(t, byte(0x0a), sig[len(sig)-1])
}

func TestDigestSigner_Sign_Errors(t *testing.T) {
	denied := errors.New("user denied approval")

	tests := []struct {
		name      string
		result    string
		err       error
		expectErr error
	}{
		{name: "Callback error is kept verbatim", err: denied, expectErr: denied},
		{name: "Empty signature", result: "", expectErr: ErrEmptySignature},
		{name: "Bare prefix", result: "0x", expectErr: ErrEmptySignature},
		{name: "Invalid hex", result: "0xzz", expectErr: ErrInvalidSignatureHex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []recordedCall
			s, err := NewDigestSigner("wallet-1", recordingSignerFn(&calls, tt.result, tt.err), nil)
			require.NoError(t, err)

			sig, err := s.Sign(context.Background(), "0x01")
			assert.Nil(t, sig)
			assert.ErrorIs(t, err, tt.expectErr)

			var signerErr *SignerError
			require.ErrorAs(t, err, &signerErr)
			assert.Equal(t, "wallet-1", signerErr.Identity)
			assert.Len(t, calls, 1, "callback must not be retried")
		})
	}
}

func TestDigestSigner_SignMessage(t *testing.T) {
	var calls []recordedCall
	s, err := NewDigestSigner("wallet-1", recordingSignerFn(&calls, "01", nil), nil)
	require.NoError(t, err)

	_, err = s.SignMessage(context.Background(), []byte("hello"))
	require.NoError(t, err)

	expected := common.BytesToHash(accounts.TextHash([]byte("hello")))
	assert.Equal(t, expected.Hex()[2:], calls[0].digestHex)
}
