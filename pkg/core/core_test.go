package core

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"math"
	"math/big"
	"sync"
	"testing"

	"github.com/Layr-Labs/aawallet-go/pkg/digestSigner"
	"github.com/Layr-Labs/aawallet-go/pkg/provider"
	"github.com/Layr-Labs/aawallet-go/pkg/signatureCodec"
	"github.com/Layr-Labs/aawallet-go/pkg/zkTransaction"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testWallet    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testRecipient = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testValidator = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testIdentity  = "alice"
)

// testComponents has a high-bit r so its DER encoding carries a sign pad
func testComponents() *signatureCodec.SignatureComponents {
	sc := &signatureCodec.SignatureComponents{}
	copy(sc.R[:], bytes.Repeat([]byte{0x81}, 32))
	copy(sc.S[:], bytes.Repeat([]byte{0x22}, 32))
	return sc
}

// stubSigner records every callback invocation and answers with a fixed DER signature.
// With randomized set, the last byte of r is the call number so every call differs.
type stubSigner struct {
	mu         sync.Mutex
	identities []string
	digests    []string
	err        error
	randomized bool
}

func (s *stubSigner) signerFn(t *testing.T) digestSigner.SignerFn {
	return func(ctx context.Context, identity string, digestHex string) (string, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.identities = append(s.identities, identity)
		s.digests = append(s.digests, digestHex)
		if s.err != nil {
			return "", s.err
		}
		sc := testComponents()
		if s.randomized {
			sc.R[31] = byte(len(s.digests))
		}
		der, err := signatureCodec.EncodeDer(sc)
		require.NoError(t, err)
		return hex.EncodeToString(der), nil
	}
}

func (s *stubSigner) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.digests)
}

func testConfig() *CoreConfig {
	return &CoreConfig{
		Address:          testWallet,
		Identity:         testIdentity,
		ValidatorAddress: testValidator,
	}
}

func setupTestCore(t *testing.T) (*Core, *provider.MockIProvider, *stubSigner) {
	mockProvider := provider.NewMockIProvider(t)
	signer := &stubSigner{}

	core, err := NewCore(testConfig(), mockProvider, signer.signerFn(t), zap.NewNop())
	require.NoError(t, err)
	return core, mockProvider, signer
}

// expectChainState mocks gas price 1, chain id 300 and nonce 5
func expectChainState(mockProvider *provider.MockIProvider) {
	mockProvider.On("SuggestGasPrice", mock.Anything).Return(big.NewInt(1), nil)
	mockProvider.On("ChainID", mock.Anything).Return(big.NewInt(300), nil)
	mockProvider.On("NonceAt", mock.Anything, testWallet, mock.Anything).Return(uint64(5), nil)
}

func TestNewCore_Validation(t *testing.T) {
	signer := &stubSigner{}
	mockProvider := provider.NewMockIProvider(t)

	tests := []struct {
		name     string
		cfg      *CoreConfig
		p        provider.IProvider
		signerFn digestSigner.SignerFn
	}{
		{name: "nil config", cfg: nil, p: mockProvider, signerFn: signer.signerFn(t)},
		{name: "zero address", cfg: &CoreConfig{Identity: testIdentity}, p: mockProvider, signerFn: signer.signerFn(t)},
		{name: "empty identity", cfg: &CoreConfig{Address: testWallet}, p: mockProvider, signerFn: signer.signerFn(t)},
		{name: "nil signer", cfg: testConfig(), p: mockProvider, signerFn: nil},
		{name: "nil provider", cfg: testConfig(), p: nil, signerFn: signer.signerFn(t)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, err := NewCore(tt.cfg, tt.p, tt.signerFn, nil)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Nil(t, core)
		})
	}
}

func TestNewCore_Defaults(t *testing.T) {
	core, _, _ := setupTestCore(t)

	assert.Equal(t, DefaultGasLimit, core.config.DefaultGasLimit)
	assert.Equal(t, DefaultGasLimitMargin, core.config.GasLimitMargin)
	assert.Equal(t, signatureCodec.SchemeValidatorHooks, core.config.Scheme.Kind)
	assert.Equal(t, 0, core.config.PaymasterMinimalAllowance.Cmp(big.NewInt(1)))
	assert.Equal(t, testWallet, core.Address())
}

func TestCore_PopulateTransaction(t *testing.T) {
	core, mockProvider, signer := setupTestCore(t)
	expectChainState(mockProvider)
	mockProvider.On("EstimateGas", mock.Anything, mock.AnythingOfType("*zkTransaction.Transaction")).
		Return(uint64(21000), nil)

	ptx, err := core.PopulateTransaction(context.Background(), testRecipient, &PopulateOpts{
		Value: big.NewInt(1000),
		Data:  []byte{0xab},
	})
	require.NoError(t, err)

	tx := ptx.Transaction()
	assert.Equal(t, testWallet, tx.From)
	assert.Equal(t, testRecipient, *tx.To)
	assert.Equal(t, int64(1000), tx.Value.Int64())
	assert.Equal(t, []byte{0xab}, tx.Data)
	assert.Equal(t, uint64(5), tx.Nonce)
	assert.Equal(t, int64(300), tx.ChainID.Int64())
	assert.Equal(t, int64(1), tx.GasPrice.Int64())
	assert.Equal(t, uint64(21000+1_500_000), tx.GasLimit)
	assert.Equal(t, uint8(zkTransaction.EIP712TxType), tx.Type)
	assert.Equal(t, int64(zkTransaction.DefaultGasPerPubdataLimit), tx.CustomData.GasPerPubdata.Int64())
	assert.Equal(t, StateUnsigned, ptx.State())
	assert.Zero(t, signer.calls())
}

func TestCore_PopulateTransaction_Defaults(t *testing.T) {
	core, mockProvider, _ := setupTestCore(t)
	expectChainState(mockProvider)
	mockProvider.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21000), nil)

	ptx, err := core.PopulateTransaction(context.Background(), testRecipient, nil)
	require.NoError(t, err)

	tx := ptx.Transaction()
	assert.Equal(t, 0, tx.Value.Sign())
	assert.Empty(t, tx.Data)
	assert.False(t, tx.IsSigned())
}

func TestCore_PopulateTransaction_GasEstimationFallback(t *testing.T) {
	core, mockProvider, _ := setupTestCore(t)
	expectChainState(mockProvider)
	mockProvider.On("EstimateGas", mock.Anything, mock.Anything).
		Return(uint64(0), errors.New("account validation failed"))

	ptx, err := core.PopulateTransaction(context.Background(), testRecipient, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(100_000_000), ptx.Transaction().GasLimit)
}

func TestCore_EstimateGas_MarginOverflow(t *testing.T) {
	core, mockProvider, _ := setupTestCore(t)
	mockProvider.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(math.MaxUint64-10), nil)

	gas := core.EstimateGas(context.Background(), &zkTransaction.Transaction{})
	assert.Equal(t, DefaultGasLimit, gas)
}

func TestCore_EstimateGas_AddsMargin(t *testing.T) {
	core, mockProvider, _ := setupTestCore(t)
	mockProvider.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21000), nil)

	gas := core.EstimateGas(context.Background(), &zkTransaction.Transaction{})
	assert.Equal(t, uint64(21000)+DefaultGasLimitMargin, gas)
}

func TestCore_PopulateTransaction_ExplicitGasLimit(t *testing.T) {
	core, mockProvider, _ := setupTestCore(t)
	expectChainState(mockProvider)

	gasLimit := uint64(777)
	ptx, err := core.PopulateTransaction(context.Background(), testRecipient, &PopulateOpts{GasLimit: &gasLimit})
	require.NoError(t, err)

	assert.Equal(t, uint64(777), ptx.Transaction().GasLimit)
	mockProvider.AssertNotCalled(t, "EstimateGas", mock.Anything, mock.Anything)
}

func TestCore_PopulateTransaction_ProviderError(t *testing.T) {
	core, mockProvider, _ := setupTestCore(t)
	rpcErr := errors.New("connection refused")
	mockProvider.On("SuggestGasPrice", mock.Anything).Return(nil, rpcErr)
	mockProvider.On("ChainID", mock.Anything).Return(big.NewInt(300), nil).Maybe()
	mockProvider.On("NonceAt", mock.Anything, mock.Anything, mock.Anything).Return(uint64(5), nil).Maybe()

	ptx, err := core.PopulateTransaction(context.Background(), testRecipient, nil)
	assert.Nil(t, ptx)

	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, "SuggestGasPrice", providerErr.Op)
	assert.ErrorIs(t, err, rpcErr)
}

func TestCore_PopulateTransaction_NegativeValue(t *testing.T) {
	core, _, _ := setupTestCore(t)

	_, err := core.PopulateTransaction(context.Background(), testRecipient, &PopulateOpts{Value: big.NewInt(-1)})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCore_Transfer_EndToEnd(t *testing.T) {
	core, mockProvider, signer := setupTestCore(t)
	expectChainState(mockProvider)
	mockProvider.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21000), nil)

	var raw []byte
	mockProvider.On("SendRawTransaction", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			raw = args.Get(1).([]byte)
		}).
		Return(common.HexToHash("0x1234"), nil)

	response, err := core.Transfer(context.Background(), testRecipient, big.NewInt(1000), nil)
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x1234"), response.Hash)
	assert.Equal(t, raw, response.Raw)

	// One callback invocation with the configured identity
	require.Equal(t, 1, signer.calls())
	assert.Equal(t, testIdentity, signer.identities[0])

	decoded, err := zkTransaction.Deserialize(raw)
	require.NoError(t, err)

	expectedSignature, err := signatureCodec.EncodeFat(testComponents().Bytes(), testValidator, [][]byte{})
	require.NoError(t, err)
	assert.Equal(t, expectedSignature, decoded.CustomData.CustomSignature)

	assert.Equal(t, testWallet, decoded.From)
	assert.Equal(t, testRecipient, *decoded.To)
	assert.Equal(t, int64(1000), decoded.Value.Int64())
	assert.Equal(t, uint64(5), decoded.Nonce)
	assert.Equal(t, int64(300), decoded.ChainID.Int64())
	assert.Equal(t, int64(1), decoded.GasPrice.Int64())
	assert.Equal(t, uint64(1_521_000), decoded.GasLimit)
	assert.Equal(t, int64(50000), decoded.CustomData.GasPerPubdata.Int64())

	// The signer saw the bare hex digest of the submitted fields
	digest, err := zkTransaction.Digest(decoded)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(digest.Bytes()), signer.digests[0])
}

func TestCore_SendTransaction_CustomValidator(t *testing.T) {
	core, mockProvider, _ := setupTestCore(t)
	expectChainState(mockProvider)
	mockProvider.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21000), nil)

	var raw []byte
	mockProvider.On("SendRawTransaction", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { raw = args.Get(1).([]byte) }).
		Return(common.HexToHash("0x01"), nil)

	validator := common.HexToAddress("0x4444444444444444444444444444444444444444")
	hookData := [][]byte{{0x01, 0x02}}
	_, err := core.SendTransaction(context.Background(), testRecipient, big.NewInt(0), []byte{0xca, 0xfe}, &SendOpts{
		ValidatorAddress: &validator,
		HookData:         hookData,
	})
	require.NoError(t, err)

	decoded, err := zkTransaction.Deserialize(raw)
	require.NoError(t, err)
	expectedSignature, err := signatureCodec.EncodeFat(testComponents().Bytes(), validator, hookData)
	require.NoError(t, err)
	assert.Equal(t, expectedSignature, decoded.CustomData.CustomSignature)
	assert.Equal(t, []byte{0xca, 0xfe}, decoded.Data)
}

func TestCore_SendTransaction_SignerError(t *testing.T) {
	core, mockProvider, signer := setupTestCore(t)
	expectChainState(mockProvider)
	mockProvider.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21000), nil)

	userRejected := errors.New("user rejected")
	signer.err = userRejected

	response, err := core.Transfer(context.Background(), testRecipient, big.NewInt(1), nil)
	assert.Nil(t, response)

	var signerErr *digestSigner.SignerError
	require.ErrorAs(t, err, &signerErr)
	assert.Equal(t, testIdentity, signerErr.Identity)
	assert.ErrorIs(t, err, userRejected)
	assert.Equal(t, 1, signer.calls())
	mockProvider.AssertNotCalled(t, "SendRawTransaction", mock.Anything, mock.Anything)
}

func TestCore_SendTransaction_SubmitError(t *testing.T) {
	core, mockProvider, _ := setupTestCore(t)
	expectChainState(mockProvider)
	mockProvider.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(21000), nil)
	mockProvider.On("SendRawTransaction", mock.Anything, mock.Anything).
		Return(common.Hash{}, errors.New("nonce too low"))

	_, err := core.Transfer(context.Background(), testRecipient, big.NewInt(1), nil)

	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, "SendRawTransaction", providerErr.Op)
}

func TestCore_CheckTransaction(t *testing.T) {
	core, _, _ := setupTestCore(t)
	other := common.HexToAddress("0x9999999999999999999999999999999999999999")

	tests := []struct {
		name    string
		tx      *zkTransaction.Transaction
		wantErr bool
	}{
		{
			name: "valid call",
			tx:   &zkTransaction.Transaction{From: testWallet, To: &testRecipient, Type: zkTransaction.EIP712TxType},
		},
		{
			name: "deployment",
			tx:   &zkTransaction.Transaction{From: testWallet, Data: []byte{0x60}, Type: zkTransaction.EIP712TxType},
		},
		{
			name:    "nil transaction",
			tx:      nil,
			wantErr: true,
		},
		{
			name:    "from mismatch",
			tx:      &zkTransaction.Transaction{From: other, To: &testRecipient, Type: zkTransaction.EIP712TxType},
			wantErr: true,
		},
		{
			name:    "no recipient and no data",
			tx:      &zkTransaction.Transaction{From: testWallet, Type: zkTransaction.EIP712TxType},
			wantErr: true,
		},
		{
			name:    "wrong type",
			tx:      &zkTransaction.Transaction{From: testWallet, To: &testRecipient, Type: 2},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := core.CheckTransaction(tt.tx)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCore_GetBalance(t *testing.T) {
	core, mockProvider, _ := setupTestCore(t)
	mockProvider.On("BalanceAt", mock.Anything, testWallet, mock.Anything).Return(big.NewInt(42), nil)

	balance, err := core.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), balance.Int64())
}

func TestCore_GetChainID_Error(t *testing.T) {
	core, mockProvider, _ := setupTestCore(t)
	mockProvider.On("ChainID", mock.Anything).Return(nil, errors.New("timeout"))

	_, err := core.GetChainID(context.Background())
	var providerErr *ProviderError
	assert.ErrorAs(t, err, &providerErr)
}

func TestCore_SignMessage(t *testing.T) {
	core, _, signer := setupTestCore(t)
	message := []byte("hello")

	signature, err := core.SignMessage(context.Background(), message)
	require.NoError(t, err)

	expected, err := signatureCodec.EncodeFat(testComponents().Bytes(), testValidator, nil)
	require.NoError(t, err)
	assert.Equal(t, expected, signature)
	assert.Equal(t, hex.EncodeToString(accounts.TextHash(message)), signer.digests[0])
}

func TestCore_GetBalancesWithMultiCall3_Error(t *testing.T) {
	core, mockProvider, _ := setupTestCore(t)
	mockProvider.On("CallContract", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("execution reverted"))

	balances, err := core.GetBalancesWithMultiCall3(context.Background(), []common.Address{testRecipient})
	assert.Nil(t, balances)

	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, "aggregate3", providerErr.Op)
}
