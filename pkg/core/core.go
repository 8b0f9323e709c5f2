// Package core is the account-abstraction wallet: it populates type 113 transactions
// for a smart-contract account, has them signed by a remote signer, wraps the signature
// in the format the account's validator expects and submits them.
package core

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/Layr-Labs/aawallet-go/pkg/digestSigner"
	"github.com/Layr-Labs/aawallet-go/pkg/multicall"
	"github.com/Layr-Labs/aawallet-go/pkg/paymaster"
	"github.com/Layr-Labs/aawallet-go/pkg/provider"
	"github.com/Layr-Labs/aawallet-go/pkg/signatureCodec"
	"github.com/Layr-Labs/aawallet-go/pkg/zkTransaction"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultGasLimit is used when gas estimation fails
	DefaultGasLimit uint64 = 100_000_000

	// DefaultGasLimitMargin is added on top of every successful estimate
	DefaultGasLimitMargin uint64 = 1_500_000
)

// DefaultPaymasterMinimalAllowance is the allowance requested by approval-based paymasters.
var DefaultPaymasterMinimalAllowance = big.NewInt(1)

// CoreConfig holds the wallet identity and the chain parameters it operates with.
type CoreConfig struct {
	// Address is the smart-contract account sending transactions
	Address common.Address

	// Identity is the key alias handed to the signer callback
	Identity string

	// ValidatorAddress is the default validator named in fat signatures
	ValidatorAddress common.Address

	Multicall3Address  common.Address
	NativeTokenAddress common.Address

	// Scheme selects the custom signature format; the zero value means validator hooks
	Scheme signatureCodec.Scheme

	DefaultGasLimit uint64
	GasLimitMargin  uint64

	PaymasterMinimalAllowance *big.Int

	// PayloadProvider is optional and only needed for approval-based paymasters
	PayloadProvider paymaster.IPayloadProvider
}

// PopulateOpts overrides the defaults of PopulateTransaction.
type PopulateOpts struct {
	Value *big.Int
	Data  []byte

	// GasLimit skips estimation when set
	GasLimit *uint64

	// CustomSignature is attached to the unsigned record, e.g. a placeholder for estimation
	CustomSignature []byte
}

// SendOpts selects how a transaction signature is wrapped.
type SendOpts struct {
	// ValidatorAddress overrides CoreConfig.ValidatorAddress
	ValidatorAddress *common.Address
	HookData         [][]byte
}

// Core builds, signs and submits transactions for one account.
type Core struct {
	config     *CoreConfig
	provider   provider.IProvider
	signer     *digestSigner.DigestSigner
	aggregator *multicall.Aggregator
	logger     *zap.Logger
}

// NewCore creates a new Core.
//
// Parameters:
//   - cfg: The wallet configuration
//   - p: The chain RPC provider
//   - signerFn: Callback signing digests with the key named by cfg.Identity
//   - logger: A zap logger; nil disables logging
//
// Returns:
//   - *Core: A configured wallet
//   - error: An error wrapping ErrValidation if the configuration is incomplete
func NewCore(cfg *CoreConfig, p provider.IProvider, signerFn digestSigner.SignerFn, logger *zap.Logger) (*Core, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		return nil, validationErrorf("config cannot be nil")
	}
	if cfg.Address == (common.Address{}) {
		return nil, validationErrorf("wallet address cannot be the zero address")
	}
	if p == nil {
		return nil, validationErrorf("provider cannot be nil")
	}
	signer, err := digestSigner.NewDigestSigner(cfg.Identity, signerFn, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	resolved := *cfg
	if resolved.Scheme.Kind == 0 {
		resolved.Scheme = signatureCodec.NewValidatorHooksScheme()
	}
	if resolved.DefaultGasLimit == 0 {
		resolved.DefaultGasLimit = DefaultGasLimit
	}
	if resolved.GasLimitMargin == 0 {
		resolved.GasLimitMargin = DefaultGasLimitMargin
	}
	if resolved.PaymasterMinimalAllowance == nil {
		resolved.PaymasterMinimalAllowance = DefaultPaymasterMinimalAllowance
	}

	aggregator := multicall.NewAggregator(&multicall.Config{
		Multicall3Address:  resolved.Multicall3Address,
		NativeTokenAddress: resolved.NativeTokenAddress,
	}, p, logger)

	return &Core{
		config:     &resolved,
		provider:   p,
		signer:     signer,
		aggregator: aggregator,
		logger:     logger,
	}, nil
}

// Address returns the wallet's account address.
func (c *Core) Address() common.Address {
	return c.config.Address
}

// PopulateTransaction builds an unsigned type 113 transaction to `to`, filling gas price,
// chain id and nonce from the provider. Unless opts.GasLimit is set the gas limit is
// estimated with a safety margin, falling back to the configured ceiling.
func (c *Core) PopulateTransaction(ctx context.Context, to common.Address, opts *PopulateOpts) (*PopulatedTransaction, error) {
	if opts == nil {
		opts = &PopulateOpts{}
	}
	if opts.Value != nil && opts.Value.Sign() < 0 {
		return nil, validationErrorf("value cannot be negative")
	}

	var (
		gasPrice *big.Int
		chainID  *big.Int
		nonce    uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		price, err := c.provider.SuggestGasPrice(gctx)
		if err != nil {
			return &ProviderError{Op: "SuggestGasPrice", Err: err}
		}
		gasPrice = price
		return nil
	})
	g.Go(func() error {
		id, err := c.provider.ChainID(gctx)
		if err != nil {
			return &ProviderError{Op: "ChainID", Err: err}
		}
		chainID = id
		return nil
	})
	g.Go(func() error {
		n, err := c.provider.NonceAt(gctx, c.config.Address, nil)
		if err != nil {
			return &ProviderError{Op: "NonceAt", Err: err}
		}
		nonce = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	value := new(big.Int)
	if opts.Value != nil {
		value.Set(opts.Value)
	}
	recipient := to
	tx := &zkTransaction.Transaction{
		To:       &recipient,
		From:     c.config.Address,
		Value:    value,
		Data:     common.CopyBytes(opts.Data),
		Nonce:    nonce,
		ChainID:  chainID,
		GasPrice: gasPrice,
		Type:     zkTransaction.EIP712TxType,
		CustomData: zkTransaction.CustomData{
			GasPerPubdata:   big.NewInt(zkTransaction.DefaultGasPerPubdataLimit),
			CustomSignature: common.CopyBytes(opts.CustomSignature),
		},
	}

	if opts.GasLimit != nil {
		tx.GasLimit = *opts.GasLimit
	} else {
		tx.GasLimit = c.EstimateGas(ctx, tx)
	}

	c.logger.Sugar().Debugw("Populated transaction",
		zap.String("to", to.String()),
		zap.Uint64("nonce", nonce),
		zap.String("chainId", chainID.String()),
		zap.Uint64("gasLimit", tx.GasLimit),
	)
	return newPopulatedTransaction(c, tx), nil
}

// EstimateGas returns the provider estimate plus the configured margin, or the
// configured ceiling when the provider cannot estimate or the sum would overflow.
func (c *Core) EstimateGas(ctx context.Context, tx *zkTransaction.Transaction) uint64 {
	estimate, err := c.provider.EstimateGas(ctx, tx)
	if err != nil {
		c.logger.Sugar().Warnw("Gas estimation failed, using default gas limit",
			zap.Uint64("defaultGasLimit", c.config.DefaultGasLimit),
			zap.Error(err),
		)
		return c.config.DefaultGasLimit
	}
	if estimate > math.MaxUint64-c.config.GasLimitMargin {
		c.logger.Sugar().Warnw("Gas estimate overflows with margin, using default gas limit",
			zap.Uint64("estimate", estimate),
			zap.Uint64("defaultGasLimit", c.config.DefaultGasLimit),
		)
		return c.config.DefaultGasLimit
	}
	return estimate + c.config.GasLimitMargin
}

// SendTransaction populates, signs and submits a transaction in one step.
func (c *Core) SendTransaction(ctx context.Context, to common.Address, value *big.Int, data []byte, opts *SendOpts) (*zkTransaction.Response, error) {
	ptx, err := c.PopulateTransaction(ctx, to, &PopulateOpts{Value: value, Data: data})
	if err != nil {
		return nil, err
	}
	return ptx.Send(ctx, opts)
}

// Transfer sends value to `to` with empty calldata.
func (c *Core) Transfer(ctx context.Context, to common.Address, value *big.Int, opts *SendOpts) (*zkTransaction.Response, error) {
	return c.SendTransaction(ctx, to, value, nil, opts)
}

// GetBalancesWithMultiCall3 returns the wallet's balance of each token, in order,
// using a single aggregate3 call. Tokens whose call fails report zero.
func (c *Core) GetBalancesWithMultiCall3(ctx context.Context, tokens []common.Address) ([]*big.Int, error) {
	balances, err := c.aggregator.GetBalances(ctx, c.config.Address, tokens)
	if err != nil {
		return nil, &ProviderError{Op: "aggregate3", Err: err}
	}
	return balances, nil
}

// GetBalance returns the wallet's native balance.
func (c *Core) GetBalance(ctx context.Context) (*big.Int, error) {
	balance, err := c.provider.BalanceAt(ctx, c.config.Address, nil)
	if err != nil {
		return nil, &ProviderError{Op: "BalanceAt", Err: err}
	}
	return balance, nil
}

// GetChainID returns the chain id reported by the provider.
func (c *Core) GetChainID(ctx context.Context) (*big.Int, error) {
	chainID, err := c.provider.ChainID(ctx)
	if err != nil {
		return nil, &ProviderError{Op: "ChainID", Err: err}
	}
	return chainID, nil
}

// SignMessage signs the EIP-191 hash of message and wraps the signature in the
// configured scheme with the default validator and no hook data.
func (c *Core) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	der, err := c.signer.SignMessage(ctx, message)
	if err != nil {
		return nil, err
	}
	sc, err := signatureCodec.DecodeDer(der)
	if err != nil {
		return nil, err
	}
	return c.config.Scheme.Encode(sc.Bytes(), c.config.ValidatorAddress, nil)
}

// CheckTransaction verifies that tx is sent from this wallet and has a recipient
// unless it deploys a contract.
func (c *Core) CheckTransaction(tx *zkTransaction.Transaction) error {
	if tx == nil {
		return validationErrorf("transaction cannot be nil")
	}
	if tx.From != c.config.Address {
		return validationErrorf("transaction from address %s does not match wallet address %s", tx.From, c.config.Address)
	}
	if tx.To == nil && len(tx.Data) == 0 {
		return validationErrorf("transaction has no recipient and no deployment data")
	}
	if tx.Type != zkTransaction.EIP712TxType {
		return validationErrorf("unsupported transaction type %d", tx.Type)
	}
	return nil
}
