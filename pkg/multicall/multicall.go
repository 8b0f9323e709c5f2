// Package multicall batches ERC20 and native balance reads into a single Multicall3
// aggregate3 static call.
package multicall

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	// DefaultMulticall3Address is the Multicall3 deployment used when none is configured
	DefaultMulticall3Address = common.HexToAddress("0xF9cda624FBC7e059355ce98a31693d299FACd963")

	// DefaultNativeTokenAddress is the system contract holding native token balances
	DefaultNativeTokenAddress = common.HexToAddress("0x000000000000000000000000000000000000800A")

	// nativeBalanceOfSelector is the selector of balanceOf(uint256)
	nativeBalanceOfSelector = []byte{0x9c, 0xc7, 0xf7, 0x08}
)

// ErrResultCountMismatch is returned when aggregate3 answers with a different number of results than calls.
var ErrResultCountMismatch = errors.New("multicall result count does not match call count")

// Call3 is a single aggregate3 call.
type Call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

// Result is a single aggregate3 result.
type Result struct {
	Success    bool
	ReturnData []byte
}

// ICaller executes read-only contract calls.
type ICaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Config holds the addresses the aggregator needs.
type Config struct {
	Multicall3Address  common.Address
	NativeTokenAddress common.Address
}

// Aggregator reads many token balances in one round trip.
type Aggregator struct {
	config *Config
	caller ICaller
	logger *zap.Logger
}

// NewAggregator creates an Aggregator. Zero addresses in cfg fall back to the defaults.
func NewAggregator(cfg *Config, caller ICaller, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	resolved := Config{
		Multicall3Address:  DefaultMulticall3Address,
		NativeTokenAddress: DefaultNativeTokenAddress,
	}
	if cfg != nil {
		if cfg.Multicall3Address != (common.Address{}) {
			resolved.Multicall3Address = cfg.Multicall3Address
		}
		if cfg.NativeTokenAddress != (common.Address{}) {
			resolved.NativeTokenAddress = cfg.NativeTokenAddress
		}
	}
	return &Aggregator{
		config: &resolved,
		caller: caller,
		logger: logger,
	}
}

// BuildCalls builds one balanceOf(owner) call per token, in order. The native token
// is queried through balanceOf(uint256) on its system contract.
func (a *Aggregator) BuildCalls(owner common.Address, tokens []common.Address) ([]Call3, error) {
	calldata, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf: %w", err)
	}

	calls := make([]Call3, len(tokens))
	for i, token := range tokens {
		data := common.CopyBytes(calldata)
		if token == a.config.NativeTokenAddress {
			copy(data[:4], nativeBalanceOfSelector)
		}
		calls[i] = Call3{
			Target:       token,
			AllowFailure: true,
			CallData:     data,
		}
	}
	return calls, nil
}

// GetBalances returns the balance of owner for every token, in input order.
// A token whose call failed or returned undecodable data reports zero. Only a failure
// of the aggregate call itself is returned as an error.
func (a *Aggregator) GetBalances(ctx context.Context, owner common.Address, tokens []common.Address) ([]*big.Int, error) {
	if len(tokens) == 0 {
		return []*big.Int{}, nil
	}

	calls, err := a.BuildCalls(owner, tokens)
	if err != nil {
		return nil, err
	}

	input, err := multicall3ABI.Pack("aggregate3", calls)
	if err != nil {
		return nil, fmt.Errorf("failed to pack aggregate3: %w", err)
	}

	multicallAddress := a.config.Multicall3Address
	output, err := a.caller.CallContract(ctx, ethereum.CallMsg{
		To:   &multicallAddress,
		Data: input,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("aggregate3 call failed: %w", err)
	}

	results, err := decodeResults(output)
	if err != nil {
		return nil, err
	}
	if len(results) != len(calls) {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrResultCountMismatch, len(calls), len(results))
	}

	balances := make([]*big.Int, len(results))
	for i, result := range results {
		balances[i] = a.balanceFromResult(tokens[i], result)
	}
	return balances, nil
}

func (a *Aggregator) balanceFromResult(token common.Address, result Result) *big.Int {
	if !result.Success {
		a.logger.Sugar().Debugw("Balance call failed, reporting zero",
			zap.String("token", token.String()),
		)
		return new(big.Int)
	}
	if len(result.ReturnData) < 32 {
		a.logger.Sugar().Debugw("Balance call returned short data, reporting zero",
			zap.String("token", token.String()),
			zap.Int("length", len(result.ReturnData)),
		)
		return new(big.Int)
	}
	return new(big.Int).SetBytes(result.ReturnData[:32])
}

func decodeResults(output []byte) ([]Result, error) {
	out, err := multicall3ABI.Unpack("aggregate3", output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack aggregate3 results: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected aggregate3 output length %d", len(out))
	}
	results := *abi.ConvertType(out[0], new([]Result)).(*[]Result)
	return results, nil
}
