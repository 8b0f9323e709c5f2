// Package provider defines the chain RPC capability consumed by the wallet core and
// implements it for zkSync-style rollups. Besides the standard eth_* calls it knows
// how to estimate gas for, and submit, type 113 transactions carrying EIP-712 metadata.
package provider

import (
	"context"
	"math/big"

	"github.com/Layr-Labs/aawallet-go/pkg/zkTransaction"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

// IProvider defines the RPC methods needed to populate, simulate and submit
// account-abstraction transactions. It allows for mocking in tests while being
// satisfied by ZkSyncClient in production.
type IProvider interface {
	// Fee and account state
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)

	// EstimateGas simulates a type 113 transaction, including its EIP-712 metadata
	EstimateGas(ctx context.Context, tx *zkTransaction.Transaction) (uint64, error)

	// CallContract executes a static call
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)

	// SendRawTransaction submits serialized transaction bytes and returns the transaction hash
	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
}
