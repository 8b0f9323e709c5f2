package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/Layr-Labs/aawallet-go/pkg/zkTransaction"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// ProviderConfig holds the configuration for connecting to a rollup RPC endpoint.
type ProviderConfig struct {
	// RPCUrl is the URL endpoint of the rollup JSON-RPC API
	RPCUrl string
}

// ZkSyncClient implements IProvider over a JSON-RPC connection.
// Standard calls go through ethclient; type 113 estimation and submission use
// the raw RPC client since go-ethereum has no representation of EIP-712 metadata.
type ZkSyncClient struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	logger    *zap.Logger
}

// Dial connects to the RPC endpoint in cfg.
//
// Parameters:
//   - ctx: Context for the dial operation
//   - cfg: The provider configuration
//   - logger: A zap logger for RPC operations
//
// Returns:
//   - *ZkSyncClient: A connected client
//   - error: An error if the connection fails
func Dial(ctx context.Context, cfg *ProviderConfig, logger *zap.Logger) (*ZkSyncClient, error) {
	rpcClient, err := rpc.DialContext(ctx, cfg.RPCUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC URL %s: %w", cfg.RPCUrl, err)
	}
	return NewZkSyncClient(rpcClient, logger), nil
}

// NewZkSyncClient wraps an existing RPC client.
func NewZkSyncClient(rpcClient *rpc.Client, logger *zap.Logger) *ZkSyncClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZkSyncClient{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		logger:    logger,
	}
}

// Close terminates the underlying connection.
func (c *ZkSyncClient) Close() {
	c.rpcClient.Close()
}

func (c *ZkSyncClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.ethClient.SuggestGasPrice(ctx)
}

func (c *ZkSyncClient) ChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

func (c *ZkSyncClient) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	return c.ethClient.NonceAt(ctx, account, blockNumber)
}

func (c *ZkSyncClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return c.ethClient.BalanceAt(ctx, account, blockNumber)
}

func (c *ZkSyncClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}

// EstimateGas calls eth_estimateGas with the transaction's eip712Meta attached.
func (c *ZkSyncClient) EstimateGas(ctx context.Context, tx *zkTransaction.Transaction) (uint64, error) {
	var result hexutil.Uint64
	if err := c.rpcClient.CallContext(ctx, &result, "eth_estimateGas", toCallArg(tx)); err != nil {
		return 0, err
	}
	c.logger.Sugar().Debugw("Estimated gas for EIP-712 transaction",
		zap.String("from", tx.From.String()),
		zap.Uint64("gas", uint64(result)),
	)
	return uint64(result), nil
}

// SendRawTransaction submits raw via eth_sendRawTransaction.
func (c *ZkSyncClient) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	var hash common.Hash
	if err := c.rpcClient.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		return common.Hash{}, err
	}
	c.logger.Sugar().Infow("Submitted raw transaction",
		zap.String("transactionHash", hash.String()),
	)
	return hash, nil
}

// byteArray marshals as a JSON array of numbers, the encoding zkSync nodes
// expect for byte fields inside eip712Meta.
type byteArray []byte

func (b byteArray) MarshalJSON() ([]byte, error) {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return json.Marshal(out)
}

type paymasterParamsArg struct {
	Paymaster      common.Address `json:"paymaster"`
	PaymasterInput byteArray      `json:"paymasterInput"`
}

type eip712MetaArg struct {
	GasPerPubdata   *hexutil.Big        `json:"gasPerPubdata"`
	FactoryDeps     []byteArray         `json:"factoryDeps,omitempty"`
	CustomSignature byteArray           `json:"customSignature,omitempty"`
	PaymasterParams *paymasterParamsArg `json:"paymasterParams,omitempty"`
}

type callArg struct {
	From       common.Address  `json:"from"`
	To         *common.Address `json:"to,omitempty"`
	Data       hexutil.Bytes   `json:"data"`
	Value      *hexutil.Big    `json:"value"`
	GasPrice   *hexutil.Big    `json:"gasPrice,omitempty"`
	Type       hexutil.Uint64  `json:"type"`
	Eip712Meta eip712MetaArg   `json:"eip712Meta"`
}

func toCallArg(tx *zkTransaction.Transaction) callArg {
	arg := callArg{
		From:  tx.From,
		To:    tx.To,
		Data:  tx.Data,
		Value: (*hexutil.Big)(big.NewInt(0)),
		Type:  zkTransaction.EIP712TxType,
		Eip712Meta: eip712MetaArg{
			GasPerPubdata:   (*hexutil.Big)(big.NewInt(zkTransaction.DefaultGasPerPubdataLimit)),
			CustomSignature: tx.CustomData.CustomSignature,
		},
	}
	if arg.Data == nil {
		arg.Data = hexutil.Bytes{}
	}
	if tx.Value != nil {
		arg.Value = (*hexutil.Big)(tx.Value)
	}
	if tx.GasPrice != nil {
		arg.GasPrice = (*hexutil.Big)(tx.GasPrice)
	}
	if tx.CustomData.GasPerPubdata != nil {
		arg.Eip712Meta.GasPerPubdata = (*hexutil.Big)(tx.CustomData.GasPerPubdata)
	}
	for _, dep := range tx.CustomData.FactoryDeps {
		arg.Eip712Meta.FactoryDeps = append(arg.Eip712Meta.FactoryDeps, dep)
	}
	if pp := tx.CustomData.PaymasterParams; pp != nil {
		arg.Eip712Meta.PaymasterParams = &paymasterParamsArg{
			Paymaster:      pp.Paymaster,
			PaymasterInput: pp.PaymasterInput,
		}
	}
	return arg
}
