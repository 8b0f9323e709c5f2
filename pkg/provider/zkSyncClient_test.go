package provider

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/Layr-Labs/aawallet-go/pkg/zkTransaction"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeEthService answers the eth_* namespace for an in-process RPC server
type fakeEthService struct {
	lastEstimate json.RawMessage
	lastRaw      hexutil.Bytes
}

func (s *fakeEthService) ChainId() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(300))
}

func (s *fakeEthService) EstimateGas(arg json.RawMessage) hexutil.Uint64 {
	s.lastEstimate = arg
	return 21000
}

func (s *fakeEthService) SendRawTransaction(raw hexutil.Bytes) common.Hash {
	s.lastRaw = raw
	return common.HexToHash("0xabcd")
}

func newTestClient(t *testing.T) (*ZkSyncClient, *fakeEthService) {
	service := &fakeEthService{}
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", service))
	t.Cleanup(server.Stop)

	client := NewZkSyncClient(rpc.DialInProc(server), zap.NewNop())
	t.Cleanup(client.Close)
	return client, service
}

func TestZkSyncClient_ChainID(t *testing.T) {
	client, _ := newTestClient(t)

	chainID, err := client.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(300), chainID.Int64())
}

func TestZkSyncClient_EstimateGas(t *testing.T) {
	client, service := newTestClient(t)

	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	tx := &zkTransaction.Transaction{
		To:       &to,
		From:     common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Value:    big.NewInt(7),
		Data:     []byte{0xde, 0xad},
		GasPrice: big.NewInt(1),
		CustomData: zkTransaction.CustomData{
			PaymasterParams: &zkTransaction.PaymasterParams{
				Paymaster:      common.HexToAddress("0x3333333333333333333333333333333333333333"),
				PaymasterInput: []byte{1, 2},
			},
		},
	}

	gas, err := client.EstimateGas(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, uint64(21000), gas)

	var sent map[string]interface{}
	require.NoError(t, json.Unmarshal(service.lastEstimate, &sent))
	assert.Equal(t, "0x71", sent["type"])
	assert.Equal(t, "0x7", sent["value"])
	assert.Equal(t, "0xdead", sent["data"])
	assert.Equal(t, to.Hex(), common.HexToAddress(sent["to"].(string)).Hex())

	meta, ok := sent["eip712Meta"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "0xc350", meta["gasPerPubdata"])
	assert.NotContains(t, meta, "customSignature")

	paymaster, ok := meta["paymasterParams"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []interface{}{float64(1), float64(2)}, paymaster["paymasterInput"])
}

func TestZkSyncClient_SendRawTransaction(t *testing.T) {
	client, service := newTestClient(t)

	hash, err := client.SendRawTransaction(context.Background(), []byte{0x71, 0xc0})
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0xabcd"), hash)
	assert.Equal(t, hexutil.Bytes{0x71, 0xc0}, service.lastRaw)
}

func TestToCallArg_Defaults(t *testing.T) {
	tx := &zkTransaction.Transaction{From: common.HexToAddress("0x01")}

	arg := toCallArg(tx)

	assert.Nil(t, arg.To)
	assert.Equal(t, hexutil.Bytes{}, arg.Data)
	assert.Equal(t, int64(0), arg.Value.ToInt().Int64())
	assert.Nil(t, arg.GasPrice)
	assert.Equal(t, int64(zkTransaction.DefaultGasPerPubdataLimit), arg.Eip712Meta.GasPerPubdata.ToInt().Int64())
	assert.Nil(t, arg.Eip712Meta.PaymasterParams)
}
