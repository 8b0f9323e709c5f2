package zkTransaction

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	// ErrMalformedTransaction is returned when raw bytes are not a type 113 envelope
	ErrMalformedTransaction = errors.New("malformed EIP-712 transaction")
)

// eip712Envelope is the RLP field order of a serialized type 113 transaction.
// V/R/S carry (chainId, empty, empty) because authorization lives in CustomSignature.
type eip712Envelope struct {
	Nonce                uint64
	MaxPriorityFeePerGas *big.Int
	MaxFeePerGas         *big.Int
	GasLimit             uint64
	To                   []byte
	Value                *big.Int
	Data                 []byte
	V                    *big.Int
	R                    []byte
	S                    []byte
	ChainID              *big.Int
	From                 common.Address
	GasPerPubdata        *big.Int
	FactoryDeps          [][]byte
	CustomSignature      []byte
	PaymasterParams      []rlp.RawValue
}

// Serialize encodes tx as 0x71 ‖ rlp(fields), the form accepted by eth_sendRawTransaction.
func Serialize(tx *Transaction) ([]byte, error) {
	if tx.ChainID == nil {
		return nil, fmt.Errorf("%w: chain id is required", ErrMalformedTransaction)
	}
	if tx.CustomData.CustomSignature != nil && len(tx.CustomData.CustomSignature) == 0 {
		return nil, fmt.Errorf("%w: empty custom signature", ErrMalformedTransaction)
	}

	env := eip712Envelope{
		Nonce:                tx.Nonce,
		MaxPriorityFeePerGas: bigOrZero(tx.GasPrice),
		MaxFeePerGas:         bigOrZero(tx.GasPrice),
		GasLimit:             tx.GasLimit,
		Value:                bigOrZero(tx.Value),
		Data:                 tx.Data,
		V:                    tx.ChainID,
		ChainID:              tx.ChainID,
		From:                 tx.From,
		GasPerPubdata:        tx.gasPerPubdata(),
		FactoryDeps:          tx.CustomData.FactoryDeps,
		CustomSignature:      tx.CustomData.CustomSignature,
		PaymasterParams:      []rlp.RawValue{},
	}
	if tx.To != nil {
		env.To = tx.To.Bytes()
	}
	if env.FactoryDeps == nil {
		env.FactoryDeps = [][]byte{}
	}
	if pp := tx.CustomData.PaymasterParams; pp != nil {
		paymaster, err := rlp.EncodeToBytes(pp.Paymaster)
		if err != nil {
			return nil, err
		}
		input, err := rlp.EncodeToBytes(pp.PaymasterInput)
		if err != nil {
			return nil, err
		}
		env.PaymasterParams = []rlp.RawValue{paymaster, input}
	}

	payload, err := rlp.EncodeToBytes(&env)
	if err != nil {
		return nil, fmt.Errorf("failed to rlp encode transaction: %w", err)
	}
	return append([]byte{EIP712TxType}, payload...), nil
}

// Deserialize parses the output of Serialize back into a Transaction.
func Deserialize(raw []byte) (*Transaction, error) {
	if len(raw) < 2 || raw[0] != EIP712TxType {
		return nil, fmt.Errorf("%w: missing 0x%x type prefix", ErrMalformedTransaction, EIP712TxType)
	}
	var env eip712Envelope
	if err := rlp.DecodeBytes(raw[1:], &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTransaction, err)
	}

	tx := &Transaction{
		From:     env.From,
		Value:    env.Value,
		Data:     env.Data,
		Nonce:    env.Nonce,
		ChainID:  env.ChainID,
		GasLimit: env.GasLimit,
		GasPrice: env.MaxFeePerGas,
		Type:     EIP712TxType,
		CustomData: CustomData{
			GasPerPubdata:   env.GasPerPubdata,
			CustomSignature: env.CustomSignature,
			FactoryDeps:     env.FactoryDeps,
		},
	}
	switch len(env.To) {
	case 0:
	case common.AddressLength:
		to := common.BytesToAddress(env.To)
		tx.To = &to
	default:
		return nil, fmt.Errorf("%w: invalid to length %d", ErrMalformedTransaction, len(env.To))
	}
	if len(tx.CustomData.FactoryDeps) == 0 {
		tx.CustomData.FactoryDeps = nil
	}
	if len(tx.CustomData.CustomSignature) == 0 {
		tx.CustomData.CustomSignature = nil
	}

	switch len(env.PaymasterParams) {
	case 0:
	case 2:
		pp := &PaymasterParams{}
		if err := rlp.DecodeBytes(env.PaymasterParams[0], &pp.Paymaster); err != nil {
			return nil, fmt.Errorf("%w: paymaster: %v", ErrMalformedTransaction, err)
		}
		if err := rlp.DecodeBytes(env.PaymasterParams[1], &pp.PaymasterInput); err != nil {
			return nil, fmt.Errorf("%w: paymaster input: %v", ErrMalformedTransaction, err)
		}
		tx.CustomData.PaymasterParams = pp
	default:
		return nil, fmt.Errorf("%w: paymaster params must have 0 or 2 elements", ErrMalformedTransaction)
	}
	return tx, nil
}
