// Package zkTransaction models the zkSync account-abstraction (EIP-712, type 113)
// transaction: the mutable record built by the wallet core, its typed-data signing
// digest and its 0x71-prefixed RLP wire encoding.
package zkTransaction

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// EIP712TxType is the fixed transaction type for account-abstraction transactions
	EIP712TxType = 0x71 // 113

	// DefaultGasPerPubdataLimit is the protocol default price of a pubdata byte, in gas
	DefaultGasPerPubdataLimit = 50000
)

// PaymasterParams names the paymaster contract sponsoring a transaction and the
// input passed to its validation logic.
type PaymasterParams struct {
	Paymaster      common.Address
	PaymasterInput []byte
}

// CustomData is the EIP-712 metadata that distinguishes type 113 transactions.
type CustomData struct {
	GasPerPubdata   *big.Int
	CustomSignature []byte
	PaymasterParams *PaymasterParams
	FactoryDeps     [][]byte
}

// Transaction is an unsigned or custom-signed type 113 transaction.
// A nil To denotes contract deployment.
type Transaction struct {
	To         *common.Address
	From       common.Address
	Value      *big.Int
	Data       []byte
	Nonce      uint64
	ChainID    *big.Int
	GasLimit   uint64
	GasPrice   *big.Int
	Type       uint8
	CustomData CustomData
}

// Copy returns a deep copy of the transaction.
func (tx *Transaction) Copy() *Transaction {
	cpy := &Transaction{
		From:     tx.From,
		Value:    copyBig(tx.Value),
		Data:     common.CopyBytes(tx.Data),
		Nonce:    tx.Nonce,
		ChainID:  copyBig(tx.ChainID),
		GasLimit: tx.GasLimit,
		GasPrice: copyBig(tx.GasPrice),
		Type:     tx.Type,
		CustomData: CustomData{
			GasPerPubdata:   copyBig(tx.CustomData.GasPerPubdata),
			CustomSignature: common.CopyBytes(tx.CustomData.CustomSignature),
		},
	}
	if tx.To != nil {
		to := *tx.To
		cpy.To = &to
	}
	if pp := tx.CustomData.PaymasterParams; pp != nil {
		cpy.CustomData.PaymasterParams = &PaymasterParams{
			Paymaster:      pp.Paymaster,
			PaymasterInput: common.CopyBytes(pp.PaymasterInput),
		}
	}
	if tx.CustomData.FactoryDeps != nil {
		cpy.CustomData.FactoryDeps = make([][]byte, len(tx.CustomData.FactoryDeps))
		for i, dep := range tx.CustomData.FactoryDeps {
			cpy.CustomData.FactoryDeps[i] = common.CopyBytes(dep)
		}
	}
	return cpy
}

// IsSigned reports whether a custom signature is attached.
func (tx *Transaction) IsSigned() bool {
	return len(tx.CustomData.CustomSignature) > 0
}

// gasPerPubdata returns the configured pubdata limit or the protocol default.
func (tx *Transaction) gasPerPubdata() *big.Int {
	if tx.CustomData.GasPerPubdata != nil {
		return tx.CustomData.GasPerPubdata
	}
	return big.NewInt(DefaultGasPerPubdataLimit)
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// Response is the handle returned after a transaction has been submitted.
type Response struct {
	Hash        common.Hash
	Raw         []byte
	Transaction *Transaction
}
