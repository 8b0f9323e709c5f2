package zkTransaction

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	eip712DomainName    = "zkSync"
	eip712DomainVersion = "2"
)

var eip712Types = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
	},
	"Transaction": {
		{Name: "txType", Type: "uint256"},
		{Name: "from", Type: "uint256"},
		{Name: "to", Type: "uint256"},
		{Name: "gasLimit", Type: "uint256"},
		{Name: "gasPerPubdataByteLimit", Type: "uint256"},
		{Name: "maxFeePerGas", Type: "uint256"},
		{Name: "maxPriorityFeePerGas", Type: "uint256"},
		{Name: "paymaster", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "value", Type: "uint256"},
		{Name: "data", Type: "bytes"},
		{Name: "factoryDeps", Type: "bytes32[]"},
		{Name: "paymasterInput", Type: "bytes"},
	},
}

// TypedData builds the EIP-712 typed-data representation that the account
// contract hashes when validating a transaction.
func TypedData(tx *Transaction) (apitypes.TypedData, error) {
	if tx.ChainID == nil {
		return apitypes.TypedData{}, fmt.Errorf("chain id is required for the signing digest")
	}

	paymaster := new(big.Int)
	paymasterInput := []byte{}
	if pp := tx.CustomData.PaymasterParams; pp != nil {
		paymaster = addressToInt(pp.Paymaster)
		paymasterInput = pp.PaymasterInput
	}
	to := new(big.Int)
	if tx.To != nil {
		to = addressToInt(*tx.To)
	}

	factoryDeps := make([]interface{}, 0, len(tx.CustomData.FactoryDeps))
	for i, dep := range tx.CustomData.FactoryDeps {
		hash, err := HashBytecode(dep)
		if err != nil {
			return apitypes.TypedData{}, fmt.Errorf("factory dependency %d: %w", i, err)
		}
		factoryDeps = append(factoryDeps, hash.Hex())
	}

	gasPrice := bigOrZero(tx.GasPrice)
	return apitypes.TypedData{
		Types:       eip712Types,
		PrimaryType: "Transaction",
		Domain: apitypes.TypedDataDomain{
			Name:    eip712DomainName,
			Version: eip712DomainVersion,
			ChainId: (*math.HexOrDecimal256)(new(big.Int).Set(tx.ChainID)),
		},
		Message: apitypes.TypedDataMessage{
			"txType":                 big.NewInt(EIP712TxType),
			"from":                   addressToInt(tx.From),
			"to":                     to,
			"gasLimit":               new(big.Int).SetUint64(tx.GasLimit),
			"gasPerPubdataByteLimit": new(big.Int).Set(tx.gasPerPubdata()),
			"maxFeePerGas":           new(big.Int).Set(gasPrice),
			"maxPriorityFeePerGas":   new(big.Int).Set(gasPrice),
			"paymaster":              paymaster,
			"nonce":                  new(big.Int).SetUint64(tx.Nonce),
			"value":                  new(big.Int).Set(bigOrZero(tx.Value)),
			"data":                   hexutil.Bytes(common.CopyBytes(tx.Data)),
			"factoryDeps":            factoryDeps,
			"paymasterInput":         hexutil.Bytes(common.CopyBytes(paymasterInput)),
		},
	}, nil
}

// Digest returns keccak256("\x19\x01" ‖ domainSeparator ‖ hashStruct(tx)), the
// value the remote signer must sign. The custom signature itself is not covered.
func Digest(tx *Transaction) (common.Hash, error) {
	td, err := TypedData(tx)
	if err != nil {
		return common.Hash{}, err
	}
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash typed transaction: %w", err)
	}
	return common.BytesToHash(hash), nil
}

func addressToInt(addr common.Address) *big.Int {
	return new(big.Int).SetBytes(addr.Bytes())
}
