// Package paymaster builds the paymaster parameters attached to sponsored transactions.
package paymaster

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/Layr-Labs/aawallet-go/pkg/zkTransaction"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// IPaymasterFlowABI describes the calldata a paymaster receives as its input.
const IPaymasterFlowABI = `[
	{"type":"function","name":"general","stateMutability":"nonpayable","inputs":[{"name":"input","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"approvalBased","stateMutability":"nonpayable","inputs":[{"name":"_token","type":"address"},{"name":"_minAllowance","type":"uint256"},{"name":"_innerInput","type":"bytes"}],"outputs":[]}
]`

var paymasterFlow abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(IPaymasterFlowABI))
	if err != nil {
		panic(fmt.Sprintf("failed to parse IPaymasterFlow ABI: %v", err))
	}
	paymasterFlow = parsed
}

// IPayloadProvider supplies the inner input for approval-based paymasters, typically
// a signed price quote for the fee token.
type IPayloadProvider interface {
	GetPayloadForManualUsage(ctx context.Context, paymaster common.Address) ([]byte, error)
}

// GeneralParams returns paymaster parameters using the general flow.
func GeneralParams(paymaster common.Address, innerInput []byte) (*zkTransaction.PaymasterParams, error) {
	if innerInput == nil {
		innerInput = []byte{}
	}
	input, err := paymasterFlow.Pack("general", innerInput)
	if err != nil {
		return nil, fmt.Errorf("failed to encode general paymaster input: %w", err)
	}
	return &zkTransaction.PaymasterParams{Paymaster: paymaster, PaymasterInput: input}, nil
}

// ApprovalBasedParams returns paymaster parameters using the approval-based flow, where
// the paymaster pulls at least minimalAllowance of token from the sender.
//
// Parameters:
//   - paymaster: The paymaster contract address
//   - token: The ERC20 token used to pay fees
//   - minimalAllowance: Allowance the paymaster requires on token
//   - innerInput: Opaque payload forwarded to the paymaster
//
// Returns:
//   - *zkTransaction.PaymasterParams: The encoded parameters
//   - error: An error if encoding fails
func ApprovalBasedParams(paymaster, token common.Address, minimalAllowance *big.Int, innerInput []byte) (*zkTransaction.PaymasterParams, error) {
	if minimalAllowance == nil || minimalAllowance.Sign() < 0 {
		return nil, fmt.Errorf("minimal allowance must be non-negative")
	}
	if innerInput == nil {
		innerInput = []byte{}
	}
	input, err := paymasterFlow.Pack("approvalBased", token, minimalAllowance, innerInput)
	if err != nil {
		return nil, fmt.Errorf("failed to encode approval-based paymaster input: %w", err)
	}
	return &zkTransaction.PaymasterParams{Paymaster: paymaster, PaymasterInput: input}, nil
}
