package core

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/Layr-Labs/aawallet-go/pkg/zkTransaction"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// WriteOpts configures a state-changing contract call.
type WriteOpts struct {
	Value            *big.Int
	ValidatorAddress *common.Address
	HookData         [][]byte
}

// Contract binds an ABI to a deployed address and routes writes through the wallet.
type Contract struct {
	address common.Address
	abi     abi.ABI
	core    *Core
}

// Contract creates a binding for the contract at address described by abiJSON.
func (c *Core) Contract(address common.Address, abiJSON string) (*Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse contract ABI: %v", ErrValidation, err)
	}
	return &Contract{
		address: address,
		abi:     parsed,
		core:    c,
	}, nil
}

// Address returns the contract address.
func (ct *Contract) Address() common.Address {
	return ct.address
}

// ABI returns the parsed contract ABI.
func (ct *Contract) ABI() *abi.ABI {
	return &ct.abi
}

func (ct *Contract) pack(method string, params []interface{}) ([]byte, error) {
	if _, ok := ct.abi.Methods[method]; !ok {
		return nil, validationErrorf("method %q not found in contract ABI", method)
	}
	calldata, err := ct.abi.Pack(method, params...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode %s: %v", ErrValidation, method, err)
	}
	return calldata, nil
}

// PopulateWrite encodes a call to method and populates an unsigned transaction for it.
// opts.Data is ignored.
func (ct *Contract) PopulateWrite(ctx context.Context, method string, params []interface{}, opts *PopulateOpts) (*PopulatedTransaction, error) {
	calldata, err := ct.pack(method, params)
	if err != nil {
		return nil, err
	}
	populateOpts := PopulateOpts{}
	if opts != nil {
		populateOpts = *opts
	}
	populateOpts.Data = calldata
	return ct.core.PopulateTransaction(ctx, ct.address, &populateOpts)
}

// Write encodes a call to method, then signs and submits it from the wallet.
func (ct *Contract) Write(ctx context.Context, method string, params []interface{}, opts *WriteOpts) (*zkTransaction.Response, error) {
	calldata, err := ct.pack(method, params)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &WriteOpts{}
	}
	return ct.core.SendTransaction(ctx, ct.address, opts.Value, calldata, &SendOpts{
		ValidatorAddress: opts.ValidatorAddress,
		HookData:         opts.HookData,
	})
}

// Read performs a static call to method and returns the decoded outputs.
func (ct *Contract) Read(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	calldata, err := ct.pack(method, params)
	if err != nil {
		return nil, err
	}

	output, err := ct.core.provider.CallContract(ctx, ethereum.CallMsg{
		From: ct.core.config.Address,
		To:   &ct.address,
		Data: calldata,
	}, nil)
	if err != nil {
		return nil, &ProviderError{Op: "CallContract", Err: err}
	}

	values, err := ct.abi.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return values, nil
}

// ReadAs calls Read and converts the first output to T.
func ReadAs[T any](ctx context.Context, ct *Contract, method string, params ...interface{}) (result T, err error) {
	values, err := ct.Read(ctx, method, params...)
	if err != nil {
		return result, err
	}
	if len(values) == 0 {
		return result, fmt.Errorf("method %s returned no values", method)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cannot convert %s result to %T: %v", method, result, r)
		}
	}()
	return *abi.ConvertType(values[0], new(T)).(*T), nil
}
