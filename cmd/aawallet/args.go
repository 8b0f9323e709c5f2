package main

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"

	"github.com/Layr-Labs/aawallet-go/pkg/util"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// parseMethodArgs converts command line strings into the Go values abi.Pack expects
// for method's inputs.
func parseMethodArgs(method abi.Method, raw []string) ([]interface{}, error) {
	if len(raw) != len(method.Inputs) {
		return nil, fmt.Errorf("method %s takes %d arguments, got %d", method.Name, len(method.Inputs), len(raw))
	}
	args := make([]interface{}, len(raw))
	for i, input := range method.Inputs {
		value, err := parseArg(input.Type, raw[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s %s): %w", i, input.Type.String(), input.Name, err)
		}
		args[i] = value
	}
	return args, nil
}

func parseArg(t abi.Type, s string) (interface{}, error) {
	switch t.T {
	case abi.AddressTy:
		return util.ParseAddress(s)
	case abi.BoolTy:
		return strconv.ParseBool(s)
	case abi.StringTy:
		return s, nil
	case abi.BytesTy:
		return hexutil.Decode(util.EnsureHexPrefix(s))
	case abi.FixedBytesTy:
		b, err := hexutil.Decode(util.EnsureHexPrefix(s))
		if err != nil {
			return nil, err
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("expected %d bytes, got %d", t.Size, len(b))
		}
		v := reflect.New(t.GetType()).Elem()
		reflect.Copy(v, reflect.ValueOf(b))
		return v.Interface(), nil
	case abi.UintTy, abi.IntTy:
		return parseInteger(t, s)
	default:
		return nil, fmt.Errorf("unsupported argument type %s", t.String())
	}
}

func parseInteger(t abi.Type, s string) (interface{}, error) {
	n, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	if t.T == abi.UintTy && n.Sign() < 0 {
		return nil, fmt.Errorf("negative value for unsigned type")
	}
	if t.GetType().Kind() == reflect.Ptr {
		if n.BitLen() > t.Size {
			return nil, fmt.Errorf("value %s overflows %s", n, t.String())
		}
		return n, nil
	}

	v := reflect.New(t.GetType()).Elem()
	if t.T == abi.UintTy {
		if n.BitLen() > t.Size {
			return nil, fmt.Errorf("value %s overflows %s", n, t.String())
		}
		v.SetUint(n.Uint64())
	} else {
		if !n.IsInt64() || v.OverflowInt(n.Int64()) {
			return nil, fmt.Errorf("value %s overflows %s", n, t.String())
		}
		v.SetInt(n.Int64())
	}
	return v.Interface(), nil
}

// formatValue renders a decoded ABI value for terminal output.
func formatValue(v interface{}) string {
	switch value := v.(type) {
	case []byte:
		return hexutil.Encode(value)
	case *big.Int:
		return value.String()
	default:
		return fmt.Sprintf("%v", value)
	}
}
