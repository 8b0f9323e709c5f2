package multicall

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const multicall3ABIJSON = `[
	{"type":"function","name":"aggregate3","stateMutability":"payable",
	 "inputs":[{"name":"calls","type":"tuple[]","components":[
		{"name":"target","type":"address"},
		{"name":"allowFailure","type":"bool"},
		{"name":"callData","type":"bytes"}]}],
	 "outputs":[{"name":"returnData","type":"tuple[]","components":[
		{"name":"success","type":"bool"},
		{"name":"returnData","type":"bytes"}]}]}
]`

const erc20BalanceOfABIJSON = `[
	{"type":"function","name":"balanceOf","stateMutability":"view",
	 "inputs":[{"name":"account","type":"address"}],
	 "outputs":[{"name":"","type":"uint256"}]}
]`

var (
	multicall3ABI abi.ABI
	erc20ABI      abi.ABI
)

func init() {
	var err error
	if multicall3ABI, err = abi.JSON(strings.NewReader(multicall3ABIJSON)); err != nil {
		panic(fmt.Sprintf("failed to parse Multicall3 ABI: %v", err))
	}
	if erc20ABI, err = abi.JSON(strings.NewReader(erc20BalanceOfABIJSON)); err != nil {
		panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
	}
}
