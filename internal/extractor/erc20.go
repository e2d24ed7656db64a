package extractor

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/thirdweb-dev/txconflict/internal/common"
)

const (
	TransferSelector     = "0xa9059cbb"
	TransferFromSelector = "0x23b872dd"
)

var (
	transferMethod     = mustConstructFunctionABI("transfer(address to, uint256 value)")
	transferFromMethod = mustConstructFunctionABI("transferFrom(address from, address to, uint256 value)")
)

func mustConstructFunctionABI(signature string) *abi.Method {
	method, err := common.ConstructFunctionABI(signature)
	if err != nil {
		panic(err)
	}
	return method
}

// IsERC20Transfer reports whether a selector moves token balances between two holders.
func IsERC20Transfer(selector string) bool {
	return selector == TransferSelector || selector == TransferFromSelector
}

// DecodeERC20Operands returns the token holder debited and credited by a transfer or transferFrom call.
// caller is the token holder for a plain transfer.
func DecodeERC20Operands(caller string, input string) (tokenFrom string, tokenTo string, err error) {
	switch common.ExtractFunctionSelector(input) {
	case TransferSelector:
		decoded, err := common.DecodeCallInput(transferMethod, input)
		if err != nil {
			return "", "", err
		}
		to, err := decodedAddress(decoded, "to")
		if err != nil {
			return "", "", err
		}
		return common.NormalizeAddress(caller), to, nil
	case TransferFromSelector:
		decoded, err := common.DecodeCallInput(transferFromMethod, input)
		if err != nil {
			return "", "", err
		}
		from, err := decodedAddress(decoded, "from")
		if err != nil {
			return "", "", err
		}
		to, err := decodedAddress(decoded, "to")
		if err != nil {
			return "", "", err
		}
		return from, to, nil
	default:
		return "", "", fmt.Errorf("input is not an erc20 transfer")
	}
}

func decodedAddress(decoded map[string]interface{}, name string) (string, error) {
	value, ok := decoded[name].(gethCommon.Address)
	if !ok {
		return "", fmt.Errorf("decoded parameter %s is not an address", name)
	}
	return strings.ToLower(value.Hex()), nil
}
