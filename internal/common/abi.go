package common

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ConstructFunctionABI builds a method from a flat signature such as
// "transfer(address to, uint256 value)". Tuple parameters are not supported.
func ConstructFunctionABI(signature string) (*abi.Method, error) {
	signature = strings.TrimSpace(signature)
	open := strings.Index(signature, "(")
	if open <= 0 || !strings.HasSuffix(signature, ")") {
		return nil, fmt.Errorf("invalid function signature format: %s", signature)
	}
	name := signature[:open]
	params := strings.TrimSpace(signature[open+1 : len(signature)-1])

	var inputs abi.Arguments
	if params != "" {
		for idx, param := range strings.Split(params, ",") {
			tokens := strings.Fields(param)
			if len(tokens) == 0 || len(tokens) > 2 {
				return nil, fmt.Errorf("invalid parameter '%s' in %s", param, signature)
			}
			argName := fmt.Sprintf("%d", idx)
			if len(tokens) == 2 {
				argName = tokens[1]
			}
			argType, err := abi.NewType(tokens[0], "", nil)
			if err != nil {
				return nil, fmt.Errorf("failed to parse type '%s': %v", tokens[0], err)
			}
			inputs = append(inputs, abi.Argument{Name: argName, Type: argType})
		}
	}

	method := abi.NewMethod(name, name, abi.Function, "", false, false, inputs, nil)
	return &method, nil
}

// DecodeCallInput unpacks call data against a method, checking the selector first.
func DecodeCallInput(method *abi.Method, input string) (map[string]interface{}, error) {
	data, err := hex.DecodeString(strings.TrimPrefix(input, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode call data: %v", err)
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("data too short to contain function selector")
	}
	if hex.EncodeToString(data[:4]) != hex.EncodeToString(method.ID) {
		return nil, fmt.Errorf("selector 0x%x does not match %s", data[:4], method.Sig)
	}
	decoded := make(map[string]interface{})
	if err := method.Inputs.UnpackIntoMap(decoded, data[4:]); err != nil {
		return nil, fmt.Errorf("failed to decode %s parameters: %v", method.Sig, err)
	}
	return decoded, nil
}
