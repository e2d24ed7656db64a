package extractor

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/thirdweb-dev/txconflict/internal/common"
)

// contractAddressPrefix marks precompile-style addresses that never belong to an EOA.
const contractAddressPrefix = "0x000000000000000000000000"

// FlattenCallTree lists the frames of a call tree depth-first, root first.
func FlattenCallTree(root common.CallFrame) []common.CallFrame {
	frames := []common.CallFrame{}
	var walk func(frame common.CallFrame)
	walk = func(frame common.CallFrame) {
		frames = append(frames, frame)
		for _, child := range frame.Calls {
			walk(child)
		}
	}
	walk(root)
	return frames
}

// ExtractModifications classifies every frame of a callTracer result that has a recipient.
func ExtractModifications(root common.CallFrame) ([]common.Modification, error) {
	frames := FlattenCallTree(root)
	modifications := make([]common.Modification, 0, len(frames))
	for _, frame := range frames {
		if frame.To == "" {
			continue
		}
		modification, err := ClassifyFrame(frame)
		if err != nil {
			return nil, err
		}
		modifications = append(modifications, modification)
	}
	return modifications, nil
}

// ClassifyFrame turns a single call frame into a Modification.
func ClassifyFrame(frame common.CallFrame) (common.Modification, error) {
	wei, err := common.ParseWei(frame.Value)
	if err != nil {
		return common.Modification{}, fmt.Errorf("invalid value %q in call from %s: %w", frame.Value, frame.From, err)
	}

	modification := common.Modification{
		From:             common.NormalizeAddress(frame.From),
		To:               common.NormalizeAddress(frame.To),
		InputData:        frame.Input,
		Value:            frame.Value,
		FunctionSelector: common.ExtractFunctionSelector(frame.Input),
	}
	if modification.Value == "" {
		modification.Value = "0x0"
	}
	modification.SetWei(wei)

	if IsERC20Transfer(modification.FunctionSelector) {
		tokenFrom, tokenTo, err := DecodeERC20Operands(frame.From, frame.Input)
		if err == nil {
			modification.Kind = common.ModificationERC20Transfer
			modification.TokenFrom = tokenFrom
			modification.TokenTo = tokenTo
			return modification, nil
		}
		log.Debug().Err(err).Str("to", modification.To).Msg("Failed to decode erc20 transfer, classifying as contract call")
	}

	switch {
	case modification.TransfersValue() && !isContract(frame):
		modification.Kind = common.ModificationEOATransfer
	case common.HasInput(frame.Input):
		modification.Kind = common.ModificationContractCall
	default:
		modification.Kind = common.ModificationEthTransfer
	}
	return modification, nil
}

func isContract(frame common.CallFrame) bool {
	if common.HasInput(frame.Input) || len(frame.Calls) > 0 {
		return true
	}
	switch strings.ToUpper(frame.Type) {
	case "CREATE", "CREATE2":
		return true
	}
	return strings.HasPrefix(common.NormalizeAddress(frame.To), contractAddressPrefix)
}
