package common

import "github.com/holiman/uint256"

type ModificationKind string

const (
	ModificationEthTransfer   ModificationKind = "eth-transfer"
	ModificationEOATransfer   ModificationKind = "eoa-transfer"
	ModificationERC20Transfer ModificationKind = "erc20-transfer"
	ModificationContractCall  ModificationKind = "contract-call"
)

// Modification is one call frame of a transaction's call tree, classified by payload.
type Modification struct {
	Kind             ModificationKind `json:"kind"`
	From             string           `json:"from"`
	To               string           `json:"to"`
	InputData        string           `json:"input_data"`
	Value            string           `json:"value"`
	TokenFrom        string           `json:"token_from,omitempty"`
	TokenTo          string           `json:"token_to,omitempty"`
	FunctionSelector string           `json:"function_selector,omitempty"`

	wei *uint256.Int
}

func (m *Modification) SetWei(v *uint256.Int) {
	m.wei = v
}

// TransfersValue reports a nonzero Value. The value set with SetWei wins over parsing Value.
func (m Modification) TransfersValue() bool {
	wei := m.wei
	if wei == nil {
		parsed, err := ParseWei(m.Value)
		if err != nil {
			return false
		}
		wei = parsed
	}
	return !wei.IsZero()
}
