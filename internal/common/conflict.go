package common

type ConflictType string

const (
	ConflictWriteWrite   ConflictType = "write-write"
	ConflictWriteRead    ConflictType = "write-read"
	ConflictReadWrite    ConflictType = "read-write"
	ConflictSameSource   ConflictType = "same-source"
	ConflictERC20Balance ConflictType = "erc20-balance-conflict"
	ConflictEOATransfer  ConflictType = "eoa-transfer-conflict"
	ConflictContractCall ConflictType = "contract-call-conflict"
)

var ConflictTypes = []ConflictType{
	ConflictWriteWrite,
	ConflictWriteRead,
	ConflictReadWrite,
	ConflictSameSource,
	ConflictERC20Balance,
	ConflictEOATransfer,
	ConflictContractCall,
}

type Conflict struct {
	ContractAddress string       `json:"contract_address"`
	Type            ConflictType `json:"type"`
	Details         string       `json:"details"`
}
