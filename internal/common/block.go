package common

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Block is the subset of eth_getBlockByNumber (full transactions) the analyzer needs.
type Block struct {
	Number       hexutil.Uint64 `json:"number"`
	Hash         string         `json:"hash"`
	ParentHash   string         `json:"parentHash"`
	Timestamp    hexutil.Uint64 `json:"timestamp"`
	Transactions []Transaction  `json:"transactions"`
}
