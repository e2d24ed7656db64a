package common

import (
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

type Transaction struct {
	Hash             string         `json:"hash"`
	Nonce            hexutil.Uint64 `json:"nonce"`
	BlockNumber      hexutil.Uint64 `json:"blockNumber"`
	TransactionIndex hexutil.Uint64 `json:"transactionIndex"`
	From             string         `json:"from"`
	To               *string        `json:"to"`
	Value            *hexutil.Big   `json:"value"`
	Input            string         `json:"input"`
}

// NormalizedHash returns the hash lowercased and 0x-prefixed.
func (t Transaction) NormalizedHash() string {
	return NormalizeHash(t.Hash)
}

// Recipient returns the lowercase recipient, or "" for contract creations.
func (t Transaction) Recipient() string {
	if t.To == nil || *t.To == "" {
		return ""
	}
	return NormalizeAddress(*t.To)
}

func NormalizeHash(hash string) string {
	hash = strings.ToLower(strings.TrimSpace(hash))
	if !strings.HasPrefix(hash, "0x") {
		hash = "0x" + hash
	}
	return hash
}
