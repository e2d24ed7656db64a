package common

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// BlockResult is the outcome of analyzing one block. A failed block carries no
// dependent hashes and no conflicts.
type BlockResult struct {
	BlockNumber       uint64
	TotalTx           int
	AnalyzedTx        int
	SkippedTx         int
	DependentTxHashes mapset.Set[string]
	DependentPairs    int
	Conflicts         []Conflict
	Failed            bool
	FailureReason     string
	Duration          time.Duration
}

func NewBlockResult(blockNumber uint64, totalTx int) BlockResult {
	return BlockResult{
		BlockNumber:       blockNumber,
		TotalTx:           totalTx,
		DependentTxHashes: mapset.NewThreadUnsafeSet[string](),
		Conflicts:         []Conflict{},
	}
}

// FailedBlockResult reports a block under the all-or-nothing policy.
func FailedBlockResult(blockNumber uint64, totalTx int, reason string) BlockResult {
	result := NewBlockResult(blockNumber, totalTx)
	result.Failed = true
	result.FailureReason = reason
	return result
}

// PossiblePairs is the number of unordered transaction pairs that were compared.
func (r BlockResult) PossiblePairs() int {
	if r.Failed || r.AnalyzedTx < 2 {
		return 0
	}
	return r.AnalyzedTx * (r.AnalyzedTx - 1) / 2
}
