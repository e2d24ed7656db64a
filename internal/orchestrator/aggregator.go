package orchestrator

import (
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/thirdweb-dev/txconflict/internal/common"
)

const topContractsLimit = 10

type ContractConflicts struct {
	Address   string `json:"address"`
	Conflicts int    `json:"conflicts"`
}

// ChainSummary is derived entirely from the block results of one chain.
type ChainSummary struct {
	Chain               string
	Model               string
	FromBlock           uint64
	ToBlock             uint64
	BlocksInWindow      int
	BlocksAnalyzed      int
	FailedBlocks        int
	TotalTx             int
	AnalyzedTx          int
	SkippedTx           int
	DependentTx         int
	DependentPairs      int
	PossiblePairs       int
	TotalConflicts      int
	DependencyRatio     float64
	PairDependencyRatio float64
	BlockSuccessRate    float64
	ConflictCounts      map[common.ConflictType]int
	TopContracts        []ContractConflicts
	Elapsed             time.Duration
	Interrupted         bool
	Error               string
}

type RunSummary struct {
	Chains       []ChainSummary
	TotalElapsed time.Duration
	Interrupted  bool
}

// Aggregator folds block results into a chain summary. It is not safe for concurrent use;
// results are drained from a single channel.
type Aggregator struct {
	chain           string
	window          BlockWindow
	blocksAnalyzed  int
	failedBlocks    int
	totalTx         int
	analyzedTx      int
	skippedTx       int
	dependentPairs  int
	possiblePairs   int
	totalConflicts  int
	dependentHashes mapset.Set[string]
	conflictCounts  map[common.ConflictType]int
	contractCounts  map[string]int
}

func NewAggregator(chain string, window BlockWindow) *Aggregator {
	return &Aggregator{
		chain:           chain,
		window:          window,
		dependentHashes: mapset.NewThreadUnsafeSet[string](),
		conflictCounts:  make(map[common.ConflictType]int),
		contractCounts:  make(map[string]int),
	}
}

func (a *Aggregator) Add(result common.BlockResult) {
	a.blocksAnalyzed++
	// failed blocks still count toward the denominators
	a.totalTx += result.TotalTx
	if result.Failed {
		a.failedBlocks++
		return
	}
	a.analyzedTx += result.AnalyzedTx
	a.skippedTx += result.SkippedTx
	a.dependentPairs += result.DependentPairs
	a.possiblePairs += result.PossiblePairs()
	if result.DependentTxHashes != nil {
		a.dependentHashes.Append(result.DependentTxHashes.ToSlice()...)
	}
	for _, conflict := range result.Conflicts {
		a.totalConflicts++
		a.conflictCounts[conflict.Type]++
		a.contractCounts[conflict.ContractAddress]++
	}
}

func (a *Aggregator) DependencyRatio() float64 {
	return ratio(a.dependentHashes.Cardinality(), a.totalTx)
}

func (a *Aggregator) Summary() ChainSummary {
	conflictCounts := make(map[common.ConflictType]int, len(common.ConflictTypes))
	for t, count := range a.conflictCounts {
		conflictCounts[t] = count
	}

	return ChainSummary{
		Chain:               a.chain,
		FromBlock:           a.window.From,
		ToBlock:             a.window.To,
		BlocksInWindow:      a.window.Count,
		BlocksAnalyzed:      a.blocksAnalyzed,
		FailedBlocks:        a.failedBlocks,
		TotalTx:             a.totalTx,
		AnalyzedTx:          a.analyzedTx,
		SkippedTx:           a.skippedTx,
		DependentTx:         a.dependentHashes.Cardinality(),
		DependentPairs:      a.dependentPairs,
		PossiblePairs:       a.possiblePairs,
		TotalConflicts:      a.totalConflicts,
		DependencyRatio:     a.DependencyRatio(),
		PairDependencyRatio: ratio(a.dependentPairs, a.possiblePairs),
		BlockSuccessRate:    ratio(a.blocksAnalyzed-a.failedBlocks, a.blocksAnalyzed),
		ConflictCounts:      conflictCounts,
		TopContracts:        a.topContracts(),
	}
}

func (a *Aggregator) topContracts() []ContractConflicts {
	contracts := make([]ContractConflicts, 0, len(a.contractCounts))
	for address, count := range a.contractCounts {
		contracts = append(contracts, ContractConflicts{Address: address, Conflicts: count})
	}
	sort.Slice(contracts, func(i, j int) bool {
		if contracts[i].Conflicts != contracts[j].Conflicts {
			return contracts[i].Conflicts > contracts[j].Conflicts
		}
		return contracts[i].Address < contracts[j].Address
	})
	if len(contracts) > topContractsLimit {
		contracts = contracts[:topContractsLimit]
	}
	return contracts
}

func ratio(numerator int, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}
