package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	config "github.com/thirdweb-dev/txconflict/configs"
	"github.com/thirdweb-dev/txconflict/internal/common"
	"github.com/thirdweb-dev/txconflict/internal/metrics"
	"github.com/thirdweb-dev/txconflict/internal/rpc"
	"golang.org/x/sync/errgroup"
)

type FailurePolicy string

const (
	// FailurePolicyStrict fails the whole block when any transaction cannot be loaded.
	FailurePolicyStrict FailurePolicy = "strict"
	// FailurePolicyLenient skips unreachable transactions and scores the rest of the block.
	FailurePolicyLenient FailurePolicy = "lenient"

	DEFAULT_TRACE_CONCURRENCY = 1
)

type BlockAnalyzer struct {
	chain            string
	client           rpc.IRPCClient
	model            AccessModel
	failurePolicy    FailurePolicy
	traceConcurrency int
}

func NewBlockAnalyzer(chain string, client rpc.IRPCClient, model AccessModel) *BlockAnalyzer {
	failurePolicy := FailurePolicy(config.Cfg.Analysis.FailurePolicy)
	if failurePolicy == "" {
		failurePolicy = FailurePolicyStrict
	}
	traceConcurrency := config.Cfg.Analysis.TraceConcurrency
	if traceConcurrency <= 0 {
		traceConcurrency = DEFAULT_TRACE_CONCURRENCY
	}
	return &BlockAnalyzer{
		chain:            chain,
		client:           client,
		model:            model,
		failurePolicy:    failurePolicy,
		traceConcurrency: traceConcurrency,
	}
}

func (a *BlockAnalyzer) WithFailurePolicy(policy FailurePolicy) *BlockAnalyzer {
	a.failurePolicy = policy
	return a
}

func (a *BlockAnalyzer) WithTraceConcurrency(concurrency int) *BlockAnalyzer {
	if concurrency > 0 {
		a.traceConcurrency = concurrency
	}
	return a
}

// Analyze fetches a block, loads a footprint for each of its transactions and compares every unordered pair.
func (a *BlockAnalyzer) Analyze(ctx context.Context, blockNumber uint64) common.BlockResult {
	start := time.Now()
	result := a.analyze(ctx, blockNumber)
	result.Duration = time.Since(start)

	status := "analyzed"
	if result.Failed {
		status = "failed"
		log.Warn().Str("chain", a.chain).Uint64("block", blockNumber).Str("reason", result.FailureReason).Msg("Block analysis failed")
	} else {
		log.Debug().Str("chain", a.chain).Uint64("block", blockNumber).Int("tx", result.TotalTx).Int("dependent", result.DependentTxHashes.Cardinality()).Msg("Analyzed block")
	}
	metrics.AnalyzedBlocks.WithLabelValues(a.chain, status).Inc()
	metrics.AnalyzedTransactions.WithLabelValues(a.chain).Add(float64(result.TotalTx))
	metrics.BlockAnalysisDuration.WithLabelValues(a.chain).Observe(result.Duration.Seconds())
	for _, conflict := range result.Conflicts {
		metrics.DetectedConflicts.WithLabelValues(a.chain, string(conflict.Type)).Inc()
	}
	return result
}

func (a *BlockAnalyzer) analyze(ctx context.Context, blockNumber uint64) common.BlockResult {
	block, err := a.client.GetBlockWithTransactions(ctx, blockNumber)
	if err != nil {
		return common.FailedBlockResult(blockNumber, 0, fmt.Sprintf("failed to fetch block: %v", err))
	}

	txs := block.Transactions
	result := common.NewBlockResult(blockNumber, len(txs))
	if len(txs) < 2 {
		result.AnalyzedTx = len(txs)
		return result
	}

	footprints := make([]Footprint, len(txs))
	var skippedMu sync.Mutex
	skipped := 0

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(a.traceConcurrency)
	for i, tx := range txs {
		g.Go(func() error {
			footprint, err := a.model.Load(gCtx, a.client, tx)
			if err == nil {
				footprints[i] = footprint
				return nil
			}
			if a.failurePolicy == FailurePolicyLenient && ctx.Err() == nil {
				log.Warn().Err(err).Str("chain", a.chain).Uint64("block", blockNumber).Str("tx", tx.NormalizedHash()).Msg("Skipping unreachable transaction")
				skippedMu.Lock()
				skipped++
				skippedMu.Unlock()
				return nil
			}
			return fmt.Errorf("failed to load transaction %s: %w", tx.NormalizedHash(), err)
		})
	}
	if err := g.Wait(); err != nil {
		return common.FailedBlockResult(blockNumber, len(txs), err.Error())
	}

	result.SkippedTx = skipped
	result.AnalyzedTx = len(txs) - skipped
	for i := 0; i < len(txs); i++ {
		if footprints[i] == nil {
			continue
		}
		for j := i + 1; j < len(txs); j++ {
			if footprints[j] == nil {
				continue
			}
			dependent, conflicts := footprints[i].Conflicts(footprints[j])
			if !dependent {
				continue
			}
			result.DependentPairs++
			result.DependentTxHashes.Add(txs[i].NormalizedHash())
			result.DependentTxHashes.Add(txs[j].NormalizedHash())
			result.Conflicts = append(result.Conflicts, conflicts...)
		}
	}
	return result
}
