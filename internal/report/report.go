package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thirdweb-dev/txconflict/internal/common"
	"github.com/thirdweb-dev/txconflict/internal/orchestrator"
)

const DEFAULT_REPORT_PATH = "dependency_analysis.json"

type ChainReport struct {
	Chain                 string                           `json:"chain"`
	Model                 string                           `json:"model,omitempty"`
	FromBlock             uint64                           `json:"from_block"`
	ToBlock               uint64                           `json:"to_block"`
	BlocksInWindow        int                              `json:"blocks_in_window"`
	TotalBlocksAnalyzed   int                              `json:"total_blocks_analyzed"`
	FailedBlocks          int                              `json:"failed_blocks"`
	BlockSuccessRate      float64                          `json:"block_success_rate"`
	TotalTransactions     int                              `json:"total_transactions"`
	AnalyzedTransactions  int                              `json:"analyzed_transactions"`
	SkippedTransactions   int                              `json:"skipped_transactions"`
	DependentTransactions int                              `json:"dependent_transactions"`
	DependencyRatio       float64                          `json:"dependency_ratio"`
	TotalPossiblePairs    int                              `json:"total_possible_pairs"`
	TotalDependentPairs   int                              `json:"total_dependent_pairs"`
	PairDependencyRatio   float64                          `json:"pair_dependency_ratio"`
	TotalConflicts        int                              `json:"total_conflicts"`
	ConflictCounts        map[string]int                   `json:"conflict_counts"`
	TopContracts          []orchestrator.ContractConflicts `json:"top_contracts"`
	ElapsedSeconds        float64                          `json:"elapsed_seconds"`
	Interrupted           bool                             `json:"interrupted"`
	Error                 string                           `json:"error,omitempty"`
}

type Report struct {
	GeneratedAt         time.Time     `json:"generated_at"`
	TimePeriod          string        `json:"time_period"`
	WindowSeconds       int           `json:"window_seconds"`
	Chains              []ChainReport `json:"chains"`
	TotalElapsedSeconds float64       `json:"total_elapsed_seconds"`
	Interrupted         bool          `json:"interrupted"`
}

func Build(summary orchestrator.RunSummary, windowSeconds int) Report {
	report := Report{
		GeneratedAt:         time.Now().UTC(),
		TimePeriod:          (time.Duration(windowSeconds) * time.Second).String(),
		WindowSeconds:       windowSeconds,
		Chains:              make([]ChainReport, 0, len(summary.Chains)),
		TotalElapsedSeconds: summary.TotalElapsed.Seconds(),
		Interrupted:         summary.Interrupted,
	}
	for _, chain := range summary.Chains {
		report.Chains = append(report.Chains, buildChainReport(chain))
	}
	return report
}

func buildChainReport(summary orchestrator.ChainSummary) ChainReport {
	conflictCounts := make(map[string]int, len(common.ConflictTypes))
	for _, t := range common.ConflictTypes {
		conflictCounts[string(t)] = summary.ConflictCounts[t]
	}
	topContracts := summary.TopContracts
	if topContracts == nil {
		topContracts = []orchestrator.ContractConflicts{}
	}
	return ChainReport{
		Chain:                 summary.Chain,
		Model:                 summary.Model,
		FromBlock:             summary.FromBlock,
		ToBlock:               summary.ToBlock,
		BlocksInWindow:        summary.BlocksInWindow,
		TotalBlocksAnalyzed:   summary.BlocksAnalyzed,
		FailedBlocks:          summary.FailedBlocks,
		BlockSuccessRate:      summary.BlockSuccessRate,
		TotalTransactions:     summary.TotalTx,
		AnalyzedTransactions:  summary.AnalyzedTx,
		SkippedTransactions:   summary.SkippedTx,
		DependentTransactions: summary.DependentTx,
		DependencyRatio:       summary.DependencyRatio,
		TotalPossiblePairs:    summary.PossiblePairs,
		TotalDependentPairs:   summary.DependentPairs,
		PairDependencyRatio:   summary.PairDependencyRatio,
		TotalConflicts:        summary.TotalConflicts,
		ConflictCounts:        conflictCounts,
		TopContracts:          topContracts,
		ElapsedSeconds:        summary.Elapsed.Seconds(),
		Interrupted:           summary.Interrupted,
		Error:                 summary.Error,
	}
}

func (r Report) Marshal() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// WriteFile writes the report through a temporary file so a reader never sees a partial report.
func WriteFile(path string, r Report) error {
	data, err := r.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move report into place: %w", err)
	}
	return nil
}

// PrintSummary writes a human readable summary of every chain.
func PrintSummary(w io.Writer, r Report) {
	fmt.Fprintf(w, "\nAnalysis Complete!\n")
	for _, chain := range r.Chains {
		log.Info().
			Str("chain", chain.Chain).
			Int("blocks", chain.TotalBlocksAnalyzed).
			Int("failed_blocks", chain.FailedBlocks).
			Int("transactions", chain.TotalTransactions).
			Int("dependent", chain.DependentTransactions).
			Float64("dependency_ratio", chain.DependencyRatio).
			Msg("Chain summary")

		fmt.Fprintf(w, "\n=== %s ===\n", chain.Chain)
		if chain.Error != "" {
			fmt.Fprintf(w, "Analysis failed: %s\n", chain.Error)
			continue
		}
		fmt.Fprintf(w, "Blocks %d-%d, model %s\n", chain.FromBlock, chain.ToBlock, chain.Model)
		fmt.Fprintf(w, "Time taken: %.2f seconds\n", chain.ElapsedSeconds)
		fmt.Fprintf(w, "Blocks analyzed: %d (failed: %d, success rate: %.2f%%)\n", chain.TotalBlocksAnalyzed, chain.FailedBlocks, chain.BlockSuccessRate*100)
		fmt.Fprintf(w, "Total transactions analyzed: %d\n", chain.TotalTransactions)
		fmt.Fprintf(w, "Dependent transactions found: %d\n", chain.DependentTransactions)
		fmt.Fprintf(w, "Dependency ratio: %.2f%%\n", chain.DependencyRatio*100)
		fmt.Fprintf(w, "Dependent pairs: %d / %d = %.2f%%\n", chain.TotalDependentPairs, chain.TotalPossiblePairs, chain.PairDependencyRatio*100)
		for _, t := range common.ConflictTypes {
			if count := chain.ConflictCounts[string(t)]; count > 0 {
				fmt.Fprintf(w, "  %s: %d\n", t, count)
			}
		}
		if chain.Interrupted {
			fmt.Fprintf(w, "Interrupted before the window was complete\n")
		}
	}
	fmt.Fprintf(w, "\nTotal time: %.2f seconds\n", r.TotalElapsedSeconds)
}
