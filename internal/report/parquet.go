package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/thirdweb-dev/txconflict/internal/common"
)

const DEFAULT_BLOCKS_PATH = "block_details.parquet"

// BlockRow is one analyzed block in the block details artifact.
type BlockRow struct {
	Chain          string `parquet:"chain"`
	BlockNumber    uint64 `parquet:"block_number"`
	TotalTx        int64  `parquet:"total_tx"`
	AnalyzedTx     int64  `parquet:"analyzed_tx"`
	SkippedTx      int64  `parquet:"skipped_tx"`
	DependentTx    int64  `parquet:"dependent_tx"`
	DependentPairs int64  `parquet:"dependent_pairs"`
	Failed         bool   `parquet:"failed"`
	FailureReason  string `parquet:"failure_reason"`
	DurationMs     int64  `parquet:"duration_ms"`
	Conflicts      []byte `parquet:"conflicts_json"`
}

var writerOptions = []parquet.WriterOption{
	parquet.Compression(&parquet.Zstd),
	parquet.DataPageStatistics(true),
}

// ParquetBlockWriter records every block result as it arrives. It is safe for concurrent use.
type ParquetBlockWriter struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *parquet.GenericWriter[BlockRow]
	rows   int
}

func NewParquetBlockWriter(path string) (*ParquetBlockWriter, error) {
	if path == "" {
		path = DEFAULT_BLOCKS_PATH
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create parquet directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file: %w", err)
	}
	return &ParquetBlockWriter{
		path:   path,
		file:   file,
		writer: parquet.NewGenericWriter[BlockRow](file, writerOptions...),
	}, nil
}

func (w *ParquetBlockWriter) ObserveBlock(chain string, result common.BlockResult) error {
	conflictsJSON, err := json.Marshal(result.Conflicts)
	if err != nil {
		return fmt.Errorf("failed to marshal conflicts: %w", err)
	}
	dependentTx := 0
	if result.DependentTxHashes != nil {
		dependentTx = result.DependentTxHashes.Cardinality()
	}
	row := BlockRow{
		Chain:          chain,
		BlockNumber:    result.BlockNumber,
		TotalTx:        int64(result.TotalTx),
		AnalyzedTx:     int64(result.AnalyzedTx),
		SkippedTx:      int64(result.SkippedTx),
		DependentTx:    int64(dependentTx),
		DependentPairs: int64(result.DependentPairs),
		Failed:         result.Failed,
		FailureReason:  result.FailureReason,
		DurationMs:     result.Duration.Milliseconds(),
		Conflicts:      conflictsJSON,
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writer == nil {
		return fmt.Errorf("parquet writer for %s is closed", w.path)
	}
	if _, err := w.writer.Write([]BlockRow{row}); err != nil {
		return fmt.Errorf("failed to write parquet row: %w", err)
	}
	w.rows++
	return nil
}

func (w *ParquetBlockWriter) Path() string {
	return w.path
}

func (w *ParquetBlockWriter) Rows() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// Close flushes the footer. The file is complete only after Close returns.
func (w *ParquetBlockWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writer != nil {
		if err := w.writer.Close(); err != nil {
			return fmt.Errorf("failed to close parquet writer: %w", err)
		}
		w.writer = nil
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("failed to close parquet file: %w", err)
		}
		w.file = nil
	}
	return nil
}
