package orchestrator

import (
	"fmt"
	"math"
)

const DEFAULT_WINDOW_SECONDS = 86400

// BlockWindow is an inclusive range of block numbers ending at the chain head.
type BlockWindow struct {
	From  uint64
	To    uint64
	Count int
}

// ComputeWindow covers ceil(windowSeconds/blockTime) blocks ending at latest. Only the newest
// maxBlocks are kept when maxBlocks is positive, and the range never extends below genesis.
func ComputeWindow(latest uint64, windowSeconds int, blockTime float64, maxBlocks int) (BlockWindow, error) {
	if blockTime <= 0 {
		return BlockWindow{}, fmt.Errorf("block time must be positive, got %v", blockTime)
	}
	if windowSeconds < 0 {
		return BlockWindow{}, fmt.Errorf("window must not be negative, got %d", windowSeconds)
	}

	blocks := uint64(math.Ceil(float64(windowSeconds) / blockTime))
	if maxBlocks > 0 && blocks > uint64(maxBlocks) {
		blocks = uint64(maxBlocks)
	}
	if blocks > latest+1 {
		blocks = latest + 1
	}
	if blocks == 0 {
		return BlockWindow{From: latest + 1, To: latest}, nil
	}
	return BlockWindow{From: latest - blocks + 1, To: latest, Count: int(blocks)}, nil
}

func (w BlockWindow) Empty() bool {
	return w.Count == 0
}

// Blocks lists the window newest first so that a cap or an interruption keeps the most recent data.
func (w BlockWindow) Blocks() []uint64 {
	blocks := make([]uint64, 0, w.Count)
	for i := 0; i < w.Count; i++ {
		blocks = append(blocks, w.To-uint64(i))
	}
	return blocks
}
