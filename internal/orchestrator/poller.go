package orchestrator

import (
	"context"
	"runtime"
	"sync"

	"github.com/rs/zerolog/log"
	config "github.com/thirdweb-dev/txconflict/configs"
	"github.com/thirdweb-dev/txconflict/internal/common"
)

// BlockFunc analyzes one block. Each worker gets its own, so implementations need not be shared.
type BlockFunc func(ctx context.Context, blockNumber uint64) common.BlockResult

// Poller distributes blocks over a fixed number of workers and streams results as they complete.
type Poller struct {
	workers int
}

type PollerOption func(*Poller)

func WithPollerWorkers(workers int) PollerOption {
	return func(p *Poller) {
		if workers > 0 {
			p.workers = workers
		}
	}
}

func DefaultWorkers() int {
	workers := runtime.NumCPU() - 1
	if workers < 1 {
		workers = 1
	}
	return workers
}

func NewPoller(opts ...PollerOption) *Poller {
	workers := config.Cfg.Analysis.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	poller := &Poller{workers: workers}
	for _, opt := range opts {
		opt(poller)
	}
	return poller
}

func (p *Poller) Workers() int {
	return p.workers
}

// Poll starts the workers and closes the returned channel once all of them are done.
// After cancellation no new block is started and results of interrupted blocks are dropped.
func (p *Poller) Poll(ctx context.Context, blocks []uint64, newWorker func(workerID int) BlockFunc) <-chan common.BlockResult {
	workers := p.workers
	if workers > len(blocks) {
		workers = len(blocks)
	}

	tasks := make(chan uint64)
	results := make(chan common.BlockResult, workers)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		analyze := newWorker(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case blockNumber, ok := <-tasks:
					if !ok {
						return
					}
					result := analyze(ctx, blockNumber)
					if ctx.Err() != nil {
						log.Debug().Uint64("block", blockNumber).Msg("Dropping result of interrupted block")
						return
					}
					results <- result
				}
			}
		}()
	}

	go func() {
		defer close(tasks)
		for _, blockNumber := range blocks {
			select {
			case <-ctx.Done():
				return
			case tasks <- blockNumber:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}
