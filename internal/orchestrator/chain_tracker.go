package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thirdweb-dev/txconflict/internal/metrics"
	"github.com/thirdweb-dev/txconflict/internal/rpc"
)

const DEFAULT_CHAIN_TRACKER_POLL_INTERVAL = 30000 // 30 seconds

// ChainTracker follows the chain head while a window is analyzed, so the lag behind the head stays visible.
type ChainTracker struct {
	chain             string
	rpc               rpc.IRPCClient
	triggerIntervalMs int
}

func NewChainTracker(chain string, rpc rpc.IRPCClient) *ChainTracker {
	return &ChainTracker{
		chain:             chain,
		rpc:               rpc,
		triggerIntervalMs: DEFAULT_CHAIN_TRACKER_POLL_INTERVAL,
	}
}

func (ct *ChainTracker) Start(ctx context.Context) {
	interval := time.Duration(ct.triggerIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Debug().Str("chain", ct.chain).Msgf("Chain tracker running")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			latestBlockNumber, err := ct.rpc.GetLatestBlockNumber(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Error().Err(err).Str("chain", ct.chain).Msg("Error getting latest block number")
				}
				continue
			}
			metrics.ChainHead.WithLabelValues(ct.chain).Set(float64(latestBlockNumber))
		}
	}
}
