package analyzer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/thirdweb-dev/txconflict/internal/rpc"
)

// probeDepth bounds how far back auto selection looks for a transaction to probe with.
const probeDepth = 10

// SelectModel resolves a configured model name. "auto" probes prestateTracer on a recent
// transaction and falls back to callTracer when the provider rejects it.
func SelectModel(ctx context.Context, client rpc.IRPCClient, name string, traceTimeout string) (AccessModel, error) {
	switch name {
	case "", ModelPrestate:
		return PrestateModel{TraceTimeout: traceTimeout}, nil
	case ModelCallTracer:
		return CallTreeModel{TraceTimeout: traceTimeout}, nil
	case ModelAuto:
	default:
		return nil, fmt.Errorf("unknown access model %q", name)
	}

	latest, err := client.GetLatestBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to probe tracer support: %w", err)
	}
	for depth := uint64(0); depth < probeDepth && depth <= latest; depth++ {
		block, err := client.GetBlockWithTransactions(ctx, latest-depth)
		if err != nil {
			return nil, fmt.Errorf("failed to probe tracer support: %w", err)
		}
		if len(block.Transactions) == 0 {
			continue
		}
		hash := block.Transactions[0].NormalizedHash()
		_, err = client.TraceTransaction(ctx, hash, rpc.PrestateTraceConfig(traceTimeout))
		if err == nil {
			log.Info().Str("tx", hash).Msg("Provider supports prestateTracer")
			return PrestateModel{TraceTimeout: traceTimeout}, nil
		}
		if rpc.IsRateLimited(err) || ctx.Err() != nil {
			return nil, fmt.Errorf("failed to probe tracer support: %w", err)
		}
		log.Warn().Err(err).Str("tx", hash).Msg("prestateTracer rejected, falling back to callTracer")
		return CallTreeModel{TraceTimeout: traceTimeout}, nil
	}

	log.Warn().Uint64("latest", latest).Msg("No transaction found to probe tracer support, using prestateTracer")
	return PrestateModel{TraceTimeout: traceTimeout}, nil
}
