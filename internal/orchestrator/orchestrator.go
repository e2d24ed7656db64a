package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	gethRpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog/log"
	config "github.com/thirdweb-dev/txconflict/configs"
	"github.com/thirdweb-dev/txconflict/internal/analyzer"
	"github.com/thirdweb-dev/txconflict/internal/common"
	customLogger "github.com/thirdweb-dev/txconflict/internal/log"
	"github.com/thirdweb-dev/txconflict/internal/metrics"
	"github.com/thirdweb-dev/txconflict/internal/rpc"
)

// BlockObserver sees every block result before it is aggregated.
type BlockObserver interface {
	ObserveBlock(chain string, result common.BlockResult) error
}

// ChainClients hands out one request layer per worker over a chain connection.
type ChainClients interface {
	ForWorker() rpc.IRPCClient
	Close()
}

type Dialer func(ctx context.Context, chain config.ChainConfig) (ChainClients, error)

type rpcChainClients struct {
	conn     *gethRpc.Client
	limiters *rpc.LimiterFactory
	policy   rpc.RetryPolicy
}

func (c *rpcChainClients) ForWorker() rpc.IRPCClient {
	return rpc.NewClient(c.conn, c.limiters.ForWorker(), c.policy)
}

func (c *rpcChainClients) Close() {
	c.conn.Close()
}

// RPCDialer connects to a chain endpoint. Workers share the connection and get limiters from the factory.
func RPCDialer(limiters *rpc.LimiterFactory, policy rpc.RetryPolicy) Dialer {
	return func(ctx context.Context, chain config.ChainConfig) (ChainClients, error) {
		conn, err := rpc.Dial(ctx, chain)
		if err != nil {
			return nil, err
		}
		return &rpcChainClients{conn: conn, limiters: limiters, policy: policy}, nil
	}
}

type Orchestrator struct {
	dial          Dialer
	poller        *Poller
	progress      *ProgressTracker
	observers     []BlockObserver
	windowSeconds int
	maxBlocks     int
	model         string
	traceTimeout  string
}

type OrchestratorOption func(*Orchestrator)

func WithBlockObserver(observer BlockObserver) OrchestratorOption {
	return func(o *Orchestrator) {
		if observer != nil {
			o.observers = append(o.observers, observer)
		}
	}
}

func WithProgressTracker(progress *ProgressTracker) OrchestratorOption {
	return func(o *Orchestrator) {
		if progress != nil {
			o.progress = progress
		}
	}
}

func WithPoller(poller *Poller) OrchestratorOption {
	return func(o *Orchestrator) {
		if poller != nil {
			o.poller = poller
		}
	}
}

func NewOrchestrator(dial Dialer, opts ...OrchestratorOption) *Orchestrator {
	windowSeconds := config.Cfg.Analysis.WindowSeconds
	if windowSeconds == 0 {
		windowSeconds = DEFAULT_WINDOW_SECONDS
	}
	o := &Orchestrator{
		dial:          dial,
		windowSeconds: windowSeconds,
		maxBlocks:     config.Cfg.Analysis.MaxBlocks,
		model:         config.Cfg.Analysis.Model,
		traceTimeout:  config.Cfg.Analysis.TraceTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.poller == nil {
		o.poller = NewPoller()
	}
	if o.progress == nil {
		o.progress = NewProgressTracker()
	}
	return o
}

func (o *Orchestrator) Progress() *ProgressTracker {
	return o.progress
}

// RunAll analyzes chains one after another. SIGINT and SIGTERM stop the run, and the summary
// still covers every block completed before the signal.
func (o *Orchestrator) RunAll(ctx context.Context, chains []config.ChainConfig) RunSummary {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().Msgf("Received signal %v, finishing with the blocks analyzed so far", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	summary := RunSummary{Chains: make([]ChainSummary, 0, len(chains))}
	for _, chain := range chains {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}
		chainSummary, err := o.Run(ctx, chain)
		if err != nil {
			log.Error().Err(err).Str("chain", chain.Name).Msg("Chain analysis failed")
			chainSummary.Chain = chain.Name
			chainSummary.Error = err.Error()
		}
		summary.Chains = append(summary.Chains, chainSummary)
		if chainSummary.Interrupted {
			summary.Interrupted = true
		}
	}
	summary.TotalElapsed = time.Since(start)
	return summary
}

// Run analyzes the configured window of one chain.
func (o *Orchestrator) Run(ctx context.Context, chain config.ChainConfig) (ChainSummary, error) {
	start := time.Now()
	logger := customLogger.ForChain(chain.Name)

	clients, err := o.dial(ctx, chain)
	if err != nil {
		return ChainSummary{}, err
	}
	defer clients.Close()

	probe := clients.ForWorker()
	if err := verifyChainID(ctx, probe, chain); err != nil {
		return ChainSummary{}, err
	}
	latest, err := probe.GetLatestBlockNumber(ctx)
	if err != nil {
		return ChainSummary{}, fmt.Errorf("failed to get latest block of %s: %w", chain.Name, err)
	}
	window, err := ComputeWindow(latest, o.windowSeconds, chain.BlockTime, o.maxBlocks)
	if err != nil {
		return ChainSummary{}, fmt.Errorf("invalid window for %s: %w", chain.Name, err)
	}
	model, err := analyzer.SelectModel(ctx, probe, o.model, o.traceTimeout)
	if err != nil {
		return ChainSummary{}, err
	}

	logger.Info().
		Uint64("from", window.From).
		Uint64("to", window.To).
		Int("blocks", window.Count).
		Int("workers", o.poller.Workers()).
		Str("model", model.Name()).
		Msg("Starting chain analysis")

	o.progress.Start(chain.Name, window.Count)
	defer o.progress.Finish(chain.Name)
	metrics.ChainHead.WithLabelValues(chain.Name).Set(float64(latest))

	trackerCtx, stopTracker := context.WithCancel(ctx)
	defer stopTracker()
	go NewChainTracker(chain.Name, probe).Start(trackerCtx)

	aggregator := NewAggregator(chain.Name, window)
	results := o.poller.Poll(ctx, window.Blocks(), func(workerID int) BlockFunc {
		return analyzer.NewBlockAnalyzer(chain.Name, clients.ForWorker(), model).Analyze
	})

	for result := range results {
		for _, observer := range o.observers {
			if err := observer.ObserveBlock(chain.Name, result); err != nil {
				logger.Error().Err(err).Uint64("block", result.BlockNumber).Msg("Block observer failed")
			}
		}
		aggregator.Add(result)
		progress := o.progress.Record(chain.Name, result.Failed, aggregator.DependencyRatio())
		logger.Info().
			Uint64("block", result.BlockNumber).
			Int("completed", progress.Completed).
			Int("total", progress.Total).
			Float64("dependency_ratio", progress.DependencyRatio).
			Msgf("Processed block %d/%d", progress.Completed, progress.Total)
	}

	summary := aggregator.Summary()
	summary.Model = model.Name()
	summary.Interrupted = ctx.Err() != nil
	summary.Elapsed = time.Since(start)
	return summary, nil
}

// verifyChainID guards against an rpcUrl pointing at another network. Chains without a chainId are not checked.
func verifyChainID(ctx context.Context, client rpc.IRPCClient, chain config.ChainConfig) error {
	if chain.ChainID == 0 {
		return nil
	}
	chainID, err := client.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain id of %s: %w", chain.Name, err)
	}
	if !chainID.IsUint64() || chainID.Uint64() != chain.ChainID {
		return fmt.Errorf("rpc endpoint of %s serves chain id %s, expected %d", chain.Name, chainID.String(), chain.ChainID)
	}
	log.Debug().Str("chain", chain.Name).Uint64("chain_id", chain.ChainID).Msg("Chain id verified")
	return nil
}
