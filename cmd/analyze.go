package cmd

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	config "github.com/thirdweb-dev/txconflict/configs"
	"github.com/thirdweb-dev/txconflict/internal/handlers"
	"github.com/thirdweb-dev/txconflict/internal/orchestrator"
	"github.com/thirdweb-dev/txconflict/internal/report"
	"github.com/thirdweb-dev/txconflict/internal/rpc"
)

var chainNames []string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the configured chains and write a conflict report",
	Long:  "Traces every block in the configured window of each chain, pairs up the transactions of each block and reports how many of them depend on another transaction of the same block",
	Run: func(cmd *cobra.Command, args []string) {
		RunAnalyze(cmd, args)
	},
}

func init() {
	analyzeCmd.Flags().StringSliceVar(&chainNames, "chains", nil, "Only analyze these chains, disabled ones included")
}

func RunAnalyze(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chains := config.EnabledChains(chainNames)
	if len(chains) == 0 {
		log.Fatal().Strs("chains", chainNames).Msg("No chains to analyze")
	}

	limiters, closeLimiters, err := rpc.NewLimiterFactory(ctx, config.Cfg.RPC)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create RPC rate limiter")
	}
	defer closeLimiters()
	log.Info().Str("scope", limiters.Scope()).Float64("callsPerSecond", rpc.GetCallsPerSecond()).Msg("RPC rate limiter ready")

	progress := orchestrator.NewProgressTracker()
	opts := []orchestrator.OrchestratorOption{orchestrator.WithProgressTracker(progress)}

	var blockWriter *report.ParquetBlockWriter
	if config.Cfg.Report.Blocks.Enabled {
		blockWriter, err = report.NewParquetBlockWriter(config.Cfg.Report.Blocks.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create block details writer")
		}
		opts = append(opts, orchestrator.WithBlockObserver(blockWriter))
	}

	if config.Cfg.API.Enabled {
		go func() {
			if err := handlers.Serve(ctx, config.Cfg.API.Host, progress); err != nil {
				log.Error().Err(err).Msg("Status server stopped")
			}
		}()
	}

	o := orchestrator.NewOrchestrator(orchestrator.RPCDialer(limiters, rpc.GetRetryPolicyConfig()), opts...)
	summary := o.RunAll(ctx, chains)

	blocksPath := ""
	if blockWriter != nil {
		if err := blockWriter.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close block details writer")
		} else {
			blocksPath = blockWriter.Path()
			log.Info().Str("path", blocksPath).Int("rows", blockWriter.Rows()).Msg("Wrote block details")
		}
	}

	windowSeconds := config.Cfg.Analysis.WindowSeconds
	if windowSeconds <= 0 {
		windowSeconds = orchestrator.DEFAULT_WINDOW_SECONDS
	}
	r := report.Build(summary, windowSeconds)

	// the signal context is gone by now, publishing gets a fresh one
	publishCtx := context.Background()
	sinks := []report.Sink{report.JSONFileSink{Path: config.Cfg.Report.Path}}
	if config.Cfg.Report.S3.Enabled {
		s3Client, err := report.NewS3Client(publishCtx, config.Cfg.Report.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 client")
		}
		sinks = append(sinks, report.NewS3Sink(s3Client, config.Cfg.Report.S3, blocksPath))
	}
	if config.Cfg.Report.Kafka.Enabled {
		kafkaClient, err := report.NewKafkaClient(publishCtx, config.Cfg.Report.Kafka)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Kafka client")
		}
		defer kafkaClient.Close()
		sinks = append(sinks, report.NewKafkaSink(kafkaClient, config.Cfg.Report.Kafka.Topic))
	}

	if err := report.Publish(publishCtx, r, sinks...); err != nil {
		log.Error().Err(err).Msg("Failed to publish report")
	}

	for _, chain := range r.Chains {
		log.Info().
			Str("chain", chain.Chain).
			Float64("dependency_ratio", chain.DependencyRatio).
			Int("total_tx", chain.TotalTransactions).
			Int("failed_blocks", chain.FailedBlocks).
			Msg("Chain analysis complete")
	}
	report.PrintSummary(os.Stdout, r)
}
