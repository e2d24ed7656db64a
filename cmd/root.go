package cmd

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	config "github.com/thirdweb-dev/txconflict/configs"
	"github.com/thirdweb-dev/txconflict/internal/env"
	customLogger "github.com/thirdweb-dev/txconflict/internal/log"
)

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "txconflict",
		Short: "Estimate how often transactions in the same block conflict",
		Long:  "Scans a recent time window of one or more EVM chains, traces every transaction and reports the share of transactions that touch state another transaction in the same block also touches.",
		Run: func(cmd *cobra.Command, args []string) {
			RunAnalyze(cmd, args)
		},
	}
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level to use for the application")
	rootCmd.PersistentFlags().Bool("log-prettify", false, "Whether to prettify the log output")
	rootCmd.PersistentFlags().Int("analysis-window-seconds", 0, "Length of the analyzed time window ending at the chain head")
	rootCmd.PersistentFlags().Int("analysis-max-blocks", 0, "Only analyze the newest N blocks of the window")
	rootCmd.PersistentFlags().Int("analysis-workers", 0, "Number of blocks analyzed in parallel (default is CPU count - 1)")
	rootCmd.PersistentFlags().String("analysis-model", "", "Access model to use: prestate, callTracer or auto")
	rootCmd.PersistentFlags().String("analysis-failure-policy", "", "What to do with a block when a transaction trace is unavailable: strict or lenient")
	rootCmd.PersistentFlags().Int("analysis-trace-concurrency", 0, "How many traces of a block to fetch concurrently")
	rootCmd.PersistentFlags().String("analysis-trace-timeout", "", "Tracer timeout passed to debug_traceTransaction")
	rootCmd.PersistentFlags().Float64("rpc-calls-per-second", 0, "Maximum RPC calls per second")
	rootCmd.PersistentFlags().Int("rpc-max-retries", 0, "How many times a throttled RPC call is retried")
	rootCmd.PersistentFlags().Int("rpc-retry-delay", 0, "Base retry delay in milliseconds")
	rootCmd.PersistentFlags().Int("rpc-max-backoff", 0, "Retry delay ceiling in milliseconds")
	rootCmd.PersistentFlags().String("rpc-limiter-scope", "", "Rate limiter scope: worker, shared or redis")
	rootCmd.PersistentFlags().String("rpc-limiter-redis-addr", "", "Redis address for the redis limiter scope")
	rootCmd.PersistentFlags().String("report-path", "", "Where to write the JSON report")
	rootCmd.PersistentFlags().Bool("report-blocks-enabled", false, "Write per block details to a parquet file")
	rootCmd.PersistentFlags().String("report-blocks-path", "", "Path of the per block parquet file")
	rootCmd.PersistentFlags().Bool("report-s3-enabled", false, "Upload the report to S3")
	rootCmd.PersistentFlags().String("report-s3-bucket", "", "S3 bucket for the report")
	rootCmd.PersistentFlags().String("report-s3-region", "", "S3 region for the report")
	rootCmd.PersistentFlags().Bool("report-kafka-enabled", false, "Publish chain reports to Kafka")
	rootCmd.PersistentFlags().String("report-kafka-brokers", "", "Comma separated Kafka brokers")
	rootCmd.PersistentFlags().String("report-kafka-topic", "", "Kafka topic for chain reports")
	rootCmd.PersistentFlags().Bool("api-enabled", false, "Serve health, metrics and progress while analyzing")
	rootCmd.PersistentFlags().String("api-host", "", "Address of the status server")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.prettify", rootCmd.PersistentFlags().Lookup("log-prettify"))
	viper.BindPFlag("analysis.windowSeconds", rootCmd.PersistentFlags().Lookup("analysis-window-seconds"))
	viper.BindPFlag("analysis.maxBlocks", rootCmd.PersistentFlags().Lookup("analysis-max-blocks"))
	viper.BindPFlag("analysis.workers", rootCmd.PersistentFlags().Lookup("analysis-workers"))
	viper.BindPFlag("analysis.model", rootCmd.PersistentFlags().Lookup("analysis-model"))
	viper.BindPFlag("analysis.failurePolicy", rootCmd.PersistentFlags().Lookup("analysis-failure-policy"))
	viper.BindPFlag("analysis.traceConcurrency", rootCmd.PersistentFlags().Lookup("analysis-trace-concurrency"))
	viper.BindPFlag("analysis.traceTimeout", rootCmd.PersistentFlags().Lookup("analysis-trace-timeout"))
	viper.BindPFlag("rpc.callsPerSecond", rootCmd.PersistentFlags().Lookup("rpc-calls-per-second"))
	viper.BindPFlag("rpc.maxRetries", rootCmd.PersistentFlags().Lookup("rpc-max-retries"))
	viper.BindPFlag("rpc.retryDelay", rootCmd.PersistentFlags().Lookup("rpc-retry-delay"))
	viper.BindPFlag("rpc.maxBackoff", rootCmd.PersistentFlags().Lookup("rpc-max-backoff"))
	viper.BindPFlag("rpc.limiter.scope", rootCmd.PersistentFlags().Lookup("rpc-limiter-scope"))
	viper.BindPFlag("rpc.limiter.redis.addr", rootCmd.PersistentFlags().Lookup("rpc-limiter-redis-addr"))
	viper.BindPFlag("report.path", rootCmd.PersistentFlags().Lookup("report-path"))
	viper.BindPFlag("report.blocks.enabled", rootCmd.PersistentFlags().Lookup("report-blocks-enabled"))
	viper.BindPFlag("report.blocks.path", rootCmd.PersistentFlags().Lookup("report-blocks-path"))
	viper.BindPFlag("report.s3.enabled", rootCmd.PersistentFlags().Lookup("report-s3-enabled"))
	viper.BindPFlag("report.s3.bucket", rootCmd.PersistentFlags().Lookup("report-s3-bucket"))
	viper.BindPFlag("report.s3.region", rootCmd.PersistentFlags().Lookup("report-s3-region"))
	viper.BindPFlag("report.kafka.enabled", rootCmd.PersistentFlags().Lookup("report-kafka-enabled"))
	viper.BindPFlag("report.kafka.brokers", rootCmd.PersistentFlags().Lookup("report-kafka-brokers"))
	viper.BindPFlag("report.kafka.topic", rootCmd.PersistentFlags().Lookup("report-kafka-topic"))
	viper.BindPFlag("api.enabled", rootCmd.PersistentFlags().Lookup("api-enabled"))
	viper.BindPFlag("api.host", rootCmd.PersistentFlags().Lookup("api-host"))
	rootCmd.AddCommand(analyzeCmd)
}

func initConfig() {
	env.Load()
	if err := config.LoadConfig(cfgFile); err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	customLogger.InitLogger()
}
