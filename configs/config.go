package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Prettify bool   `mapstructure:"prettify"`
}

type ChainConfig struct {
	Name      string  `mapstructure:"name"`
	RPCURL    string  `mapstructure:"rpcUrl"`
	BlockTime float64 `mapstructure:"blockTime"`
	ChainID   uint64  `mapstructure:"chainId"`
	Enabled   *bool   `mapstructure:"enabled"`
}

// IsEnabled treats a missing flag as enabled.
func (c ChainConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

type AnalysisConfig struct {
	WindowSeconds    int    `mapstructure:"windowSeconds"`
	MaxBlocks        int    `mapstructure:"maxBlocks"`
	Workers          int    `mapstructure:"workers"`
	Model            string `mapstructure:"model"`
	FailurePolicy    string `mapstructure:"failurePolicy"`
	TraceConcurrency int    `mapstructure:"traceConcurrency"`
	TraceTimeout     string `mapstructure:"traceTimeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TLS      bool   `mapstructure:"tls"`
	Key      string `mapstructure:"key"`
}

type RPCLimiterConfig struct {
	Scope string      `mapstructure:"scope"`
	Redis RedisConfig `mapstructure:"redis"`
}

type RPCConfig struct {
	CallsPerSecond float64          `mapstructure:"callsPerSecond"`
	MaxRetries     int              `mapstructure:"maxRetries"`
	RetryDelay     int              `mapstructure:"retryDelay"`
	MaxBackoff     int              `mapstructure:"maxBackoff"`
	MaxJitter      *int             `mapstructure:"maxJitter"`
	Limiter        RPCLimiterConfig `mapstructure:"limiter"`
}

type ReportBlocksConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type ReportS3Config struct {
	Enabled         bool   `mapstructure:"enabled"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"accessKeyId"`
	SecretAccessKey string `mapstructure:"secretAccessKey"`
}

type ReportKafkaConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Brokers  string `mapstructure:"brokers"`
	Topic    string `mapstructure:"topic"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ReportConfig struct {
	Path   string             `mapstructure:"path"`
	Blocks ReportBlocksConfig `mapstructure:"blocks"`
	S3     ReportS3Config     `mapstructure:"s3"`
	Kafka  ReportKafkaConfig  `mapstructure:"kafka"`
}

type APIConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type Config struct {
	Chains   []ChainConfig  `mapstructure:"chains"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	RPC      RPCConfig      `mapstructure:"rpc"`
	Report   ReportConfig   `mapstructure:"report"`
	API      APIConfig      `mapstructure:"api"`
	Log      LogConfig      `mapstructure:"log"`
}

var Cfg Config

func LoadConfig(cfgFile string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file, %s", err)
		}
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath("./configs")

		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file, %s", err)
		}

		// secrets are optional, chain URLs usually carry the key through the environment instead
		viper.SetConfigName("secrets")
		if err := viper.MergeInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("error loading secrets file: %v", err)
			}
		}
	}

	// sets e.g. RPC_CALLSPERSECOND to rpc.callsPerSecond
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv()

	err := viper.Unmarshal(&Cfg)
	if err != nil {
		return fmt.Errorf("error unmarshalling config: %v", err)
	}

	for i := range Cfg.Chains {
		Cfg.Chains[i].RPCURL = os.ExpandEnv(Cfg.Chains[i].RPCURL)
	}

	return nil
}

// EnabledChains returns the configured chains, optionally filtered by name.
func EnabledChains(names []string) []ChainConfig {
	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[strings.ToLower(n)] = struct{}{}
	}
	chains := make([]ChainConfig, 0, len(Cfg.Chains))
	for _, chain := range Cfg.Chains {
		if len(wanted) > 0 {
			if _, ok := wanted[strings.ToLower(chain.Name)]; !ok {
				continue
			}
		} else if !chain.IsEnabled() {
			continue
		}
		chains = append(chains, chain)
	}
	return chains
}
