package rpc

import (
	"time"

	config "github.com/thirdweb-dev/txconflict/configs"
)

const (
	DEFAULT_CALLS_PER_SECOND = 5
	DEFAULT_MAX_RETRIES      = 10
	DEFAULT_RETRY_DELAY_MS   = 2000
	DEFAULT_MAX_BACKOFF_MS   = 60000
	DEFAULT_MAX_JITTER_MS    = 1000
)

func GetCallsPerSecond() float64 {
	callsPerSecond := config.Cfg.RPC.CallsPerSecond
	if callsPerSecond == 0 {
		callsPerSecond = DEFAULT_CALLS_PER_SECOND
	}
	return callsPerSecond
}

func GetRetryPolicyConfig() RetryPolicy {
	maxRetries := config.Cfg.RPC.MaxRetries
	if maxRetries == 0 {
		maxRetries = DEFAULT_MAX_RETRIES
	}
	retryDelay := config.Cfg.RPC.RetryDelay
	if retryDelay == 0 {
		retryDelay = DEFAULT_RETRY_DELAY_MS
	}
	maxBackoff := config.Cfg.RPC.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = DEFAULT_MAX_BACKOFF_MS
	}
	maxJitter := DEFAULT_MAX_JITTER_MS
	if config.Cfg.RPC.MaxJitter != nil {
		maxJitter = *config.Cfg.RPC.MaxJitter
	}
	return RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  time.Duration(retryDelay) * time.Millisecond,
		MaxBackoff: time.Duration(maxBackoff) * time.Millisecond,
		MaxJitter:  time.Duration(maxJitter) * time.Millisecond,
	}
}
