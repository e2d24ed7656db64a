package rpc

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/thirdweb-dev/txconflict/internal/common"
)

const (
	PrestateTracer = "prestateTracer"
	CallTracer     = "callTracer"
)

// TraceConfig selects the tracer used by debug_traceTransaction.
type TraceConfig struct {
	Tracer       string                 `json:"tracer"`
	TracerConfig map[string]interface{} `json:"tracerConfig,omitempty"`
	Timeout      string                 `json:"timeout,omitempty"`
}

func PrestateTraceConfig(timeout string) TraceConfig {
	return TraceConfig{
		Tracer:       PrestateTracer,
		TracerConfig: map[string]interface{}{"diffMode": false},
		Timeout:      timeout,
	}
}

func CallTraceConfig(timeout string) TraceConfig {
	return TraceConfig{
		Tracer:       CallTracer,
		TracerConfig: map[string]interface{}{"onlyTopCall": false},
		Timeout:      timeout,
	}
}

func GetBlockWithTransactionsParams(blockNumber uint64) []interface{} {
	return []interface{}{hexutil.EncodeUint64(blockNumber), true}
}

func TraceTransactionParams(txHash string, traceConfig TraceConfig) []interface{} {
	return []interface{}{common.NormalizeHash(txHash), traceConfig}
}

func GetTransactionReceiptParams(txHash string) []interface{} {
	return []interface{}{common.NormalizeHash(txHash)}
}
