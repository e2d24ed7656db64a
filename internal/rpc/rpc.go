package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	gethRpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog/log"
	config "github.com/thirdweb-dev/txconflict/configs"
	"github.com/thirdweb-dev/txconflict/internal/common"
)

// Caller is the transport underneath the request layer. *gethRpc.Client satisfies it.
type Caller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

type IRPCClient interface {
	Fetch(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error)
	GetChainID(ctx context.Context) (*big.Int, error)
	GetLatestBlockNumber(ctx context.Context) (uint64, error)
	GetBlockWithTransactions(ctx context.Context, blockNumber uint64) (common.Block, error)
	TraceTransaction(ctx context.Context, txHash string, traceConfig TraceConfig) (json.RawMessage, error)
	GetTransactionReceipt(ctx context.Context, txHash string) (common.Receipt, error)
}

// Client issues calls through a limiter and retries throttled calls according to its policy.
type Client struct {
	caller  Caller
	limiter Limiter
	policy  RetryPolicy
}

func NewClient(caller Caller, limiter Limiter, policy RetryPolicy) *Client {
	if limiter == nil {
		limiter = NewIntervalLimiter(0)
	}
	return &Client{
		caller:  caller,
		limiter: limiter,
		policy:  policy,
	}
}

// Dial connects to a chain's endpoint. The returned connection is safe to share between workers.
func Dial(ctx context.Context, chain config.ChainConfig) (*gethRpc.Client, error) {
	if chain.RPCURL == "" {
		return nil, fmt.Errorf("rpc url for chain %s is not set", chain.Name)
	}
	log.Debug().Str("chain", chain.Name).Msg("Initializing RPC")
	rpcClient, err := gethRpc.DialContext(ctx, chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc for chain %s: %w", chain.Name, err)
	}
	return rpcClient, nil
}

func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	raw, err := c.Fetch(ctx, "eth_chainId")
	if err != nil {
		return nil, err
	}
	var chainID hexutil.Big
	if err := json.Unmarshal(raw, &chainID); err != nil {
		return nil, fmt.Errorf("failed to decode chain id: %w", err)
	}
	return chainID.ToInt(), nil
}

func (c *Client) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	raw, err := c.Fetch(ctx, "eth_blockNumber")
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block number: %w", err)
	}
	var blockNumber hexutil.Uint64
	if err := json.Unmarshal(raw, &blockNumber); err != nil {
		return 0, fmt.Errorf("failed to decode latest block number: %w", err)
	}
	return uint64(blockNumber), nil
}

func (c *Client) GetBlockWithTransactions(ctx context.Context, blockNumber uint64) (common.Block, error) {
	raw, err := c.Fetch(ctx, "eth_getBlockByNumber", GetBlockWithTransactionsParams(blockNumber)...)
	if err != nil {
		return common.Block{}, err
	}
	var block common.Block
	if err := json.Unmarshal(raw, &block); err != nil {
		return common.Block{}, fmt.Errorf("failed to decode block %d: %w", blockNumber, err)
	}
	return block, nil
}

func (c *Client) TraceTransaction(ctx context.Context, txHash string, traceConfig TraceConfig) (json.RawMessage, error) {
	return c.Fetch(ctx, "debug_traceTransaction", TraceTransactionParams(txHash, traceConfig)...)
}

func (c *Client) GetTransactionReceipt(ctx context.Context, txHash string) (common.Receipt, error) {
	raw, err := c.Fetch(ctx, "eth_getTransactionReceipt", GetTransactionReceiptParams(txHash)...)
	if err != nil {
		return common.Receipt{}, err
	}
	var receipt common.Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		return common.Receipt{}, fmt.Errorf("failed to decode receipt for %s: %w", txHash, err)
	}
	return receipt, nil
}
