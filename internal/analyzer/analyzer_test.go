package analyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thirdweb-dev/txconflict/internal/common"
	"github.com/thirdweb-dev/txconflict/internal/rpc"
	"github.com/thirdweb-dev/txconflict/test/mocks"
)

const (
	alice = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	carol = "0xcccccccccccccccccccccccccccccccccccccccc"
	dave  = "0xdddddddddddddddddddddddddddddddddddddddd"
	pool  = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
)

func tx(hash string, from string, to string) common.Transaction {
	recipient := to
	return common.Transaction{Hash: hash, From: from, To: &recipient}
}

func isPrestate(cfg rpc.TraceConfig) bool {
	return cfg.Tracer == rpc.PrestateTracer
}

func isCallTracer(cfg rpc.TraceConfig) bool {
	return cfg.Tracer == rpc.CallTracer
}

func TestAnalyze_PrestateDependentPair(t *testing.T) {
	mockRPC := mocks.NewMockIRPCClient(t)
	block := common.Block{Number: 100, Transactions: []common.Transaction{
		tx("0x01", alice, pool),
		tx("0x02", bob, pool),
		tx("0x03", carol, dave),
	}}
	mockRPC.On("GetBlockWithTransactions", mock.Anything, uint64(100)).Return(block, nil)
	mockRPC.On("TraceTransaction", mock.Anything, mock.Anything, mock.MatchedBy(isPrestate)).Return(json.RawMessage(`{}`), nil)
	mockRPC.On("GetTransactionReceipt", mock.Anything, mock.Anything).Return(common.Receipt{}, nil)

	analyzer := NewBlockAnalyzer("test", mockRPC, PrestateModel{})
	result := analyzer.Analyze(context.Background(), 100)

	assert.False(t, result.Failed)
	assert.Equal(t, 3, result.TotalTx)
	assert.Equal(t, 3, result.AnalyzedTx)
	assert.Equal(t, 1, result.DependentPairs)
	assert.ElementsMatch(t, []string{"0x01", "0x02"}, result.DependentTxHashes.ToSlice())
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, common.ConflictWriteWrite, result.Conflicts[0].Type)
	assert.Equal(t, pool, result.Conflicts[0].ContractAddress)
	assert.Equal(t, 3, result.PossiblePairs())
}

func TestAnalyze_SingleTransactionBlock(t *testing.T) {
	mockRPC := mocks.NewMockIRPCClient(t)
	block := common.Block{Number: 7, Transactions: []common.Transaction{tx("0x01", alice, bob)}}
	mockRPC.On("GetBlockWithTransactions", mock.Anything, uint64(7)).Return(block, nil)

	result := NewBlockAnalyzer("test", mockRPC, PrestateModel{}).Analyze(context.Background(), 7)

	assert.False(t, result.Failed)
	assert.Equal(t, 1, result.TotalTx)
	assert.Equal(t, 0, result.DependentTxHashes.Cardinality())
	assert.Empty(t, result.Conflicts)
	mockRPC.AssertNotCalled(t, "TraceTransaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyze_StrictPolicyFailsWholeBlock(t *testing.T) {
	mockRPC := mocks.NewMockIRPCClient(t)
	block := common.Block{Number: 5, Transactions: []common.Transaction{
		tx("0x01", alice, pool),
		tx("0x02", bob, pool),
		tx("0x03", carol, pool),
	}}
	failure := &rpc.RequestFailedError{Method: "debug_traceTransaction", Attempts: 11, Err: errors.New("429 Too Many Requests")}
	mockRPC.On("GetBlockWithTransactions", mock.Anything, uint64(5)).Return(block, nil)
	mockRPC.On("TraceTransaction", mock.Anything, "0x02", mock.Anything).Return(nil, failure)
	mockRPC.On("TraceTransaction", mock.Anything, mock.Anything, mock.Anything).Return(json.RawMessage(`{}`), nil).Maybe()
	mockRPC.On("GetTransactionReceipt", mock.Anything, mock.Anything).Return(common.Receipt{}, nil).Maybe()

	result := NewBlockAnalyzer("test", mockRPC, PrestateModel{}).
		WithFailurePolicy(FailurePolicyStrict).
		Analyze(context.Background(), 5)

	assert.True(t, result.Failed)
	assert.Equal(t, 3, result.TotalTx)
	assert.Equal(t, 0, result.DependentTxHashes.Cardinality())
	assert.Empty(t, result.Conflicts)
	assert.Contains(t, result.FailureReason, "0x02")
}

func TestAnalyze_LenientPolicySkipsTransaction(t *testing.T) {
	mockRPC := mocks.NewMockIRPCClient(t)
	block := common.Block{Number: 5, Transactions: []common.Transaction{
		tx("0x01", alice, pool),
		tx("0x02", bob, pool),
		tx("0x03", carol, pool),
	}}
	mockRPC.On("GetBlockWithTransactions", mock.Anything, uint64(5)).Return(block, nil)
	mockRPC.On("TraceTransaction", mock.Anything, "0x02", mock.Anything).Return(nil, errors.New("transaction not found"))
	mockRPC.On("TraceTransaction", mock.Anything, mock.Anything, mock.Anything).Return(json.RawMessage(`{}`), nil)
	mockRPC.On("GetTransactionReceipt", mock.Anything, mock.Anything).Return(common.Receipt{}, nil)

	result := NewBlockAnalyzer("test", mockRPC, PrestateModel{}).
		WithFailurePolicy(FailurePolicyLenient).
		WithTraceConcurrency(2).
		Analyze(context.Background(), 5)

	assert.False(t, result.Failed)
	assert.Equal(t, 3, result.TotalTx)
	assert.Equal(t, 2, result.AnalyzedTx)
	assert.Equal(t, 1, result.SkippedTx)
	assert.ElementsMatch(t, []string{"0x01", "0x03"}, result.DependentTxHashes.ToSlice())
}

func TestAnalyze_BlockFetchFailure(t *testing.T) {
	mockRPC := mocks.NewMockIRPCClient(t)
	mockRPC.On("GetBlockWithTransactions", mock.Anything, uint64(9)).Return(common.Block{}, errors.New("header not found"))

	result := NewBlockAnalyzer("test", mockRPC, PrestateModel{}).Analyze(context.Background(), 9)

	assert.True(t, result.Failed)
	assert.Equal(t, 0, result.TotalTx)
}

func TestAnalyze_CallTreeModel(t *testing.T) {
	mockRPC := mocks.NewMockIRPCClient(t)
	block := common.Block{Number: 11, Transactions: []common.Transaction{
		tx("0x01", alice, pool),
		tx("0x02", bob, pool),
	}}
	swap := `{"type":"CALL","from":"%s","to":"` + pool + `","input":"0x38ed17390000","value":"0x0"}`
	mockRPC.On("GetBlockWithTransactions", mock.Anything, uint64(11)).Return(block, nil)
	mockRPC.On("TraceTransaction", mock.Anything, "0x01", mock.MatchedBy(isCallTracer)).Return(json.RawMessage(fmt.Sprintf(swap, alice)), nil)
	mockRPC.On("TraceTransaction", mock.Anything, "0x02", mock.MatchedBy(isCallTracer)).Return(json.RawMessage(fmt.Sprintf(swap, bob)), nil)

	result := NewBlockAnalyzer("test", mockRPC, CallTreeModel{}).Analyze(context.Background(), 11)

	assert.False(t, result.Failed)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, common.ConflictContractCall, result.Conflicts[0].Type)
	assert.Equal(t, 2, result.DependentTxHashes.Cardinality())
}

func TestAnalyze_MalformedTraceFailsBlock(t *testing.T) {
	mockRPC := mocks.NewMockIRPCClient(t)
	block := common.Block{Number: 12, Transactions: []common.Transaction{
		tx("0x01", alice, pool),
		tx("0x02", bob, pool),
	}}
	mockRPC.On("GetBlockWithTransactions", mock.Anything, uint64(12)).Return(block, nil)
	mockRPC.On("TraceTransaction", mock.Anything, mock.Anything, mock.Anything).Return(json.RawMessage(`[1,2]`), nil)

	result := NewBlockAnalyzer("test", mockRPC, CallTreeModel{}).Analyze(context.Background(), 12)
	assert.True(t, result.Failed)
	assert.Equal(t, 2, result.TotalTx)
}

func TestSelectModel(t *testing.T) {
	mockRPC := mocks.NewMockIRPCClient(t)

	model, err := SelectModel(context.Background(), mockRPC, ModelPrestate, "")
	require.NoError(t, err)
	assert.Equal(t, ModelPrestate, model.Name())

	model, err = SelectModel(context.Background(), mockRPC, ModelCallTracer, "")
	require.NoError(t, err)
	assert.Equal(t, ModelCallTracer, model.Name())

	_, err = SelectModel(context.Background(), mockRPC, "opcode", "")
	assert.Error(t, err)
}

func TestSelectModel_AutoFallsBackToCallTracer(t *testing.T) {
	mockRPC := mocks.NewMockIRPCClient(t)
	mockRPC.On("GetLatestBlockNumber", mock.Anything).Return(uint64(50), nil)
	mockRPC.On("GetBlockWithTransactions", mock.Anything, uint64(50)).Return(common.Block{Number: 50}, nil)
	mockRPC.On("GetBlockWithTransactions", mock.Anything, uint64(49)).Return(common.Block{Number: 49, Transactions: []common.Transaction{tx("0x01", alice, bob)}}, nil)
	mockRPC.On("TraceTransaction", mock.Anything, "0x01", mock.MatchedBy(isPrestate)).
		Return(nil, &rpc.RequestFailedError{Method: "debug_traceTransaction", Attempts: 1, Err: errors.New("tracer not found")})

	model, err := SelectModel(context.Background(), mockRPC, ModelAuto, "")
	require.NoError(t, err)
	assert.Equal(t, ModelCallTracer, model.Name())
}

func TestSelectModel_AutoKeepsPrestate(t *testing.T) {
	mockRPC := mocks.NewMockIRPCClient(t)
	mockRPC.On("GetLatestBlockNumber", mock.Anything).Return(uint64(50), nil)
	mockRPC.On("GetBlockWithTransactions", mock.Anything, uint64(50)).Return(common.Block{Number: 50, Transactions: []common.Transaction{tx("0x01", alice, bob)}}, nil)
	mockRPC.On("TraceTransaction", mock.Anything, "0x01", mock.MatchedBy(isPrestate)).Return(json.RawMessage(`{}`), nil)

	model, err := SelectModel(context.Background(), mockRPC, ModelAuto, "")
	require.NoError(t, err)
	assert.Equal(t, ModelPrestate, model.Name())
}
