package extractor

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thirdweb-dev/txconflict/internal/common"
)

const (
	alice = "0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa"
	bob   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	carol = "0xcccccccccccccccccccccccccccccccccccccccc"
	token = "0xDdDdDdDdDdDdDdDdDdDdDdDdDdDdDdDdDdDdDdDd"
)

func pad(address string) string {
	return strings.Repeat("0", 24) + strings.ToLower(strings.TrimPrefix(address, "0x"))
}

func transferInput(to string) string {
	return TransferSelector + pad(to) + strings.Repeat("0", 63) + "1"
}

func transferFromInput(from string, to string) string {
	return TransferFromSelector + pad(from) + pad(to) + strings.Repeat("0", 63) + "1"
}

func TestExtractAccessSet_ReadsPresentFields(t *testing.T) {
	var trace common.PrestateTrace
	require.NoError(t, json.Unmarshal([]byte(`{
		"0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa": {"balance": "0x10", "nonce": 3},
		"0xDdDdDdDdDdDdDdDdDdDdDdDdDdDdDdDdDdDdDdDd": {"balance": "0x0", "code": "0x6080", "storage": {"0xABC": "0x1"}}
	}`), &trace))

	to := token
	tx := common.Transaction{From: alice, To: &to}
	set := ExtractAccessSet(trace, tx, common.Receipt{})

	assert.True(t, set.Reads.Contains(common.NewAccessKey(alice, common.FieldBalance)))
	assert.True(t, set.Reads.Contains(common.NewAccessKey(alice, common.FieldNonce)))
	assert.False(t, set.Reads.Contains(common.NewAccessKey(alice, common.FieldCode)))
	assert.True(t, set.Reads.Contains(common.NewAccessKey(token, common.FieldCode)))
	assert.True(t, set.Reads.Contains(common.AccessKey{Address: strings.ToLower(token), Field: "storage:0xabc"}))
	assert.Equal(t, 5, set.Reads.Cardinality())
}

func TestExtractAccessSet_InfersWrites(t *testing.T) {
	to := token
	created := "0xEeEeEeEeEeEeEeEeEeEeEeEeEeEeEeEeEeEeEeEe"
	tx := common.Transaction{From: alice, To: &to}
	receipt := common.Receipt{
		ContractAddress: &created,
		Logs: []common.Log{
			{Address: token, Topics: []string{"0xDDF252AD", "0x01"}},
		},
	}

	set := ExtractAccessSet(common.PrestateTrace{}, tx, receipt)

	expected := []common.AccessKey{
		common.NewAccessKey(alice, common.FieldNonce),
		common.NewAccessKey(alice, common.FieldBalance),
		common.NewAccessKey(token, common.FieldBalance),
		common.NewAccessKey(created, common.FieldCode),
		common.NewAccessKey(created, common.FieldNonce),
		common.NewAccessKey(created, common.FieldBalance),
		common.NewAccessKey(token, common.StorageField("0xddf252ad")),
		common.NewAccessKey(token, common.StorageField("0x01")),
	}
	assert.Equal(t, len(expected), set.Writes.Cardinality())
	for _, key := range expected {
		assert.True(t, set.Writes.Contains(key), key.String())
	}
	for _, key := range set.Writes.ToSlice() {
		assert.Equal(t, strings.ToLower(key.Address), key.Address)
	}
}

func TestExtractAccessSet_NoRecipientForContractCreation(t *testing.T) {
	set := ExtractAccessSet(common.PrestateTrace{}, common.Transaction{From: alice}, common.Receipt{})
	assert.Equal(t, 2, set.Writes.Cardinality())
}

func TestFlattenCallTree_DepthFirst(t *testing.T) {
	root := common.CallFrame{To: "0x01", Calls: []common.CallFrame{
		{To: "0x02", Calls: []common.CallFrame{{To: "0x03"}}},
		{To: "0x04"},
	}}

	var order []string
	for _, frame := range FlattenCallTree(root) {
		order = append(order, frame.To)
	}
	assert.Equal(t, []string{"0x01", "0x02", "0x03", "0x04"}, order)
}

func TestClassifyFrame(t *testing.T) {
	tests := []struct {
		name  string
		frame common.CallFrame
		kind  common.ModificationKind
	}{
		{
			name:  "erc20 transfer",
			frame: common.CallFrame{Type: "CALL", From: alice, To: token, Input: transferInput(bob), Value: "0x0"},
			kind:  common.ModificationERC20Transfer,
		},
		{
			name:  "value to eoa",
			frame: common.CallFrame{Type: "CALL", From: alice, To: bob, Input: "0x", Value: "0xde0b6b3a7640000"},
			kind:  common.ModificationEOATransfer,
		},
		{
			name:  "value to contract with nested calls",
			frame: common.CallFrame{Type: "CALL", From: alice, To: token, Input: "0x", Value: "0x1", Calls: []common.CallFrame{{To: bob}}},
			kind:  common.ModificationEthTransfer,
		},
		{
			name:  "value to precompile",
			frame: common.CallFrame{Type: "CALL", From: alice, To: "0x0000000000000000000000000000000000000004", Value: "0x1"},
			kind:  common.ModificationEthTransfer,
		},
		{
			name:  "contract call",
			frame: common.CallFrame{Type: "CALL", From: alice, To: token, Input: "0x095ea7b3" + pad(bob)},
			kind:  common.ModificationContractCall,
		},
		{
			name:  "undecodable transfer",
			frame: common.CallFrame{Type: "CALL", From: alice, To: token, Input: TransferSelector + "00"},
			kind:  common.ModificationContractCall,
		},
		{
			name:  "zero value without input",
			frame: common.CallFrame{Type: "CALL", From: alice, To: bob},
			kind:  common.ModificationEthTransfer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			modification, err := ClassifyFrame(tt.frame)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, modification.Kind)
			assert.Equal(t, strings.ToLower(tt.frame.From), modification.From)
			assert.Equal(t, strings.ToLower(tt.frame.To), modification.To)
		})
	}
}

func TestClassifyFrame_DecodesTransferOperands(t *testing.T) {
	modification, err := ClassifyFrame(common.CallFrame{From: alice, To: token, Input: transferInput(bob)})
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(alice), modification.TokenFrom)
	assert.Equal(t, bob, modification.TokenTo)
	assert.Equal(t, TransferSelector, modification.FunctionSelector)

	modification, err = ClassifyFrame(common.CallFrame{From: alice, To: token, Input: transferFromInput(carol, bob)})
	require.NoError(t, err)
	assert.Equal(t, common.ModificationERC20Transfer, modification.Kind)
	assert.Equal(t, carol, modification.TokenFrom)
	assert.Equal(t, bob, modification.TokenTo)
}

func TestClassifyFrame_InvalidValue(t *testing.T) {
	_, err := ClassifyFrame(common.CallFrame{From: alice, To: bob, Value: "0xzz"})
	assert.Error(t, err)
}

func TestExtractModifications_SkipsFramesWithoutRecipient(t *testing.T) {
	root := common.CallFrame{Type: "CALL", From: alice, To: token, Input: transferInput(bob), Calls: []common.CallFrame{
		{Type: "CREATE", From: token, To: "", Input: "0x6080"},
		{Type: "CALL", From: token, To: carol, Value: "0x5"},
	}}

	modifications, err := ExtractModifications(root)
	require.NoError(t, err)
	require.Len(t, modifications, 2)
	assert.Equal(t, common.ModificationERC20Transfer, modifications[0].Kind)
	assert.Equal(t, common.ModificationEOATransfer, modifications[1].Kind)
}
