package analyzer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/thirdweb-dev/txconflict/internal/common"
	"github.com/thirdweb-dev/txconflict/internal/detector"
	"github.com/thirdweb-dev/txconflict/internal/extractor"
	"github.com/thirdweb-dev/txconflict/internal/rpc"
)

const (
	ModelPrestate   = "prestate"
	ModelCallTracer = "callTracer"
	ModelAuto       = "auto"
)

// Footprint is what a transaction touched, in the representation of the model that loaded it.
type Footprint interface {
	Conflicts(other Footprint) (bool, []common.Conflict)
}

// AccessModel loads a transaction's footprint from the provider.
type AccessModel interface {
	Name() string
	Load(ctx context.Context, client rpc.IRPCClient, tx common.Transaction) (Footprint, error)
}

// PrestateModel builds access sets from prestateTracer output and the transaction receipt.
type PrestateModel struct {
	TraceTimeout string
}

func (m PrestateModel) Name() string {
	return ModelPrestate
}

func (m PrestateModel) Load(ctx context.Context, client rpc.IRPCClient, tx common.Transaction) (Footprint, error) {
	hash := tx.NormalizedHash()
	raw, err := client.TraceTransaction(ctx, hash, rpc.PrestateTraceConfig(m.TraceTimeout))
	if err != nil {
		return nil, err
	}
	var trace common.PrestateTrace
	if err := json.Unmarshal(raw, &trace); err != nil {
		return nil, fmt.Errorf("failed to decode prestate trace of %s: %w", hash, err)
	}
	receipt, err := client.GetTransactionReceipt(ctx, hash)
	if err != nil {
		return nil, err
	}
	return accessFootprint{set: extractor.ExtractAccessSet(trace, tx, receipt)}, nil
}

// CallTreeModel classifies the frames of a callTracer result.
type CallTreeModel struct {
	TraceTimeout string
}

func (m CallTreeModel) Name() string {
	return ModelCallTracer
}

func (m CallTreeModel) Load(ctx context.Context, client rpc.IRPCClient, tx common.Transaction) (Footprint, error) {
	hash := tx.NormalizedHash()
	raw, err := client.TraceTransaction(ctx, hash, rpc.CallTraceConfig(m.TraceTimeout))
	if err != nil {
		return nil, err
	}
	var root common.CallFrame
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("failed to decode call trace of %s: %w", hash, err)
	}
	modifications, err := extractor.ExtractModifications(root)
	if err != nil {
		return nil, fmt.Errorf("failed to classify call trace of %s: %w", hash, err)
	}
	return modificationFootprint{modifications: modifications}, nil
}

type accessFootprint struct {
	set common.AccessSet
}

func (f accessFootprint) Conflicts(other Footprint) (bool, []common.Conflict) {
	o, ok := other.(accessFootprint)
	if !ok {
		return false, nil
	}
	result := detector.CompareAccessSets(f.set, o.set)
	return result.Dependent(), result.Conflicts()
}

type modificationFootprint struct {
	modifications []common.Modification
}

func (f modificationFootprint) Conflicts(other Footprint) (bool, []common.Conflict) {
	o, ok := other.(modificationFootprint)
	if !ok {
		return false, nil
	}
	conflicts := detector.CompareModifications(f.modifications, o.modifications)
	return len(conflicts) > 0, conflicts
}
