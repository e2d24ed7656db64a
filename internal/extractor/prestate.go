package extractor

import (
	"github.com/thirdweb-dev/txconflict/internal/common"
)

// ExtractAccessSet turns a prestateTracer result into a transaction's access set.
// Every field present before execution is a read. Writes are inferred from the transaction and its receipt,
// with log topics standing in for the storage slots a contract touched.
func ExtractAccessSet(trace common.PrestateTrace, tx common.Transaction, receipt common.Receipt) common.AccessSet {
	set := common.NewAccessSet()

	for address, account := range trace {
		if common.HasField(account.Balance) {
			set.AddRead(address, common.FieldBalance)
		}
		if common.HasField(account.Nonce) {
			set.AddRead(address, common.FieldNonce)
		}
		if common.HasField(account.Code) {
			set.AddRead(address, common.FieldCode)
		}
		for slot := range account.Storage {
			set.AddRead(address, common.StorageField(slot))
		}
	}

	if tx.From != "" {
		set.AddWrite(tx.From, common.FieldNonce)
		set.AddWrite(tx.From, common.FieldBalance)
	}
	if to := tx.Recipient(); to != "" {
		set.AddWrite(to, common.FieldBalance)
	}
	if created := receipt.CreatedContract(); created != "" {
		set.AddWrite(created, common.FieldCode)
		set.AddWrite(created, common.FieldNonce)
		set.AddWrite(created, common.FieldBalance)
	}
	for _, l := range receipt.Logs {
		if l.Address == "" {
			continue
		}
		for _, topic := range l.Topics {
			set.AddWrite(l.Address, common.StorageField(topic))
		}
	}

	return set
}
