package common

import (
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

const (
	FieldBalance       = "balance"
	FieldNonce         = "nonce"
	FieldCode          = "code"
	storageFieldPrefix = "storage:"
)

// AccessKey identifies one piece of account state. Addresses are always lowercase.
type AccessKey struct {
	Address string `json:"address"`
	Field   string `json:"field"`
}

func NewAccessKey(address string, field string) AccessKey {
	return AccessKey{Address: NormalizeAddress(address), Field: field}
}

func StorageField(slot string) string {
	return storageFieldPrefix + strings.ToLower(slot)
}

func (k AccessKey) String() string {
	return k.Address + "/" + k.Field
}

// AccessSet is the state a single transaction reads and writes.
type AccessSet struct {
	Reads  mapset.Set[AccessKey]
	Writes mapset.Set[AccessKey]
}

func NewAccessSet() AccessSet {
	return AccessSet{
		Reads:  mapset.NewThreadUnsafeSet[AccessKey](),
		Writes: mapset.NewThreadUnsafeSet[AccessKey](),
	}
}

func (s AccessSet) AddRead(address string, field string) {
	s.Reads.Add(NewAccessKey(address, field))
}

func (s AccessSet) AddWrite(address string, field string) {
	s.Writes.Add(NewAccessKey(address, field))
}

// SortedKeys returns the keys of a set in a stable order.
func SortedKeys(set mapset.Set[AccessKey]) []AccessKey {
	keys := set.ToSlice()
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Address != keys[j].Address {
			return keys[i].Address < keys[j].Address
		}
		return keys[i].Field < keys[j].Field
	})
	return keys
}
