package detector

import (
	"github.com/thirdweb-dev/txconflict/internal/common"
)

// AccessConflict lists the keys behind each hazard between two access sets.
// WriteRead holds keys the first transaction writes and the second reads, ReadWrite the reverse.
type AccessConflict struct {
	WriteWrite []common.AccessKey
	WriteRead  []common.AccessKey
	ReadWrite  []common.AccessKey
}

func (c AccessConflict) Dependent() bool {
	return len(c.WriteWrite) > 0 || len(c.WriteRead) > 0 || len(c.ReadWrite) > 0
}

// Conflicts flattens the hazards into typed conflicts keyed by the touched address.
func (c AccessConflict) Conflicts() []common.Conflict {
	conflicts := make([]common.Conflict, 0, len(c.WriteWrite)+len(c.WriteRead)+len(c.ReadWrite))
	appendKeys := func(conflictType common.ConflictType, keys []common.AccessKey) {
		for _, key := range keys {
			conflicts = append(conflicts, common.Conflict{
				ContractAddress: key.Address,
				Type:            conflictType,
				Details:         key.Field,
			})
		}
	}
	appendKeys(common.ConflictWriteWrite, c.WriteWrite)
	appendKeys(common.ConflictWriteRead, c.WriteRead)
	appendKeys(common.ConflictReadWrite, c.ReadWrite)
	return conflicts
}

// CompareAccessSets checks all three intersections since ordering inside a block is not assumed.
func CompareAccessSets(first common.AccessSet, second common.AccessSet) AccessConflict {
	return AccessConflict{
		WriteWrite: common.SortedKeys(first.Writes.Intersect(second.Writes)),
		WriteRead:  common.SortedKeys(first.Writes.Intersect(second.Reads)),
		ReadWrite:  common.SortedKeys(first.Reads.Intersect(second.Writes)),
	}
}
