package detector

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/thirdweb-dev/txconflict/internal/common"
)

type matcher struct {
	conflictType common.ConflictType
	matches      func(first, second common.Modification) bool
	describe     func(first, second common.Modification) common.Conflict
}

var matchers = []matcher{
	{
		conflictType: common.ConflictERC20Balance,
		matches: func(first, second common.Modification) bool {
			if first.Kind != common.ModificationERC20Transfer || second.Kind != common.ModificationERC20Transfer {
				return false
			}
			if first.To != second.To {
				return false
			}
			return first.TokenFrom == second.TokenFrom || first.TokenTo == second.TokenTo
		},
		describe: func(first, second common.Modification) common.Conflict {
			holder := first.TokenTo
			if first.TokenFrom == second.TokenFrom {
				holder = first.TokenFrom
			}
			return common.Conflict{
				ContractAddress: first.To,
				Details:         fmt.Sprintf("both transactions move the token balance of %s", holder),
			}
		},
	},
	{
		conflictType: common.ConflictEOATransfer,
		matches: func(first, second common.Modification) bool {
			return first.Kind == common.ModificationEOATransfer && second.Kind == common.ModificationEOATransfer && first.To == second.To
		},
		describe: func(first, _ common.Modification) common.Conflict {
			return common.Conflict{
				ContractAddress: first.To,
				Details:         fmt.Sprintf("both transactions transfer value to %s", first.To),
			}
		},
	},
	{
		conflictType: common.ConflictContractCall,
		matches: func(first, second common.Modification) bool {
			return first.Kind == common.ModificationContractCall && second.Kind == common.ModificationContractCall &&
				first.To == second.To && first.FunctionSelector == second.FunctionSelector
		},
		describe: func(first, _ common.Modification) common.Conflict {
			return common.Conflict{
				ContractAddress: first.To,
				Details:         fmt.Sprintf("both transactions call %s on %s", first.FunctionSelector, first.To),
			}
		},
	},
}

// CompareModifications reports one same-source conflict per address sending value in both transactions,
// then checks every modification of the first transaction against the second one's. Each modification
// yields at most one conflict per remaining type, for the first matching counterpart.
func CompareModifications(first []common.Modification, second []common.Modification) []common.Conflict {
	conflicts := []common.Conflict{}
	for _, source := range sortedStrings(valueSources(first).Intersect(valueSources(second))) {
		conflicts = append(conflicts, common.Conflict{
			ContractAddress: source,
			Type:            common.ConflictSameSource,
			Details:         fmt.Sprintf("both transactions send value from %s", source),
		})
	}
	for _, m := range matchers {
		for _, mod1 := range first {
			for _, mod2 := range second {
				if !m.matches(mod1, mod2) {
					continue
				}
				conflict := m.describe(mod1, mod2)
				conflict.Type = m.conflictType
				conflicts = append(conflicts, conflict)
				break
			}
		}
	}
	return conflicts
}

func valueSources(modifications []common.Modification) mapset.Set[string] {
	sources := mapset.NewThreadUnsafeSet[string]()
	for _, m := range modifications {
		if m.TransfersValue() {
			sources.Add(m.From)
		}
	}
	return sources
}

func sortedStrings(set mapset.Set[string]) []string {
	values := set.ToSlice()
	sort.Strings(values)
	return values
}
