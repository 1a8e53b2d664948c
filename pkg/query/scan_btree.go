package query

import (
	"github.com/fluxledger/dcc/pkg/btree"
	"github.com/fluxledger/dcc/pkg/types"
)

// Result is one matching entry from a Scan.
type Result struct {
	Key     types.Comparable
	DataPtr int64
}

// Scan walks a BPlusTree's leaf chain starting from cond's optimal seek
// point, latch-coupling from leaf to leaf the same way Search/Get do, and
// collects every entry the condition matches until ShouldContinue says to
// stop.
func Scan(tree *btree.BPlusTree, cond *ScanCondition) []Result {
	var results []Result
	node, idx := tree.FindLeafLowerBound(cond.GetStartKey())
	for node != nil {
		for idx < node.N {
			k := node.Keys[idx]
			if cond.Matches(k) {
				results = append(results, Result{Key: k, DataPtr: node.DataPtrs[idx]})
			}
			if !cond.ShouldContinue(k) {
				node.RUnlock()
				return results
			}
			idx++
		}
		next := node.Next
		if next != nil {
			next.RLock()
		}
		node.RUnlock()
		node = next
		idx = 0
	}
	return results
}
