package query_test

import (
	"testing"

	"github.com/fluxledger/dcc/pkg/btree"
	"github.com/fluxledger/dcc/pkg/query"
	"github.com/fluxledger/dcc/pkg/types"
)

func TestScan_BetweenReturnsOrderedRange(t *testing.T) {
	tree := btree.NewUniqueTree(4)
	for i := 0; i < 20; i++ {
		if err := tree.Insert(types.IntKey(i), int64(i*10)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	results := query.Scan(tree, query.Between(types.IntKey(5), types.IntKey(9)))
	if len(results) != 5 {
		t.Fatalf("expected 5 results in [5,9], got %d", len(results))
	}
	for i, r := range results {
		want := types.IntKey(5 + i)
		if r.Key.Compare(want) != 0 {
			t.Fatalf("expected key %v at position %d, got %v", want, i, r.Key)
		}
		if r.DataPtr != int64((5+i)*10) {
			t.Fatalf("expected data ptr %d, got %d", (5+i)*10, r.DataPtr)
		}
	}
}

func TestScan_EqualReturnsSingleMatch(t *testing.T) {
	tree := btree.NewUniqueTree(4)
	for i := 0; i < 10; i++ {
		_ = tree.Insert(types.IntKey(i), int64(i))
	}
	results := query.Scan(tree, query.Equal(types.IntKey(3)))
	if len(results) != 1 || results[0].Key.Compare(types.IntKey(3)) != 0 {
		t.Fatalf("expected exactly one match for key 3, got %v", results)
	}
}

func TestScan_EmptyTreeReturnsNoResults(t *testing.T) {
	tree := btree.NewUniqueTree(4)
	results := query.Scan(tree, query.GreaterThan(types.IntKey(0)))
	if len(results) != 0 {
		t.Fatalf("expected no results from an empty tree, got %d", len(results))
	}
}
