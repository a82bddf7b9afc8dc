package keydir

import (
	"github.com/google/btree"
)

var _ Keydir = (*BTree)(nil)

const defaultDegree = 32

// BTree implement the keydir.
// not thread safe, the owning store serializes access
type BTree struct {
	tree *btree.BTreeG[Entry]
}

func lessEntry(a, b Entry) bool {
	return a.Seq < b.Seq
}

func NewBTree(degree int) *BTree {
	if degree <= 0 {
		degree = defaultDegree
	}
	return &BTree{
		tree: btree.NewG[Entry](degree, lessEntry),
	}
}

func (bt *BTree) Put(e Entry) {
	bt.tree.ReplaceOrInsert(e)
}

func (bt *BTree) Min() (Entry, bool) {
	return bt.tree.Min()
}

func (bt *BTree) Max() (Entry, bool) {
	return bt.tree.Max()
}

func (bt *BTree) DescendFrom(seq uint64, fn func(Entry) bool) {
	bt.tree.DescendLessOrEqual(Entry{Seq: seq}, func(e Entry) bool {
		return fn(e)
	})
}

func (bt *BTree) DeleteBelow(seq uint64) int {
	var n int
	for {
		e, ok := bt.tree.Min()
		if !ok || e.Seq >= seq {
			return n
		}
		bt.tree.DeleteMin()
		n++
	}
}

func (bt *BTree) DeleteFrom(seq uint64) int {
	var n int
	for {
		e, ok := bt.tree.Max()
		if !ok || e.Seq < seq {
			return n
		}
		bt.tree.DeleteMax()
		n++
	}
}

func (bt *BTree) Size() int {
	return bt.tree.Len()
}

func (bt *BTree) Clear() {
	bt.tree.Clear(false)
}
