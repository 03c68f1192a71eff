package coa

import (
	"github.com/shopspring/decimal"
)

// Tree is an arena of accounts indexed by ID with a child index, so
// roll-ups walk IDs instead of object pointers.
type Tree struct {
	nodes    map[int64]Account
	children map[int64][]int64
}

// BuildTree indexes a flat account list.
func BuildTree(accounts []Account) *Tree {
	t := &Tree{
		nodes:    make(map[int64]Account, len(accounts)),
		children: make(map[int64][]int64),
	}
	for _, a := range accounts {
		t.nodes[a.ID] = a
		if a.ParentID != nil {
			t.children[*a.ParentID] = append(t.children[*a.ParentID], a.ID)
		}
	}
	return t
}

// Get returns the account for an ID.
func (t *Tree) Get(id int64) (Account, bool) {
	a, ok := t.nodes[id]
	return a, ok
}

// Children returns the direct child IDs of an account.
func (t *Tree) Children(id int64) []int64 {
	return t.children[id]
}

// Roots returns IDs of accounts without a parent, in arbitrary order.
func (t *Tree) Roots() []int64 {
	var roots []int64
	for id, a := range t.nodes {
		if a.ParentID == nil {
			roots = append(roots, id)
		}
	}
	return roots
}

// OwnBalance is the account's own contribution: opening balance plus its
// signed entry sum, excluding descendants.
func (t *Tree) OwnBalance(id int64, sums map[int64]EntrySum) decimal.Decimal {
	a, ok := t.nodes[id]
	if !ok {
		return decimal.Zero
	}
	return a.OpeningBalance.Add(sums[a.ID].Signed(a.Type))
}

// RollUp computes the recursive balance of an account: its own
// contribution plus the roll-up of every child. The visited set bounds
// the walk against corrupt parent links.
func (t *Tree) RollUp(id int64, sums map[int64]EntrySum) decimal.Decimal {
	return t.rollUp(id, sums, make(map[int64]bool))
}

func (t *Tree) rollUp(id int64, sums map[int64]EntrySum, visited map[int64]bool) decimal.Decimal {
	if visited[id] {
		return decimal.Zero
	}
	visited[id] = true
	total := t.OwnBalance(id, sums)
	for _, child := range t.children[id] {
		total = total.Add(t.rollUp(child, sums, visited))
	}
	return total
}
