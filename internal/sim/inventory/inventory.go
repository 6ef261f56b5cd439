// Package inventory holds the item store a builder draws its materials from.
package inventory

import (
	"sort"
	"strings"
)

type ItemStack struct {
	Item  string `json:"item" msgpack:"item"`
	Count int    `json:"count" msgpack:"count"`
}

// Empty is the placeholder stack a shape returns when it has nothing to offer.
var Empty = ItemStack{}

func (s ItemStack) IsEmpty() bool {
	return strings.TrimSpace(s.Item) == "" || s.Count <= 0
}

// ContainsEmpty reports whether any stack in items is an empty placeholder.
func ContainsEmpty(items []ItemStack) bool {
	for _, s := range items {
		if s.IsEmpty() {
			return true
		}
	}
	return false
}

// Inventory is a counted item store. Listing is sorted so that extraction
// order never depends on map iteration.
type Inventory struct {
	items map[string]int
}

func New() *Inventory {
	return &Inventory{items: map[string]int{}}
}

func FromMap(m map[string]int) *Inventory {
	inv := New()
	for item, n := range m {
		inv.Insert(ItemStack{Item: item, Count: n})
	}
	return inv
}

func (inv *Inventory) Count(item string) int { return inv.items[item] }

func (inv *Inventory) Insert(s ItemStack) {
	if s.IsEmpty() {
		return
	}
	inv.items[s.Item] += s.Count
}

// ReturnItems puts unused payload back. Empty stacks are ignored.
func (inv *Inventory) ReturnItems(items []ItemStack) {
	for _, s := range items {
		inv.Insert(s)
	}
}

// Extract removes up to n of item. It returns Empty when fewer than min are
// available.
func (inv *Inventory) Extract(item string, min, n int) ItemStack {
	have := inv.items[item]
	if have < min || have <= 0 || n <= 0 {
		return Empty
	}
	if n > have {
		n = have
	}
	inv.take(item, n)
	return ItemStack{Item: item, Count: n}
}

// ExtractAny removes up to n of the first item (by name) accepted by filter.
// A nil filter accepts everything.
func (inv *Inventory) ExtractAny(filter func(item string) bool, min, n int) ItemStack {
	for _, s := range inv.List() {
		if filter != nil && !filter(s.Item) {
			continue
		}
		if out := inv.Extract(s.Item, min, n); !out.IsEmpty() {
			return out
		}
	}
	return Empty
}

// ExtractAll removes every stack in want, or nothing when any is short.
func (inv *Inventory) ExtractAll(want []ItemStack) ([]ItemStack, bool) {
	need := map[string]int{}
	for _, s := range want {
		if s.IsEmpty() {
			return nil, false
		}
		need[s.Item] += s.Count
	}
	for item, n := range need {
		if inv.items[item] < n {
			return nil, false
		}
	}
	out := make([]ItemStack, 0, len(want))
	for _, s := range want {
		inv.take(s.Item, s.Count)
		out = append(out, s)
	}
	return out, true
}

func (inv *Inventory) take(item string, n int) {
	inv.items[item] -= n
	if inv.items[item] <= 0 {
		delete(inv.items, item)
	}
}

func (inv *Inventory) List() []ItemStack {
	out := make([]ItemStack, 0, len(inv.items))
	for item, n := range inv.items {
		if n <= 0 {
			continue
		}
		out = append(out, ItemStack{Item: item, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}

// Map returns a copy of the counts, for persistence.
func (inv *Inventory) Map() map[string]int {
	out := make(map[string]int, len(inv.items))
	for k, v := range inv.items {
		out[k] = v
	}
	return out
}
