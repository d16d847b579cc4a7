// Package topk implements MaxKList, the in-memory top-k buffer shared by
// every search path in this repository: it keeps the k largest
// (distance, id) pairs seen so far, in descending key order.
package topk

import "math"

type entry struct {
	key float32
	id  int32
}

// MaxKList holds the k largest (key, id) pairs inserted so far, in
// descending key order. The backing array has room for k+1 entries; the
// last slot is a scratch placeholder used during insertion and is never
// reported.
type MaxKList struct {
	k     int
	num   int
	items []entry
}

// NewMaxKList returns an empty list capped at k entries.
func NewMaxKList(k int) *MaxKList {
	return &MaxKList{k: k, items: make([]entry, k+1)}
}

// Reset empties the list without reallocating.
func (l *MaxKList) Reset() { l.num = 0 }

// K returns the list's capacity.
func (l *MaxKList) K() int { return l.k }

// Len returns the number of entries currently held.
func (l *MaxKList) Len() int { return l.num }

// IsFull reports whether the list holds k entries.
func (l *MaxKList) IsFull() bool { return l.num >= l.k }

// MaxKey returns the largest key held, or -Inf if the list is empty.
func (l *MaxKList) MaxKey() float32 {
	if l.num > 0 {
		return l.items[0].key
	}
	return float32(math.Inf(-1))
}

// MinKey returns the list's k-th largest key once the list is full, or
// -Inf before then.
func (l *MaxKList) MinKey() float32 {
	if l.num == l.k {
		return l.items[l.k-1].key
	}
	return float32(math.Inf(-1))
}

// IthKey returns the key at position i (0-based, descending), or -Inf if
// i is out of the currently populated range.
func (l *MaxKList) IthKey(i int) float32 {
	if i < l.num {
		return l.items[i].key
	}
	return float32(math.Inf(-1))
}

// IthID returns the id at position i (0-based, descending), or -1 if i
// is out of the currently populated range.
func (l *MaxKList) IthID(i int) int32 {
	if i < l.num {
		return l.items[i].id
	}
	return -1
}

// Insert inserts (key, id) in descending order, dropping the smallest
// entry once the list exceeds k items.
func (l *MaxKList) Insert(key float32, id int32) {
	i := l.num
	for i > 0 && l.items[i-1].key < key {
		l.items[i] = l.items[i-1]
		i--
	}
	l.items[i] = entry{key: key, id: id}
	if l.num < l.k {
		l.num++
	}
}
