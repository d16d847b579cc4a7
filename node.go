package rqalsh

import (
	"encoding/binary"
	"math"
)

// nodeHeaderSize is the 13-byte header shared by index and leaf nodes:
// level (1 byte), num_entries, left_sibling, right_sibling (int32 each).
const nodeHeaderSize = 1 + 4 + 4 + 4

// leafIncrement is the number of ids represented by one sparse key cell
// in a leaf node: 4096 bytes' worth of int32 ids.
const leafIncrement = 4096 / 4

// indexNode is an internal B+-tree node: (key, son) pairs in ascending
// key order, plus sibling pointers for completeness (unused by the
// sweep, which only descends index nodes top-down).
type indexNode struct {
	level        int8
	numEntries   int32
	leftSibling  int32
	rightSibling int32
	keys         []float32
	sons         []int32
}

func entrySizeIndex() int { return 4 + 4 }

func capacityIndex(blockLen int32) int {
	return (int(blockLen) - nodeHeaderSize) / entrySizeIndex()
}

func newIndexNode(level int8, capacity int) *indexNode {
	n := &indexNode{
		level:        level,
		leftSibling:  -1,
		rightSibling: -1,
		keys:         make([]float32, capacity),
		sons:         make([]int32, capacity),
	}
	return n
}

func (n *indexNode) addChild(key float32, son int32) {
	n.keys[n.numEntries] = key
	n.sons[n.numEntries] = son
	n.numEntries++
}

func (n *indexNode) marshal(blockLen int32) []byte {
	buf := make([]byte, blockLen)
	buf[0] = byte(n.level)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(n.numEntries))
	binary.LittleEndian.PutUint32(buf[5:9], uint32(n.leftSibling))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(n.rightSibling))
	off := nodeHeaderSize
	for j := int32(0); j < n.numEntries; j++ {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(n.keys[j]))
		off += 4
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(n.sons[j]))
		off += 4
	}
	return buf
}

func unmarshalIndexNode(buf []byte, blockLen int32) *indexNode {
	n := &indexNode{}
	n.level = int8(buf[0])
	n.numEntries = int32(binary.LittleEndian.Uint32(buf[1:5]))
	n.leftSibling = int32(binary.LittleEndian.Uint32(buf[5:9]))
	n.rightSibling = int32(binary.LittleEndian.Uint32(buf[9:13]))

	capacity := capacityIndex(blockLen)
	n.keys = make([]float32, capacity)
	n.sons = make([]int32, capacity)
	off := nodeHeaderSize
	for j := int32(0); j < n.numEntries; j++ {
		n.keys[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
		n.sons[j] = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	return n
}

// leafNode is a B+-tree leaf: a dense array of object ids in ascending
// projected-key order, with a sparse key array that records only one
// representative key per leafIncrement ids (see getKey).
type leafNode struct {
	level        int8
	numEntries   int32
	leftSibling  int32
	rightSibling int32

	numKeys       int32
	keys          []float32 // capacity = capacityKeys
	ids           []int32   // capacity = capacityIDs
	capacityKeys  int
	capacityIDs   int
}

func keyArraySize(blockLen int32) int {
	return (int(blockLen) + 4095) / 4096
}

func capacityLeaf(blockLen int32) int {
	capKeys := keyArraySize(blockLen)
	keySize := capKeys * 4
	return (int(blockLen) - nodeHeaderSize - 4 - keySize) / 4
}

func newLeafNode(blockLen int32) *leafNode {
	capKeys := keyArraySize(blockLen)
	return &leafNode{
		level:        0,
		leftSibling:  -1,
		rightSibling: -1,
		keys:         make([]float32, capKeys),
		ids:          make([]int32, capacityLeaf(blockLen)),
		capacityKeys: capKeys,
		capacityIDs:  capacityLeaf(blockLen),
	}
}

// addChild appends one (id, key) entry; key is recorded only when this
// id starts a new leafIncrement-sized cell.
func (n *leafNode) addChild(id int32, key float32) {
	n.ids[n.numEntries] = id
	if (n.numEntries*4)%4096 == 0 {
		n.keys[n.numKeys] = key
		n.numKeys++
	}
	n.numEntries++
}

// getKey returns the representative key of the index-th key cell.
func (n *leafNode) getKey(index int) float32 { return n.keys[index] }

// getIncrement returns the number of ids covered by one key cell.
func (n *leafNode) getIncrement() int { return leafIncrement }

func (n *leafNode) getEntryID(pos int) int32 { return n.ids[pos] }

func (n *leafNode) marshal(blockLen int32) []byte {
	buf := make([]byte, blockLen)
	buf[0] = byte(n.level)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(n.numEntries))
	binary.LittleEndian.PutUint32(buf[5:9], uint32(n.leftSibling))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(n.rightSibling))
	off := nodeHeaderSize
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(n.numKeys))
	off += 4
	for j := 0; j < n.capacityKeys; j++ {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(n.keys[j]))
		off += 4
	}
	for j := int32(0); j < n.numEntries; j++ {
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(n.ids[j]))
		off += 4
	}
	return buf
}

func unmarshalLeafNode(buf []byte, blockLen int32) *leafNode {
	n := &leafNode{}
	n.level = int8(buf[0])
	n.numEntries = int32(binary.LittleEndian.Uint32(buf[1:5]))
	n.leftSibling = int32(binary.LittleEndian.Uint32(buf[5:9]))
	n.rightSibling = int32(binary.LittleEndian.Uint32(buf[9:13]))

	n.capacityKeys = keyArraySize(blockLen)
	n.capacityIDs = capacityLeaf(blockLen)
	n.keys = make([]float32, n.capacityKeys)
	n.ids = make([]int32, n.capacityIDs)

	off := nodeHeaderSize
	n.numKeys = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
	off += 4
	for j := 0; j < n.capacityKeys; j++ {
		n.keys[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	for j := int32(0); j < n.numEntries; j++ {
		n.ids[j] = int32(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	return n
}
