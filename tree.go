package rqalsh

import (
	"sort"

	"github.com/HuangQiang/RQALSH/blockfile"
)

// hashEntry is one (key, id) pair of a projection's hash table, sorted
// ascending by key (ties broken by id) before bulk-load.
type hashEntry struct {
	key float32
	id  int32
}

// tree is a query-aware B+-tree over one projection's hash table,
// bulk-loaded once and then reopened read-only for search.
type tree struct {
	file *blockfile.File
	root int32
}

func createTree(path string, blockLen int32) (*tree, error) {
	if capacityIndex(blockLen) < 50 {
		return nil, NewError(CodeCapacityFloor, "index node capacity below floor of 50 entries")
	}
	if capacityLeaf(blockLen) < 100 {
		return nil, NewError(CodeCapacityFloor, "leaf node capacity below floor of 100 entries")
	}
	f, err := blockfile.Create(path, blockLen)
	if err != nil {
		return nil, WrapError(CodeIO, "create b-tree file", path, err)
	}
	return &tree{file: f}, nil
}

func openTree(path string) (*tree, error) {
	f, err := blockfile.Open(path, false)
	if err != nil {
		return nil, WrapError(CodeIO, "open b-tree file", path, err)
	}
	return &tree{file: f, root: f.Meta()}, nil
}

func (t *tree) close() error { return t.file.Close() }

func (t *tree) blockLength() int32 { return t.file.BlockLength() }

func (t *tree) readIndexNode(block int32) (*indexNode, error) {
	buf, err := t.file.ReadBlock(block)
	if err != nil {
		return nil, err
	}
	return unmarshalIndexNode(buf, t.file.BlockLength()), nil
}

func (t *tree) readLeafNode(block int32) (*leafNode, error) {
	buf, err := t.file.ReadBlock(block)
	if err != nil {
		return nil, err
	}
	return unmarshalLeafNode(buf, t.file.BlockLength()), nil
}

// bulkload builds the tree from a sorted hash table: leaves are filled
// greedily to capacity with sibling chaining, then index levels are
// built bottom-up until a single root remains.
func (t *tree) bulkload(entries []hashEntry) error {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].key != entries[j].key {
			return entries[i].key < entries[j].key
		}
		return entries[i].id < entries[j].id
	})

	blockLen := t.file.BlockLength()
	leafCap := capacityLeaf(blockLen)

	type childRef struct {
		key   float32
		block int32
	}
	var children []childRef

	var prevLeafBlock int32 = -1
	for start := 0; start < len(entries); start += leafCap {
		end := start + leafCap
		if end > len(entries) {
			end = len(entries)
		}
		leaf := newLeafNode(blockLen)
		for _, e := range entries[start:end] {
			leaf.addChild(e.id, e.key)
		}
		leaf.leftSibling = prevLeafBlock

		buf := leaf.marshal(blockLen)
		block, err := t.file.Append(buf)
		if err != nil {
			return err
		}
		if prevLeafBlock != -1 {
			if err := t.setRightSibling(prevLeafBlock, block); err != nil {
				return err
			}
		}
		prevLeafBlock = block
		children = append(children, childRef{key: entries[start].key, block: block})
	}

	if len(children) == 0 {
		leaf := newLeafNode(blockLen)
		buf := leaf.marshal(blockLen)
		block, err := t.file.Append(buf)
		if err != nil {
			return err
		}
		t.root = block
		return t.file.SetMeta(t.root)
	}

	level := int8(1)
	for len(children) > 1 {
		indexCap := capacityIndex(blockLen)
		var next []childRef
		for start := 0; start < len(children); start += indexCap {
			end := start + indexCap
			if end > len(children) {
				end = len(children)
			}
			node := newIndexNode(level, indexCap)
			for _, c := range children[start:end] {
				node.addChild(c.key, c.block)
			}
			buf := node.marshal(blockLen)
			block, err := t.file.Append(buf)
			if err != nil {
				return err
			}
			next = append(next, childRef{key: children[start].key, block: block})
		}
		children = next
		level++
	}

	t.root = children[0].block
	return t.file.SetMeta(t.root)
}

// setRightSibling patches the right_sibling field of an already-written
// leaf block in place (leaves are written left to right, so the
// previous leaf's right sibling is only known once its successor has
// been appended).
func (t *tree) setRightSibling(block, rightSibling int32) error {
	leaf, err := t.readLeafNode(block)
	if err != nil {
		return err
	}
	leaf.rightSibling = rightSibling
	return t.file.WriteBlock(block, leaf.marshal(t.file.BlockLength()))
}

// leftmostLeaf descends from the root to the leftmost leaf, counting
// one page I/O per node visited.
func (t *tree) leftmostLeaf() (*leafNode, int32, int, error) {
	return t.descend(true)
}

// rightmostLeaf descends from the root to the rightmost leaf.
func (t *tree) rightmostLeaf() (*leafNode, int32, int, error) {
	return t.descend(false)
}

// levelOf peeks the level byte shared by both node encodings, so the
// caller can decide which type to unmarshal without guessing.
func (t *tree) levelOf(block int32) (int8, []byte, error) {
	buf, err := t.file.ReadBlock(block)
	if err != nil {
		return 0, nil, err
	}
	return int8(buf[0]), buf, nil
}

func (t *tree) descend(leftmost bool) (*leafNode, int32, int, error) {
	pageIO := 0
	block := t.root

	level, buf, err := t.levelOf(block)
	if err != nil {
		return nil, 0, pageIO, err
	}
	pageIO++

	if level == 0 {
		leaf := unmarshalLeafNode(buf, t.file.BlockLength())
		return leaf, block, pageIO, nil
	}

	node := unmarshalIndexNode(buf, t.file.BlockLength())
	for node.level > 1 {
		var son int32
		if leftmost {
			son = node.sons[0]
		} else {
			son = node.sons[node.numEntries-1]
		}
		node, err = t.readIndexNode(son)
		if err != nil {
			return nil, 0, pageIO, err
		}
		pageIO++
	}

	var leafBlock int32
	if leftmost {
		leafBlock = node.sons[0]
	} else {
		leafBlock = node.sons[node.numEntries-1]
	}
	leaf, err := t.readLeafNode(leafBlock)
	if err != nil {
		return nil, 0, pageIO, err
	}
	pageIO++
	return leaf, leafBlock, pageIO, nil
}

// rightSiblingOf returns the leaf to the right of the given leaf, or nil
// at the end of the chain. Counts one page I/O when a sibling is read.
func (t *tree) rightSiblingOf(leaf *leafNode) (*leafNode, int32, int, error) {
	if leaf.rightSibling == -1 {
		return nil, 0, 0, nil
	}
	sib, err := t.readLeafNode(leaf.rightSibling)
	if err != nil {
		return nil, 0, 0, err
	}
	return sib, leaf.rightSibling, 1, nil
}

// leftSiblingOf returns the leaf to the left of the given leaf, or nil
// at the start of the chain.
func (t *tree) leftSiblingOf(leaf *leafNode) (*leafNode, int32, int, error) {
	if leaf.leftSibling == -1 {
		return nil, 0, 0, nil
	}
	sib, err := t.readLeafNode(leaf.leftSibling)
	if err != nil {
		return nil, 0, 0, err
	}
	return sib, leaf.leftSibling, 1, nil
}
