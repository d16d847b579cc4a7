package rqalsh

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"go.uber.org/zap"

	"github.com/HuangQiang/RQALSH/dataset"
	"github.com/HuangQiang/RQALSH/internal/rqlog"
	"github.com/HuangQiang/RQALSH/internal/rstat"
	"github.com/HuangQiang/RQALSH/topk"
)

// DefaultCandidates is the CANDIDATES constant of spec.md §4.5/§4.7: the
// search budget is CANDIDATES + k - 1 distance computations.
const DefaultCandidates = 100

// projectionSource is seeded once, when the package is initialised, and
// shared by every Build in the process.
var projectionSource = rstat.NewSource()

// BuildConfig collects the parameters a build needs beyond the dataset
// itself.
type BuildConfig struct {
	N       int
	D       int
	B       int32
	BetaRaw int
	Delta   float64
	C       float64
}

// Index is a built or loaded RQALSH index: m random projections, each
// persisted as a query-aware B+-tree, plus the derived search
// parameters.
type Index struct {
	n, d int
	b    int32
	beta float64 // beta_raw / n
	delta,
	c float64
	w, p1, p2, alpha float64
	m, l             int
	aArray           []float64 // m*d projection coefficients, row-major

	trees []*tree
	path  string

	candidates int // override of DefaultCandidates, for tests; 0 means default
}

// Build draws m random projections, hashes every vector under each, and
// bulk-loads the resulting sorted hash tables into m B+-trees under
// indexDir. It refuses to overwrite an existing parameter blob.
func Build(cfg BuildConfig, vectors [][]float32, indexDir string, logger *zap.Logger) (*Index, error) {
	logger = rqlog.NilSafe(logger)

	if cfg.N <= 0 || cfg.D <= 0 || cfg.B <= 0 || cfg.C <= 1 || cfg.Delta <= 0 || cfg.Delta >= 1 || cfg.BetaRaw <= 0 {
		return nil, NewError(CodeParamRange, "build parameters out of range")
	}
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return nil, WrapError(CodeIO, "create index directory", indexDir, err)
	}

	paraPath := filepath.Join(indexDir, "para")
	if _, err := os.Stat(paraPath); err == nil {
		return nil, NewError(CodeIndexExists, "parameter blob already exists at "+paraPath)
	}

	p := calcParams(cfg.BetaRaw, cfg.N, cfg.Delta, cfg.C)
	idx := &Index{
		n: cfg.N, d: cfg.D, b: cfg.B,
		beta: float64(cfg.BetaRaw) / float64(cfg.N), delta: cfg.Delta, c: cfg.C,
		w: p.w, p1: p.p1, p2: p.p2, alpha: p.alpha, m: p.m, l: p.l,
		path: indexDir,
	}
	logger.Info("rqalsh: parameters derived",
		zap.Int("m", idx.m), zap.Int("l", idx.l), zap.Float64("w", idx.w))

	idx.aArray = projectionSource.GaussianMatrix(idx.m, idx.d)
	logger.Info("rqalsh: projection matrix drawn", zap.Int("entries", idx.m*idx.d))

	if err := idx.writeParams(); err != nil {
		return nil, err
	}

	idx.trees = make([]*tree, idx.m)
	for i := 0; i < idx.m; i++ {
		entries := make([]hashEntry, idx.n)
		for j := 0; j < idx.n; j++ {
			entries[j] = hashEntry{key: idx.hashValue(i, vectors[j]), id: int32(j)}
		}
		treePath := idx.treeFilename(i)
		tr, err := createTree(treePath, idx.b)
		if err != nil {
			return nil, err
		}
		if err := tr.bulkload(entries); err != nil {
			return nil, WrapError(CodeIO, "bulkload b-tree", treePath, err)
		}
		idx.trees[i] = tr
		logger.Info("rqalsh: projection bulk-loaded", zap.Int("projection", i))
	}
	return idx, nil
}

// Load opens a previously built index's parameter blob and B+-trees
// read-only.
func Load(indexDir string) (*Index, error) {
	idx := &Index{path: indexDir}
	if err := idx.readParams(); err != nil {
		return nil, err
	}
	idx.trees = make([]*tree, idx.m)
	for i := 0; i < idx.m; i++ {
		tr, err := openTree(idx.treeFilename(i))
		if err != nil {
			return nil, err
		}
		idx.trees[i] = tr
	}
	return idx, nil
}

// Close releases the index's open B+-tree files.
func (idx *Index) Close() error {
	var first error
	for _, t := range idx.trees {
		if err := t.close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// N, D, B, M, L, C report the observable build parameters, for the
// build-then-load round-trip law of spec.md §8.
func (idx *Index) N() int       { return idx.n }
func (idx *Index) D() int       { return idx.d }
func (idx *Index) B() int32     { return idx.b }
func (idx *Index) M() int       { return idx.m }
func (idx *Index) L() int       { return idx.l }
func (idx *Index) C() float64   { return idx.c }
func (idx *Index) Path() string { return idx.path }

// DiskSize reports the on-disk footprint of this index's B+-tree files,
// a diagnostic surfaced by the CLI (SPEC_FULL §12 item 3).
func (idx *Index) DiskSize() (int64, error) {
	var total int64
	for i := 0; i < idx.m; i++ {
		fi, err := os.Stat(idx.treeFilename(i))
		if err != nil {
			return 0, err
		}
		total += fi.Size()
	}
	return total, nil
}

func (idx *Index) treeFilename(i int) string {
	return filepath.Join(idx.path, fmt.Sprintf("%d.rqalsh", i))
}

func (idx *Index) hashValue(projection int, v []float32) float32 {
	base := projection * idx.d
	var sum float64
	for i := 0; i < idx.d; i++ {
		sum += idx.aArray[base+i] * float64(v[i])
	}
	return float32(sum)
}

func (idx *Index) candidateBudget(k int) int {
	c := idx.candidates
	if c == 0 {
		c = DefaultCandidates
	}
	return c + k - 1
}

// pageBuffer mirrors a cursor into one projection's B+-tree: the leaf
// currently in view, the position of the active key cell within it,
// the position of the first unscanned id, and how many ids remain to
// scan in this cell. size == -1 means the pointer has no content left.
type pageBuffer struct {
	leaf     *leafNode
	leafBlk  int32
	indexPos int
	leafPos  int
	size     int
}

// searchState is the per-query scratch the sweep protocol keeps alive:
// one (left, right) pointer pair per projection plus the separation
// counters.
type searchState struct {
	qVal    []float32
	lptr    []*pageBuffer
	rptr    []*pageBuffer
	freq    []int32
	checked *bitset.BitSet
	active  []bool

	pageIO int64
	distIO int64
}

func (idx *Index) initSearchState(query []float32) (*searchState, error) {
	st := &searchState{
		qVal:    make([]float32, idx.m),
		lptr:    make([]*pageBuffer, idx.m),
		rptr:    make([]*pageBuffer, idx.m),
		freq:    make([]int32, idx.n),
		checked: bitset.New(uint(idx.n)),
		active:  make([]bool, idx.m),
	}

	for i := 0; i < idx.m; i++ {
		st.qVal[i] = idx.hashValue(i, query)
		t := idx.trees[i]

		leftLeaf, leftBlock, io1, err := t.leftmostLeaf()
		if err != nil {
			return nil, WrapError(CodeCorrupt, "descend to leftmost leaf", idx.treeFilename(i), err)
		}
		st.pageIO += int64(io1)

		if leftLeaf.rightSibling == -1 {
			// the tree holds exactly one leaf: both pointers may need to
			// live inside it, or the right pointer stays empty if a
			// single key cell covers every entry.
			if leftLeaf.numKeys > 1 {
				inc := leftLeaf.getIncrement()
				st.lptr[i] = &pageBuffer{leaf: leftLeaf, leafBlk: leftBlock, indexPos: 0, leafPos: 0, size: inc}
				st.rptr[i] = &pageBuffer{
					leaf: leftLeaf, leafBlk: leftBlock,
					indexPos: int(leftLeaf.numKeys) - 1,
					leafPos:  int(leftLeaf.numEntries) - 1,
					size:     int(leftLeaf.numEntries) - (int(leftLeaf.numKeys)-1)*inc,
				}
			} else {
				st.lptr[i] = &pageBuffer{leaf: leftLeaf, leafBlk: leftBlock, indexPos: 0, leafPos: 0, size: int(leftLeaf.numEntries)}
				st.rptr[i] = &pageBuffer{size: -1}
			}
		} else {
			inc := leftLeaf.getIncrement()
			lsize := inc
			if inc > int(leftLeaf.numEntries) {
				lsize = int(leftLeaf.numEntries)
			}
			st.lptr[i] = &pageBuffer{leaf: leftLeaf, leafBlk: leftBlock, indexPos: 0, leafPos: 0, size: lsize}

			rightLeaf, rightBlock, io2, err := t.rightmostLeaf()
			if err != nil {
				return nil, WrapError(CodeCorrupt, "descend to rightmost leaf", idx.treeFilename(i), err)
			}
			st.pageIO += int64(io2)

			rinc := rightLeaf.getIncrement()
			st.rptr[i] = &pageBuffer{
				leaf: rightLeaf, leafBlk: rightBlock,
				indexPos: int(rightLeaf.numKeys) - 1,
				leafPos:  int(rightLeaf.numEntries) - 1,
				size:     int(rightLeaf.numEntries) - (int(rightLeaf.numKeys)-1)*rinc,
			}
		}
	}
	return st, nil
}

func calcProjectedDist(qVal float32, buf *pageBuffer) float32 {
	key := buf.leaf.getKey(buf.indexPos)
	d := key - qVal
	if d < 0 {
		d = -d
	}
	return d
}

func (idx *Index) updateLeftBuffer(lptr *pageBuffer, tr *tree, st *searchState) error {
	if lptr.indexPos < int(lptr.leaf.numKeys)-1 {
		lptr.indexPos++
		pos := lptr.indexPos
		inc := lptr.leaf.getIncrement()
		lptr.leafPos = pos * inc
		if pos == int(lptr.leaf.numKeys)-1 {
			lptr.size = int(lptr.leaf.numEntries) - pos*inc
		} else {
			lptr.size = inc
		}
		return nil
	}

	sib, sibBlock, io, err := tr.rightSiblingOf(lptr.leaf)
	if err != nil {
		return err
	}
	st.pageIO += int64(io)
	if sib != nil {
		lptr.leaf, lptr.leafBlk = sib, sibBlock
		lptr.indexPos, lptr.leafPos = 0, 0
		inc := sib.getIncrement()
		if inc > int(sib.numEntries) {
			lptr.size = int(sib.numEntries)
		} else {
			lptr.size = inc
		}
	} else {
		lptr.leaf, lptr.size, lptr.indexPos, lptr.leafPos = nil, -1, -1, -1
	}
	return nil
}

func (idx *Index) updateRightBuffer(rptr *pageBuffer, tr *tree, st *searchState) error {
	if rptr.indexPos > 0 {
		rptr.indexPos--
		pos := rptr.indexPos
		inc := rptr.leaf.getIncrement()
		rptr.leafPos = pos*inc + inc - 1
		rptr.size = inc
		return nil
	}

	sib, sibBlock, io, err := tr.leftSiblingOf(rptr.leaf)
	if err != nil {
		return err
	}
	st.pageIO += int64(io)
	if sib != nil {
		rptr.leaf, rptr.leafBlk = sib, sibBlock
		rptr.indexPos = int(sib.numKeys) - 1
		pos := rptr.indexPos
		inc := sib.getIncrement()
		rptr.leafPos = int(sib.numEntries) - 1
		rptr.size = int(sib.numEntries) - pos*inc
	} else {
		rptr.leaf, rptr.size, rptr.indexPos, rptr.leafPos = nil, -1, -1, -1
	}
	return nil
}

func (idx *Index) findRadius(st *searchState) float32 {
	var dists []float32
	for i := 0; i < idx.m; i++ {
		if st.lptr[i].size != -1 {
			dists = append(dists, calcProjectedDist(st.qVal[i], st.lptr[i]))
		}
		if st.rptr[i].size != -1 {
			dists = append(dists, calcProjectedDist(st.qVal[i], st.rptr[i]))
		}
	}
	sort.Slice(dists, func(i, j int) bool { return dists[i] < dists[j] })

	num := len(dists)
	var med float64
	if num%2 == 0 {
		med = (float64(dists[num/2-1]) + float64(dists[num/2])) / 2
	} else {
		med = float64(dists[num/2])
	}

	kappa := math.Ceil(math.Log(2*med/idx.w) / math.Log(idx.c))
	return float32(math.Pow(idx.c, kappa))
}

// KFN runs c-k-AFN search and writes up to k results into list, returning
// the total page + distance I/O.
func (idx *Index) KFN(k int, query []float32, dataFolder string, list *topk.MaxKList) (int64, error) {
	return idx.kfn(k, query, nil, dataFolder, list)
}

// KFNMapped is the RQALSH* variant: candidate ids are remapped through
// idMap before the vector is read and inserted into list.
func (idx *Index) KFNMapped(k int, query []float32, idMap []int32, dataFolder string, list *topk.MaxKList) (int64, error) {
	return idx.kfn(k, query, idMap, dataFolder, list)
}

func (idx *Index) kfn(k int, query []float32, idMap []int32, dataFolder string, list *topk.MaxKList) (int64, error) {
	budget := idx.candidateBudget(k)

	st, err := idx.initSearchState(query)
	if err != nil {
		return 0, err
	}
	w := float32(idx.w)
	c := float32(idx.c)
	radius := idx.findRadius(st)
	bucket := w * radius / 2

	buf := make([]float32, idx.d)
	kdist := float32(math.Inf(-1))

	for {
		for i := range st.active {
			st.active[i] = true
		}
		numInactive := 0

		for numInactive < idx.m {
			for i := 0; i < idx.m; i++ {
				if !st.active[i] {
					continue
				}
				lptr, rptr := st.lptr[i], st.rptr[i]

				ldist, rdist := float32(-1), float32(-1)
				if lptr.size != -1 {
					ldist = calcProjectedDist(st.qVal[i], lptr)
				}
				if rptr.size != -1 {
					rdist = calcProjectedDist(st.qVal[i], rptr)
				}

				switch {
				case ldist > bucket && ldist > rdist:
					start := lptr.leafPos
					end := start + lptr.size
					for j := start; j < end; j++ {
						id := lptr.leaf.getEntryID(j)
						st.freq[id]++
						if st.freq[id] > int32(idx.l) && !st.checked.Test(uint(id)) {
							st.checked.Set(uint(id))
							if err := idx.readCandidate(id, idMap, dataFolder, buf); err != nil {
								return 0, err
							}
							dist := euclideanDist(buf, query)
							list.Insert(dist, resolveID(id, idMap))
							kdist = list.MinKey()
							st.distIO++
							if st.distIO >= int64(budget) {
								break
							}
						}
					}
					if err := idx.updateLeftBuffer(lptr, idx.trees[i], st); err != nil {
						return 0, err
					}
				case rdist > bucket && ldist <= rdist:
					end := rptr.leafPos
					start := end - rptr.size
					for j := end; j > start; j-- {
						id := rptr.leaf.getEntryID(j)
						st.freq[id]++
						if st.freq[id] > int32(idx.l) && !st.checked.Test(uint(id)) {
							st.checked.Set(uint(id))
							if err := idx.readCandidate(id, idMap, dataFolder, buf); err != nil {
								return 0, err
							}
							dist := euclideanDist(buf, query)
							list.Insert(dist, resolveID(id, idMap))
							kdist = list.MinKey()
							st.distIO++
							if st.distIO >= int64(budget) {
								break
							}
						}
					}
					if err := idx.updateRightBuffer(rptr, idx.trees[i], st); err != nil {
						return 0, err
					}
				default:
					st.active[i] = false
					numInactive++
				}
				if numInactive >= idx.m || st.distIO >= int64(budget) {
					break
				}
			}
			if numInactive >= idx.m || st.distIO >= int64(budget) {
				break
			}
		}

		if kdist > radius/c && st.distIO >= int64(k) {
			break
		}
		if st.distIO >= int64(budget) {
			break
		}
		radius = radius / c
		bucket = w * radius / 2
	}

	return st.pageIO + st.distIO, nil
}

func (idx *Index) readCandidate(id int32, idMap []int32, dataFolder string, out []float32) error {
	realID := id
	if idMap != nil {
		realID = idMap[id]
	}
	return dataset.Read(int(realID), idx.d, idx.b, dataFolder, out)
}

func resolveID(id int32, idMap []int32) int32 {
	if idMap != nil {
		return idMap[id]
	}
	return id
}
