package rqalsh

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/HuangQiang/RQALSH/dataset"
	"github.com/HuangQiang/RQALSH/topk"
)

// angleThreshold absorbs points within about 10 degrees of a chosen
// projection direction, so a later round doesn't re-select a near
// duplicate of a point already picked.
const angleThreshold = 10.0 * math.Pi / 180.0

// minReal ranks an already-picked or degenerate point last when scores
// are sorted descending.
const minReal = -math.MaxFloat32

// DrusillaSelector runs l rounds over the centroid-shifted dataset. Each
// round takes the direction of the remaining object with the largest
// norm and picks the m objects with the highest |offset| - distortion
// score along it -- the SISAP2016 candidate pool RQALSH* searches
// directly, or narrows with an inner RQALSH index when the pool is large.
type DrusillaSelector struct {
	n, d, l, m int
	b          int32
	path       string
	cand       []int32 // l*m candidate ids, row-major by projection
}

type drusillaScore struct {
	id  int32
	key float32
}

// BuildDrusilla selects l*m candidates from vectors and persists them
// under path/drusilla.index.
func BuildDrusilla(n, d, l, m int, b int32, vectors [][]float32, path string) (*DrusillaSelector, error) {
	if n <= 0 || d <= 0 || l <= 0 || m <= 0 {
		return nil, NewError(CodeParamRange, "drusilla build parameters out of range")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, WrapError(CodeIO, "create drusilla directory", path, err)
	}
	ds := &DrusillaSelector{n: n, d: d, l: l, m: m, b: b, path: path}
	ds.bulkload(vectors)
	if err := ds.writeParams(); err != nil {
		return nil, err
	}
	return ds, nil
}

// LoadDrusilla reopens a previously built candidate list.
func LoadDrusilla(path string) (*DrusillaSelector, error) {
	ds := &DrusillaSelector{path: path}
	if err := ds.readParams(); err != nil {
		return nil, err
	}
	return ds, nil
}

func (ds *DrusillaSelector) bulkload(vectors [][]float32) {
	centroid := make([]float64, ds.d)
	for i := 0; i < ds.n; i++ {
		for j := 0; j < ds.d; j++ {
			centroid[j] += float64(vectors[i][j])
		}
	}
	for j := range centroid {
		centroid[j] /= float64(ds.n)
	}

	shift := make([][]float32, ds.n)
	for i := 0; i < ds.n; i++ {
		shift[i] = make([]float32, ds.d)
		for j := 0; j < ds.d; j++ {
			shift[i][j] = vectors[i][j] - float32(centroid[j])
		}
	}

	normv := make([]float32, ds.n)
	maxID, maxNorm := -1, float32(-1)
	for i := 0; i < ds.n; i++ {
		normv[i] = norm(shift[i])
		if normv[i] > maxNorm {
			maxNorm = normv[i]
			maxID = i
		}
	}

	closeAngle := make([]bool, ds.n)
	scores := make([]drusillaScore, ds.n)
	proj := make([]float32, ds.d)
	ds.cand = make([]int32, ds.l*ds.m)

	for round := 0; round < ds.l; round++ {
		if maxID < 0 {
			// fewer than l*m points carry positive norm; leave the
			// remaining candidate slots at their zero value.
			break
		}

		for j := 0; j < ds.d; j++ {
			proj[j] = shift[maxID][j] / normv[maxID]
		}

		for j := 0; j < ds.n; j++ {
			scores[j].id = int32(j)
			closeAngle[j] = false

			switch {
			case normv[j] > 0:
				offset := innerProduct(shift[j], proj)
				var distortion float64
				for k := 0; k < ds.d; k++ {
					diff := float64(shift[j][k]) - float64(offset)*float64(proj[k])
					distortion += diff * diff
				}
				distortion = math.Sqrt(distortion)
				scores[j].key = float32(math.Abs(float64(offset)) - distortion)
				if math.Atan(distortion/math.Abs(float64(offset))) < angleThreshold {
					closeAngle[j] = true
				}
			case math.Abs(float64(normv[j])) < 1e-6:
				scores[j].key = minReal + 1
			default:
				scores[j].key = minReal
			}
		}

		sort.Slice(scores, func(a, b int) bool {
			if scores[a].key != scores[b].key {
				return scores[a].key > scores[b].key
			}
			return scores[a].id < scores[b].id
		})

		for j := 0; j < ds.m; j++ {
			id := scores[j].id
			ds.cand[round*ds.m+j] = id
			normv[id] = -1
		}

		maxID, maxNorm = -1, float32(-1)
		for j := 0; j < ds.n; j++ {
			if normv[j] > 0 && closeAngle[j] {
				normv[j] = 0
			}
			if normv[j] > maxNorm {
				maxNorm = normv[j]
				maxID = j
			}
		}
	}
}

func (ds *DrusillaSelector) writeParams() error {
	path := filepath.Join(ds.path, "drusilla.index")
	buf := make([]byte, 0, 5*4+len(ds.cand)*4)
	putInt := func(v int32) { buf = binary.LittleEndian.AppendUint32(buf, uint32(v)) }

	putInt(int32(ds.n))
	putInt(int32(ds.d))
	putInt(ds.b)
	putInt(int32(ds.l))
	putInt(int32(ds.m))

	// Each candidate id is written as a uvarint: ids below 2^21 take at
	// most 3 bytes, ids of 2^28 and above take 5.
	var varintBuf [binary.MaxVarintLen64]byte
	for _, c := range ds.cand {
		n := binary.PutUvarint(varintBuf[:], uint64(c))
		buf = append(buf, varintBuf[:n]...)
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return WrapError(CodeIO, "write drusilla candidates", path, err)
	}
	return nil
}

func (ds *DrusillaSelector) readParams() error {
	path := filepath.Join(ds.path, "drusilla.index")
	buf, err := os.ReadFile(path)
	if err != nil {
		return WrapError(CodeCorrupt, "read drusilla candidates", path, err)
	}

	off := 0
	getInt := func() int32 {
		v := int32(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
		return v
	}

	ds.n = int(getInt())
	ds.d = int(getInt())
	ds.b = getInt()
	ds.l = int(getInt())
	ds.m = int(getInt())

	ds.cand = make([]int32, ds.l*ds.m)
	for i := range ds.cand {
		v, n := binary.Uvarint(buf[off:])
		if n <= 0 {
			return WrapError(CodeCorrupt, "decode drusilla candidate varint", path, nil)
		}
		ds.cand[i] = int32(v)
		off += n
	}
	return nil
}

// Candidates returns the selected l*m ids, row-major by projection.
func (ds *DrusillaSelector) Candidates() []int32 { return ds.cand }

func (ds *DrusillaSelector) N() int   { return ds.n }
func (ds *DrusillaSelector) L() int   { return ds.l }
func (ds *DrusillaSelector) M() int   { return ds.m }
func (ds *DrusillaSelector) B() int32 { return ds.b }

// Search brute-forces the l*m candidates against query. It is the whole
// of RQALSH*'s search when the candidate pool is too small to justify
// an inner RQALSH index.
func (ds *DrusillaSelector) Search(query []float32, dataFolder string, list *topk.MaxKList) (int64, error) {
	buf := make([]float32, ds.d)
	for _, id := range ds.cand {
		if err := dataset.Read(int(id), ds.d, ds.b, dataFolder, buf); err != nil {
			return 0, err
		}
		dist := euclideanDist(buf, query)
		list.Insert(dist, id)
	}
	return int64(len(ds.cand)), nil
}
