package rqalsh

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/HuangQiang/RQALSH/internal/rqlog"
	"github.com/HuangQiang/RQALSH/topk"
)

// StarBuildConfig mirrors BuildConfig plus Drusilla's L/M selection
// parameters.
type StarBuildConfig struct {
	N, D    int
	B       int32
	L, M    int
	BetaRaw int
	Delta   float64
	C       float64
}

// StarIndex is RQALSH*: a Drusilla-selected candidate subset, searched
// directly when small or through an inner RQALSH index when large.
type StarIndex struct {
	n, d    int
	b       int32
	l, m    int
	beta    float64
	delta   float64
	c       float64
	path    string
	drus    *DrusillaSelector
	inner   *Index // nil when candidates <= DefaultCandidates
}

func starParaPath(path string) string { return filepath.Join(path, "rqalsh_star_para") }

// BuildStar runs Drusilla selection over vectors, then builds an inner
// RQALSH over the candidate subset when it is large enough to be worth
// indexing (spec.md §4.7).
func BuildStar(cfg StarBuildConfig, vectors [][]float32, indexDir string, logger *zap.Logger) (*StarIndex, error) {
	logger = rqlog.NilSafe(logger)

	if cfg.N <= 0 || cfg.D <= 0 || cfg.B <= 0 || cfg.L <= 0 || cfg.M <= 0 ||
		cfg.C <= 1 || cfg.Delta <= 0 || cfg.Delta >= 1 || cfg.BetaRaw <= 0 {
		return nil, NewError(CodeParamRange, "rqalsh* build parameters out of range")
	}
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return nil, WrapError(CodeIO, "create index directory", indexDir, err)
	}
	if _, err := os.Stat(starParaPath(indexDir)); err == nil {
		return nil, NewError(CodeIndexExists, "rqalsh* parameters already exist at "+starParaPath(indexDir))
	}

	si := &StarIndex{
		n: cfg.N, d: cfg.D, b: cfg.B, l: cfg.L, m: cfg.M,
		beta: float64(cfg.BetaRaw) / float64(cfg.N), delta: cfg.Delta, c: cfg.C,
		path: indexDir,
	}

	drus, err := BuildDrusilla(cfg.N, cfg.D, cfg.L, cfg.M, cfg.B, vectors, indexDir)
	if err != nil {
		return nil, err
	}
	si.drus = drus
	logger.Info("rqalsh*: drusilla selection complete", zap.Int("candidates", cfg.L*cfg.M))

	nCand := cfg.L * cfg.M
	if nCand > DefaultCandidates {
		candVectors := make([][]float32, nCand)
		for i, id := range drus.Candidates() {
			candVectors[i] = vectors[id]
		}
		innerDir := filepath.Join(indexDir, "inner")
		inner, err := Build(BuildConfig{
			N: nCand, D: cfg.D, B: cfg.B,
			BetaRaw: cfg.BetaRaw, Delta: cfg.Delta, C: cfg.C,
		}, candVectors, innerDir, logger)
		if err != nil {
			return nil, err
		}
		si.inner = inner
		logger.Info("rqalsh*: inner rqalsh built over candidate subset")
	}

	if err := si.writeParams(); err != nil {
		return nil, err
	}
	return si, nil
}

// LoadStar reopens a previously built RQALSH* index.
func LoadStar(indexDir string) (*StarIndex, error) {
	si := &StarIndex{path: indexDir}
	if err := si.readParams(); err != nil {
		return nil, err
	}
	drus, err := LoadDrusilla(indexDir)
	if err != nil {
		return nil, err
	}
	si.drus = drus

	if si.l*si.m > DefaultCandidates {
		inner, err := Load(filepath.Join(indexDir, "inner"))
		if err != nil {
			return nil, err
		}
		si.inner = inner
	}
	return si, nil
}

// Close releases the inner RQALSH index's open files, if any.
func (si *StarIndex) Close() error {
	if si.inner != nil {
		return si.inner.Close()
	}
	return nil
}

func (si *StarIndex) N() int     { return si.n }
func (si *StarIndex) D() int     { return si.d }
func (si *StarIndex) L() int     { return si.l }
func (si *StarIndex) M() int     { return si.m }
func (si *StarIndex) C() float64 { return si.c }

// KFN runs c-k-AFN search: delegating to the inner RQALSH with the
// candidate ids as an id map when the subset is large enough to index,
// or linear-scanning the subset directly otherwise (spec.md §4.7).
func (si *StarIndex) KFN(k int, query []float32, dataFolder string, list *topk.MaxKList) (int64, error) {
	nCand := si.l * si.m
	budget := DefaultCandidates + k - 1
	if nCand > budget && si.inner != nil {
		return si.inner.KFNMapped(k, query, si.drus.Candidates(), dataFolder, list)
	}
	return si.drus.Search(query, dataFolder, list)
}

func (si *StarIndex) writeParams() error {
	path := starParaPath(si.path)
	buf := make([]byte, 0, 6*4+2*4)
	putInt := func(v int32) { buf = binary.LittleEndian.AppendUint32(buf, uint32(v)) }
	putFloat := func(v float64) { buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v))) }

	putInt(int32(si.n))
	putInt(int32(si.d))
	putInt(si.b)
	putInt(int32(si.l))
	putInt(int32(si.m))
	putInt(int32(si.beta * float64(si.n))) // beta_raw, recovered from beta
	putFloat(si.delta)
	putFloat(si.c)

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return WrapError(CodeIO, "write rqalsh* parameters", path, err)
	}
	return nil
}

func (si *StarIndex) readParams() error {
	path := starParaPath(si.path)
	buf, err := os.ReadFile(path)
	if err != nil {
		return WrapError(CodeCorrupt, "read rqalsh* parameters", path, err)
	}

	off := 0
	getInt := func() int32 {
		v := int32(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
		return v
	}
	getFloat := func() float64 {
		v := float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4])))
		off += 4
		return v
	}

	si.n = int(getInt())
	si.d = int(getInt())
	si.b = getInt()
	si.l = int(getInt())
	si.m = int(getInt())
	betaRaw := getInt()
	si.delta = getFloat()
	si.c = getFloat()
	si.beta = float64(betaRaw) / float64(si.n)
	return nil
}
