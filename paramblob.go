package rqalsh

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
)

// writeParams persists the fixed-order little-endian parameter blob of
// spec.md §6: (n, d, B, m, l) as int32, (c, w, p1, p2, alpha, beta,
// delta) as f32, then the m*d f32 projection coefficients.
func (idx *Index) writeParams() error {
	path := filepath.Join(idx.path, "para")
	buf := make([]byte, 0, 5*4+7*4+len(idx.aArray)*4)

	putInt := func(v int32) { buf = binary.LittleEndian.AppendUint32(buf, uint32(v)) }
	putFloat := func(v float64) { buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(v))) }

	putInt(int32(idx.n))
	putInt(int32(idx.d))
	putInt(idx.b)
	putInt(int32(idx.m))
	putInt(int32(idx.l))
	putFloat(idx.c)
	putFloat(idx.w)
	putFloat(idx.p1)
	putFloat(idx.p2)
	putFloat(idx.alpha)
	putFloat(idx.beta)
	putFloat(idx.delta)
	for _, a := range idx.aArray {
		putFloat(a)
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return WrapError(CodeIO, "write parameter blob", path, err)
	}
	return nil
}

func (idx *Index) readParams() error {
	path := filepath.Join(idx.path, "para")
	buf, err := os.ReadFile(path)
	if err != nil {
		return WrapError(CodeCorrupt, "read parameter blob", path, err)
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

	idx.n = int(getInt())
	idx.d = int(getInt())
	idx.b = getInt()
	idx.m = int(getInt())
	idx.l = int(getInt())
	idx.c = getFloat()
	idx.w = getFloat()
	idx.p1 = getFloat()
	idx.p2 = getFloat()
	idx.alpha = getFloat()
	idx.beta = getFloat()
	idx.delta = getFloat()

	idx.aArray = make([]float64, idx.m*idx.d)
	for i := range idx.aArray {
		idx.aArray[i] = getFloat()
	}
	return nil
}
