// Package dataset lays the raw vector collection out as fixed-size pages on
// disk and reads individual objects back by id.
//
// Vectors are dense 32-bit floats, one object per id in [0, n). Page f
// holds objects [f*pack, min((f+1)*pack, n)) where pack = floor(B/(d*4)).
// Every Read costs exactly one page I/O.
package dataset

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
)

// PerPage returns the number of d-dimensional float32 vectors that fit in
// one B-byte page.
func PerPage(d int, b int32) int {
	return int(b) / (d * 4)
}

// Write lays out vectors (each of length d) into ceil(n/pack) page files
// named 0.data, 1.data, ... under folder/data/.
func Write(vectors [][]float32, d int, b int32, folder string) error {
	pack := PerPage(d, b)
	if pack <= 0 {
		return fmt.Errorf("dataset: page size %d too small for dimension %d", b, d)
	}
	dataDir := filepath.Join(folder, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("dataset: %w", err)
	}

	n := len(vectors)
	numFiles := (n + pack - 1) / pack
	for f := 0; f < numFiles; f++ {
		left := f * pack
		right := left + pack
		if right > n {
			right = n
		}
		buf := make([]byte, b)
		c := 0
		for i := left; i < right; i++ {
			for j := 0; j < d; j++ {
				binary.LittleEndian.PutUint32(buf[c:c+4], math.Float32bits(vectors[i][j]))
				c += 4
			}
		}
		name := filepath.Join(dataDir, fmt.Sprintf("%d.data", f))
		if err := os.WriteFile(name, buf, 0o644); err != nil {
			return fmt.Errorf("dataset: write %s: %w", name, err)
		}
	}
	return nil
}

// Read fetches object id's d floats into out, which must have length d.
// It computes file = id/pack, slot = id mod pack and reads the whole page.
func Read(id, d int, b int32, folder string, out []float32) error {
	pack := PerPage(d, b)
	file := id / pack
	slot := id % pack

	name := filepath.Join(folder, "data", fmt.Sprintf("%d.data", file))
	buf, err := os.ReadFile(name)
	if err != nil {
		return fmt.Errorf("dataset: read %s: %w", name, err)
	}
	c := slot * d * 4
	for i := 0; i < d; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[c : c+4]))
		c += 4
	}
	return nil
}

// ReadPage reads the f-th page file in full, returning its raw bytes.
func ReadPage(folder string, f int) ([]byte, error) {
	name := filepath.Join(folder, "data", fmt.Sprintf("%d.data", f))
	buf, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", name, err)
	}
	return buf, nil
}

// DecodeAt decodes the index-th d-dimensional vector out of a page buffer
// previously returned by ReadPage.
func DecodeAt(index, d int, buf []byte, out []float32) {
	c := index * d * 4
	for i := 0; i < d; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[c : c+4]))
		c += 4
	}
}

// NumPages returns the number of page files needed for n objects of
// dimension d at page size b.
func NumPages(n, d int, b int32) int {
	pack := PerPage(d, b)
	return (n + pack - 1) / pack
}
