package rqalsh

import (
	"bufio"
	"fmt"
	"os"
)

// ReadTextVectors parses n whitespace-separated lines of the form
// "<ignored-int> v_1 v_2 ... v_d" (spec.md §6's data/query text format).
func ReadTextVectors(path string, n, d int) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, WrapError(CodeInputFormat, "open text vector file", path, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 1<<20)
	vectors := make([][]float32, n)
	for i := 0; i < n; i++ {
		var tag int
		if _, err := fmt.Fscan(r, &tag); err != nil {
			return nil, WrapError(CodeInputFormat, fmt.Sprintf("read object tag at line %d", i), path, err)
		}
		v := make([]float32, d)
		for j := 0; j < d; j++ {
			if _, err := fmt.Fscan(r, &v[j]); err != nil {
				return nil, WrapError(CodeInputFormat, fmt.Sprintf("read coordinate %d of object %d", j, i), path, err)
			}
		}
		vectors[i] = v
	}
	return vectors, nil
}
