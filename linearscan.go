package rqalsh

import (
	"github.com/HuangQiang/RQALSH/dataset"
	"github.com/HuangQiang/RQALSH/topk"
)

// LinearScan brute-forces query against every object in the Paged
// Dataset, one page file at a time, and returns the number of pages
// read (the I/O cost original_source/util.cc's "linear" reports via
// total_file).
func LinearScan(n, d int, b int32, query []float32, dataFolder string, list *topk.MaxKList) (int64, error) {
	pack := dataset.PerPage(d, b)
	numPages := dataset.NumPages(n, d, b)

	buf := make([]float32, d)
	for f := 0; f < numPages; f++ {
		page, err := dataset.ReadPage(dataFolder, f)
		if err != nil {
			return 0, err
		}
		left := f * pack
		right := left + pack
		if right > n {
			right = n
		}
		for id := left; id < right; id++ {
			dataset.DecodeAt(id-left, d, page, buf)
			dist := euclideanDist(buf, query)
			list.Insert(dist, int32(id))
		}
	}
	return int64(numPages), nil
}
