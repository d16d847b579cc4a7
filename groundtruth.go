package rqalsh

import (
	"bufio"
	"fmt"
	"os"

	"github.com/HuangQiang/RQALSH/topk"
)

// MaxK is the largest k ground truth is computed for; every algorithm's
// recall and ratio are measured against this fixed-width reference.
const MaxK = 10

// GroundTruthRow is one query's MaxK furthest neighbors, in descending
// distance order.
type GroundTruthRow struct {
	IDs  [MaxK]int32
	Keys [MaxK]float32
}

// ComputeGroundTruth brute-forces the true MaxK furthest neighbors of
// every query against the full dataset and writes them to truthPath as
// a header line "qn MaxK" followed by one line per query of
// "id key id key ..." pairs (spec.md §4.9, grounded on
// original_source/afn.cc's ground_truth).
func ComputeGroundTruth(vectors, queries [][]float32, truthPath string) error {
	f, err := os.Create(truthPath)
	if err != nil {
		return WrapError(CodeIO, "create ground truth file", truthPath, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%d %d\n", len(queries), MaxK)

	list := topk.NewMaxKList(MaxK)
	for _, q := range queries {
		list.Reset()
		for j, v := range vectors {
			dist := euclideanDist(v, q)
			list.Insert(dist, int32(j))
		}
		for j := 0; j < MaxK; j++ {
			fmt.Fprintf(w, "%d %f ", list.IthID(j), list.IthKey(j))
		}
		fmt.Fprint(w, "\n")
	}
	if err := w.Flush(); err != nil {
		return WrapError(CodeIO, "flush ground truth file", truthPath, err)
	}
	return nil
}

// ReadGroundTruth parses a ground truth file produced by
// ComputeGroundTruth, returning one row per query.
func ReadGroundTruth(truthPath string, qn int) ([]GroundTruthRow, error) {
	f, err := os.Open(truthPath)
	if err != nil {
		return nil, WrapError(CodeIO, "open ground truth file", truthPath, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 1<<20)
	var gotQN, gotK int
	if _, err := fmt.Fscanf(r, "%d %d\n", &gotQN, &gotK); err != nil {
		return nil, WrapError(CodeCorrupt, "parse ground truth header", truthPath, err)
	}
	if gotQN != qn || gotK != MaxK {
		return nil, NewError(CodeCorrupt, fmt.Sprintf("ground truth header mismatch: got (%d,%d), want (%d,%d)", gotQN, gotK, qn, MaxK))
	}

	rows := make([]GroundTruthRow, qn)
	for i := 0; i < qn; i++ {
		for j := 0; j < MaxK; j++ {
			var id int32
			var key float32
			if _, err := fmt.Fscanf(r, "%d %f ", &id, &key); err != nil {
				return nil, WrapError(CodeCorrupt, "parse ground truth row", truthPath, err)
			}
			rows[i].IDs[j] = id
			rows[i].Keys[j] = key
		}
		fmt.Fscanf(r, "\n")
	}
	return rows, nil
}

// Recall reports the percentage of an algorithm's top-k results whose
// distances dominate the ground truth's k-th furthest distance
// (grounded on original_source/util.cc's calc_recall). Truth keys are
// read back from 6-decimal text, so a key up to 1e-6 below the truth's
// k-th key still counts.
func Recall(k int, truth *GroundTruthRow, list *topk.MaxKList) float64 {
	last := truth.Keys[k-1] - 1e-6
	i := k - 1
	for i >= 0 && list.IthKey(i) < last {
		i--
	}
	return float64(i+1) * 100.0 / float64(k)
}

// Ratio reports the mean ratio of true to reported distance over the
// top-k results, the overall approximation quality measure.
func Ratio(k int, truth *GroundTruthRow, list *topk.MaxKList) float64 {
	var sum float64
	for j := 0; j < k; j++ {
		sum += float64(truth.Keys[j]) / float64(list.IthKey(j))
	}
	return sum / float64(k)
}
