// Command rqalsh drives the six operations of the c-approximate
// k-furthest-neighbor engine: ground truth, RQALSH build/search, RQALSH*
// build/search, and brute-force linear scan.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/HuangQiang/RQALSH"
	"github.com/HuangQiang/RQALSH/dataset"
	"github.com/HuangQiang/RQALSH/internal/rqlog"
	"github.com/HuangQiang/RQALSH/topk"
)

var kFNs = []int{1, 2, 5, 10}

func main() {
	logger := rqlog.New()
	defer logger.Sync()

	app := &cli.App{
		Name:  "rqalsh",
		Usage: "c-approximate k-furthest-neighbor search via query-aware LSH",
		Commands: []*cli.Command{
			gtCommand(logger),
			buildCommand(logger),
			searchCommand(logger),
			buildStarCommand(logger),
			searchStarCommand(logger),
			linearCommand(logger),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(rqalsh.ExitCode(err))
	}
}

func intFlag(name string, required bool) *cli.IntFlag       { return &cli.IntFlag{Name: name, Required: required} }
func stringFlag(name string, required bool) *cli.StringFlag { return &cli.StringFlag{Name: name, Required: required} }
func float64Flag(name string, required bool) *cli.Float64Flag {
	return &cli.Float64Flag{Name: name, Required: required}
}

func mkdirFlag(path string) (string, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", rqalsh.WrapError(rqalsh.CodeIO, "create directory", path, err)
	}
	return path, nil
}

// reportRow is one line of the per-k report spec.md §6 documents:
// "k ratio io time_ms recall".
type reportRow struct {
	k      int
	ratio  float64
	io     int64
	timeMs float64
	recall float64
}

func writeReport(path string, rows []reportRow) error {
	f, err := os.Create(path)
	if err != nil {
		return rqalsh.WrapError(rqalsh.CodeIO, "create report file", path, err)
	}
	defer f.Close()

	fmt.Println("  Top-k\t\tRatio\t\tI/O\t\tTime (ms)\tRecall")
	for _, row := range rows {
		fmt.Printf("  %3d\t\t%.4f\t\t%d\t\t%.2f\t\t%.2f%%\n", row.k, row.ratio, row.io, row.timeMs, row.recall)
		if _, err := fmt.Fprintf(f, "%d\t%f\t%d\t%f\t%f\n", row.k, row.ratio, row.io, row.timeMs, row.recall); err != nil {
			return rqalsh.WrapError(rqalsh.CodeIO, "write report file", path, err)
		}
	}
	return nil
}

// searcher runs one k-FN query and reports the I/O cost it spent.
type searcher func(k int, query []float32, list *topk.MaxKList) (int64, error)

// runReport drives searchFn over every query for every k in kFNs,
// averaging ratio/io/time/recall the way original_source/afn.cc's
// search drivers do, and writes the result to outPath.
func runReport(queries [][]float32, truth []rqalsh.GroundTruthRow, searchFn searcher, outPath string) error {
	qn := len(queries)
	rows := make([]reportRow, 0, len(kFNs))

	for _, k := range kFNs {
		list := topk.NewMaxKList(k)

		var ratioSum, recallSum float64
		var ioSum int64
		start := time.Now()
		for i, q := range queries {
			list.Reset()
			io, err := searchFn(k, q, list)
			if err != nil {
				return err
			}
			ioSum += io
			recallSum += rqalsh.Recall(k, &truth[i], list)
			ratioSum += rqalsh.Ratio(k, &truth[i], list)
		}
		elapsed := time.Since(start)

		rows = append(rows, reportRow{
			k:      k,
			ratio:  ratioSum / float64(qn),
			io:     (ioSum + int64(qn) - 1) / int64(qn),
			timeMs: float64(elapsed.Milliseconds()) / float64(qn),
			recall: recallSum / float64(qn),
		})
	}
	return writeReport(outPath, rows)
}

func gtCommand(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "gt",
		Usage: "compute brute-force ground truth (-alg 0)",
		Flags: []cli.Flag{
			intFlag("n", true), intFlag("qn", true), intFlag("d", true),
			stringFlag("ds", true), stringFlag("qs", true), stringFlag("ts", true),
		},
		Before: func(c *cli.Context) error {
			if c.Int("n") <= 0 || c.Int("qn") <= 0 || c.Int("d") <= 0 {
				return rqalsh.NewError(rqalsh.CodeParamRange, "n, qn, d must be positive")
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			n, qn, d := c.Int("n"), c.Int("qn"), c.Int("d")

			start := time.Now()
			vectors, err := rqalsh.ReadTextVectors(c.String("ds"), n, d)
			if err != nil {
				return err
			}
			queries, err := rqalsh.ReadTextVectors(c.String("qs"), qn, d)
			if err != nil {
				return err
			}
			logger.Info("read dataset and query set", zap.Duration("elapsed", time.Since(start)))

			start = time.Now()
			if err := rqalsh.ComputeGroundTruth(vectors, queries, c.String("ts")); err != nil {
				return err
			}
			logger.Info("ground truth computed", zap.Int("qn", qn), zap.Duration("elapsed", time.Since(start)))
			return nil
		},
	}
}

func buildCommand(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "build an RQALSH index (-alg 3)",
		Flags: []cli.Flag{
			intFlag("n", true), intFlag("d", true), intFlag("B", true),
			intFlag("beta", true), float64Flag("delta", true), float64Flag("c", true),
			stringFlag("ds", true), stringFlag("df", true), stringFlag("of", true),
		},
		Before: validateBuildFlags,
		Action: func(c *cli.Context) error {
			n, d := c.Int("n"), c.Int("d")
			b := int32(c.Int("B"))

			vectors, err := rqalsh.ReadTextVectors(c.String("ds"), n, d)
			if err != nil {
				return err
			}

			dataFolder, err := mkdirFlag(c.String("df"))
			if err != nil {
				return err
			}
			if err := dataset.Write(vectors, d, b, dataFolder); err != nil {
				return rqalsh.WrapError(rqalsh.CodeIO, "write paged dataset", dataFolder, err)
			}

			outFolder, err := mkdirFlag(c.String("of"))
			if err != nil {
				return err
			}
			indexDir := filepath.Join(outFolder, "rqalsh")

			idx, err := rqalsh.Build(rqalsh.BuildConfig{
				N: n, D: d, B: b,
				BetaRaw: c.Int("beta"), Delta: c.Float64("delta"), C: c.Float64("c"),
			}, vectors, indexDir, logger)
			if err != nil {
				return err
			}
			defer idx.Close()

			if size, err := idx.DiskSize(); err == nil {
				logger.Info("rqalsh index built", zap.Int64("disk_bytes", size))
			}
			return nil
		},
	}
}

func validateBuildFlags(c *cli.Context) error {
	if c.Int("n") <= 0 || c.Int("d") <= 0 || c.Int("B") <= 0 || c.Int("beta") <= 0 {
		return rqalsh.NewError(rqalsh.CodeParamRange, "n, d, B, beta must be positive")
	}
	if delta := c.Float64("delta"); delta <= 0 || delta >= 1 {
		return rqalsh.NewError(rqalsh.CodeParamRange, "delta must be in (0,1)")
	}
	if c.Float64("c") <= 1 {
		return rqalsh.NewError(rqalsh.CodeParamRange, "c must be > 1")
	}
	return nil
}

func searchCommand(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "search",
		Usage: "query a built RQALSH index (-alg 4)",
		Flags: []cli.Flag{
			intFlag("qn", true), intFlag("d", true),
			stringFlag("qs", true), stringFlag("ts", true),
			stringFlag("df", true), stringFlag("of", true),
		},
		Before: func(c *cli.Context) error {
			if c.Int("qn") <= 0 || c.Int("d") <= 0 {
				return rqalsh.NewError(rqalsh.CodeParamRange, "qn, d must be positive")
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			qn, d := c.Int("qn"), c.Int("d")
			dataFolder, outFolder := c.String("df"), c.String("of")

			queries, err := rqalsh.ReadTextVectors(c.String("qs"), qn, d)
			if err != nil {
				return err
			}
			truth, err := rqalsh.ReadGroundTruth(c.String("ts"), qn)
			if err != nil {
				return err
			}

			idx, err := rqalsh.Load(filepath.Join(outFolder, "rqalsh"))
			if err != nil {
				return err
			}
			defer idx.Close()

			if _, err := mkdirFlag(outFolder); err != nil {
				return err
			}
			outPath := filepath.Join(outFolder, "rqalsh.out")

			fmt.Println("k-FN Search by RQALSH:")
			return runReport(queries, truth, func(k int, q []float32, list *topk.MaxKList) (int64, error) {
				return idx.KFN(k, q, dataFolder, list)
			}, outPath)
		},
	}
}

func buildStarCommand(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "build-star",
		Usage: "build an RQALSH* index (-alg 1)",
		Flags: []cli.Flag{
			intFlag("n", true), intFlag("d", true), intFlag("B", true),
			intFlag("L", true), intFlag("M", true),
			intFlag("beta", true), float64Flag("delta", true), float64Flag("c", true),
			stringFlag("ds", true), stringFlag("df", true), stringFlag("of", true),
		},
		Before: func(c *cli.Context) error {
			if err := validateBuildFlags(c); err != nil {
				return err
			}
			if c.Int("L") <= 0 || c.Int("M") <= 0 {
				return rqalsh.NewError(rqalsh.CodeParamRange, "L, M must be positive")
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			n, d := c.Int("n"), c.Int("d")
			b := int32(c.Int("B"))
			l, m := c.Int("L"), c.Int("M")

			vectors, err := rqalsh.ReadTextVectors(c.String("ds"), n, d)
			if err != nil {
				return err
			}

			dataFolder, err := mkdirFlag(c.String("df"))
			if err != nil {
				return err
			}
			if err := dataset.Write(vectors, d, b, dataFolder); err != nil {
				return rqalsh.WrapError(rqalsh.CodeIO, "write paged dataset", dataFolder, err)
			}

			outFolder, err := mkdirFlag(c.String("of"))
			if err != nil {
				return err
			}
			indexDir := filepath.Join(outFolder, fmt.Sprintf("rqalsh_star_L=%d_M=%d", l, m))

			si, err := rqalsh.BuildStar(rqalsh.StarBuildConfig{
				N: n, D: d, B: b, L: l, M: m,
				BetaRaw: c.Int("beta"), Delta: c.Float64("delta"), C: c.Float64("c"),
			}, vectors, indexDir, logger)
			if err != nil {
				return err
			}
			defer si.Close()

			logger.Info("rqalsh* index built", zap.Int("candidates", l*m))
			return nil
		},
	}
}

func searchStarCommand(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "search-star",
		Usage: "query a built RQALSH* index (-alg 2)",
		Flags: []cli.Flag{
			intFlag("qn", true), intFlag("d", true), intFlag("L", true), intFlag("M", true),
			stringFlag("qs", true), stringFlag("ts", true),
			stringFlag("df", true), stringFlag("of", true),
		},
		Before: func(c *cli.Context) error {
			if c.Int("qn") <= 0 || c.Int("d") <= 0 || c.Int("L") <= 0 || c.Int("M") <= 0 {
				return rqalsh.NewError(rqalsh.CodeParamRange, "qn, d, L, M must be positive")
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			qn, d := c.Int("qn"), c.Int("d")
			l, m := c.Int("L"), c.Int("M")
			dataFolder, outFolder := c.String("df"), c.String("of")

			queries, err := rqalsh.ReadTextVectors(c.String("qs"), qn, d)
			if err != nil {
				return err
			}
			truth, err := rqalsh.ReadGroundTruth(c.String("ts"), qn)
			if err != nil {
				return err
			}

			indexDir := filepath.Join(outFolder, fmt.Sprintf("rqalsh_star_L=%d_M=%d", l, m))
			si, err := rqalsh.LoadStar(indexDir)
			if err != nil {
				return err
			}
			defer si.Close()

			if _, err := mkdirFlag(outFolder); err != nil {
				return err
			}
			outPath := filepath.Join(outFolder, "rqalsh_star.out")

			fmt.Println("k-FN Search by RQALSH*:")
			return runReport(queries, truth, func(k int, q []float32, list *topk.MaxKList) (int64, error) {
				return si.KFN(k, q, dataFolder, list)
			}, outPath)
		},
	}
}

func linearCommand(logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "linear",
		Usage: "brute-force linear scan over the paged dataset (-alg 5)",
		Flags: []cli.Flag{
			intFlag("n", true), intFlag("qn", true), intFlag("d", true), intFlag("B", true),
			stringFlag("qs", true), stringFlag("ts", true),
			stringFlag("df", true), stringFlag("of", true),
		},
		Before: func(c *cli.Context) error {
			if c.Int("n") <= 0 || c.Int("qn") <= 0 || c.Int("d") <= 0 || c.Int("B") <= 0 {
				return rqalsh.NewError(rqalsh.CodeParamRange, "n, qn, d, B must be positive")
			}
			return nil
		},
		Action: func(c *cli.Context) error {
			n, qn, d := c.Int("n"), c.Int("qn"), c.Int("d")
			b := int32(c.Int("B"))
			dataFolder, outFolder := c.String("df"), c.String("of")

			queries, err := rqalsh.ReadTextVectors(c.String("qs"), qn, d)
			if err != nil {
				return err
			}
			truth, err := rqalsh.ReadGroundTruth(c.String("ts"), qn)
			if err != nil {
				return err
			}

			if _, err := mkdirFlag(outFolder); err != nil {
				return err
			}
			outPath := filepath.Join(outFolder, "linear.out")

			fmt.Println("k-FN Search by Linear Scan:")
			return runReport(queries, truth, func(k int, q []float32, list *topk.MaxKList) (int64, error) {
				return rqalsh.LinearScan(n, d, b, q, dataFolder, list)
			}, outPath)
		},
	}
}
