package filter

import (
	"bufio"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/genome-vendor/strelka/binning"
	"github.com/genome-vendor/strelka/workflow"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// Depth-threshold computation.  Each call task leaves a free-text statistics
// report in its bin directory; the line tagged NORMAL_COVERAGE summarizes
// the normal sample's coverage over that bin as whitespace-separated
// "key: value" tokens, e.g.
//
//	NORMAL_COVERAGE sample_size: 399561 mean: 41.8 sd: 12.1
//
// The chromosome's mean coverage is sum(sampleSize*mean) over all bins
// divided by the chromosome's known (non-N) length, and the depth-filter
// threshold is that mean times the configured multiple.

const coverageTag = "NORMAL_COVERAGE"

// BinCoverage is the normal-sample coverage summary of one bin.
type BinCoverage struct {
	Bin        int
	SampleSize int64
	Mean       float64
}

// DepthEstimate is the per-chromosome depth-filter threshold and the bin
// statistics it was derived from.
type DepthEstimate struct {
	Bins     []BinCoverage
	MaxDepth float64
}

func parseBinStats(ctx context.Context, path string, bin int) (cov BinCoverage, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return cov, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	cov.Bin = bin
	scanner := bufio.NewScanner(in.Reader(ctx))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || fields[0] != coverageTag {
			continue
		}
		var haveSize, haveMean bool
		for i := 1; i+1 < len(fields); i += 2 {
			switch fields[i] {
			case "sample_size:":
				if cov.SampleSize, err = strconv.ParseInt(fields[i+1], 10, 64); err != nil {
					return cov, fmt.Errorf("filter: %s: bad sample_size %q", path, fields[i+1])
				}
				haveSize = true
			case "mean:":
				if cov.Mean, err = strconv.ParseFloat(fields[i+1], 64); err != nil {
					return cov, fmt.Errorf("filter: %s: bad mean %q", path, fields[i+1])
				}
				haveMean = true
			}
		}
		if !haveSize || !haveMean {
			return cov, fmt.Errorf("filter: %s: %s line lacks sample_size/mean", path, coverageTag)
		}
		return cov, scanner.Err()
	}
	if err = scanner.Err(); err != nil {
		return cov, err
	}
	return cov, fmt.Errorf("filter: %s: no %s line in statistics report", path, coverageTag)
}

// EstimateChromDepth aggregates every bin's coverage summary into the
// chromosome's depth-filter threshold.  A bin with zero sample size
// contributes zero coverage.
func EstimateChromDepth(ctx context.Context, cfg *workflow.Config, chrom string, bins []binning.Bin) (*DepthEstimate, error) {
	info := cfg.Derived.Chroms[chrom]
	if info.KnownLength <= 0 {
		return nil, fmt.Errorf("filter: chromosome %s has no known (non-N) bases; cannot compute depth threshold", chrom)
	}
	est := &DepthEstimate{}
	var coverage float64
	for _, bin := range bins {
		path := filepath.Join(cfg.BinDir(chrom, bin.ID), workflow.BinStatsFile)
		cov, err := parseBinStats(ctx, path, bin.ID)
		if err != nil {
			return nil, err
		}
		est.Bins = append(est.Bins, cov)
		coverage += float64(cov.SampleSize) * cov.Mean
	}
	est.MaxDepth = cfg.User.DepthFilterMultiple * coverage / float64(info.KnownLength)
	return est, nil
}

// formatDepth renders a depth value the way it is embedded in VCF headers
// and the diagnostics TSV.
func formatDepth(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

// writeDepthTSV writes the per-chromosome depth diagnostics file.
func writeDepthTSV(ctx context.Context, path string, est *DepthEstimate) (err error) {
	var out file.File
	if out, err = file.Create(ctx, path); err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w := tsv.NewWriter(out.Writer(ctx))
	w.WriteString("#bin")
	w.WriteString("sample_size")
	w.WriteString("mean")
	if err = w.EndLine(); err != nil {
		return err
	}
	for _, cov := range est.Bins {
		w.WriteString(strconv.Itoa(cov.Bin))
		w.WriteInt64(cov.SampleSize)
		w.WriteString(strconv.FormatFloat(cov.Mean, 'f', -1, 64))
		if err = w.EndLine(); err != nil {
			return err
		}
	}
	w.WriteString("#maxDepth")
	w.WriteString(formatDepth(est.MaxDepth))
	if err = w.EndLine(); err != nil {
		return err
	}
	return w.Flush()
}
