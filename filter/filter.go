// Package filter implements the per-chromosome result filter: it aggregates
// the statistics of every bin of one chromosome, derives the depth-filter
// threshold, and streams the chromosome's unfiltered SNV and indel records
// through the configured quality/context filters.
//
// A record's outcome is the union of all failing filter names; the filters
// are evaluated independently, so their order never changes the outcome.
// The annotated per-chromosome streams are written through a staging file
// and renamed into place only when complete: a failed filter run leaves no
// partial chromosome output behind.
package filter

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/genome-vendor/strelka/binning"
	"github.com/genome-vendor/strelka/vcf"
	"github.com/genome-vendor/strelka/workflow"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// Names of the somatic record filters.
const (
	FilterDepth   = "DP"
	FilterBCNoise = "BCNoise"
	FilterSpanDel = "SpanDel"
	FilterQSSRef  = "QSS_ref"
	FilterRepeat  = "Repeat"
	FilterIHpol   = "iHpol"
	FilterQSIRef  = "QSI_ref"
)

// Sample column names required in every per-bin VCF.
const (
	normalSample = "NORMAL"
	tumorSample  = "TUMOR"
)

// Chromosome runs the result filter for one chromosome.  All of the
// chromosome's call tasks must have completed; the scheduler guarantees
// this through the task graph's dependency edges.
func Chromosome(ctx context.Context, cfg *workflow.Config, chrom string) error {
	bins, err := cfg.ChromBins(chrom)
	if err != nil {
		return err
	}
	var est *DepthEstimate
	if !cfg.User.SkipDepthFilters {
		if est, err = EstimateChromDepth(ctx, cfg, chrom, bins); err != nil {
			return err
		}
		log.Printf("filter: %s: maxDepth %s over %d bins", chrom, formatDepth(est.MaxDepth), len(bins))
		if err = writeDepthTSV(ctx, filepath.Join(cfg.ChromDir(chrom), workflow.ChromDepthFile), est); err != nil {
			return err
		}
	}
	return traverse.Each(2, func(class int) error {
		if class == 0 {
			return runSNVPass(ctx, cfg, chrom, bins, est)
		}
		return runIndelPass(ctx, cfg, chrom, bins, est)
	})
}

type sampleCols struct {
	normal int
	tumor  int
}

func sampleColsOf(h *vcf.Header, path string) (sampleCols, error) {
	cols := sampleCols{normal: h.SampleCol(normalSample), tumor: h.SampleCol(tumorSample)}
	if cols.normal < 0 {
		return cols, fmt.Errorf("filter: %s: missing expected sample %s", path, normalSample)
	}
	if cols.tumor < 0 {
		return cols, fmt.Errorf("filter: %s: missing expected sample %s", path, tumorSample)
	}
	return cols, nil
}

// chromWriter stages one per-chromosome output stream and renames it into
// place only when fully written and synced.
type chromWriter struct {
	path string
	tmp  *os.File
	w    *vcf.Writer
	done bool
}

func newChromWriter(dir, name string) (*chromWriter, error) {
	tmp, err := ioutil.TempFile(dir, "."+name+".*")
	if err != nil {
		return nil, err
	}
	return &chromWriter{path: filepath.Join(dir, name), tmp: tmp, w: vcf.NewWriter(tmp)}, nil
}

// finish publishes the staged stream.
func (cw *chromWriter) finish() error {
	if err := cw.w.Flush(); err != nil {
		return err
	}
	if err := cw.tmp.Sync(); err != nil {
		return err
	}
	if err := cw.tmp.Close(); err != nil {
		return err
	}
	cw.done = true
	return os.Rename(cw.tmp.Name(), cw.path)
}

// abort discards the staged stream; a no-op after finish.
func (cw *chromWriter) abort() {
	if cw.done {
		return
	}
	_ = cw.tmp.Close()
	_ = os.Remove(cw.tmp.Name())
}

func runSNVPass(ctx context.Context, cfg *workflow.Config, chrom string, bins []binning.Bin, est *DepthEstimate) error {
	cw, err := newChromWriter(cfg.ChromDir(chrom), workflow.ChromSNVsFile)
	if err != nil {
		return err
	}
	defer cw.abort()
	for _, bin := range bins {
		path := filepath.Join(cfg.BinDir(chrom, bin.ID), workflow.BinSNVsFile)
		if err = filterSNVBin(ctx, cfg, cw, path, chrom, bin.ID == 0, est); err != nil {
			return err
		}
	}
	return cw.finish()
}

func filterSNVBin(ctx context.Context, cfg *workflow.Config, cw *chromWriter, path, chrom string, first bool, est *DepthEstimate) (err error) {
	fr, err := vcf.OpenFile(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if e := fr.Close(); e != nil && err == nil {
			err = e
		}
	}()
	cols, err := sampleColsOf(fr.Header(), path)
	if err != nil {
		return err
	}
	if first {
		if err = cw.w.WriteHeader(snvHeader(fr.Header(), chrom, cfg, est)); err != nil {
			return err
		}
	}
	for {
		rec, e := fr.Read()
		if e == io.EOF {
			return nil
		}
		if e != nil {
			return e
		}
		if err = applySNVFilters(rec, cols, cfg, est); err != nil {
			return fmt.Errorf("%s: %v", path, err)
		}
		if err = cw.w.WriteRecord(rec); err != nil {
			return err
		}
	}
}

func runIndelPass(ctx context.Context, cfg *workflow.Config, chrom string, bins []binning.Bin, est *DepthEstimate) error {
	cw, err := newChromWriter(cfg.ChromDir(chrom), workflow.ChromIndelsFile)
	if err != nil {
		return err
	}
	defer cw.abort()
	for _, bin := range bins {
		binDir := cfg.BinDir(chrom, bin.ID)
		if err = filterIndelBin(ctx, cfg, cw,
			filepath.Join(binDir, workflow.BinIndelsFile),
			filepath.Join(binDir, workflow.BinWindowFile),
			chrom, bin.ID == 0, est); err != nil {
			return err
		}
	}
	return cw.finish()
}

func filterIndelBin(ctx context.Context, cfg *workflow.Config, cw *chromWriter, path, windowPath, chrom string, first bool, est *DepthEstimate) (err error) {
	fr, err := vcf.OpenFile(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if e := fr.Close(); e != nil && err == nil {
			err = e
		}
	}()
	wf, err := openWindowFile(ctx, windowPath)
	if err != nil {
		return err
	}
	defer func() {
		if e := wf.Close(); e != nil && err == nil {
			err = e
		}
	}()
	cols, err := sampleColsOf(fr.Header(), path)
	if err != nil {
		return err
	}
	if first {
		if err = cw.w.WriteHeader(indelHeader(fr.Header(), chrom, cfg, est)); err != nil {
			return err
		}
	}
	for {
		rec, e := fr.Read()
		if e == io.EOF {
			return nil
		}
		if e != nil {
			return e
		}
		pos, e := rec.Pos()
		if e != nil {
			return fmt.Errorf("%s: %v", path, e)
		}
		win, e := wf.match(rec.Chrom(), pos)
		if e != nil {
			return e
		}
		if err = applyIndelFilters(rec, cols, cfg, est, win); err != nil {
			return fmt.Errorf("%s: %v", path, err)
		}
		if err = cw.w.WriteRecord(rec); err != nil {
			return err
		}
	}
}
