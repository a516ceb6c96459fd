// Package consolidate implements the finish stage: it merges the
// per-chromosome filtered VCF streams into genome-wide artifacts and, when
// realigned output was requested, merges the per-bin realigned BAMs through
// the external alignment utility.
//
// For each variant class the consolidator produces two files in the results
// directory: the full record set and the PASS-only subset.  Records are
// concatenated strictly in the canonical chromosome order, so consolidated
// output is deterministic regardless of the order the filter tasks finished
// in.  Both files are staged and renamed into place only when complete.
package consolidate

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/genome-vendor/strelka/runner"
	"github.com/genome-vendor/strelka/vcf"
	"github.com/genome-vendor/strelka/workflow"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

const (
	cmdlinePrefix  = "##cmdline="
	maxDepthPrefix = "##maxDepth_"
)

// variantClass binds a per-chromosome input name to its two consolidated
// output names.
type variantClass struct {
	label     string
	chromFile string
	allFile   string
	passFile  string
}

var classes = []variantClass{
	{"snvs", workflow.ChromSNVsFile, workflow.AllSNVsFile, workflow.PassedSNVsFile},
	{"indels", workflow.ChromIndelsFile, workflow.AllIndelsFile, workflow.PassedIndelsFile},
}

// Results consolidates every filter task's output into the results
// directory.  The VCF merges of the two variant classes and (when enabled)
// the per-sample realigned-BAM merges are independent and run concurrently.
func Results(ctx context.Context, cfg *workflow.Config, run runner.Runner) error {
	jobs := make([]func() error, 0, len(classes)+2)
	for _, cl := range classes {
		cl := cl
		jobs = append(jobs, func() error { return mergeClass(ctx, cfg, cl) })
	}
	if cfg.User.IsWriteRealignedBam {
		for _, sample := range []string{"normal", "tumor"} {
			sample := sample
			jobs = append(jobs, func() error { return mergeRealigned(ctx, cfg, run, sample) })
		}
	}
	return traverse.Each(len(jobs), func(i int) error { return jobs[i]() })
}

// mergeClass concatenates one variant class across all chromosomes.
func mergeClass(ctx context.Context, cfg *workflow.Config, cl variantClass) (err error) {
	header, err := mergedHeader(ctx, cfg, cl)
	if err != nil {
		return err
	}

	all, err := newStagedVCF(cfg.ResultsDir(), cl.allFile)
	if err != nil {
		return err
	}
	defer all.abort()
	passed, err := newStagedVCF(cfg.ResultsDir(), cl.passFile)
	if err != nil {
		return err
	}
	defer passed.abort()

	if err = all.w.WriteHeader(header); err != nil {
		return err
	}
	if err = passed.w.WriteHeader(header); err != nil {
		return err
	}
	var total, pass int
	for _, chrom := range cfg.Derived.ChromOrder {
		path := filepath.Join(cfg.ChromDir(chrom), cl.chromFile)
		fr, e := vcf.OpenFile(ctx, path)
		if e != nil {
			return e
		}
		for {
			line, e := fr.ReadLine()
			if e == io.EOF {
				break
			}
			if e != nil {
				_ = fr.Close()
				return e
			}
			total++
			if err = all.w.WriteLine(line); err != nil {
				_ = fr.Close()
				return err
			}
			if vcf.LinePasses(line) {
				pass++
				if err = passed.w.WriteLine(line); err != nil {
					_ = fr.Close()
					return err
				}
			}
		}
		if err = fr.Close(); err != nil {
			return err
		}
	}

	if err = all.finish(); err != nil {
		return err
	}
	if err = passed.finish(); err != nil {
		return err
	}
	log.Printf("consolidate: %s: %d records, %d passed, %d chromosomes",
		cl.label, total, pass, len(cfg.Derived.ChromOrder))
	return nil
}

// mergedHeader builds the genome-wide header for one variant class: the first
// chromosome's meta lines, with stale cmdline annotations replaced by this
// run's invocation and every chromosome's depth-threshold annotation folded
// in, in canonical order.
func mergedHeader(ctx context.Context, cfg *workflow.Config, cl variantClass) (*vcf.Header, error) {
	out := &vcf.Header{}
	maxDepth := make([]string, 0, len(cfg.Derived.ChromOrder))
	for i, chrom := range cfg.Derived.ChromOrder {
		path := filepath.Join(cfg.ChromDir(chrom), cl.chromFile)
		fr, err := vcf.OpenFile(ctx, path)
		if err != nil {
			return nil, err
		}
		h := fr.Header()
		if err = fr.Close(); err != nil {
			return nil, err
		}
		if i == 0 {
			out.Columns = h.Columns
			for _, m := range h.Meta {
				if strings.HasPrefix(m, cmdlinePrefix) || strings.HasPrefix(m, maxDepthPrefix) {
					continue
				}
				out.Meta = append(out.Meta, m)
			}
			out.Meta = append(out.Meta, cmdlinePrefix+cfg.Derived.CmdLine)
		} else if h.ColumnLine() != out.ColumnLine() {
			return nil, fmt.Errorf("consolidate: %s: sample columns disagree with %s", path, cfg.Derived.ChromOrder[0])
		}
		found := false
		for _, m := range h.Meta {
			if strings.HasPrefix(m, maxDepthPrefix+chrom+"=") {
				maxDepth = append(maxDepth, m)
				found = true
				break
			}
		}
		if !cfg.User.SkipDepthFilters && !found {
			return nil, fmt.Errorf("consolidate: %s: missing %s%s annotation", path, maxDepthPrefix, chrom)
		}
	}
	out.Meta = append(out.Meta, maxDepth...)
	return out, nil
}

// stagedVCF writes one consolidated artifact through a staging file and
// renames it into place only when fully written and synced.
type stagedVCF struct {
	path string
	tmp  *os.File
	w    *vcf.Writer
	done bool
}

func newStagedVCF(dir, name string) (*stagedVCF, error) {
	tmp, err := ioutil.TempFile(dir, "."+name+".*")
	if err != nil {
		return nil, err
	}
	return &stagedVCF{path: filepath.Join(dir, name), tmp: tmp, w: vcf.NewWriter(tmp)}, nil
}

func (s *stagedVCF) finish() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if err := s.tmp.Sync(); err != nil {
		return err
	}
	if err := s.tmp.Close(); err != nil {
		return err
	}
	s.done = true
	return os.Rename(s.tmp.Name(), s.path)
}

func (s *stagedVCF) abort() {
	if s.done {
		return
	}
	_ = s.tmp.Close()
	_ = os.Remove(s.tmp.Name())
}
