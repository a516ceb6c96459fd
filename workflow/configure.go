package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/genome-vendor/strelka/binning"
	"github.com/genome-vendor/strelka/genome"
	"github.com/grailbio/base/log"
)

// ConfigureParams are the inputs to Configure.
type ConfigureParams struct {
	NormalBAM    string
	TumorBAM     string
	Reference    string // FASTA; <Reference>.fai must exist
	RunDir       string
	CallerBin    string
	AlignToolBin string
	WorkflowBin  string
	CmdLine      string
	Opts         Options
}

// Configure validates the analysis inputs, builds the immutable run
// configuration, creates the run-directory tree, and persists config.yaml.
//
// The chromosome consistency check runs to completion before any directory
// is created: a mismatched input leaves no trace on disk.
func Configure(ctx context.Context, params ConfigureParams) (*Config, error) {
	for _, in := range []struct{ label, path string }{
		{"normal BAM", params.NormalBAM},
		{"tumor BAM", params.TumorBAM},
		{"reference", params.Reference},
		{"reference index", params.Reference + ".fai"},
	} {
		if _, err := os.Stat(in.path); err != nil {
			return nil, fmt.Errorf("workflow.Configure: %s: %v", in.label, err)
		}
	}

	normalInfos, err := genome.ReadBAMInfo(ctx, params.NormalBAM)
	if err != nil {
		return nil, err
	}
	tumorInfos, err := genome.ReadBAMInfo(ctx, params.TumorBAM)
	if err != nil {
		return nil, err
	}
	faiInfos, err := genome.ReadFaiInfo(ctx, params.Reference+".fai")
	if err != nil {
		return nil, err
	}
	if err := genome.Validate(params.NormalBAM, normalInfos, params.TumorBAM, tumorInfos); err != nil {
		return nil, err
	}
	if err := genome.Validate(params.NormalBAM, normalInfos, params.Reference+".fai", faiInfos); err != nil {
		return nil, err
	}

	known := map[string]int64{}
	if !params.Opts.SkipDepthFilters {
		log.Printf("workflow.Configure: counting non-N reference bases")
		if known, err = genome.CountKnownBases(ctx, params.Reference); err != nil {
			return nil, err
		}
	} else {
		// Depth filtering is off; known lengths are unused, so fall back to
		// the full lengths rather than scanning the reference.
		for _, info := range normalInfos {
			known[info.Name] = info.Length
		}
	}
	chroms, err := genome.Build(normalInfos, known)
	if err != nil {
		return nil, err
	}

	cfg := &Config{User: params.Opts}
	d := &cfg.Derived
	if d.NormalBAM, err = filepath.Abs(params.NormalBAM); err != nil {
		return nil, err
	}
	if d.TumorBAM, err = filepath.Abs(params.TumorBAM); err != nil {
		return nil, err
	}
	if d.Reference, err = filepath.Abs(params.Reference); err != nil {
		return nil, err
	}
	if d.RunDir, err = filepath.Abs(params.RunDir); err != nil {
		return nil, err
	}
	d.CallerBin = params.CallerBin
	d.AlignToolBin = params.AlignToolBin
	d.WorkflowBin = params.WorkflowBin
	d.CmdLine = params.CmdLine
	d.Chroms = make(map[string]ChromInfo, len(chroms))
	for _, chrom := range chroms {
		d.ChromOrder = append(d.ChromOrder, chrom.Name)
		d.Chroms[chrom.Name] = ChromInfo{Length: chrom.Length, KnownLength: chrom.KnownLength}
		d.GenomeKnownSize += chrom.KnownLength
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	// All gates passed; now create the tree and persist the configuration.
	for _, chrom := range d.ChromOrder {
		for _, bin := range binning.ComputeBins(chrom, d.Chroms[chrom].Length, cfg.User.BinSize) {
			if err = os.MkdirAll(cfg.BinDir(chrom, bin.ID), 0755); err != nil {
				return nil, err
			}
		}
	}
	if err = os.MkdirAll(cfg.ResultsDir(), 0755); err != nil {
		return nil, err
	}
	if cfg.User.IsWriteRealignedBam {
		if err = os.MkdirAll(cfg.RealignedDir(), 0755); err != nil {
			return nil, err
		}
	}
	if err = cfg.Save(cfg.ConfigPath()); err != nil {
		return nil, err
	}
	log.Printf("workflow.Configure: %d chromosomes, bin size %d, run dir %s",
		len(d.ChromOrder), cfg.User.BinSize, d.RunDir)
	return cfg, nil
}

// ChromBins recomputes the bin list of one chromosome from the persisted
// configuration.  Bins are never persisted; recomputation keeps every stage
// in agreement with the task graph.
func (c *Config) ChromBins(chrom string) ([]binning.Bin, error) {
	info, ok := c.Derived.Chroms[chrom]
	if !ok {
		return nil, fmt.Errorf("workflow: unknown chromosome %q (have: %s)", chrom, strings.Join(c.Derived.ChromOrder, " "))
	}
	return binning.ComputeBins(chrom, info.Length, c.User.BinSize), nil
}
