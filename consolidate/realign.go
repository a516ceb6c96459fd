package consolidate

import (
	"context"
	"fmt"

	"github.com/genome-vendor/strelka/runner"
	"github.com/genome-vendor/strelka/workflow"
	"github.com/grailbio/base/log"
)

// mergeRealigned merges one sample's per-bin realigned BAMs into a single
// genome-wide BAM and indexes it, both through the external alignment
// utility.  The utility's documented merge behavior takes the first input's
// header as the template, so inputs are listed in canonical chromosome and
// bin order.
func mergeRealigned(ctx context.Context, cfg *workflow.Config, run runner.Runner, sample string) error {
	tool := cfg.Derived.AlignToolBin
	if tool == "" {
		return fmt.Errorf("consolidate: realigned output enabled but no alignment tool configured")
	}
	var inputs []string
	for _, chrom := range cfg.Derived.ChromOrder {
		bins, err := cfg.ChromBins(chrom)
		if err != nil {
			return err
		}
		for _, bin := range bins {
			inputs = append(inputs, cfg.BinRealignedBAM(chrom, bin.ID, sample))
		}
	}
	out := cfg.MergedRealignedBAM(sample)
	merge := runner.Cmd{Path: tool, Args: append([]string{"merge", "-f", out}, inputs...)}
	if _, err := run.Run(ctx, merge); err != nil {
		return err
	}
	index := runner.Cmd{Path: tool, Args: []string{"index", out}}
	if _, err := run.Run(ctx, index); err != nil {
		return err
	}
	log.Printf("consolidate: %s: merged %d realigned BAMs into %s", sample, len(inputs), out)
	return nil
}
