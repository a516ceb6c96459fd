package workflow

import (
	"path/filepath"
	"strconv"
)

// Run-directory layout.  Each bin task owns its bin directory exclusively;
// no two tasks ever write to the same path.
//
//	<runDir>/config.yaml, Makefile, template.mk
//	<runDir>/chromosomes/<chrom>/bins/<binId>/  call-task outputs
//	<runDir>/chromosomes/<chrom>/               filter-task outputs
//	<runDir>/results/                           consolidated outputs
//	<runDir>/realigned/                         merged realigned BAMs

// CompleteMarker is the completion-marker file name shared by all task
// directories.  Its presence means the task's outputs are complete and
// valid; make recipes touch it only after the task command succeeded.
const CompleteMarker = "task.complete"

// Per-bin call-task output names.
const (
	BinSNVsFile   = "somatic.snvs.unfiltered.vcf"
	BinIndelsFile = "somatic.indels.unfiltered.vcf"
	// BinWindowFile is the positional window-context companion of
	// BinIndelsFile.
	BinWindowFile = "somatic.indels.unfiltered.vcf.window"
	BinStatsFile  = "call.stats"
)

// Per-chromosome filter-task output names.
const (
	ChromSNVsFile   = "somatic.snvs.vcf"
	ChromIndelsFile = "somatic.indels.vcf"
	ChromDepthFile  = "depth.tsv"
)

// Consolidated output names, per variant class.
const (
	AllSNVsFile      = "all.somatic.snvs.vcf"
	PassedSNVsFile   = "passed.somatic.snvs.vcf"
	AllIndelsFile    = "all.somatic.indels.vcf"
	PassedIndelsFile = "passed.somatic.indels.vcf"
)

// ConfigPath returns the persisted configuration path.
func (c *Config) ConfigPath() string { return filepath.Join(c.Derived.RunDir, "config.yaml") }

// MakefilePath returns the enumerated-form Makefile path.
func (c *Config) MakefilePath() string { return filepath.Join(c.Derived.RunDir, "Makefile") }

// TemplateMakefilePath returns the templated-form Makefile path.
func (c *Config) TemplateMakefilePath() string {
	return filepath.Join(c.Derived.RunDir, "template.mk")
}

// ChromDir returns the directory owned by chrom's filter task.
func (c *Config) ChromDir(chrom string) string {
	return filepath.Join(c.Derived.RunDir, "chromosomes", chrom)
}

// BinDir returns the directory owned by one bin's call task.
func (c *Config) BinDir(chrom string, bin int) string {
	return filepath.Join(c.ChromDir(chrom), "bins", strconv.Itoa(bin))
}

// ResultsDir returns the consolidated-output directory.
func (c *Config) ResultsDir() string { return filepath.Join(c.Derived.RunDir, "results") }

// RealignedDir returns the merged realigned-BAM directory.
func (c *Config) RealignedDir() string { return filepath.Join(c.Derived.RunDir, "realigned") }

// CallMarker returns the completion-marker path of one call task.
func (c *Config) CallMarker(chrom string, bin int) string {
	return filepath.Join(c.BinDir(chrom, bin), CompleteMarker)
}

// FilterMarker returns the completion-marker path of one filter task.
func (c *Config) FilterMarker(chrom string) string {
	return filepath.Join(c.ChromDir(chrom), CompleteMarker)
}

// FinishMarker returns the completion-marker path of the finish task.
func (c *Config) FinishMarker() string {
	return filepath.Join(c.ResultsDir(), CompleteMarker)
}

// BinRealignedBAM returns one bin's realigned-BAM output path for a sample
// ("normal" or "tumor").
func (c *Config) BinRealignedBAM(chrom string, bin int, sample string) string {
	return filepath.Join(c.BinDir(chrom, bin), sample+".realigned.bam")
}

// MergedRealignedBAM returns the genome-wide merged realigned-BAM path for a
// sample.
func (c *Config) MergedRealignedBAM(sample string) string {
	return filepath.Join(c.RealignedDir(), sample+".realigned.bam")
}
