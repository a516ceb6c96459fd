// Package workflow holds the run configuration and the run-directory layout
// contract.
//
// A Config is built exactly once, at configure time, and is immutable
// thereafter: every later stage (the external caller's bin tasks, the
// per-chromosome filter tasks, the finish task) re-reads the same persisted
// file and sees the same values.  The user namespace carries the scalar
// options the operator may set; the derived namespace carries everything the
// configure step computed (absolute paths, chromosome dictionary, canonical
// chromosome order).
package workflow

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/file"
	yaml "gopkg.in/yaml.v2"
)

// Options is the user namespace of the run configuration.
type Options struct {
	BinSize                            int64   `yaml:"binSize"`
	MinTier1Mapq                       int     `yaml:"minTier1Mapq"`
	SSNVPrior                          float64 `yaml:"ssnvPrior"`
	SIndelPrior                        float64 `yaml:"sindelPrior"`
	SSNVNoise                          float64 `yaml:"ssnvNoise"`
	SIndelNoise                        float64 `yaml:"sindelNoise"`
	SSNVQualityLowerBound              int     `yaml:"ssnvQualityLowerBound"`
	SIndelQualityLowerBound            int     `yaml:"sindelQualityLowerBound"`
	SkipDepthFilters                   bool    `yaml:"skipDepthFilters"`
	DepthFilterMultiple                float64 `yaml:"depthFilterMultiple"`
	SNVMaxFilteredBasecallFrac         float64 `yaml:"snvMaxFilteredBasecallFrac"`
	SNVMaxSpanningDeletionFrac         float64 `yaml:"snvMaxSpanningDeletionFrac"`
	IndelMaxRefRepeat                  int     `yaml:"indelMaxRefRepeat"`
	IndelMaxIntHpolLength              int     `yaml:"indelMaxIntHpolLength"`
	IndelMaxWindowFilteredBasecallFrac float64 `yaml:"indelMaxWindowFilteredBasecallFrac"`
	IndelWindowSize                    int     `yaml:"indelWindowSize"`
	IsWriteRealignedBam                bool    `yaml:"isWriteRealignedBam"`
	ExtraCallerArgs                    string  `yaml:"extraCallerArgs"`
}

// DefaultOptions are the stock thresholds for whole-genome tumor/normal
// runs.
var DefaultOptions = Options{
	BinSize:                            25000000,
	MinTier1Mapq:                       20,
	SSNVPrior:                          0.000001,
	SIndelPrior:                        0.000001,
	SSNVNoise:                          0.0000005,
	SIndelNoise:                        0.0000001,
	SSNVQualityLowerBound:              15,
	SIndelQualityLowerBound:            30,
	SkipDepthFilters:                   false,
	DepthFilterMultiple:                3.0,
	SNVMaxFilteredBasecallFrac:         0.4,
	SNVMaxSpanningDeletionFrac:         0.75,
	IndelMaxRefRepeat:                  8,
	IndelMaxIntHpolLength:              14,
	IndelMaxWindowFilteredBasecallFrac: 0.3,
	IndelWindowSize:                    50,
	IsWriteRealignedBam:                false,
}

// ChromInfo is the per-chromosome entry of the derived namespace.
type ChromInfo struct {
	Length      int64 `yaml:"length"`
	KnownLength int64 `yaml:"knownLength"`
}

// Derived is the configuration namespace computed at configure time.
type Derived struct {
	NormalBAM    string `yaml:"normalBam"`
	TumorBAM     string `yaml:"tumorBam"`
	Reference    string `yaml:"reference"`
	RunDir       string `yaml:"runDir"`
	CallerBin    string `yaml:"callerBin"`
	AlignToolBin string `yaml:"alignToolBin"`
	WorkflowBin  string `yaml:"workflowBin"`
	// CmdLine is the configure invocation, propagated into the consolidated
	// VCF headers.
	CmdLine string `yaml:"cmdline"`
	// ChromOrder is the canonical chromosome order (alignment header order).
	ChromOrder      []string             `yaml:"chromOrder"`
	Chroms          map[string]ChromInfo `yaml:"chroms"`
	GenomeKnownSize int64                `yaml:"genomeKnownSize"`
}

// Config is the complete, immutable run configuration.
type Config struct {
	User    Options `yaml:"user"`
	Derived Derived `yaml:"derived"`
}

// Validate checks that every required key in both namespaces is present and
// well-formed.  All missing or malformed keys are reported together,
// enumerated by name.
func (c *Config) Validate() error {
	var bad []string
	u := &c.User
	if u.BinSize <= 0 {
		bad = append(bad, "user.binSize")
	}
	if u.MinTier1Mapq < 0 {
		bad = append(bad, "user.minTier1Mapq")
	}
	if u.SSNVPrior <= 0 {
		bad = append(bad, "user.ssnvPrior")
	}
	if u.SIndelPrior <= 0 {
		bad = append(bad, "user.sindelPrior")
	}
	if u.SSNVNoise <= 0 {
		bad = append(bad, "user.ssnvNoise")
	}
	if u.SIndelNoise <= 0 {
		bad = append(bad, "user.sindelNoise")
	}
	if u.SSNVQualityLowerBound < 0 {
		bad = append(bad, "user.ssnvQualityLowerBound")
	}
	if u.SIndelQualityLowerBound < 0 {
		bad = append(bad, "user.sindelQualityLowerBound")
	}
	if !u.SkipDepthFilters && u.DepthFilterMultiple <= 0 {
		bad = append(bad, "user.depthFilterMultiple")
	}
	if u.SNVMaxFilteredBasecallFrac <= 0 {
		bad = append(bad, "user.snvMaxFilteredBasecallFrac")
	}
	if u.SNVMaxSpanningDeletionFrac <= 0 {
		bad = append(bad, "user.snvMaxSpanningDeletionFrac")
	}
	if u.IndelMaxRefRepeat <= 0 {
		bad = append(bad, "user.indelMaxRefRepeat")
	}
	if u.IndelMaxIntHpolLength <= 0 {
		bad = append(bad, "user.indelMaxIntHpolLength")
	}
	if u.IndelMaxWindowFilteredBasecallFrac <= 0 {
		bad = append(bad, "user.indelMaxWindowFilteredBasecallFrac")
	}
	if u.IndelWindowSize <= 0 {
		bad = append(bad, "user.indelWindowSize")
	}
	d := &c.Derived
	if d.NormalBAM == "" {
		bad = append(bad, "derived.normalBam")
	}
	if d.TumorBAM == "" {
		bad = append(bad, "derived.tumorBam")
	}
	if d.Reference == "" {
		bad = append(bad, "derived.reference")
	}
	if d.RunDir == "" {
		bad = append(bad, "derived.runDir")
	}
	if d.CallerBin == "" {
		bad = append(bad, "derived.callerBin")
	}
	if d.WorkflowBin == "" {
		bad = append(bad, "derived.workflowBin")
	}
	if c.User.IsWriteRealignedBam && d.AlignToolBin == "" {
		bad = append(bad, "derived.alignToolBin")
	}
	if len(d.ChromOrder) == 0 {
		bad = append(bad, "derived.chromOrder")
	}
	for _, chrom := range d.ChromOrder {
		info, ok := d.Chroms[chrom]
		if !ok || info.Length <= 0 {
			bad = append(bad, "derived.chroms."+chrom)
		}
	}
	if !u.SkipDepthFilters && d.GenomeKnownSize <= 0 {
		bad = append(bad, "derived.genomeKnownSize")
	}
	if len(bad) != 0 {
		return fmt.Errorf("workflow: missing or malformed configuration keys: %s", strings.Join(bad, ", "))
	}
	return nil
}

// Load reads and validates a persisted configuration.
func Load(ctx context.Context, path string) (cfg *Config, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	data, err := ioutil.ReadAll(in.Reader(ctx))
	if err != nil {
		return nil, err
	}
	cfg = &Config{}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("workflow: %s: %v", path, err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return cfg, nil
}

// Save persists the configuration atomically (temp file in the same
// directory, then a single rename).
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	tmp, err := ioutil.TempFile(filepath.Dir(path), ".config*.yaml")
	if err != nil {
		return err
	}
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
