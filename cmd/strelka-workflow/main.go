// Command strelka-workflow configures and drives a matched tumor/normal
// somatic variant-calling run.
//
// "configure" validates the analysis inputs, lays out the run directory, and
// writes config.yaml plus the Makefiles that any make-compatible scheduler
// can execute.  The generated recipes invoke this same binary's "filter" and
// "finish" subcommands; "status" reports which tasks a re-invocation of make
// would run.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/genome-vendor/strelka/consolidate"
	"github.com/genome-vendor/strelka/filter"
	"github.com/genome-vendor/strelka/runner"
	"github.com/genome-vendor/strelka/taskgraph"
	"github.com/genome-vendor/strelka/workflow"
	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/vcontext"
	"v.io/x/lib/cmdline"
)

func newCmdConfigure() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "configure",
		Short: "Validate inputs and create the run directory",
	}
	params := workflow.ConfigureParams{Opts: workflow.DefaultOptions}
	cmd.Flags.StringVar(&params.NormalBAM, "normal-bam", "", "Normal-sample alignment file (required)")
	cmd.Flags.StringVar(&params.TumorBAM, "tumor-bam", "", "Tumor-sample alignment file (required)")
	cmd.Flags.StringVar(&params.Reference, "reference", "", "Reference FASTA; its .fai index must exist (required)")
	cmd.Flags.StringVar(&params.RunDir, "run-dir", "", "Analysis run directory to create (required)")
	cmd.Flags.StringVar(&params.CallerBin, "caller-bin", "", "Path to the variant-calling engine executable (required)")
	cmd.Flags.StringVar(&params.AlignToolBin, "align-tool-bin", "", "Path to the alignment utility used to merge realigned output")
	cmd.Flags.StringVar(&params.WorkflowBin, "workflow-bin", "", "Path recorded for this binary in generated recipes; defaults to the running executable")
	cmd.Flags.Int64Var(&params.Opts.BinSize, "bin-size", params.Opts.BinSize, "Genome partition bin size in bases")
	cmd.Flags.BoolVar(&params.Opts.SkipDepthFilters, "skip-depth-filters", params.Opts.SkipDepthFilters, "Disable depth filtration (exomes and other targeted sequencing)")
	cmd.Flags.Float64Var(&params.Opts.DepthFilterMultiple, "depth-filter-multiple", params.Opts.DepthFilterMultiple, "Depth filter threshold as a multiple of the chromosomal mean")
	cmd.Flags.IntVar(&params.Opts.MinTier1Mapq, "min-tier1-mapq", params.Opts.MinTier1Mapq, "Minimum tier-1 mapping quality passed to the caller")
	cmd.Flags.BoolVar(&params.Opts.IsWriteRealignedBam, "write-realigned-bam", params.Opts.IsWriteRealignedBam, "Have the caller emit realigned BAMs, merged genome-wide at finish")
	cmd.Flags.StringVar(&params.Opts.ExtraCallerArgs, "extra-caller-args", "", "Extra arguments appended to every caller invocation")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return fmt.Errorf("configure takes no positional arguments, got %v", argv)
		}
		for _, req := range []struct{ flag, val string }{
			{"-normal-bam", params.NormalBAM},
			{"-tumor-bam", params.TumorBAM},
			{"-reference", params.Reference},
			{"-run-dir", params.RunDir},
			{"-caller-bin", params.CallerBin},
		} {
			if req.val == "" {
				return fmt.Errorf("configure: %s is required", req.flag)
			}
		}
		if params.WorkflowBin == "" {
			exe, err := os.Executable()
			if err != nil {
				return err
			}
			params.WorkflowBin = exe
		}
		params.CmdLine = strings.Join(os.Args, " ")

		shutdown := grail.Init()
		defer shutdown()
		ctx := vcontext.Background()
		cfg, err := workflow.Configure(ctx, params)
		if err != nil {
			return err
		}
		g, err := taskgraph.Build(cfg)
		if err != nil {
			return err
		}
		if err := writeFile(cfg.MakefilePath(), g.WriteMake); err != nil {
			return err
		}
		if err := writeFile(cfg.TemplateMakefilePath(), func(w io.Writer) error {
			return taskgraph.WriteMakeTemplate(w, cfg)
		}); err != nil {
			return err
		}
		fmt.Fprintf(env.Stdout, "run configured in %s; execute with: make -C %s [-j N]\n",
			cfg.Derived.RunDir, cfg.Derived.RunDir)
		return nil
	})
	return cmd
}

func writeFile(path string, emit func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if e := f.Close(); e != nil && err == nil {
			err = e
		}
	}()
	return emit(f)
}

func newCmdFilter() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "filter",
		Short: "Filter one chromosome's call outputs (invoked by generated recipes)",
	}
	configFlag := cmd.Flags.String("config", "", "Path to the run's config.yaml (required)")
	chromFlag := cmd.Flags.String("chrom", "", "Chromosome to filter (required)")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if *configFlag == "" || *chromFlag == "" {
			return fmt.Errorf("filter: -config and -chrom are required")
		}
		shutdown := grail.Init()
		defer shutdown()
		ctx := vcontext.Background()
		cfg, err := workflow.Load(ctx, *configFlag)
		if err != nil {
			return err
		}
		return filter.Chromosome(ctx, cfg, *chromFlag)
	})
	return cmd
}

func newCmdFinish() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "finish",
		Short: "Consolidate all chromosomes into genome-wide results (invoked by generated recipes)",
	}
	configFlag := cmd.Flags.String("config", "", "Path to the run's config.yaml (required)")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if *configFlag == "" {
			return fmt.Errorf("finish: -config is required")
		}
		shutdown := grail.Init()
		defer shutdown()
		ctx := vcontext.Background()
		cfg, err := workflow.Load(ctx, *configFlag)
		if err != nil {
			return err
		}
		return consolidate.Results(ctx, cfg, runner.Local{})
	})
	return cmd
}

func newCmdStatus() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "status",
		Short: "List the tasks a re-invocation of make would run",
	}
	configFlag := cmd.Flags.String("config", "", "Path to the run's config.yaml (required)")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if *configFlag == "" {
			return fmt.Errorf("status: -config is required")
		}
		shutdown := grail.Init()
		defer shutdown()
		ctx := vcontext.Background()
		cfg, err := workflow.Load(ctx, *configFlag)
		if err != nil {
			return err
		}
		g, err := taskgraph.Build(cfg)
		if err != nil {
			return err
		}
		pending, err := g.Pending(taskgraph.FileMarkers{Root: cfg.Derived.RunDir})
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Fprintf(env.Stdout, "all %d tasks complete\n", len(g.Tasks))
			return nil
		}
		for _, t := range pending {
			fmt.Fprintf(env.Stdout, "%s\t%s\n", t.ID, filepath.Join(cfg.Derived.RunDir, t.Marker))
		}
		fmt.Fprintf(env.Stdout, "%d of %d tasks pending\n", len(pending), len(g.Tasks))
		return nil
	})
	return cmd
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(&cmdline.Command{
		Name:     "strelka-workflow",
		Short:    "Somatic tumor/normal variant-calling workflow driver",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdConfigure(),
			newCmdFilter(),
			newCmdFinish(),
			newCmdStatus(),
		},
	})
}
