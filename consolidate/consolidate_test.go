package consolidate

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/genome-vendor/strelka/runner"
	"github.com/genome-vendor/strelka/workflow"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

// fakeRunner records every launched command and reports success.
type fakeRunner struct {
	mu   sync.Mutex
	cmds []runner.Cmd
}

func (f *fakeRunner) Run(_ context.Context, cmd runner.Cmd) (runner.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	return runner.Result{}, nil
}

// testConsolidateConfig deliberately orders chr2 before chr1: consolidation
// must follow the canonical order, not a lexical one.
func testConsolidateConfig(runDir string) *workflow.Config {
	cfg := &workflow.Config{User: workflow.DefaultOptions}
	cfg.User.BinSize = 400000
	cfg.Derived.RunDir = runDir
	cfg.Derived.CmdLine = "configure --normal n.bam --tumor t.bam"
	cfg.Derived.ChromOrder = []string{"chr2", "chr1"}
	cfg.Derived.Chroms = map[string]workflow.ChromInfo{
		"chr2": {Length: 1000000, KnownLength: 900000},
		"chr1": {Length: 500000, KnownLength: 450000},
	}
	return cfg
}

const consolidateColumns = "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tNORMAL\tTUMOR"

func writeChromVCF(t *testing.T, cfg *workflow.Config, chrom, name, body string) {
	t.Helper()
	dir := cfg.ChromDir(chrom)
	assert.NoError(t, os.MkdirAll(dir, 0755))
	content := "##fileformat=VCFv4.1\n" +
		"##cmdline=stale per-bin invocation\n" +
		"##maxDepth_" + chrom + "=120.00\n" +
		"##source=caller\n" +
		consolidateColumns + "\n" + body
	assert.NoError(t, ioutil.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func writeResultsFixture(t *testing.T, cfg *workflow.Config) {
	t.Helper()
	assert.NoError(t, os.MkdirAll(cfg.ResultsDir(), 0755))
	writeChromVCF(t, cfg, "chr2", workflow.ChromSNVsFile,
		"chr2\t10\t.\tA\tC\t.\tPASS\tNT=ref;QSS_NT=50\tDP\t30\t30\n"+
			"chr2\t20\t.\tA\tC\t.\tDP\tNT=ref;QSS_NT=50\tDP\t150\t30\n")
	writeChromVCF(t, cfg, "chr1", workflow.ChromSNVsFile,
		"chr1\t5\t.\tG\tT\t.\tPASS\tNT=ref;QSS_NT=50\tDP\t30\t30\n"+
			// Structurally minimal line: auto-passes.
			"chr1\t7\t.\tA\tC\n")
	writeChromVCF(t, cfg, "chr2", workflow.ChromIndelsFile,
		"chr2\t15\t.\tAT\tA\t.\tRepeat\tNT=ref;QSI_NT=60;RC=9\tDP\t30\t30\n")
	writeChromVCF(t, cfg, "chr1", workflow.ChromIndelsFile,
		"chr1\t8\t.\tAT\tA\t.\tPASS\tNT=ref;QSI_NT=60\tDP\t30\t30\n")
}

func readResult(t *testing.T, cfg *workflow.Config, name string) string {
	t.Helper()
	data, err := ioutil.ReadFile(filepath.Join(cfg.ResultsDir(), name))
	assert.NoError(t, err)
	return string(data)
}

func TestResults(t *testing.T) {
	ctx := context.Background()
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup)
	cfg := testConsolidateConfig(tmpDir)
	writeResultsFixture(t, cfg)

	assert.NoError(t, Results(ctx, cfg, &fakeRunner{}))

	all := readResult(t, cfg, workflow.AllSNVsFile)
	// The stale cmdline is replaced by this run's invocation, once.
	expect.False(t, strings.Contains(all, "stale per-bin invocation"))
	expect.EQ(t, strings.Count(all, "##cmdline="), 1)
	expect.HasSubstr(t, all, "##cmdline=configure --normal n.bam --tumor t.bam")
	// Depth annotations from every chromosome, in canonical order.
	d2 := strings.Index(all, "##maxDepth_chr2=120.00")
	d1 := strings.Index(all, "##maxDepth_chr1=120.00")
	expect.True(t, d2 >= 0 && d1 > d2, "maxDepth annotations missing or misordered:\n%s", all)
	// Records follow the canonical chromosome order: chr2 before chr1.
	r2 := strings.Index(all, "chr2\t10\t")
	r1 := strings.Index(all, "chr1\t5\t")
	expect.True(t, r2 >= 0 && r1 > r2, "records misordered:\n%s", all)
	expect.HasSubstr(t, all, "chr2\t20\t.\tA\tC\t.\tDP\t")
	expect.HasSubstr(t, all, "chr1\t7\t.\tA\tC\n")

	passed := readResult(t, cfg, workflow.PassedSNVsFile)
	expect.HasSubstr(t, passed, "##cmdline=configure")
	expect.HasSubstr(t, passed, "chr2\t10\t")
	expect.HasSubstr(t, passed, "chr1\t5\t")
	// The short record auto-passes.
	expect.HasSubstr(t, passed, "chr1\t7\t.\tA\tC\n")
	// The filtered record is present in the full set only.
	expect.False(t, strings.Contains(passed, "chr2\t20\t"))

	allIndels := readResult(t, cfg, workflow.AllIndelsFile)
	passedIndels := readResult(t, cfg, workflow.PassedIndelsFile)
	expect.HasSubstr(t, allIndels, "chr2\t15\t.\tAT\tA\t.\tRepeat\t")
	expect.False(t, strings.Contains(passedIndels, "chr2\t15\t"))
	expect.HasSubstr(t, passedIndels, "chr1\t8\t")

	// Every passed record also appears in the full set.
	for _, line := range strings.Split(passed, "\n") {
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		expect.True(t, strings.Contains(all, line+"\n"), "passed record missing from full set: %s", line)
	}
}

func TestResultsMissingMaxDepth(t *testing.T) {
	ctx := context.Background()
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup)
	cfg := testConsolidateConfig(tmpDir)
	writeResultsFixture(t, cfg)

	// Drop chr1's annotation from the SNV stream.
	path := filepath.Join(cfg.ChromDir("chr1"), workflow.ChromSNVsFile)
	data, err := ioutil.ReadFile(path)
	assert.NoError(t, err)
	stripped := strings.Replace(string(data), "##maxDepth_chr1=120.00\n", "", 1)
	assert.NoError(t, ioutil.WriteFile(path, []byte(stripped), 0644))

	err = Results(ctx, cfg, &fakeRunner{})
	expect.HasSubstr(t, err, "missing ##maxDepth_chr1")

	// The failed class published nothing.
	_, statErr := os.Stat(filepath.Join(cfg.ResultsDir(), workflow.AllSNVsFile))
	expect.True(t, os.IsNotExist(statErr))

	// With depth filtering disabled the annotation is not required.
	cfg.User.SkipDepthFilters = true
	assert.NoError(t, Results(ctx, cfg, &fakeRunner{}))
}

func TestMergeRealigned(t *testing.T) {
	ctx := context.Background()
	cfg := testConsolidateConfig("/run")
	cfg.Derived.AlignToolBin = "/usr/bin/samtools"
	run := &fakeRunner{}

	assert.NoError(t, mergeRealigned(ctx, cfg, run, "normal"))
	assert.EQ(t, len(run.cmds), 2)

	merge := run.cmds[0]
	expect.EQ(t, merge.Path, "/usr/bin/samtools")
	expect.EQ(t, merge.Args[0], "merge")
	expect.EQ(t, merge.Args[2], cfg.MergedRealignedBAM("normal"))
	// chr2 (3 bins) then chr1 (2 bins), in bin order.
	want := []string{
		cfg.BinRealignedBAM("chr2", 0, "normal"),
		cfg.BinRealignedBAM("chr2", 1, "normal"),
		cfg.BinRealignedBAM("chr2", 2, "normal"),
		cfg.BinRealignedBAM("chr1", 0, "normal"),
		cfg.BinRealignedBAM("chr1", 1, "normal"),
	}
	expect.EQ(t, merge.Args[3:], want)

	index := run.cmds[1]
	expect.EQ(t, index.Args, []string{"index", cfg.MergedRealignedBAM("normal")})

	cfg.Derived.AlignToolBin = ""
	err := mergeRealigned(ctx, cfg, run, "normal")
	expect.HasSubstr(t, err, "no alignment tool configured")
}
