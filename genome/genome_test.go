package genome_test

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/genome-vendor/strelka/genome"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestValidate(t *testing.T) {
	base := []genome.Info{{"chr1", 1000}, {"chr2", 500}, {"chrM", 16571}}
	tests := []struct {
		name      string
		b         []genome.Info
		wantChrom string
		wantField string
	}{
		{"identical", []genome.Info{{"chr1", 1000}, {"chr2", 500}, {"chrM", 16571}}, "", ""},
		{"missing", []genome.Info{{"chr1", 1000}, {"chr2", 500}}, "chrM", "presence"},
		{"extra", []genome.Info{{"chr1", 1000}, {"chr2", 500}, {"chrM", 16571}, {"chrX", 99}}, "chrX", "presence"},
		{"length", []genome.Info{{"chr1", 1000}, {"chr2", 501}, {"chrM", 16571}}, "chr2", "length"},
		{"order", []genome.Info{{"chr2", 500}, {"chr1", 1000}, {"chrM", 16571}}, "chr1", "order"},
	}
	for _, tt := range tests {
		err := genome.Validate("normal.bam", base, "tumor.bam", tt.b)
		if tt.wantChrom == "" {
			expect.NoError(t, err, tt.name)
			continue
		}
		cerr, ok := err.(*genome.ConsistencyError)
		if !ok {
			t.Fatalf("%s: got %v, want ConsistencyError", tt.name, err)
		}
		expect.EQ(t, cerr.Chrom, tt.wantChrom, tt.name)
		expect.EQ(t, cerr.Field, tt.wantField, tt.name)
		// Errors must name both sources so they are directly actionable.
		if !strings.Contains(err.Error(), "normal.bam") || !strings.Contains(err.Error(), "tumor.bam") {
			t.Errorf("%s: error does not name both sources: %v", tt.name, err)
		}
	}
}

func TestReadFaiInfo(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	path := filepath.Join(tmpdir, "ref.fa.fai")
	out, err := file.Create(ctx, path)
	assert.NoError(t, err)
	_, err = out.Writer(ctx).Write([]byte("chr2\t800\t6\t60\t61\nchr1\t1200\t900\t60\t61\n"))
	assert.NoError(t, err)
	assert.NoError(t, out.Close(ctx))

	infos, err := genome.ReadFaiInfo(ctx, path)
	assert.NoError(t, err)
	// File order is preserved, not name order.
	expect.EQ(t, infos, []genome.Info{{"chr2", 800}, {"chr1", 1200}})
}

func TestCountKnownBases(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := vcontext.Background()

	path := filepath.Join(tmpdir, "ref.fa")
	out, err := file.Create(ctx, path)
	assert.NoError(t, err)
	_, err = out.Writer(ctx).Write([]byte(">chr1 descr\nACGTN\nNNacg\n>chrN\nNNNNN\n"))
	assert.NoError(t, err)
	assert.NoError(t, out.Close(ctx))

	known, err := genome.CountKnownBases(ctx, path)
	assert.NoError(t, err)
	expect.EQ(t, known["chr1"], int64(7))
	expect.EQ(t, known["chrN"], int64(0))
}

func TestBuild(t *testing.T) {
	infos := []genome.Info{{"chr1", 100}, {"chr2", 50}}
	chroms, err := genome.Build(infos, map[string]int64{"chr1": 90, "chr2": 50})
	assert.NoError(t, err)
	expect.EQ(t, chroms, []genome.Chromosome{
		{Name: "chr1", Length: 100, KnownLength: 90, Order: 0},
		{Name: "chr2", Length: 50, KnownLength: 50, Order: 1},
	})

	_, err = genome.Build(infos, map[string]int64{"chr1": 90})
	assert.HasSubstr(t, err.Error(), "chr2")
}
