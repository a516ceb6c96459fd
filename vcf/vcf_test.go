package vcf_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/genome-vendor/strelka/vcf"
	"github.com/stretchr/testify/assert"
)

const testVCF = `##fileformat=VCFv4.1
##cmdline=caller -chrom chr1
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO	FORMAT	NORMAL	TUMOR
chr1	100	.	A	T	.	.	NT=ref;QSS_NT=42	DP:FDP:SDP	30:1:0	28:2:1
chr1	250	.	G	C	.	.	NT=het;QSS_NT=12	DP:FDP:SDP	22:0:0	31:4:0
`

func TestReader(t *testing.T) {
	r, err := vcf.NewReader(strings.NewReader(testVCF), "test.vcf")
	assert.NoError(t, err)
	h := r.Header()
	assert.Equal(t, 2, len(h.Meta))
	assert.Equal(t, 9, h.SampleCol("NORMAL"))
	assert.Equal(t, 10, h.SampleCol("TUMOR"))
	assert.Equal(t, -1, h.SampleCol("RELAPSE"))

	rec, err := r.Read()
	assert.NoError(t, err)
	assert.Equal(t, "chr1", rec.Chrom())
	pos, err := rec.Pos()
	assert.NoError(t, err)
	assert.Equal(t, int64(100), pos)

	nt, ok := rec.InfoValue("NT")
	assert.True(t, ok)
	assert.Equal(t, "ref", nt)
	qss, err := rec.InfoInt("QSS_NT")
	assert.NoError(t, err)
	assert.Equal(t, int64(42), qss)

	dp, err := rec.SampleInt(9, "DP")
	assert.NoError(t, err)
	assert.Equal(t, int64(30), dp)
	fdp, err := rec.SampleInt(10, "FDP")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), fdp)
	_, err = rec.SampleInt(9, "GQX")
	assert.Error(t, err)

	_, err = r.Read()
	assert.NoError(t, err)
	_, err = r.Read()
	assert.Equal(t, io.EOF, err)
}

func TestFilterSet(t *testing.T) {
	var s vcf.FilterSet
	assert.True(t, s.Empty())
	assert.Equal(t, "PASS", s.String())
	s.Add("DP")
	s.Add("BCNoise")
	s.Add("DP") // duplicate
	assert.Equal(t, "DP;BCNoise", s.String())
	assert.True(t, s.Contains("BCNoise"))
	assert.False(t, s.Contains("SpanDel"))

	parsed := vcf.ParseFilterSet("DP;Repeat")
	assert.Equal(t, []string{"DP", "Repeat"}, parsed.Names())
	assert.True(t, vcf.ParseFilterSet("PASS").Empty())
	assert.True(t, vcf.ParseFilterSet(".").Empty())
}

func TestRecordLineRegeneratesFilter(t *testing.T) {
	rec, err := vcf.ParseRecord("chr1\t5\t.\tA\tC\t.\t.\tNT=ref")
	assert.NoError(t, err)
	rec.Filters.Add("Repeat")
	assert.Equal(t, "chr1\t5\t.\tA\tC\t.\tRepeat\tNT=ref", rec.Line())
}

func TestLinePasses(t *testing.T) {
	assert.True(t, vcf.LinePasses("chr1\t5\t.\tA\tC\t.\tPASS\tNT=ref"))
	assert.False(t, vcf.LinePasses("chr1\t5\t.\tA\tC\t.\tDP;Repeat\tNT=ref"))
	// Structurally minimal lines pass automatically.
	assert.True(t, vcf.LinePasses("chr1\t5\t.\tA"))
}

func TestWriterRoundtrip(t *testing.T) {
	r, err := vcf.NewReader(strings.NewReader(testVCF), "test.vcf")
	assert.NoError(t, err)
	var buf bytes.Buffer
	w := vcf.NewWriter(&buf)
	assert.NoError(t, w.WriteHeader(r.Header()))
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		assert.NoError(t, err)
		assert.NoError(t, w.WriteRecord(rec))
	}
	assert.NoError(t, w.Flush())
	// FILTER "." is normalized to PASS; everything else survives untouched.
	want := strings.Replace(testVCF, "\t.\tNT=", "\tPASS\tNT=", -1)
	assert.Equal(t, want, buf.String())
}
