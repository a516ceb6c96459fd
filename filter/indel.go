package filter

import (
	"fmt"
	"strconv"

	"github.com/genome-vendor/strelka/vcf"
	"github.com/genome-vendor/strelka/workflow"
)

// Indel record filters.  Depth and basecall-noise predicates use the
// window-context counters rather than the site columns, so each record must
// first be matched to its window entry; the matched sums also enrich the
// record with window-averaged per-sample annotations.

const (
	fmtWindowDepth    = "DP50"
	fmtWindowFiltered = "FDP50"
	fmtWindowSubmap   = "SUBDP50"
)

func applyIndelFilters(rec *vcf.Record, cols sampleCols, cfg *workflow.Config, est *DepthEstimate, win *WindowRecord) error {
	if len(rec.Fields) <= cols.tumor || len(rec.Fields) <= cols.normal {
		return fmt.Errorf("record at %s has no sample columns", recPosLabel(rec))
	}
	width := float64(cfg.User.IndelWindowSize)
	annotateWindow(rec, cols, win, width)

	if est != nil && win.Normal.Used/width > est.MaxDepth {
		rec.Filters.Add(FilterDepth)
	}
	if rc, ok := rec.InfoValue("RC"); ok {
		n, err := strconv.ParseInt(rc, 10, 64)
		if err != nil {
			return fmt.Errorf("non-integer INFO RC=%q at %s", rc, recPosLabel(rec))
		}
		if n > int64(cfg.User.IndelMaxRefRepeat) {
			rec.Filters.Add(FilterRepeat)
		}
	}
	if ihp, ok := rec.InfoValue("IHP"); ok {
		n, err := strconv.ParseInt(ihp, 10, 64)
		if err != nil {
			return fmt.Errorf("non-integer INFO IHP=%q at %s", ihp, recPosLabel(rec))
		}
		if n > int64(cfg.User.IndelMaxIntHpolLength) {
			rec.Filters.Add(FilterIHpol)
		}
	}
	for _, counts := range []WindowCounts{win.Normal, win.Tumor} {
		if counts.Used > 0 && counts.Filtered/counts.Used >= cfg.User.IndelMaxWindowFilteredBasecallFrac {
			rec.Filters.Add(FilterBCNoise)
		}
	}
	nt, ok := rec.InfoValue("NT")
	if !ok {
		return fmt.Errorf("missing INFO key NT at %s", recPosLabel(rec))
	}
	qsi, err := rec.InfoInt("QSI_NT")
	if err != nil {
		return err
	}
	if nt != "ref" || qsi < int64(cfg.User.SIndelQualityLowerBound) {
		rec.Filters.Add(FilterQSIRef)
	}
	return nil
}

// annotateWindow appends the window-averaged depth annotations to the
// record's FORMAT and sample columns.
func annotateWindow(rec *vcf.Record, cols sampleCols, win *WindowRecord, width float64) {
	rec.Fields[8] += ":" + fmtWindowDepth + ":" + fmtWindowFiltered + ":" + fmtWindowSubmap
	for col, counts := range map[int]WindowCounts{cols.normal: win.Normal, cols.tumor: win.Tumor} {
		rec.Fields[col] += ":" + formatAvg(counts.Used, width) +
			":" + formatAvg(counts.Filtered, width) +
			":" + formatAvg(counts.Submap, width)
	}
}

func formatAvg(sum, width float64) string {
	return strconv.FormatFloat(sum/width, 'f', 2, 64)
}

// indelHeader decorates the first bin's header with the indel filter
// descriptions and the depth threshold annotation.
func indelHeader(h *vcf.Header, chrom string, cfg *workflow.Config, est *DepthEstimate) *vcf.Header {
	out := &vcf.Header{Meta: append([]string(nil), h.Meta...), Columns: h.Columns}
	if est != nil {
		out.Meta = append(out.Meta,
			fmt.Sprintf("##maxDepth_%s=%s", chrom, formatDepth(est.MaxDepth)),
			fmt.Sprintf(`##FILTER=<ID=%s,Description="Greater than %.1fx chromosomal mean depth in Normal sample">`,
				FilterDepth, cfg.User.DepthFilterMultiple))
	}
	w := cfg.User.IndelWindowSize
	out.Meta = append(out.Meta,
		fmt.Sprintf(`##FORMAT=<ID=%s,Number=1,Type=Float,Description="Average depth within %d bases of the indel">`,
			fmtWindowDepth, w),
		fmt.Sprintf(`##FORMAT=<ID=%s,Number=1,Type=Float,Description="Average number of basecalls filtered within %d bases of the indel">`,
			fmtWindowFiltered, w),
		fmt.Sprintf(`##FORMAT=<ID=%s,Number=1,Type=Float,Description="Average number of submapped reads within %d bases of the indel">`,
			fmtWindowSubmap, w),
		fmt.Sprintf(`##FILTER=<ID=%s,Description="Sequence repeat of more than %dx in the reference sequence">`,
			FilterRepeat, cfg.User.IndelMaxRefRepeat),
		fmt.Sprintf(`##FILTER=<ID=%s,Description="Indel overlaps an interrupted homopolymer longer than %dx in the reference sequence">`,
			FilterIHpol, cfg.User.IndelMaxIntHpolLength),
		fmt.Sprintf(`##FILTER=<ID=%s,Description="Average fraction of filtered basecalls within %d bases of the indel exceeds %.2f">`,
			FilterBCNoise, w, cfg.User.IndelMaxWindowFilteredBasecallFrac),
		fmt.Sprintf(`##FILTER=<ID=%s,Description="Normal sample is not homozygous ref or sindel Q-score < %d, ie calls with NT!=ref or QSI_NT<%d">`,
			FilterQSIRef, cfg.User.SIndelQualityLowerBound, cfg.User.SIndelQualityLowerBound))
	return out
}
