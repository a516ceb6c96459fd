package filter

import (
	"fmt"

	"github.com/genome-vendor/strelka/vcf"
	"github.com/genome-vendor/strelka/workflow"
)

// SNV record filters.  Every predicate is evaluated against every record;
// the failing names accumulate as a union on the record's filter set.

func applySNVFilters(rec *vcf.Record, cols sampleCols, cfg *workflow.Config, est *DepthEstimate) error {
	if est != nil {
		ndp, err := rec.SampleInt(cols.normal, "DP")
		if err != nil {
			return err
		}
		if float64(ndp) > est.MaxDepth {
			rec.Filters.Add(FilterDepth)
		}
	}
	for _, col := range []int{cols.normal, cols.tumor} {
		dp, err := rec.SampleInt(col, "DP")
		if err != nil {
			return err
		}
		fdp, err := rec.SampleInt(col, "FDP")
		if err != nil {
			return err
		}
		sdp, err := rec.SampleInt(col, "SDP")
		if err != nil {
			return err
		}
		if dp > 0 {
			if float64(fdp)/float64(dp) >= cfg.User.SNVMaxFilteredBasecallFrac {
				rec.Filters.Add(FilterBCNoise)
			}
			if float64(sdp)/float64(dp) > cfg.User.SNVMaxSpanningDeletionFrac {
				rec.Filters.Add(FilterSpanDel)
			}
		}
	}
	nt, ok := rec.InfoValue("NT")
	if !ok {
		return fmt.Errorf("missing INFO key NT at %s", recPosLabel(rec))
	}
	qss, err := rec.InfoInt("QSS_NT")
	if err != nil {
		return err
	}
	if nt != "ref" || qss < int64(cfg.User.SSNVQualityLowerBound) {
		rec.Filters.Add(FilterQSSRef)
	}
	return nil
}

func recPosLabel(rec *vcf.Record) string {
	return rec.Fields[0] + ":" + rec.Fields[1]
}

// snvHeader decorates the first bin's header with the SNV filter
// descriptions and (when depth filtering is on) this chromosome's depth
// threshold annotation.
func snvHeader(h *vcf.Header, chrom string, cfg *workflow.Config, est *DepthEstimate) *vcf.Header {
	out := &vcf.Header{Meta: append([]string(nil), h.Meta...), Columns: h.Columns}
	if est != nil {
		out.Meta = append(out.Meta,
			fmt.Sprintf("##maxDepth_%s=%s", chrom, formatDepth(est.MaxDepth)),
			fmt.Sprintf(`##FILTER=<ID=%s,Description="Greater than %.1fx chromosomal mean depth in Normal sample">`,
				FilterDepth, cfg.User.DepthFilterMultiple))
	}
	out.Meta = append(out.Meta,
		fmt.Sprintf(`##FILTER=<ID=%s,Description="Fraction of basecalls filtered at this site in either sample is at or above %.2f">`,
			FilterBCNoise, cfg.User.SNVMaxFilteredBasecallFrac),
		fmt.Sprintf(`##FILTER=<ID=%s,Description="Fraction of reads crossing site with spanning deletions in either sample exceeds %.2f">`,
			FilterSpanDel, cfg.User.SNVMaxSpanningDeletionFrac),
		fmt.Sprintf(`##FILTER=<ID=%s,Description="Normal sample is not homozygous ref or ssnv Q-score < %d, ie calls with NT!=ref or QSS_NT<%d">`,
			FilterQSSRef, cfg.User.SSNVQualityLowerBound, cfg.User.SSNVQualityLowerBound))
	return out
}
