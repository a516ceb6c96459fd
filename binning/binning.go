// Package binning partitions chromosomes into fixed-size bins, the unit of
// parallel variant-calling work.
//
// Bins are recomputed from (chromosome length, bin size) wherever they are
// needed; they are never persisted, so the partition seen by the filter and
// consolidation stages is always the one the task graph was built from.
package binning

// Bin is a contiguous half-open interval [Start, End) of one chromosome.
// Bin i of a chromosome spans [i*binSize, min((i+1)*binSize, length)); the
// last bin of a chromosome may be shorter than binSize.
type Bin struct {
	Chrom string
	ID    int
	Start int64
	End   int64
}

// Width returns End - Start.
func (b Bin) Width() int64 { return b.End - b.Start }

// Count returns the number of bins covering a chromosome of the given
// length, i.e. ceil(length / binSize).
func Count(length, binSize int64) int {
	if length <= 0 || binSize <= 0 {
		panic("binning.Count: length and binSize must be positive")
	}
	return int((length + binSize - 1) / binSize)
}

// ComputeBins partitions [0, length) into Count(length, binSize) contiguous,
// non-overlapping bins in ascending ID order.  The union of the returned
// intervals is exactly [0, length).
func ComputeBins(chrom string, length, binSize int64) []Bin {
	n := Count(length, binSize)
	bins := make([]Bin, n)
	for i := 0; i < n; i++ {
		end := int64(i+1) * binSize
		if end > length {
			end = length
		}
		bins[i] = Bin{
			Chrom: chrom,
			ID:    i,
			Start: int64(i) * binSize,
			End:   end,
		}
	}
	return bins
}
