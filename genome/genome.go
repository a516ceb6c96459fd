// Package genome models the chromosome dictionary shared by the two
// alignment inputs and the reference, and cross-checks it before any work is
// scheduled.
//
// A chromosome's identity here is (name, length, order), where order is the
// position in the alignment-file header.  Header order defines the canonical
// processing and output order for the whole workflow; it is captured once at
// configuration time and never re-derived from filesystem listings or name
// sorts.
package genome

import (
	"fmt"
)

// Chromosome describes one reference sequence.  Length is the full sequence
// length; KnownLength is the number of non-N bases, used as the denominator
// for mean-coverage computation.  Order is the position in the alignment
// header.
type Chromosome struct {
	Name        string
	Length      int64
	KnownLength int64
	Order       int
}

// Info is the (length, order) view of a chromosome used for cross-source
// consistency checks.
type Info struct {
	Name   string
	Length int64
}

// ConsistencyError reports a chromosome dictionary disagreement between two
// input sources.  It names the offending chromosome, the field that
// disagrees, and the two sources.
type ConsistencyError struct {
	Chrom   string
	Field   string // "presence", "length", or "order"
	SourceA string
	SourceB string
	ValueA  string
	ValueB  string
}

func (e *ConsistencyError) Error() string {
	if e.Field == "presence" {
		return fmt.Sprintf("genome: chromosome %s: present in %s but not in %s", e.Chrom, e.SourceA, e.SourceB)
	}
	return fmt.Sprintf("genome: chromosome %s: %s mismatch between %s (%s) and %s (%s)",
		e.Chrom, e.Field, e.SourceA, e.ValueA, e.SourceB, e.ValueB)
}

// Validate cross-checks two ordered chromosome-info lists.  It verifies that
// the name sets are identical, that each chromosome has the same length in
// both sources, and that the two sources list the chromosomes in the same
// relative order.  The first mismatch found is returned as a
// *ConsistencyError; nil means the sources agree.
//
// Validate must run before any run directory or task graph is created: it is
// a configuration-time gate, not a runtime check.
func Validate(srcA string, a []Info, srcB string, b []Info) error {
	indexB := make(map[string]int, len(b))
	for i, info := range b {
		indexB[info.Name] = i
	}
	indexA := make(map[string]int, len(a))
	for i, info := range a {
		indexA[info.Name] = i
	}
	for _, info := range a {
		if _, ok := indexB[info.Name]; !ok {
			return &ConsistencyError{Chrom: info.Name, Field: "presence", SourceA: srcA, SourceB: srcB}
		}
	}
	for _, info := range b {
		if _, ok := indexA[info.Name]; !ok {
			return &ConsistencyError{Chrom: info.Name, Field: "presence", SourceA: srcB, SourceB: srcA}
		}
	}
	for _, info := range a {
		other := b[indexB[info.Name]]
		if info.Length != other.Length {
			return &ConsistencyError{
				Chrom:   info.Name,
				Field:   "length",
				SourceA: srcA, ValueA: fmt.Sprintf("%d", info.Length),
				SourceB: srcB, ValueB: fmt.Sprintf("%d", other.Length),
			}
		}
	}
	// Equal name sets, so equal lengths; comparing position by position
	// detects any relative-order difference.
	for i := range a {
		if a[i].Name != b[i].Name {
			return &ConsistencyError{
				Chrom:   a[i].Name,
				Field:   "order",
				SourceA: srcA, ValueA: fmt.Sprintf("%d", i),
				SourceB: srcB, ValueB: fmt.Sprintf("%d", indexB[a[i].Name]),
			}
		}
	}
	return nil
}

// Build assembles the final chromosome list from a validated info list and
// the per-chromosome known (non-N) lengths.  Order is the position in infos.
func Build(infos []Info, knownLengths map[string]int64) ([]Chromosome, error) {
	chroms := make([]Chromosome, len(infos))
	for i, info := range infos {
		known, ok := knownLengths[info.Name]
		if !ok {
			return nil, fmt.Errorf("genome.Build: no known-length entry for chromosome %s", info.Name)
		}
		if known > info.Length {
			return nil, fmt.Errorf("genome.Build: chromosome %s: known length %d exceeds length %d", info.Name, known, info.Length)
		}
		chroms[i] = Chromosome{
			Name:        info.Name,
			Length:      info.Length,
			KnownLength: known,
			Order:       i,
		}
	}
	return chroms, nil
}
