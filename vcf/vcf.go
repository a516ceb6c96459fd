// Package vcf implements the minimal line-oriented VCF handling the
// workflow's filter and consolidation stages need: header capture, record
// field access by INFO key or per-sample FORMAT key, and a filter-name set
// with union semantics on the FILTER column.
//
// Records preserve their raw columns; only the FILTER column is ever
// rewritten.  This keeps unfamiliar annotations intact and makes repeated
// filter runs byte-identical.
package vcf

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	colChrom  = 0
	colPos    = 1
	colFilter = 6
	colInfo   = 7
	colFormat = 8
	// FirstSampleCol is the index of the first per-sample column.
	FirstSampleCol = 9
	// MinFilterableFields is the minimum column count for a record to carry a
	// FILTER value.  Shorter records are structurally minimal lines and are
	// treated as passing.
	MinFilterableFields = 7
)

// FilterSet is the set of failing-filter names attached to one record.  The
// set preserves insertion order, which (with filters evaluated in a fixed
// order) makes rendering deterministic.  An empty set renders as "PASS".
type FilterSet struct {
	names []string
}

// ParseFilterSet parses a FILTER column value.  "PASS" and "." both denote
// the empty set.
func ParseFilterSet(col string) FilterSet {
	if col == "" || col == "." || col == "PASS" {
		return FilterSet{}
	}
	var s FilterSet
	for _, name := range strings.Split(col, ";") {
		s.Add(name)
	}
	return s
}

// Add inserts a filter name, ignoring duplicates.
func (s *FilterSet) Add(name string) {
	for _, n := range s.names {
		if n == name {
			return
		}
	}
	s.names = append(s.names, name)
}

// Empty reports whether no filter failed, i.e. the record passes.
func (s FilterSet) Empty() bool { return len(s.names) == 0 }

// Contains reports whether name is in the set.
func (s *FilterSet) Contains(name string) bool {
	for _, n := range s.names {
		if n == name {
			return true
		}
	}
	return false
}

// Names returns the filter names in insertion order.
func (s *FilterSet) Names() []string { return s.names }

// String renders the FILTER column value.
func (s FilterSet) String() string {
	if len(s.names) == 0 {
		return "PASS"
	}
	return strings.Join(s.names, ";")
}

// Header is a VCF header: the "##" meta lines in file order plus the parsed
// "#CHROM" column line.
type Header struct {
	Meta    []string
	Columns []string
}

// SampleCol returns the record column index of the named sample, or -1.
func (h *Header) SampleCol(name string) int {
	for i := FirstSampleCol; i < len(h.Columns); i++ {
		if h.Columns[i] == name {
			return i
		}
	}
	return -1
}

// ColumnLine renders the "#CHROM ..." line.
func (h *Header) ColumnLine() string { return strings.Join(h.Columns, "\t") }

// Record is one VCF data line.  Fields holds the raw tab-separated columns;
// Filters is the parsed FILTER column and is the only part a filter pass
// mutates.
type Record struct {
	Fields  []string
	Filters FilterSet
}

// ParseRecord parses one data line.
func ParseRecord(line string) (*Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < MinFilterableFields {
		return nil, fmt.Errorf("vcf: record has %d fields, want at least %d: %q", len(fields), MinFilterableFields, line)
	}
	return &Record{Fields: fields, Filters: ParseFilterSet(fields[colFilter])}, nil
}

// Chrom returns the CHROM column.
func (r *Record) Chrom() string { return r.Fields[colChrom] }

// Pos returns the 1-based POS column.
func (r *Record) Pos() (int64, error) {
	pos, err := strconv.ParseInt(r.Fields[colPos], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("vcf: bad POS %q at %s", r.Fields[colPos], r.Fields[colChrom])
	}
	return pos, nil
}

// InfoValue looks up an INFO key.  Flag keys (present without '=') return
// ("", true).
func (r *Record) InfoValue(key string) (string, bool) {
	for _, kv := range strings.Split(r.Fields[colInfo], ";") {
		if kv == key {
			return "", true
		}
		if strings.HasPrefix(kv, key) && len(kv) > len(key) && kv[len(key)] == '=' {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// InfoInt looks up an integer-valued INFO key.
func (r *Record) InfoInt(key string) (int64, error) {
	v, ok := r.InfoValue(key)
	if !ok {
		return 0, fmt.Errorf("vcf: missing INFO key %s at %s:%s", key, r.Fields[colChrom], r.Fields[colPos])
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("vcf: non-integer INFO %s=%q at %s:%s", key, v, r.Fields[colChrom], r.Fields[colPos])
	}
	return n, nil
}

// SampleValue looks up a FORMAT key in the sample stored at record column
// sampleCol (as returned by Header.SampleCol).
func (r *Record) SampleValue(sampleCol int, key string) (string, error) {
	if sampleCol < FirstSampleCol || sampleCol >= len(r.Fields) || len(r.Fields) <= colFormat {
		return "", fmt.Errorf("vcf: record at %s:%s has no sample column %d", r.Fields[colChrom], r.Fields[colPos], sampleCol)
	}
	keys := strings.Split(r.Fields[colFormat], ":")
	vals := strings.Split(r.Fields[sampleCol], ":")
	for i, k := range keys {
		if k == key {
			if i >= len(vals) {
				break
			}
			return vals[i], nil
		}
	}
	return "", fmt.Errorf("vcf: missing FORMAT key %s at %s:%s", key, r.Fields[colChrom], r.Fields[colPos])
}

// SampleInt looks up an integer-valued FORMAT key.
func (r *Record) SampleInt(sampleCol int, key string) (int64, error) {
	v, err := r.SampleValue(sampleCol, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("vcf: non-integer FORMAT %s=%q at %s:%s", key, v, r.Fields[colChrom], r.Fields[colPos])
	}
	return n, nil
}

// Line renders the record, with the FILTER column regenerated from Filters.
func (r *Record) Line() string {
	if len(r.Fields) > colFilter {
		r.Fields[colFilter] = r.Filters.String()
	}
	return strings.Join(r.Fields, "\t")
}

// LinePasses implements the consolidator's PASS test on a raw data line:
// structurally minimal lines (fewer than MinFilterableFields columns) pass
// automatically; otherwise the FILTER column must denote the empty set.
func LinePasses(line string) bool {
	fields := strings.Split(line, "\t")
	if len(fields) < MinFilterableFields {
		return true
	}
	s := ParseFilterSet(fields[colFilter])
	return s.Empty()
}
