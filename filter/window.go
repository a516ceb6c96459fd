package filter

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
)

// Window-context stream for indel filtering.  Each bin's indel VCF has a
// companion ".window" file: one tab-separated line per candidate position
// with depth counters summed over a fixed-width window centered on the
// position, for each sample:
//
//	#chrom	pos	n_used	n_filt	n_submap	t_used	t_filt	t_submap
//
// Positions are strictly non-decreasing.  The matcher consumes the stream in
// lockstep with the indel record stream: it advances past lower positions
// exactly once and never rewinds; a window stream that runs out, or that has
// no entry at a record's position, indicates the two streams were produced
// from different inputs and aborts the chromosome.

// WindowCounts holds one sample's depth counters summed over the window.
type WindowCounts struct {
	Used     float64 // basecalls used by the caller
	Filtered float64 // basecalls removed by quality filtering
	Submap   float64 // basecalls from reads below the mapping threshold
}

// WindowRecord is the window context of one candidate indel position.
type WindowRecord struct {
	Chrom  string
	Pos    int64
	Normal WindowCounts
	Tumor  WindowCounts
}

type windowScanner struct {
	path    string
	scanner *bufio.Scanner
	lastPos int64
	line    int
}

func newWindowScanner(r io.Reader, path string) *windowScanner {
	return &windowScanner{path: path, scanner: bufio.NewScanner(r), lastPos: -1}
}

// next returns the next window record, or io.EOF.
func (ws *windowScanner) next() (*WindowRecord, error) {
	for ws.scanner.Scan() {
		ws.line++
		line := ws.scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 8 {
			return nil, fmt.Errorf("filter: %s:%d: window line has %d fields, want 8", ws.path, ws.line, len(fields))
		}
		rec := &WindowRecord{Chrom: fields[0]}
		var err error
		if rec.Pos, err = strconv.ParseInt(fields[1], 10, 64); err != nil {
			return nil, fmt.Errorf("filter: %s:%d: bad position %q", ws.path, ws.line, fields[1])
		}
		vals := [6]float64{}
		for i := range vals {
			if vals[i], err = strconv.ParseFloat(fields[2+i], 64); err != nil {
				return nil, fmt.Errorf("filter: %s:%d: bad counter %q", ws.path, ws.line, fields[2+i])
			}
		}
		rec.Normal = WindowCounts{Used: vals[0], Filtered: vals[1], Submap: vals[2]}
		rec.Tumor = WindowCounts{Used: vals[3], Filtered: vals[4], Submap: vals[5]}
		if rec.Pos < ws.lastPos {
			return nil, fmt.Errorf("filter: %s:%d: window positions not sorted (%d after %d)", ws.path, ws.line, rec.Pos, ws.lastPos)
		}
		ws.lastPos = rec.Pos
		return rec, nil
	}
	if err := ws.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// windowMatcher performs the merge-join between the indel record stream
// (primary) and the window stream (secondary).
type windowMatcher struct {
	ws  *windowScanner
	cur *WindowRecord
}

func newWindowMatcher(ws *windowScanner) *windowMatcher { return &windowMatcher{ws: ws} }

// match returns the window record at exactly (chrom, pos).  The secondary
// stream advances while its position is lower; any other disagreement is a
// desynchronization and is fatal for the chromosome.
func (m *windowMatcher) match(chrom string, pos int64) (*WindowRecord, error) {
	for {
		if m.cur == nil {
			rec, err := m.ws.next()
			if err == io.EOF {
				return nil, fmt.Errorf("filter: %s: window stream exhausted before %s:%d (desynchronized streams)", m.ws.path, chrom, pos)
			}
			if err != nil {
				return nil, err
			}
			m.cur = rec
		}
		if m.cur.Chrom != chrom {
			return nil, fmt.Errorf("filter: %s: window entry for %s while matching %s:%d (desynchronized streams)", m.ws.path, m.cur.Chrom, chrom, pos)
		}
		if m.cur.Pos < pos {
			m.cur = nil
			continue
		}
		if m.cur.Pos > pos {
			return nil, fmt.Errorf("filter: %s: no window entry for %s:%d (next is %d; desynchronized streams)", m.ws.path, chrom, pos, m.cur.Pos)
		}
		return m.cur, nil
	}
}

// windowFile is a windowMatcher bound to an opened file.
type windowFile struct {
	*windowMatcher
	ctx  context.Context
	in   file.File
	body io.ReadCloser
}

func openWindowFile(ctx context.Context, path string) (*windowFile, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	body, _ := compress.NewReader(in.Reader(ctx))
	return &windowFile{
		windowMatcher: newWindowMatcher(newWindowScanner(body, path)),
		ctx:           ctx,
		in:            in,
		body:          body,
	}, nil
}

func (wf *windowFile) Close() error {
	err := wf.body.Close()
	if e := wf.in.Close(wf.ctx); e != nil && err == nil {
		err = e
	}
	return err
}
