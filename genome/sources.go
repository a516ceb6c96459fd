package genome

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	biogobam "github.com/grailbio/hts/bam"
)

// ReadFaiInfo reads a samtools .fai reference index and returns the
// chromosome infos in file order.  Only the name and length columns are
// used.
func ReadFaiInfo(ctx context.Context, path string) (infos []Info, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	scanner := bufio.NewScanner(in.Reader(ctx))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) < 2 {
			return nil, errors.E("malformed .fai line", path, line)
		}
		length, e := strconv.ParseInt(cols[1], 10, 64)
		if e != nil || length <= 0 {
			return nil, errors.E("malformed .fai length", path, line)
		}
		infos = append(infos, Info{Name: cols[0], Length: length})
	}
	if err = scanner.Err(); err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, errors.E("empty .fai index", path)
	}
	return infos, nil
}

// ReadBAMInfo reads the header of a BAM file and returns the reference
// sequences in header order.
func ReadBAMInfo(ctx context.Context, path string) (infos []Info, err error) {
	var in file.File
	if in, err = file.Open(ctx, path); err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	bamr, err := biogobam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return nil, errors.E(err, path)
	}
	for _, ref := range bamr.Header().Refs() {
		infos = append(infos, Info{Name: ref.Name(), Length: int64(ref.Len())})
	}
	if len(infos) == 0 {
		return nil, errors.E("BAM header has no reference sequences", path)
	}
	return infos, nil
}

// CountKnownBases streams the reference FASTA (plain or gzipped) and returns
// the per-sequence count of non-N bases.  Lowercase (soft-masked) bases are
// counted as known; 'N' and 'n' are not.
func CountKnownBases(ctx context.Context, fapath string) (known map[string]int64, err error) {
	var in file.File
	if in, err = file.Open(ctx, fapath); err != nil {
		return nil, err
	}
	defer file.CloseAndReport(ctx, in, &err)
	reader, _ := compress.NewReader(in.Reader(ctx))
	defer func() {
		if e := reader.Close(); e != nil && err == nil {
			err = e
		}
	}()

	known = make(map[string]int64)
	r := bufio.NewReaderSize(reader, 1<<20)
	var curName string
	var sawSeq bool
	for {
		fullLine, e := r.ReadBytes('\n')
		eof := e == io.EOF
		if e != nil && !eof {
			return nil, e
		}
		line := bytes.TrimRight(fullLine, "\r\n")
		if len(line) != 0 {
			if line[0] == '>' {
				curName = strings.Split(string(line[1:]), " ")[0]
				if curName == "" {
					return nil, errors.E("malformed FASTA header line", fapath)
				}
				known[curName] += 0 // sequences of all Ns still get an entry
				sawSeq = true
			} else {
				if curName == "" {
					return nil, errors.E("FASTA data before first header line", fapath)
				}
				n := int64(0)
				for _, c := range line {
					if c != 'N' && c != 'n' {
						n++
					}
				}
				known[curName] += n
			}
		}
		if eof {
			break
		}
	}
	if !sawSeq {
		return nil, errors.E("empty FASTA file", fapath)
	}
	return known, nil
}
