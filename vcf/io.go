package vcf

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
)

// Reader streams records from one VCF stream.  The header is consumed by
// NewReader; Read then returns data lines until io.EOF.
type Reader struct {
	path   string
	br     *bufio.Reader
	header *Header
	line   int
}

// NewReader parses the header of r.  path is used in error messages only.
func NewReader(r io.Reader, path string) (*Reader, error) {
	vr := &Reader{path: path, br: bufio.NewReaderSize(r, 1<<16)}
	header := &Header{}
	for {
		line, err := vr.readLine()
		if err == io.EOF {
			return nil, fmt.Errorf("vcf: %s: missing #CHROM header line", path)
		}
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(line, "##") {
			header.Meta = append(header.Meta, line)
			continue
		}
		if strings.HasPrefix(line, "#") {
			header.Columns = strings.Split(line, "\t")
			break
		}
		return nil, fmt.Errorf("vcf: %s:%d: data line before #CHROM header", path, vr.line)
	}
	vr.header = header
	return vr, nil
}

func (vr *Reader) readLine() (string, error) {
	line, err := vr.br.ReadString('\n')
	if err == io.EOF && line == "" {
		return "", io.EOF
	}
	if err != nil && err != io.EOF {
		return "", err
	}
	vr.line++
	return strings.TrimRight(line, "\r\n"), nil
}

// Header returns the parsed header.
func (vr *Reader) Header() *Header { return vr.header }

// ReadLine returns the next non-empty data line verbatim, or io.EOF.  The
// consolidator uses this textual path so that structurally minimal lines
// pass through untouched.
func (vr *Reader) ReadLine() (string, error) {
	for {
		line, err := vr.readLine()
		if err != nil {
			return "", err
		}
		if line == "" {
			continue
		}
		return line, nil
	}
}

// Read returns the next record, or io.EOF.
func (vr *Reader) Read() (*Record, error) {
	for {
		line, err := vr.readLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			continue
		}
		rec, err := ParseRecord(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %v", vr.path, vr.line, err)
		}
		return rec, nil
	}
}

// FileReader is a Reader bound to an opened (possibly gzipped) file.
type FileReader struct {
	*Reader
	ctx  context.Context
	in   file.File
	body io.ReadCloser
}

// OpenFile opens path, transparently decompressing gzip, and parses the
// header.
func OpenFile(ctx context.Context, path string) (*FileReader, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	body, _ := compress.NewReader(in.Reader(ctx))
	vr, err := NewReader(body, path)
	if err != nil {
		_ = body.Close()
		_ = in.Close(ctx)
		return nil, err
	}
	return &FileReader{Reader: vr, ctx: ctx, in: in, body: body}, nil
}

// Close releases the underlying file.
func (fr *FileReader) Close() error {
	err := fr.body.Close()
	if e := fr.in.Close(fr.ctx); e != nil && err == nil {
		err = e
	}
	return err
}

// Writer writes a VCF stream.
type Writer struct {
	bw *bufio.Writer
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriterSize(w, 1<<16)}
}

// WriteHeader writes the meta lines followed by the column line.
func (w *Writer) WriteHeader(h *Header) error {
	for _, m := range h.Meta {
		if _, err := w.bw.WriteString(m); err != nil {
			return err
		}
		if err := w.bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	if _, err := w.bw.WriteString(h.ColumnLine()); err != nil {
		return err
	}
	return w.bw.WriteByte('\n')
}

// WriteRecord writes one record line.
func (w *Writer) WriteRecord(rec *Record) error {
	if _, err := w.bw.WriteString(rec.Line()); err != nil {
		return err
	}
	return w.bw.WriteByte('\n')
}

// WriteLine writes a raw line (used by the consolidator's textual passes).
func (w *Writer) WriteLine(line string) error {
	if _, err := w.bw.WriteString(line); err != nil {
		return err
	}
	return w.bw.WriteByte('\n')
}

// Flush flushes buffered output.
func (w *Writer) Flush() error { return w.bw.Flush() }
