package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
)

// CSVReader reads delimited text. The delimiter is chosen from the header
// line among comma, semicolon and tab.
type CSVReader struct{}

func (CSVReader) Name() string { return "csv" }

func (CSVReader) Read(ctx context.Context, r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if bom, _ := br.Peek(3); bytes.Equal(bom, []byte("\xEF\xBB\xBF")) {
		_, _ = br.Discard(3)
	}
	first, _ := br.Peek(br.Size())
	if i := bytes.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}

	cr := csv.NewReader(br)
	cr.Comma = delimiter(first)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	out := &Table{Format: "csv"}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if out.Header == nil {
			out.Header = make([]string, len(rec))
			for i, c := range rec {
				out.Header[i] = columnName(c)
			}
			continue
		}
		if allEmpty(rec) {
			continue
		}
		out.Rows = append(out.Rows, buildRow(out.Header, rec))
	}
	return out, nil
}

func delimiter(line []byte) rune {
	best, n := ',', bytes.Count(line, []byte{','})
	for _, d := range []rune{';', '\t'} {
		if c := bytes.Count(line, []byte(string(d))); c > n {
			best, n = d, c
		}
	}
	return best
}
