// Package ingest turns uploaded survey exports into header-keyed rows.
// Spreadsheets, CSV and HTML-table exports share one output contract.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrNoTableFound      = errors.New("no table found in markup input")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// ParseError wraps a reader failure with the format that was attempted.
type ParseError struct {
	Format string
	Err    error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.Format, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// RawRow maps a normalized column name to the cell value of one row.
type RawRow map[string]string

// Table is the reader output: header names in source order and the data rows.
type Table struct {
	Format string
	Header []string
	Rows   []RawRow
}

// Reader decodes one input format.
type Reader interface {
	Name() string
	Read(ctx context.Context, r io.Reader) (*Table, error)
}

// Readers available for tabular input, keyed by Reader.Name.
var (
	HTML Reader = HTMLReader{}
	XLSX Reader = XLSXReader{}
	CSV  Reader = CSVReader{}
)

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

// Select picks the reader for data based on its leading bytes.
func Select(data []byte) (Reader, error) {
	if Sniff(data) == ShapeMarkup {
		return HTML, nil
	}
	switch {
	case bytes.HasPrefix(data, zipMagic):
		return XLSX, nil
	case bytes.HasPrefix(data, oleMagic):
		return nil, &ParseError{Format: "xls", Err: ErrUnsupportedFormat}
	}
	return CSV, nil
}

// ReadAll sniffs data and decodes it with the matching reader.
func ReadAll(ctx context.Context, data []byte) (*Table, error) {
	rd, err := Select(data)
	if err != nil {
		return nil, err
	}
	t, err := rd.Read(ctx, bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, ErrNoTableFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		var pe *ParseError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &ParseError{Format: rd.Name(), Err: err}
	}
	return t, nil
}

// columnName lower-cases and trims a header cell and collapses inner
// whitespace runs to one space.
func columnName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// buildRow keys cells by header. Missing trailing cells become "".
// Duplicate header names keep the first column.
func buildRow(header, cells []string) RawRow {
	row := make(RawRow, len(header))
	for i, h := range header {
		if h == "" {
			continue
		}
		if _, seen := row[h]; seen {
			continue
		}
		v := ""
		if i < len(cells) {
			v = strings.TrimSpace(cells[i])
		}
		row[h] = v
	}
	return row
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
