package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Farras8/cek-pohon-app/internal/model"
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeCSV  = "text/csv; charset=utf-8"
)

// ParseFormat maps a query value to a Format; empty means xlsx.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Filename is <prefix>_YYYY-MM-DD_HHMMSS.<ext>.
func Filename(k Kind, f Format, at time.Time) string {
	prefix := "missing_trees"
	if k == KindDuplicates {
		prefix = "duplicate_coordinates"
	}
	return prefix + "_" + at.Format("2006-01-02_150405") + "." + string(f)
}

// Encode renders recs in the requested format.
func Encode(req Request, recs []model.TreeRecord) (*Result, error) {
	var (
		data []byte
		mime string
		err  error
	)
	switch req.Format {
	case FormatXLSX:
		data, err = encodeXLSX(sheetName(req.Kind), recs)
		mime = mimeXLSX
	case FormatCSV:
		data, err = encodeCSV(recs)
		mime = mimeCSV
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
	}
	if err != nil {
		return nil, err
	}
	return &Result{Data: data, Filename: Filename(req.Kind, req.Format, req.At), MimeType: mime, Rows: len(recs)}, nil
}

func sheetName(k Kind) string {
	if k == KindDuplicates {
		return "Duplicate Coordinates"
	}
	return "Missing Trees"
}

func encodeXLSX(sheet string, recs []model.TreeRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	head := make([]any, len(Headings))
	for i, h := range Headings {
		head[i] = excelize.Cell{StyleID: bold, Value: h}
	}
	if err := sw.SetRow("A1", head); err != nil {
		return nil, err
	}
	for i, r := range recs {
		row := Row(r)
		vals := make([]any, len(row))
		for j, v := range row {
			vals[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, vals); err != nil {
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, err
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCSV(recs []model.TreeRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Headings); err != nil {
		return nil, err
	}
	for _, r := range recs {
		if err := w.Write(Row(r)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
