package ingest

import (
	"context"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXReader reads the first worksheet of an xlsx workbook. Cell values are
// taken raw so date cells surface as spreadsheet serial numbers.
type XLSXReader struct{}

func (XLSXReader) Name() string { return "xlsx" }

func (XLSXReader) Read(ctx context.Context, r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &Table{Format: "xlsx"}, nil
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := &Table{Format: "xlsx"}
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cells, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, err
		}
		if out.Header == nil {
			out.Header = make([]string, len(cells))
			for i, c := range cells {
				out.Header[i] = columnName(c)
			}
			continue
		}
		if allEmpty(cells) {
			continue
		}
		out.Rows = append(out.Rows, buildRow(out.Header, cells))
	}
	if err := rows.Error(); err != nil {
		return nil, err
	}
	return out, nil
}
