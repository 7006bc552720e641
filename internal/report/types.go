// Package report builds the read-side views and the spreadsheet exports of
// the reconciled survey.
package report

import (
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// Kind selects which table is exported.
type Kind string

const (
	KindMissing    Kind = "missing"
	KindDuplicates Kind = "duplicates"
)

// Request contains parameters for an export operation
type Request struct {
	Kind   Kind
	Format Format
	At     time.Time
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
	Rows     int
}

// ErrUnsupportedFormat is returned for formats other than xlsx and csv.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Headings are the export column titles, in column order.
var Headings = []string{
	"Company ID", "Company Name", "Asset ID", "Variant ID", "Variant Name",
	"Planting Date", "Tagging Date", "Tagging By", "Estate ID", "Estate Name",
	"Division ID", "Division Name", "Block ID", "Block Name", "Tree Number",
	"Latitude", "Longitude", "Sended At",
}
