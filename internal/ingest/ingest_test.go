package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSniff(t *testing.T) {
	cases := map[string]Shape{
		"  \n<!DOCTYPE html><html><body></body></html>": ShapeMarkup,
		"<table><tr><td>x</td></tr></table>":            ShapeMarkup,
		"<HTML>":                                         ShapeMarkup,
		"<xml version='1.0'>":                            ShapeTabular,
		"asset_id,division\n":                            ShapeTabular,
		"":                                               ShapeTabular,
		"\xEF\xBB\xBF<table>":                            ShapeMarkup,
	}
	for in, want := range cases {
		assert.Equal(t, want, Sniff([]byte(in)), "%q", in)
	}
}

func TestSniffOnlyLooksAtHead(t *testing.T) {
	data := "<" + strings.Repeat(" ", 2000) + "<table>"
	assert.Equal(t, ShapeTabular, Sniff([]byte(data)))
}

func TestHTMLReader(t *testing.T) {
	doc := `<html><body>
<table>
  <tr><th>Asset ID</th><th>Division</th><th> Block Name </th></tr>
  <tr><td></td><td> </td><td></td></tr>
  <tr><td>IPSRES0101A050001</td><td>01</td><td>A05</td></tr>
  <tr><td>short</td><td>row</td></tr>
  <tr><td>IPSRES0101A050002</td><td>01</td><td><b>A05</b></td></tr>
</table>
<table><tr><th>ignored</th></tr></table>
</body></html>`
	tb, err := ReadAll(context.Background(), []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "html", tb.Format)
	assert.Equal(t, []string{"asset_id", "division", "block_name"}, tb.Header)
	require.Len(t, tb.Rows, 2)
	assert.Equal(t, RawRow{"asset_id": "IPSRES0101A050002", "division": "01", "block_name": "A05"}, tb.Rows[1])
}

func TestHTMLHeaderFallsBackToTD(t *testing.T) {
	doc := `<table><tr><td>Asset Id</td><td>Lat</td></tr><tr><td>x</td><td>1.2</td></tr></table>`
	tb, err := ReadAll(context.Background(), []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"asset_id", "lat"}, tb.Header)
	require.Len(t, tb.Rows, 1)
	assert.Equal(t, "1.2", tb.Rows[0]["lat"])
}

func TestHTMLNoTable(t *testing.T) {
	_, err := ReadAll(context.Background(), []byte(`<!doctype html><html><body><p>nothing</p></body></html>`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoTableFound))
}

func TestCSVReader(t *testing.T) {
	data := "\xEF\xBB\xBFAsset ID;Division;Block\nIPSRES0101A050001;01;A05\n;;\nIPSRES0101A050003;01\n"
	tb, err := ReadAll(context.Background(), []byte(data))
	require.NoError(t, err)
	assert.Equal(t, "csv", tb.Format)
	assert.Equal(t, []string{"asset id", "division", "block"}, tb.Header)
	require.Len(t, tb.Rows, 2)
	assert.Equal(t, "", tb.Rows[1]["block"])
	assert.Equal(t, "IPSRES0101A050003", tb.Rows[1]["asset id"])
}

func TestXLSXReader(t *testing.T) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Asset ID", "Division ID", "Block Name", "Created At"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"IPSRES0101A050001", "01", "A05", 45292.5}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]any{"IPSRES0101A050002", "01", "A05", "n/a"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	tb, err := ReadAll(context.Background(), buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "xlsx", tb.Format)
	assert.Equal(t, []string{"asset id", "division id", "block name", "created at"}, tb.Header)
	require.Len(t, tb.Rows, 2)
	assert.Equal(t, "45292.5", tb.Rows[0]["created at"])
	assert.Equal(t, "n/a", tb.Rows[1]["created at"])
}

func TestLegacyXLSRejected(t *testing.T) {
	_, err := ReadAll(context.Background(), []byte{0xD0, 0xCF, 0x11, 0xE0, 0, 0})
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "xls", pe.Format)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadAllCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadAll(ctx, []byte("a,b\n1,2\n"))
	assert.ErrorIs(t, err, context.Canceled)
}
