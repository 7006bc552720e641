package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const dateLayout = "02/01/2006 15:04:05"

// FormatCoordinate restores the dots some exports strip from coordinates.
// Values that already contain a dot are returned unchanged; otherwise a dot
// is inserted every three characters counting from the right, so 39416609
// becomes 39.416.609. Empty input yields nil.
func FormatCoordinate(v string) *string {
	if v == "" {
		return nil
	}
	if strings.Contains(v, ".") {
		return &v
	}
	r := []rune(v)
	var sb strings.Builder
	for i, c := range r {
		if i > 0 && (len(r)-i)%3 == 0 {
			sb.WriteByte('.')
		}
		sb.WriteRune(c)
	}
	out := sb.String()
	return &out
}

// ExcelDate renders numeric values as spreadsheet serial dates
// (DD/MM/YYYY HH:MM:SS). Other values pass through; empty yields nil.
func ExcelDate(v string) *string {
	if v == "" {
		return nil
	}
	serial, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(serial) || math.IsInf(serial, 0) {
		return &v
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return &v
	}
	out := t.Format(dateLayout)
	return &out
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
