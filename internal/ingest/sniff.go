package ingest

import (
	"bytes"
)

// Shape is the coarse input kind detected from the leading bytes.
type Shape int

const (
	ShapeTabular Shape = iota
	ShapeMarkup
)

func (s Shape) String() string {
	if s == ShapeMarkup {
		return "markup"
	}
	return "tabular"
}

const sniffLen = 1024

var markupTokens = [][]byte{[]byte("<html"), []byte("<table"), []byte("<!doctype")}

// Sniff inspects at most the first 1KB. Input is markup when, after leading
// whitespace, it starts with '<' and mentions an html, table or doctype tag.
func Sniff(data []byte) Shape {
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	head = bytes.TrimPrefix(head, []byte("\xEF\xBB\xBF"))
	head = bytes.TrimLeft(head, " \t\r\n\f\v")
	if len(head) == 0 || head[0] != '<' {
		return ShapeTabular
	}
	lower := bytes.ToLower(head)
	for _, tok := range markupTokens {
		if bytes.Contains(lower, tok) {
			return ShapeMarkup
		}
	}
	return ShapeTabular
}
