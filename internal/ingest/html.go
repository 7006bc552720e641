package ingest

import (
	"context"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/html/charset"
)

// HTMLReader reads the first <table> of an HTML document. Some spreadsheet
// tools export "xls" files that are really HTML tables; this handles those.
type HTMLReader struct{}

func (HTMLReader) Name() string { return "html" }

func (HTMLReader) Read(ctx context.Context, r io.Reader) (*Table, error) {
	utf8, err := charset.NewReader(r, "text/html")
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(utf8)
	if err != nil {
		return nil, err
	}
	table := findFirst(doc, atom.Table)
	if table == nil {
		return nil, ErrNoTableFound
	}

	out := &Table{Format: "html"}
	for i, tr := range tableRows(table) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var cells []string
		if i == 0 {
			cells = cellTexts(tr, atom.Th)
			if len(cells) == 0 {
				cells = cellTexts(tr, atom.Td)
			}
		} else {
			cells = cellTexts(tr, atom.Td)
		}
		if allEmpty(cells) {
			continue
		}
		if out.Header == nil {
			out.Header = make([]string, len(cells))
			for j, c := range cells {
				out.Header[j] = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(c)), " ", "_")
			}
			continue
		}
		if len(cells) != len(out.Header) {
			continue
		}
		out.Rows = append(out.Rows, buildRow(out.Header, cells))
	}
	return out, nil
}

func findFirst(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, a); found != nil {
			return found
		}
	}
	return nil
}

// tableRows collects the <tr> elements of t, descending into thead/tbody/tfoot
// but not into nested tables.
func tableRows(t *html.Node) []*html.Node {
	var rows []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Tr:
				rows = append(rows, c)
			case atom.Thead, atom.Tbody, atom.Tfoot:
				walk(c)
			}
		}
	}
	walk(t)
	return rows
}

func cellTexts(tr *html.Node, a atom.Atom) []string {
	var out []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			out = append(out, strings.TrimSpace(textContent(c)))
		}
	}
	return out
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
