package store

import (
	"strconv"
	"strings"
)

type dialect struct {
	name   string
	dollar bool // $1..$n placeholders instead of ?
}

var (
	dialectPostgres = dialect{name: "postgres", dollar: true}
	dialectSQLite   = dialect{name: "sqlite"}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(q string) string {
	if !d.dollar {
		return q
	}
	var sb strings.Builder
	sb.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(q[i])
	}
	return sb.String()
}
