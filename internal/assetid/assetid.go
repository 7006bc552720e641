// Package assetid encodes and decodes the structured tree identifiers printed
// on survey tags, e.g. IPSRES0101A050012.
package assetid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const Prefix = "IPSRES01"

var pattern = regexp.MustCompile(`^IPSRES01(\d{2})([AB]\d{2})(\d{4})$`)

var nonDigit = regexp.MustCompile(`\D`)

// Identifier is the decoded form of an asset id.
type Identifier struct {
	Division   string
	BlockCode  string // letter + 2 digits, e.g. "A05"
	TreeNumber string
}

// Letter returns the division letter encoded in the block code.
func (id Identifier) Letter() string {
	if id.BlockCode == "" {
		return ""
	}
	return id.BlockCode[:1]
}

// Encode builds an asset id. division is coerced to its leading integer
// ("01", "1" and "1x" all become 01). Non-digits are stripped from blockID,
// which is padded but never truncated. treeNumber is used as given.
func Encode(division, blockID, treeNumber string) string {
	div := PadDivision(division)
	letter := "B"
	if div == "01" {
		letter = "A"
	}
	block := nonDigit.ReplaceAllString(blockID, "")
	if len(block) < 2 {
		block = strings.Repeat("0", 2-len(block)) + block
	}
	return Prefix + div + letter + block + treeNumber
}

// Decode parses an asset id. ok is false for anything that does not match
// the exact format.
func Decode(assetID string) (Identifier, bool) {
	m := pattern.FindStringSubmatch(assetID)
	if m == nil {
		return Identifier{}, false
	}
	return Identifier{Division: m[1], BlockCode: m[2], TreeNumber: m[3]}, true
}

func Valid(assetID string) bool { return pattern.MatchString(assetID) }

// PadDivision renders a division as its leading integer, zero padded to two
// digits: "1", "001", " 1" and "1.0" are all "01".
func PadDivision(division string) string {
	return fmt.Sprintf("%02d", leadingInt(division))
}

// leadingInt mimics a lenient integer cast: optional whitespace and sign,
// then as many digits as present. Anything else yields 0.
func leadingInt(s string) int {
	s = strings.TrimLeft(s, " \t\n\r")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
