package assetid

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	cases := []struct {
		division, block, tree, want string
	}{
		{"01", "05", "0012", "IPSRES0101A050012"},
		{"1", "5", "0012", "IPSRES0101A050012"},
		{"02", "12", "0100", "IPSRES0102B120100"},
		{"3", "B-7", "0001", "IPSRES0103B070001"},
		{"abc", "1", "0001", "IPSRES0100B010001"},
		{"01", "123", "0001", "IPSRES0101A1230001"},
	}
	for _, c := range cases {
		got := Encode(c.division, c.block, c.tree)
		assert.Equal(t, c.want, got, "Encode(%q,%q,%q)", c.division, c.block, c.tree)
	}
}

func TestDecode(t *testing.T) {
	id, ok := Decode("IPSRES0101A050012")
	require.True(t, ok)
	assert.Equal(t, Identifier{Division: "01", BlockCode: "A05", TreeNumber: "0012"}, id)
	assert.Equal(t, "A", id.Letter())

	for _, bad := range []string{"", "IPSRES0101C050012", "IPSRES0101A05001", "XIPSRES0101A050012", "IPSRES0101A0500123", "ipsres0101a050012"} {
		_, ok := Decode(bad)
		assert.False(t, ok, bad)
		assert.False(t, Valid(bad), bad)
	}
}

func TestRoundTrip(t *testing.T) {
	for d := 0; d < 100; d += 7 {
		for b := 0; b < 100; b += 11 {
			for _, tn := range []string{"0000", "0001", "0420", "9999"} {
				div := fmt.Sprintf("%02d", d)
				blk := fmt.Sprintf("%02d", b)
				id, ok := Decode(Encode(div, blk, tn))
				require.True(t, ok)
				assert.Equal(t, div, id.Division)
				assert.Equal(t, blk, id.BlockCode[1:])
				assert.Equal(t, tn, id.TreeNumber)
				want := "B"
				if div == "01" {
					want = "A"
				}
				assert.Equal(t, want, id.Letter())
			}
		}
	}
}

func TestLeadingInt(t *testing.T) {
	assert.Equal(t, 1, leadingInt("01"))
	assert.Equal(t, 12, leadingInt(" 12abc"))
	assert.Equal(t, 0, leadingInt("x1"))
	assert.Equal(t, 0, leadingInt(""))
}

func TestPadDivision(t *testing.T) {
	for _, in := range []string{"1", "01", "001", " 1", "1.0"} {
		assert.Equal(t, "01", PadDivision(in), in)
	}
	assert.Equal(t, "12", PadDivision("12"))
	assert.Equal(t, "00", PadDivision("x"))
}
