package duplicates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Farras8/cek-pohon-app/internal/model"
)

func at(asset, block, lat, lng string) model.TreeRecord {
	return model.TreeRecord{AssetID: asset, Division: "01", Block: block, BlockID: "5", TreeNumber: asset[len(asset)-4:],
		Latitude: model.Str(lat), Longitude: model.Str(lng)}
}

func TestDetectSameBlock(t *testing.T) {
	in := []model.TreeRecord{
		at("X0001", "A05", "1.5", "2.5"),
		at("X0002", "A05", "1.5", "2.5"),
		at("X0003", "A05", "1.6", "2.5"),
	}
	v := Views(in)
	require.Len(t, v, 1)
	assert.Equal(t, "1.5", v[0].Latitude)
	assert.Equal(t, 2, v[0].Count)
	assert.False(t, v[0].IsCrossBlock)
	assert.Equal(t, "X0002", v[0].Trees[1].AssetID)
}

func TestDetectCrossBlock(t *testing.T) {
	in := []model.TreeRecord{
		at("X0001", "A05", "1.5", "2.5"),
		at("X0002", "A06", "1.5", "2.5"),
	}
	v := Views(in)
	require.Len(t, v, 1)
	assert.True(t, v[0].IsCrossBlock)
}

func TestDetectExactStringsOnly(t *testing.T) {
	in := []model.TreeRecord{
		at("X0001", "A05", "1.50", "2.5"),
		at("X0002", "A05", "1.5", "2.5"),
		at("X0003", "A05", "", "2.5"),
		at("X0004", "A05", "", "2.5"),
	}
	assert.Empty(t, Detect(in))
}

func TestDetectOrderAndMembers(t *testing.T) {
	in := []model.TreeRecord{
		at("X0001", "A", "9", "9"),
		at("X0002", "A", "1", "1"),
		at("X0003", "A", "1", "1"),
		at("X0004", "B", "9", "9"),
		at("X0005", "B", "9", "9"),
	}
	groups := Detect(in)
	require.Len(t, groups, 2)
	assert.Equal(t, "9", groups[0].Latitude)
	assert.Len(t, groups[0].Records, 3)
	assert.True(t, groups[0].CrossBlock())

	var ids []string
	for _, r := range Members(in) {
		ids = append(ids, r.AssetID)
	}
	assert.Equal(t, []string{"X0001", "X0004", "X0005", "X0002", "X0003"}, ids)
}
