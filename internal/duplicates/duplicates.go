// Package duplicates finds uploaded trees that share identical coordinates.
package duplicates

import (
	"github.com/Farras8/cek-pohon-app/internal/model"
)

// Group is a coordinate pair shared by more than one record.
type Group struct {
	Latitude  string
	Longitude string
	Records   []model.TreeRecord
}

// CrossBlock reports whether the members span more than one block name.
func (g Group) CrossBlock() bool {
	for _, r := range g.Records[1:] {
		if r.Block != g.Records[0].Block {
			return true
		}
	}
	return false
}

// View converts the group to its presentation form.
func (g Group) View() model.DuplicateGroup {
	out := model.DuplicateGroup{
		Latitude:     g.Latitude,
		Longitude:    g.Longitude,
		Count:        len(g.Records),
		IsCrossBlock: g.CrossBlock(),
		Trees:        make([]model.DuplicateMember, 0, len(g.Records)),
	}
	for _, r := range g.Records {
		out.Trees = append(out.Trees, model.DuplicateMember{
			AssetID:    r.AssetID,
			Block:      r.Block,
			BlockID:    r.BlockID,
			Division:   r.Division,
			TreeNumber: r.TreeNumber,
		})
	}
	return out
}

// Detect groups records by their exact latitude/longitude strings in
// first-seen order. Records without both coordinates are skipped. No
// numeric tolerance is applied.
func Detect(records []model.TreeRecord) []Group {
	idx := map[string]int{}
	var groups []Group
	for _, r := range records {
		lat, lng := model.Deref(r.Latitude), model.Deref(r.Longitude)
		if lat == "" || lng == "" {
			continue
		}
		k := lat + "," + lng
		i, ok := idx[k]
		if !ok {
			i = len(groups)
			idx[k] = i
			groups = append(groups, Group{Latitude: lat, Longitude: lng})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	out := groups[:0]
	for _, g := range groups {
		if len(g.Records) > 1 {
			out = append(out, g)
		}
	}
	return out
}

// Views runs Detect and returns presentation groups.
func Views(records []model.TreeRecord) []model.DuplicateGroup {
	groups := Detect(records)
	out := make([]model.DuplicateGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, g.View())
	}
	return out
}

// Members flattens the records of every duplicate group in group order.
func Members(records []model.TreeRecord) []model.TreeRecord {
	var out []model.TreeRecord
	for _, g := range Detect(records) {
		out = append(out, g.Records...)
	}
	return out
}
