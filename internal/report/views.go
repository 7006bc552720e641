package report

import (
	"math"
	"sort"
	"strconv"

	"github.com/Farras8/cek-pohon-app/internal/duplicates"
	"github.com/Farras8/cek-pohon-app/internal/model"
)

// treeOrder is the numeric value of a tree number; non-numeric values sort last.
func treeOrder(tn string) int {
	n, err := strconv.Atoi(tn)
	if err != nil {
		return math.MaxInt
	}
	return n
}

// MissingBlocks groups missing trees by block key. Trees within a block are
// ordered by tree number.
func MissingBlocks(recs []model.TreeRecord) map[string]model.MissingBlock {
	out := map[string]model.MissingBlock{}
	for _, r := range recs {
		k := r.BlockKey()
		b, ok := out[k]
		if !ok {
			b = model.MissingBlock{Block: r.Block, Division: r.Division}
		}
		b.Trees = append(b.Trees, model.MissingTree{TreeNumber: r.TreeNumber, AssetID: r.AssetID})
		b.Total++
		out[k] = b
	}
	for k, b := range out {
		sort.SliceStable(b.Trees, func(i, j int) bool {
			return treeOrder(b.Trees[i].TreeNumber) < treeOrder(b.Trees[j].TreeNumber)
		})
		out[k] = b
	}
	return out
}

// Duplicates is the duplicate-coordinate view of the uploaded trees.
func Duplicates(uploaded []model.TreeRecord) []model.DuplicateGroup {
	return duplicates.Views(uploaded)
}

// BuildDashboard combines both views with the uploaded count.
func BuildDashboard(uploaded, missing []model.TreeRecord) model.Dashboard {
	return model.Dashboard{
		MissingTrees:       MissingBlocks(missing),
		Duplicates:         Duplicates(uploaded),
		TotalUploadedTrees: len(uploaded),
		TotalMissingTrees:  len(missing),
	}
}

// Row flattens a record into export column order.
func Row(r model.TreeRecord) []string {
	d := model.Deref
	return []string{
		d(r.CompanyID), d(r.CompanyName), r.AssetID, d(r.VariantID), d(r.VariantName),
		d(r.PlantingDate), d(r.TaggingDate), d(r.TaggingBy), d(r.EstateID), d(r.EstateName),
		r.Division, d(r.DivisionName), r.BlockID, r.Block, r.TreeNumber,
		d(r.Latitude), d(r.Longitude), d(r.UploadedAt),
	}
}
