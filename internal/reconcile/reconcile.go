// Package reconcile finds the tree numbers missing from each block.
//
// Blocks are keyed by division and block display name. Every integer between
// the lowest and highest observed tree number of a block that was not
// observed is reported as a missing tree.
package reconcile

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/Farras8/cek-pohon-app/internal/assetid"
	"github.com/Farras8/cek-pohon-app/internal/model"
)

// Block is the set of uploaded records sharing a block key.
type Block struct {
	Key      string
	Division string
	Name     string
	Records  []model.TreeRecord
}

// Summary aggregates missing counts.
type Summary struct {
	TotalMissing int            `json:"total_missing"`
	ByBlock      map[string]int `json:"by_block"`
}

// Group partitions records by block key, keeping first-seen order.
func Group(records []model.TreeRecord) []Block {
	idx := map[string]int{}
	var blocks []Block
	for _, r := range records {
		k := r.BlockKey()
		i, ok := idx[k]
		if !ok {
			i = len(blocks)
			idx[k] = i
			blocks = append(blocks, Block{Key: k, Division: r.Division, Name: r.Block})
		}
		blocks[i].Records = append(blocks[i].Records, r)
	}
	return blocks
}

// Numbers returns the sorted distinct tree numbers of the block. Tree
// numbers that are not integers are ignored.
func (b Block) Numbers() []int {
	seen := map[int]struct{}{}
	var out []int
	for _, r := range b.Records {
		n, err := strconv.Atoi(r.TreeNumber)
		if err != nil {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// Missing returns the gaps within the block's observed range. Metadata is
// copied from the first record of the block; fields tied to a physical
// tree stay nil.
func (b Block) Missing() []model.TreeRecord {
	nums := b.Numbers()
	if len(nums) < 2 || len(b.Records) == 0 {
		return nil
	}
	sample := b.Records[0]
	var out []model.TreeRecord
	next := nums[0]
	for _, n := range nums {
		for ; next < n; next++ {
			tn := fmt.Sprintf("%04d", next)
			out = append(out, model.TreeRecord{
				AssetID:      assetid.Encode(sample.Division, sample.BlockID, tn),
				CompanyID:    sample.CompanyID,
				CompanyName:  sample.CompanyName,
				VariantID:    sample.VariantID,
				VariantName:  sample.VariantName,
				EstateID:     sample.EstateID,
				EstateName:   sample.EstateName,
				Division:     sample.Division,
				DivisionName: sample.DivisionName,
				BlockID:      sample.BlockID,
				Block:        sample.Block,
				TreeNumber:   tn,
			})
		}
		next = n + 1
	}
	return out
}

// Reconcile computes missing records for every block in first-seen block
// order, ascending tree number within a block.
func Reconcile(records []model.TreeRecord) ([]model.TreeRecord, Summary) {
	sum := Summary{ByBlock: map[string]int{}}
	var missing []model.TreeRecord
	for _, b := range Group(records) {
		m := b.Missing()
		if len(m) == 0 {
			continue
		}
		sum.ByBlock[b.Key] = len(m)
		sum.TotalMissing += len(m)
		missing = append(missing, m...)
	}
	return missing, sum
}
