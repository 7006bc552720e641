// Package normalize maps header-keyed rows onto the canonical tree record.
package normalize

import (
	"context"

	"github.com/Farras8/cek-pohon-app/internal/assetid"
	"github.com/Farras8/cek-pohon-app/internal/ingest"
	"github.com/Farras8/cek-pohon-app/internal/model"
)

// Stats counts what happened to the input rows.
type Stats struct {
	Read                  int `json:"read"`
	Kept                  int `json:"kept"`
	DroppedMissingColumns int `json:"dropped_missing_columns"`
	DroppedNoTreeNumber   int `json:"dropped_no_tree_number"`
}

type Normalizer struct {
	aliases Aliases
}

func New(a Aliases) *Normalizer {
	if a == nil {
		a = DefaultAliases()
	}
	return &Normalizer{aliases: a}
}

// Normalize converts rows in input order. A row is kept only when asset id,
// division, block name and block id are present and a tree number can be
// derived from a tree-number column or from the asset id.
func (n *Normalizer) Normalize(ctx context.Context, rows []ingest.RawRow) ([]model.TreeRecord, Stats, error) {
	st := Stats{Read: len(rows)}
	out := make([]model.TreeRecord, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, st, err
		}
		rec, reason := n.record(row)
		switch reason {
		case dropMissingColumns:
			st.DroppedMissingColumns++
			continue
		case dropNoTreeNumber:
			st.DroppedNoTreeNumber++
			continue
		}
		out = append(out, rec)
	}
	st.Kept = len(out)
	return out, st, nil
}

type dropReason int

const (
	keep dropReason = iota
	dropMissingColumns
	dropNoTreeNumber
)

// record normalizes a single row.
func (n *Normalizer) record(row ingest.RawRow) (model.TreeRecord, dropReason) {
	get := func(f Field) string { return n.lookup(row, f) }

	asset := get(FieldAssetID)
	division := get(FieldDivision)
	block := get(FieldBlock)
	blockID := get(FieldBlockID)
	if asset == "" || division == "" || block == "" || blockID == "" {
		return model.TreeRecord{}, dropMissingColumns
	}

	// Tree numbers are four digits; a longer cell is treated as unusable.
	tree := get(FieldTreeNumber)
	if allDigits(tree) && len(tree) <= 4 {
		tree = padLeft(tree, 4)
	} else if id, ok := assetid.Decode(asset); ok {
		tree = id.TreeNumber
	} else {
		return model.TreeRecord{}, dropNoTreeNumber
	}

	return model.TreeRecord{
		AssetID:      asset,
		CompanyID:    model.Str(get(FieldCompanyID)),
		CompanyName:  model.Str(get(FieldCompanyName)),
		VariantID:    model.Str(get(FieldVariantID)),
		VariantName:  model.Str(get(FieldVariantName)),
		PlantingDate: ExcelDate(get(FieldPlantingDate)),
		TaggingDate:  ExcelDate(get(FieldTaggingDate)),
		TaggingBy:    model.Str(get(FieldTaggingBy)),
		EstateID:     model.Str(get(FieldEstateID)),
		EstateName:   model.Str(get(FieldEstateName)),
		Division:     assetid.PadDivision(division),
		DivisionName: model.Str(get(FieldDivisionName)),
		BlockID:      blockID,
		Block:        block,
		TreeNumber:   tree,
		Latitude:     FormatCoordinate(get(FieldLatitude)),
		Longitude:    FormatCoordinate(get(FieldLongitude)),
		UploadedAt:   ExcelDate(get(FieldUploadedAt)),
	}, keep
}

func (n *Normalizer) lookup(row ingest.RawRow, f Field) string {
	for _, name := range n.aliases[f] {
		if v := row[name]; v != "" {
			return v
		}
	}
	return ""
}
