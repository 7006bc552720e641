package normalize

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field is a canonical tree record column.
type Field string

const (
	FieldAssetID      Field = "asset_id"
	FieldCompanyID    Field = "company_id"
	FieldCompanyName  Field = "company_name"
	FieldVariantID    Field = "variant_id"
	FieldVariantName  Field = "variant_name"
	FieldPlantingDate Field = "planting_date"
	FieldTaggingDate  Field = "tagging_date"
	FieldTaggingBy    Field = "tagging_by"
	FieldEstateID     Field = "estate_id"
	FieldEstateName   Field = "estate_name"
	FieldDivision     Field = "division"
	FieldDivisionName Field = "division_name"
	FieldBlockID      Field = "block_id"
	FieldBlock        Field = "block"
	FieldTreeNumber   Field = "tree_number"
	FieldLatitude     Field = "latitude"
	FieldLongitude    Field = "longitude"
	FieldUploadedAt   Field = "uploaded_at"
)

// Fields lists every canonical field in export order.
var Fields = []Field{
	FieldCompanyID, FieldCompanyName, FieldAssetID, FieldVariantID, FieldVariantName,
	FieldPlantingDate, FieldTaggingDate, FieldTaggingBy, FieldEstateID, FieldEstateName,
	FieldDivision, FieldDivisionName, FieldBlockID, FieldBlock, FieldTreeNumber,
	FieldLatitude, FieldLongitude, FieldUploadedAt,
}

// Aliases maps a canonical field to the source column names tried in order.
type Aliases map[Field][]string

// DefaultAliases returns the built-in column variants. Order matters: the
// first alias holding a non-empty value wins.
func DefaultAliases() Aliases {
	return Aliases{
		FieldAssetID:      {"asset_id", "asset id", "assetid"},
		FieldCompanyID:    {"company_id", "company id", "companyid"},
		FieldCompanyName:  {"company_name", "company name", "companyname"},
		FieldVariantID:    {"variant_id", "variant id", "variantid"},
		FieldVariantName:  {"variant_name", "variant name", "variantname"},
		FieldPlantingDate: {"planting_date", "planting date", "plantingdate"},
		FieldTaggingDate:  {"tagging_date", "tagging date", "taggingdate"},
		FieldTaggingBy:    {"tagging_by", "tagging by", "taggingby"},
		FieldEstateID:     {"estate_id", "estate id", "estateid"},
		FieldEstateName:   {"estate_name", "estate name", "estatename"},
		FieldDivision:     {"division_id", "division id", "divisionid", "division"},
		FieldDivisionName: {"division_name", "division name", "divisionname"},
		FieldBlockID:      {"block_id", "block id", "blockid"},
		FieldBlock:        {"block_name", "block name", "blockname", "block"},
		FieldTreeNumber:   {"tree_number", "tree number", "treenumber", "tree_no", "tree no"},
		FieldLatitude:     {"latitude", "lat"},
		FieldLongitude:    {"longitude", "lng", "long"},
		FieldUploadedAt:   {"created_at", "created at", "createdat", "sended_at", "sended at", "uploaded_at", "uploaded at"},
	}
}

type aliasFile struct {
	Aliases map[string][]string `yaml:"aliases"`
}

// LoadAliases reads extra column variants from a YAML file of the form
//
//	aliases:
//	  asset_id: ["kode aset"]
//
// and appends them after the defaults.
func LoadAliases(path string) (Aliases, error) {
	a := DefaultAliases()
	if strings.TrimSpace(path) == "" {
		return a, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aliases: %w", err)
	}
	var af aliasFile
	if err := yaml.Unmarshal(b, &af); err != nil {
		return nil, fmt.Errorf("parse aliases %s: %w", path, err)
	}
	for k, extra := range af.Aliases {
		f := Field(strings.ToLower(strings.TrimSpace(k)))
		if _, ok := a[f]; !ok {
			return nil, fmt.Errorf("parse aliases %s: unknown field %q", path, k)
		}
		for _, e := range extra {
			if e = strings.ToLower(strings.Join(strings.Fields(e), " ")); e != "" {
				a[f] = append(a[f], e)
			}
		}
	}
	return a, nil
}
