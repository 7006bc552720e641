package model

// TreeRecord is the canonical survey row. It backs both the uploaded and the
// missing tables; optional fields are nil when the source had no value.
type TreeRecord struct {
	AssetID      string  `json:"asset_id"`
	CompanyID    *string `json:"company_id"`
	CompanyName  *string `json:"company_name"`
	VariantID    *string `json:"variant_id"`
	VariantName  *string `json:"variant_name"`
	PlantingDate *string `json:"planting_date"`
	TaggingDate  *string `json:"tagging_date"`
	TaggingBy    *string `json:"tagging_by"`
	EstateID     *string `json:"estate_id"`
	EstateName   *string `json:"estate_name"`
	Division     string  `json:"division"`
	DivisionName *string `json:"division_name"`
	BlockID      string  `json:"block_id"`
	Block        string  `json:"block"`
	TreeNumber   string  `json:"tree_number"`
	Latitude     *string `json:"latitude"`
	Longitude    *string `json:"longitude"`
	UploadedAt   *string `json:"uploaded_at"`
}

// BlockKey is the grouping key shared by the reconciler and the missing view.
func (t TreeRecord) BlockKey() string { return t.Division + "::" + t.Block }

// Str returns a pointer to v, or nil when v is empty.
func Str(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// Deref returns the pointed-to value or "".
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// MissingTree is one entry of a block in the missing view.
type MissingTree struct {
	TreeNumber string `json:"tree_number"`
	AssetID    string `json:"asset_id"`
}

// MissingBlock groups missing trees of one block for presentation.
type MissingBlock struct {
	Block    string        `json:"block"`
	Division string        `json:"division"`
	Total    int           `json:"total"`
	Trees    []MissingTree `json:"trees"`
}

// DuplicateMember is an uploaded tree sharing coordinates with another.
type DuplicateMember struct {
	AssetID    string `json:"asset_id"`
	Block      string `json:"block"`
	BlockID    string `json:"block_id"`
	Division   string `json:"division"`
	TreeNumber string `json:"tree_number"`
}

type DuplicateGroup struct {
	Latitude     string            `json:"latitude"`
	Longitude    string            `json:"longitude"`
	Count        int               `json:"count"`
	IsCrossBlock bool              `json:"is_cross_block"`
	Trees        []DuplicateMember `json:"trees"`
}

// UploadResult is the payload returned to the caller after a successful upload.
type UploadResult struct {
	UploadID             string         `json:"upload_id"`
	RowsRead             int            `json:"rows_read"`
	RowsKept             int            `json:"rows_kept"`
	TotalMissing         int            `json:"total_missing"`
	ByBlock              map[string]int `json:"by_block"`
	DuplicateCoordinates int            `json:"duplicate_coordinates"`
}

// Dashboard is the combined summary view.
type Dashboard struct {
	MissingTrees       map[string]MissingBlock `json:"missing_trees"`
	Duplicates         []DuplicateGroup        `json:"duplicates"`
	TotalUploadedTrees int                     `json:"total_uploaded_trees"`
	TotalMissingTrees  int                     `json:"total_missing_trees"`
}

// StageEvent is published at every pipeline transition.
type StageEvent struct {
	UploadID string         `json:"upload_id"`
	Stage    string         `json:"stage"`
	At       string         `json:"at"`
	Data     map[string]any `json:"data,omitempty"`
}
