package store

import (
	"context"
	"errors"

	"github.com/Farras8/cek-pohon-app/internal/model"
)

// Store is the persistence interface used by the pipeline and the API server.
// It holds two tables: the uploaded trees of the last upload and the missing
// trees derived from them.
type Store interface {
	// BeginReplace opens a staged replacement of both tables. Nothing is
	// visible to readers until Commit; Rollback leaves the prior state intact.
	BeginReplace(ctx context.Context) (Replacement, error)

	ListUploaded(ctx context.Context) ([]model.TreeRecord, error)
	ListMissing(ctx context.Context) ([]model.TreeRecord, error)
	CountUploaded(ctx context.Context) (int, error)

	// DeleteMissing removes missing trees by asset id and reports how many
	// rows were removed. Unknown ids are ignored.
	DeleteMissing(ctx context.Context, assetIDs []string) (int, error)
	// Clear empties both tables.
	Clear(ctx context.Context) error

	Close() error
}

// Replacement stages the contents of a new upload.
type Replacement interface {
	PutUploaded(ctx context.Context, recs []model.TreeRecord) error
	PutMissing(ctx context.Context, recs []model.TreeRecord) error
	Commit() error
	Rollback() error
}

var ErrReplacementDone = errors.New("replacement already committed or rolled back")
