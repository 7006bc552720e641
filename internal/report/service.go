package report

import (
	"context"
	"fmt"
	"time"

	"github.com/Farras8/cek-pohon-app/internal/duplicates"
	"github.com/Farras8/cek-pohon-app/internal/model"
	"github.com/Farras8/cek-pohon-app/internal/store"
)

// Service answers read-side queries from the store.
type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(s store.Store) *Service {
	return &Service{store: s, now: time.Now}
}

func (s *Service) Missing(ctx context.Context) (map[string]model.MissingBlock, error) {
	recs, err := s.store.ListMissing(ctx)
	if err != nil {
		return nil, fmt.Errorf("list missing: %w", err)
	}
	return MissingBlocks(recs), nil
}

func (s *Service) Duplicates(ctx context.Context) ([]model.DuplicateGroup, error) {
	recs, err := s.store.ListUploaded(ctx)
	if err != nil {
		return nil, fmt.Errorf("list uploaded: %w", err)
	}
	return Duplicates(recs), nil
}

func (s *Service) Dashboard(ctx context.Context) (model.Dashboard, error) {
	up, err := s.store.ListUploaded(ctx)
	if err != nil {
		return model.Dashboard{}, fmt.Errorf("list uploaded: %w", err)
	}
	miss, err := s.store.ListMissing(ctx)
	if err != nil {
		return model.Dashboard{}, fmt.Errorf("list missing: %w", err)
	}
	return BuildDashboard(up, miss), nil
}

// Export renders the missing table, or the uploaded trees that belong to a
// duplicate-coordinate group.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	if req.At.IsZero() {
		req.At = s.now()
	}
	var recs []model.TreeRecord
	switch req.Kind {
	case KindMissing:
		miss, err := s.store.ListMissing(ctx)
		if err != nil {
			return nil, fmt.Errorf("list missing: %w", err)
		}
		recs = miss
	case KindDuplicates:
		up, err := s.store.ListUploaded(ctx)
		if err != nil {
			return nil, fmt.Errorf("list uploaded: %w", err)
		}
		recs = duplicates.Members(up)
	default:
		return nil, fmt.Errorf("unknown export kind %q", req.Kind)
	}
	return Encode(req, recs)
}
