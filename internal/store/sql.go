package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Farras8/cek-pohon-app/internal/model"
)

const (
	tableUploaded = "uploaded_trees"
	tableMissing  = "missing_trees"
)

var treeColumns = []string{
	"asset_id", "company_id", "company_name", "variant_id", "variant_name",
	"planting_date", "tagging_date", "tagging_by", "estate_id", "estate_name",
	"division", "division_name", "block_id", "block", "tree_number",
	"latitude", "longitude", "uploaded_at",
}

// deleteChunk bounds the IN list of a single delete statement.
const deleteChunk = 500

// SQL implements Store over database/sql. Postgres and SQLite share it and
// differ only in dialect.
type SQL struct {
	db *sql.DB
	d  dialect
}

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQL) Close() error { return s.db.Close() }

// Migrate applies the embedded schema for this dialect.
func (s *SQL) Migrate(ctx context.Context) error {
	return applyMigrations(ctx, s.db, s.d)
}

func (s *SQL) BeginReplace(ctx context.Context) (Replacement, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	for _, t := range []string{tableUploaded, tableMissing} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			_ = tx.Rollback()
			return nil, fmt.Errorf("clear %s: %w", t, err)
		}
	}
	return &sqlReplacement{tx: tx, d: s.d}, nil
}

func (s *SQL) ListUploaded(ctx context.Context) ([]model.TreeRecord, error) {
	return s.list(ctx, tableUploaded)
}

func (s *SQL) ListMissing(ctx context.Context) ([]model.TreeRecord, error) {
	return s.list(ctx, tableMissing)
}

func (s *SQL) list(ctx context.Context, table string) ([]model.TreeRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+strings.Join(treeColumns, ", ")+" FROM "+table+" ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.TreeRecord{}
	for rows.Next() {
		r, err := scanTree(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQL) CountUploaded(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tableUploaded).Scan(&n)
	return n, err
}

func (s *SQL) DeleteMissing(ctx context.Context, assetIDs []string) (int, error) {
	if len(assetIDs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	total := 0
	for start := 0; start < len(assetIDs); start += deleteChunk {
		end := min(start+deleteChunk, len(assetIDs))
		chunk := assetIDs[start:end]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		q := "DELETE FROM " + tableMissing + " WHERE asset_id IN (" + placeholders(len(chunk)) + ")"
		res, err := tx.ExecContext(ctx, s.d.rebind(q), args...)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *SQL) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, t := range []string{tableUploaded, tableMissing} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return fmt.Errorf("clear %s: %w", t, err)
		}
	}
	return tx.Commit()
}

type sqlReplacement struct {
	tx *sql.Tx
	d  dialect
}

func (r *sqlReplacement) PutUploaded(ctx context.Context, recs []model.TreeRecord) error {
	return r.insert(ctx, tableUploaded, recs)
}

func (r *sqlReplacement) PutMissing(ctx context.Context, recs []model.TreeRecord) error {
	return r.insert(ctx, tableMissing, recs)
}

func (r *sqlReplacement) insert(ctx context.Context, table string, recs []model.TreeRecord) error {
	if len(recs) == 0 {
		return nil
	}
	q := "INSERT INTO " + table + " (" + strings.Join(treeColumns, ", ") + ") VALUES (" + placeholders(len(treeColumns)) + ")"
	stmt, err := r.tx.PrepareContext(ctx, r.d.rebind(q))
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for _, t := range recs {
		if _, err := stmt.ExecContext(ctx, treeArgs(t)...); err != nil {
			return fmt.Errorf("insert %s %s: %w", table, t.AssetID, err)
		}
	}
	return nil
}

func (r *sqlReplacement) Commit() error {
	if err := r.tx.Commit(); err != nil {
		if err == sql.ErrTxDone {
			return ErrReplacementDone
		}
		return err
	}
	return nil
}

func (r *sqlReplacement) Rollback() error {
	if err := r.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return err
	}
	return nil
}

func treeArgs(t model.TreeRecord) []any {
	return []any{
		t.AssetID, nullable(t.CompanyID), nullable(t.CompanyName), nullable(t.VariantID), nullable(t.VariantName),
		nullable(t.PlantingDate), nullable(t.TaggingDate), nullable(t.TaggingBy), nullable(t.EstateID), nullable(t.EstateName),
		t.Division, nullable(t.DivisionName), t.BlockID, t.Block, t.TreeNumber,
		nullable(t.Latitude), nullable(t.Longitude), nullable(t.UploadedAt),
	}
}

type scanner interface{ Scan(dest ...any) error }

func scanTree(sc scanner) (model.TreeRecord, error) {
	var t model.TreeRecord
	var companyID, companyName, variantID, variantName, planting, tagging, taggingBy,
		estateID, estateName, divisionName, lat, lng, uploadedAt sql.NullString
	err := sc.Scan(&t.AssetID, &companyID, &companyName, &variantID, &variantName,
		&planting, &tagging, &taggingBy, &estateID, &estateName,
		&t.Division, &divisionName, &t.BlockID, &t.Block, &t.TreeNumber,
		&lat, &lng, &uploadedAt)
	if err != nil {
		return t, err
	}
	t.CompanyID, t.CompanyName = ptr(companyID), ptr(companyName)
	t.VariantID, t.VariantName = ptr(variantID), ptr(variantName)
	t.PlantingDate, t.TaggingDate, t.TaggingBy = ptr(planting), ptr(tagging), ptr(taggingBy)
	t.EstateID, t.EstateName, t.DivisionName = ptr(estateID), ptr(estateName), ptr(divisionName)
	t.Latitude, t.Longitude, t.UploadedAt = ptr(lat), ptr(lng), ptr(uploadedAt)
	return t, nil
}

func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func ptr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
