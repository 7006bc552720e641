package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Farras8/cek-pohon-app/internal/auth"
	"github.com/Farras8/cek-pohon-app/internal/logging"
	"github.com/Farras8/cek-pohon-app/internal/pipeline"
	"github.com/Farras8/cek-pohon-app/internal/report"
)

// multipart headers on top of the file itself
const multipartSlack = 1 << 20

// UploadHandler handles POST /v1/trees/upload
func (s *Server) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r, auth.RoleSurveyor) {
		return
	}
	if s.Limiter != nil && !s.Limiter.Allow() {
		w.Header().Set("Retry-After", "1")
		writeFailure(w, http.StatusTooManyRequests, "Too many uploads, try again shortly")
		return
	}

	up, verr := s.readUpload(w, r)
	if verr != nil {
		writeJSON(w, http.StatusUnprocessableEntity, Envelope{
			Success: false,
			Message: verr.Error(),
			Errors:  map[string][]string{verr.Field: {verr.Message}},
		})
		return
	}

	res, err := s.Pipeline.Run(r.Context(), up)
	if err != nil {
		log := logging.FromContext(r.Context())
		if errors.Is(err, pipeline.ErrBusy) {
			log.Warn().Str("file", up.Filename).Msg("upload rejected, pipeline busy")
			writeFailure(w, http.StatusConflict, "Failed to process file: "+err.Error())
			return
		}
		log.Error().Err(err).Str("file", up.Filename).Msg("upload failed")
		writeFailure(w, http.StatusInternalServerError, "Failed to process file: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: "File processed successfully", Data: res})
}

// readUpload extracts the multipart "file" field, enforcing MaxUpload.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (pipeline.Upload, *pipeline.ValidationError) {
	tooLarge := &pipeline.ValidationError{Field: "file", Message: fmt.Sprintf("The file must not be greater than %d kilobytes.", s.MaxUpload/1024)}
	required := &pipeline.ValidationError{Field: "file", Message: "The file field is required."}

	r.Body = http.MaxBytesReader(w, r.Body, s.MaxUpload+multipartSlack)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return pipeline.Upload{}, tooLarge
		}
		return pipeline.Upload{}, required
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return pipeline.Upload{}, required
	}
	defer func() { _ = f.Close() }()
	if hdr.Size > s.MaxUpload {
		return pipeline.Upload{}, tooLarge
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(f, s.MaxUpload+1)); err != nil {
		return pipeline.Upload{}, required
	}
	if int64(buf.Len()) > s.MaxUpload {
		return pipeline.Upload{}, tooLarge
	}
	if buf.Len() == 0 {
		return pipeline.Upload{}, required
	}
	return pipeline.Upload{Filename: hdr.Filename, Data: buf.Bytes()}, nil
}

// MissingHandler handles GET /v1/trees/missing
func (s *Server) MissingHandler(w http.ResponseWriter, r *http.Request) {
	if !s.readable(w, r) {
		return
	}
	v, err := s.Reports.Missing(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List missing failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// DuplicatesHandler handles GET /v1/trees/duplicates
func (s *Server) DuplicatesHandler(w http.ResponseWriter, r *http.Request) {
	if !s.readable(w, r) {
		return
	}
	v, err := s.Reports.Duplicates(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List duplicates failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// SummaryHandler handles GET /v1/trees/summary
func (s *Server) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	if !s.readable(w, r) {
		return
	}
	d, err := s.Reports.Dashboard(r.Context())
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Summary failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// ExportHandler handles GET /v1/trees/export?format=xlsx|csv
func (s *Server) ExportHandler(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, report.KindMissing)
}

// ExportDuplicatesHandler handles GET /v1/trees/export-duplicates?format=xlsx|csv
func (s *Server) ExportDuplicatesHandler(w http.ResponseWriter, r *http.Request) {
	s.export(w, r, report.KindDuplicates)
}

func (s *Server) export(w http.ResponseWriter, r *http.Request, kind report.Kind) {
	if !s.readable(w, r) {
		return
	}
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid format", err.Error(), r.URL.Path)
		return
	}
	res, err := s.Reports.Export(r.Context(), report.Request{Kind: kind, Format: format})
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Export failed", err.Error(), r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", res.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

// DeleteSelectedHandler handles POST /v1/trees/delete-selected
func (s *Server) DeleteSelectedHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r, auth.RoleSurveyor) {
		return
	}
	ids, verr := decodeAssetIDs(r.Body)
	if verr != nil {
		writeJSON(w, http.StatusUnprocessableEntity, Envelope{
			Success: false,
			Message: verr.Error(),
			Errors:  map[string][]string{verr.Field: {verr.Message}},
		})
		return
	}
	n, err := s.Store.DeleteMissing(r.Context(), ids)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "Failed to delete trees: "+err.Error())
		return
	}
	logging.FromContext(r.Context()).Info().Int("requested", len(ids)).Int("deleted", n).Msg("missing trees deleted")
	writeJSON(w, http.StatusOK, Envelope{
		Success:      true,
		Message:      fmt.Sprintf("%d tree(s) deleted successfully", n),
		DeletedCount: &n,
	})
}

func decodeAssetIDs(body io.Reader) ([]string, *pipeline.ValidationError) {
	var req struct {
		AssetIDs json.RawMessage `json:"asset_ids"`
	}
	verr := &pipeline.ValidationError{Field: "asset_ids", Message: "The asset ids field must be an array."}
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, verr
	}
	raw := bytes.TrimSpace(req.AssetIDs)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, verr
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, verr
	}
	return ids, nil
}

// ClearHandler handles DELETE /v1/trees
func (s *Server) ClearHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(w, r, auth.RoleAdmin) {
		return
	}
	if err := s.Store.Clear(r.Context()); err != nil {
		writeFailure(w, http.StatusInternalServerError, "Failed to clear data: "+err.Error())
		return
	}
	logging.FromContext(r.Context()).Info().Msg("all tree data cleared")
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: "All data cleared successfully"})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}

// readable gates GET endpoints.
func (s *Server) readable(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return s.authorize(w, r, auth.RoleViewer)
}
