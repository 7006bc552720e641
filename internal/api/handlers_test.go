package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Farras8/cek-pohon-app/internal/auth"
	"github.com/Farras8/cek-pohon-app/internal/config"
	"github.com/Farras8/cek-pohon-app/internal/model"
)

const threeRows = "asset_id,division,block,block_id,latitude,longitude\n" +
	"IPSRES0101A050001,01,A05,5,1.5,2.5\n" +
	"IPSRES0101A050003,01,A05,5,1.5,2.5\n" +
	"IPSRES0101A050004,01,A05,5,1.6,2.5\n"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(context.Background(), config.Config{AuthMode: "dev", UploadMaxBytes: 1 << 20}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func uploadRequest(t *testing.T, field, name string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/v1/trees/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, req)
	return rr
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = do(s, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
	rr = do(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, 200, rr.Code)
}

func TestUploadEndToEnd(t *testing.T) {
	s := newTestServer(t)
	rr := do(s, uploadRequest(t, "file", "trees.csv", []byte(threeRows)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var env struct {
		Success bool               `json:"success"`
		Message string             `json:"message"`
		Data    model.UploadResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, "File processed successfully", env.Message)
	assert.Equal(t, 1, env.Data.TotalMissing)
	assert.Equal(t, map[string]int{"01::A05": 1}, env.Data.ByBlock)
	assert.Equal(t, 1, env.Data.DuplicateCoordinates)

	rr = do(s, httptest.NewRequest(http.MethodGet, "/v1/trees/missing", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var missing map[string]model.MissingBlock
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &missing))
	assert.Equal(t, model.MissingBlock{
		Block: "A05", Division: "01", Total: 1,
		Trees: []model.MissingTree{{TreeNumber: "0002", AssetID: "IPSRES0101A050002"}},
	}, missing["01::A05"])

	rr = do(s, httptest.NewRequest(http.MethodGet, "/v1/trees/duplicates", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var dups []model.DuplicateGroup
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dups))
	require.Len(t, dups, 1)
	assert.Equal(t, 2, dups[0].Count)
	assert.False(t, dups[0].IsCrossBlock)

	rr = do(s, httptest.NewRequest(http.MethodGet, "/v1/trees/summary", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var dash model.Dashboard
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &dash))
	assert.Equal(t, 3, dash.TotalUploadedTrees)
	assert.Equal(t, 1, dash.TotalMissingTrees)
}

func TestUploadValidation(t *testing.T) {
	s := newTestServer(t)
	rr := do(s, uploadRequest(t, "other", "trees.csv", []byte(threeRows)))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "The file field is required.")

	s.MaxUpload = 16
	rr = do(s, uploadRequest(t, "file", "trees.csv", []byte(threeRows)))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), `"file"`)
}

func TestUploadFailureEnvelope(t *testing.T) {
	s := newTestServer(t)
	rr := do(s, uploadRequest(t, "file", "empty.html", []byte("<html><body>no rows</body></html>")))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.True(t, strings.HasPrefix(env.Message, "Failed to process file: "), env.Message)
}

func TestUploadBusy(t *testing.T) {
	s := newTestServer(t)
	unlock, err := s.Pipeline.Locker.TryLock(context.Background())
	require.NoError(t, err)
	defer unlock()
	rr := do(s, uploadRequest(t, "file", "trees.csv", []byte(threeRows)))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestUploadRateLimited(t *testing.T) {
	s := newTestServer(t)
	s.Limiter = rate.NewLimiter(0, 0)
	rr := do(s, uploadRequest(t, "file", "trees.csv", []byte(threeRows)))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestDeleteSelectedAndClear(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, do(s, uploadRequest(t, "file", "trees.csv", []byte(threeRows))).Code)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/trees/delete-selected", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return do(s, req)
	}

	rr := post(`{"asset_ids":"IPSRES0101A050002"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = post(`{"asset_ids":["NOPE"]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	require.NotNil(t, env.DeletedCount)
	assert.Equal(t, 0, *env.DeletedCount)
	assert.Equal(t, "0 tree(s) deleted successfully", env.Message)

	rr = post(`{"asset_ids":["IPSRES0101A050002","NOPE"]}`)
	require.Equal(t, http.StatusOK, rr.Code)
	env = Envelope{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.Equal(t, 1, *env.DeletedCount)

	rr = do(s, httptest.NewRequest(http.MethodDelete, "/v1/trees", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "All data cleared successfully")
	n, err := s.Store.CountUploaded(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExportEndpoints(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, do(s, uploadRequest(t, "file", "trees.csv", []byte(threeRows))).Code)

	rr := do(s, httptest.NewRequest(http.MethodGet, "/v1/trees/export?format=csv", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "missing_trees_")
	assert.True(t, strings.HasPrefix(rr.Body.String(), "Company ID,Company Name,Asset ID"))

	rr = do(s, httptest.NewRequest(http.MethodGet, "/v1/trees/export-duplicates", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "duplicate_coordinates_")
	assert.Contains(t, rr.Header().Get("Content-Disposition"), ".xlsx")

	rr = do(s, httptest.NewRequest(http.MethodGet, "/v1/trees/export?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAuthGating(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodDelete, "/v1/trees", nil)
	req.Header.Set("X-Role", auth.RoleViewer)
	assert.Equal(t, http.StatusForbidden, do(s, req).Code)

	s.Auth = auth.NewVerifier("hmac", "k")
	assert.Equal(t, http.StatusUnauthorized, do(s, httptest.NewRequest(http.MethodGet, "/v1/trees/missing", nil)).Code)

	tok, err := auth.SignHS256([]byte("k"), map[string]any{"sub": "ops", "role": "viewer"})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/v1/trees/missing", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusOK, do(s, req).Code)
}

func TestEventsWebSocket(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Routes())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/v1/events/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "connection_ack", msg.Type)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "trees.csv")
	require.NoError(t, err)
	_, _ = fw.Write([]byte(threeRows))
	require.NoError(t, mw.Close())
	resp, err := http.Post(ts.URL+"/v1/trees/upload", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stages []string
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for len(stages) < 7 {
		var m wsMessage
		require.NoError(t, conn.ReadJSON(&m))
		if m.Type == "stage" {
			stages = append(stages, m.Payload.Stage)
		}
	}
	assert.Equal(t, []string{
		"reading", "normalizing", "persisting_uploads", "reconciling",
		"persisting_missing", "reporting", "idle",
	}, stages)
}

func TestPanicRecovery(t *testing.T) {
	s := newTestServer(t)

	early := s.observe(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rr := httptest.NewRecorder()
	early.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/trees/missing", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Internal Server Error")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	late := s.observe(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"partial":`))
		panic("boom")
	}))
	rr = httptest.NewRecorder()
	late.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/trees/missing", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, `{"partial":`, rr.Body.String())
}
