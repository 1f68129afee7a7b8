package web

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

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadcraft/leadflow/internal/config"
	"github.com/leadcraft/leadflow/internal/importer"
	"github.com/leadcraft/leadflow/internal/lead"
)

// In-memory stores backing the import service under test. The read endpoints
// use the pgx-backed stores directly and are covered by integration tests
// against a real database.

type memLeadStore struct {
	identities []importer.LeadIdentity
	inserted   []*importer.Record
}

func (s *memLeadStore) Identities(context.Context) ([]importer.LeadIdentity, error) {
	return append([]importer.LeadIdentity(nil), s.identities...), nil
}

func (s *memLeadStore) FindByEmailOrPhone(_ context.Context, email, phone string) (*importer.LeadIdentity, error) {
	for _, id := range s.identities {
		if (email != "" && id.Email == email) || (phone != "" && id.Phone == phone) {
			match := id
			return &match, nil
		}
	}
	return nil, nil
}

func (s *memLeadStore) InsertLeads(_ context.Context, records []*importer.Record) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, len(records))
	for i := range records {
		ids[i] = uuid.New()
	}
	s.inserted = append(s.inserted, records...)
	return ids, nil
}

func (s *memLeadStore) MarkDuplicate(context.Context, uuid.UUID, uuid.UUID, []string) error {
	return nil
}

type memFormationStore struct{}

func (memFormationStore) List(context.Context) ([]lead.Formation, error) { return nil, nil }
func (memFormationStore) Create(_ context.Context, f lead.Formation) (lead.Formation, error) {
	f.ID = uuid.New()
	return f, nil
}

type memTeamStore struct{}

func (memTeamStore) Roster(context.Context) ([]lead.TeamMember, error) { return nil, nil }

func testServer(t *testing.T) (*Server, *memLeadStore) {
	t.Helper()

	leads := &memLeadStore{}
	svc := importer.NewService(leads, memFormationStore{}, memTeamStore{}, importer.ServiceConfig{
		MaxConcurrent: 2,
		MaxWait:       time.Second,
		RunTimeout:    5 * time.Second,
	})

	cfg := &config.Config{}
	cfg.Server.RequestTimeout = time.Minute
	cfg.Import.MaxFileSize = 1 << 20
	cfg.Import.ChunkSize = 500
	cfg.CORS.AllowedOrigins = []string{"*"}

	return NewServer(svc, nil, nil, nil, cfg), leads
}

func multipartBody(t *testing.T, fileName, fileData, options string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write([]byte(fileData))
	require.NoError(t, err)
	if options != "" {
		require.NoError(t, mw.WriteField("options", options))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStartImportAndFetchResult(t *testing.T) {
	srv, leads := testServer(t)

	body, contentType := multipartBody(t, "leads.csv", "Prénom,Email\nJean,jean@x.com\n", "")
	req := httptest.NewRequest(http.MethodPost, "/api/imports", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var started map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	runID := started["runId"]
	require.NotEmpty(t, runID)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/imports/"+runID+"/result", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var result importer.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.Inserted)
	assert.Equal(t, "leads.csv", result.FileName)
	assert.Len(t, leads.inserted, 1)
}

func TestStartImportRejectsUnknownAssignment(t *testing.T) {
	srv, _ := testServer(t)

	body, contentType := multipartBody(t, "leads.csv", "Email\na@b.com\n",
		`{"assignment":"sideways"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/imports", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartImportFixedAssignmentNeedsAssignee(t *testing.T) {
	srv, _ := testServer(t)

	body, contentType := multipartBody(t, "leads.csv", "Email\na@b.com\n",
		`{"assignment":"fixed"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/imports", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "assigneeId")
}

func TestPreviewMapping(t *testing.T) {
	srv, _ := testServer(t)

	body, contentType := multipartBody(t, "leads.csv", "Prénom,Email\nJean,jean@x.com\n", "")
	req := httptest.NewRequest(http.MethodPost, "/api/imports/preview", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var preview importer.MappingPreview
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.Equal(t, importer.FieldFirstName, preview.Fields["Prénom"])
	assert.Equal(t, importer.FieldEmail, preview.Fields["Email"])
	assert.True(t, preview.HasIdentity)
	assert.Equal(t, 1, preview.RowCount)
}

func TestPreviewMappingEmptyFile(t *testing.T) {
	srv, _ := testServer(t)

	body, contentType := multipartBody(t, "empty.csv", "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/imports/preview", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "PARSE_ERROR", resp.Code)
}

func TestImportProgressStreamsEvents(t *testing.T) {
	srv, _ := testServer(t)

	body, contentType := multipartBody(t, "leads.csv", "Email\na@b.com\n", "")
	req := httptest.NewRequest(http.MethodPost, "/api/imports", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var started map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	runID := started["runId"]

	// Wait for the run to finish so the stream is deterministic: one final
	// event, then close.
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/imports/"+runID+"/result", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/imports/"+runID+"/progress", nil))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.True(t, strings.Contains(rec.Body.String(), "data:"), "expected at least one SSE event: %q", rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"phase":"complete"`)
}

func TestProgressUnknownRun(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/imports/nope/progress", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelUnknownRun(t *testing.T) {
	srv, _ := testServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/imports/nope/cancel", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow("1.2.3.4"), "request %d should pass", i+1)
	}
	assert.False(t, rl.allow("1.2.3.4"), "fourth request should be limited")
	assert.True(t, rl.allow("5.6.7.8"), "limits are per client address")
}
