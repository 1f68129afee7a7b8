package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/leadcraft/leadflow/internal/importer"
)

// importOptions is the JSON payload accepted in the "options" form field of
// an import request.
type importOptions struct {
	Assignment       string                    `json:"assignment"`
	AssigneeID       string                    `json:"assigneeId,omitempty"`
	SkipDuplicates   bool                      `json:"skipDuplicates"`
	CreateFormations bool                      `json:"createFormations"`
	Mapping          map[string]importer.Field `json:"mapping,omitempty"`
}

// handleStartImport accepts a multipart upload and starts an asynchronous
// import run, returning its id immediately.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	data, fileName, opts, err := s.readImportForm(w, r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	runID, err := s.imports.StartImport(r.Context(), fileName, data, opts)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	writeJSON(w, map[string]string{"runId": runID})
}

// handlePreviewMapping parses the file and returns the inferred header
// mapping with sample rows, without writing anything.
func (s *Server) handlePreviewMapping(w http.ResponseWriter, r *http.Request) {
	data, _, opts, err := s.readImportForm(w, r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	preview, err := s.imports.PreviewMapping(data, opts.Overrides)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	writeJSON(w, preview)
}

// readImportForm extracts the file bytes and pipeline options from a
// multipart request.
func (s *Server) readImportForm(w http.ResponseWriter, r *http.Request) ([]byte, string, importer.Options, error) {
	var opts importer.Options

	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		return nil, "", opts, fmt.Errorf("file too large or invalid form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", opts, fmt.Errorf("no file provided")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", opts, fmt.Errorf("read file: %w", err)
	}

	var payload importOptions
	if raw := r.FormValue("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return nil, "", opts, fmt.Errorf("invalid options payload: %w", err)
		}
	}

	opts = importer.Options{
		SkipDuplicates:          payload.SkipDuplicates,
		CreateMissingFormations: payload.CreateFormations,
		ChunkSize:               s.cfg.Import.ChunkSize,
		Overrides:               payload.Mapping,
	}

	switch payload.Assignment {
	case "", string(importer.AssignNone):
		opts.Assignment = importer.AssignNone
	case string(importer.AssignRoundRobin):
		opts.Assignment = importer.AssignRoundRobin
	case string(importer.AssignFixed):
		assignee, err := uuid.Parse(payload.AssigneeID)
		if err != nil {
			return nil, "", opts, fmt.Errorf("fixed assignment requires a valid assigneeId")
		}
		opts.Assignment = importer.AssignFixed
		opts.FixedAssignee = assignee
	default:
		return nil, "", opts, fmt.Errorf("unknown assignment mode %q", payload.Assignment)
	}

	return data, header.Filename, opts, nil
}

// handleImportProgress streams run progress via Server-Sent Events. The
// event id is the progress percentage, so clients reconnecting with
// Last-Event-ID skip updates they already saw.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	lastEventID := 0
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		lastEventID, _ = strconv.Atoi(v)
	}

	statusCh, err := s.imports.SubscribeProgress(runID)
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		select {
		case status, open := <-statusCh:
			if !open {
				return
			}
			if status.Percent < lastEventID {
				continue
			}
			payload, _ := json.Marshal(status)
			fmt.Fprintf(w, "id: %d\ndata: %s\n\n", status.Percent, payload)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// handleImportResult blocks until the run finishes, then returns its result.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	result, err := s.imports.Result(runID)
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, result)
}

// handleCancelImport cancels an in-progress run. Chunks already committed
// stay committed; the response reflects that the run is now cancelled, not
// rolled back.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	if err := s.imports.CancelRun(runID); err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]string{"status": "cancelling"})
}
