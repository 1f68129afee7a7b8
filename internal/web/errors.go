package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/leadcraft/leadflow/internal/importer"
	"github.com/leadcraft/leadflow/internal/logging"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Line  int    `json:"line,omitempty"`
}

// respondError logs the technical error server-side and writes a structured
// JSON response. Parse and mapping failures keep their detail: they happen
// before any write and the user needs them to fix the file.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
	)

	resp := ErrorResponse{Error: err.Error()}

	var parseErr *importer.ParseError
	var mappingErr *importer.MappingError
	switch {
	case errors.As(err, &parseErr):
		resp.Code = "PARSE_ERROR"
		resp.Line = parseErr.Line
		statusCode = http.StatusUnprocessableEntity
	case errors.As(err, &mappingErr):
		resp.Code = "MAPPING_ERROR"
		statusCode = http.StatusUnprocessableEntity
	case errors.Is(err, importer.ErrTooManyImports):
		resp.Code = "TOO_MANY_IMPORTS"
		statusCode = http.StatusTooManyRequests
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// writeError writes a bare JSON error with the given status.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// writeJSON encodes v as JSON and writes it to w.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
