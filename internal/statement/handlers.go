package statement

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/zombor/statement-lens/internal/extraction"
)

// corsError writes an error response with CORS headers set
func corsError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	http.Error(w, message, code)
}

// jsonError writes a JSON error body with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// handleListSessions returns a list of all sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions()
	if err != nil {
		slog.Error("Error listing sessions", "error", err)
		corsError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sessions); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleCreateSession handles a statement upload and mints the session
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	// Parse multipart form (max 50MB to handle high-resolution scans)
	maxFormSize := int64(50 << 20) // 50MB
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 50MB. Please compress or resize your scan."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		errorMsg := "No file provided"
		if err.Error() == "http: no such file" {
			errorMsg = "No file was selected. Please choose a file to upload."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > maxFormSize {
		jsonError(w, "File is too large. Maximum size is 50MB. Please compress or resize your scan.", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		switch ext {
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".png":
			contentType = "image/png"
		case ".pdf":
			contentType = "application/pdf"
		case ".heic":
			contentType = "image/heic"
		case ".heif":
			contentType = "image/heif"
		default:
			contentType = "application/octet-stream"
		}
	}
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	session, err := s.service.CreateSession(header.Filename, data, contentType)
	if err != nil {
		slog.Error("Error creating session", "filename", header.Filename, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(session); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetSession returns a single session
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Session ID required", http.StatusBadRequest)
		return
	}
	session, err := s.service.GetSession(id)
	if err != nil {
		corsError(w, "Session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(session); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleGetSessionFile returns the uploaded document for a session
func (s *Server) handleGetSessionFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Session ID required", http.StatusBadRequest)
		return
	}
	data, contentType, err := s.service.GetSessionFile(id)
	if err != nil {
		corsError(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteSession deletes a session
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Session ID required", http.StatusBadRequest)
		return
	}
	if err := s.service.DeleteSession(id); err != nil {
		corsError(w, "Error deleting session", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleToggleSelection toggles one page in the session's selection
func (s *Server) handleToggleSelection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Session ID required", http.StatusBadRequest)
		return
	}

	var req struct {
		Page int `json:"page"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := s.service.ToggleSelection(id, req.Page)
	if err != nil {
		slog.Error("Error toggling selection", "session_id", id, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(session); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleSelectAll fills the session's selection with every page
func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Session ID required", http.StatusBadRequest)
		return
	}

	session, err := s.service.SelectAllPages(id)
	if err != nil {
		slog.Error("Error selecting all pages", "session_id", id, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(session); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleClearSelection empties the session's selection
func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Session ID required", http.StatusBadRequest)
		return
	}

	session, err := s.service.ClearSelection(id)
	if err != nil {
		slog.Error("Error clearing selection", "session_id", id, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(session); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleSubmitRegions stores one batch of region definitions
func (s *Server) handleSubmitRegions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Session ID required", http.StatusBadRequest)
		return
	}

	var req struct {
		Regions    map[int]extraction.PageRegions `json:"regions"`
		AmountType extraction.AmountType          `json:"amount_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		corsError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := s.service.SubmitRegions(id, req.Regions, req.AmountType)
	if err != nil {
		slog.Error("Error submitting regions", "session_id", id, "error", err)
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(session); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleExtract runs an extraction pass and returns the aggregated result
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Session ID required", http.StatusBadRequest)
		return
	}

	result, err := s.service.RunExtraction(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrRunSuperseded):
			jsonError(w, err.Error(), http.StatusConflict)
		case errors.Is(err, ErrRegionsNotSubmitted):
			jsonError(w, err.Error(), http.StatusBadRequest)
		default:
			slog.Error("Extraction run failed", "session_id", id, "error", err)
			jsonError(w, err.Error(), http.StatusBadGateway)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleProgress returns a live snapshot of the current run's page statuses
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Session ID required", http.StatusBadRequest)
		return
	}

	pages, started := s.service.Progress(id)
	if pages == nil {
		pages = map[int]PageStatus{}
	}

	response := map[string]interface{}{
		"started": started,
		"pages":   pages,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleResults returns the last persisted extraction run
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		corsError(w, "Session ID required", http.StatusBadRequest)
		return
	}

	result, err := s.service.LastResult(id)
	if err != nil {
		corsError(w, "No extraction results", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}
