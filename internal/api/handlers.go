package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/streamforge/schema-registry/internal/registry"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.registry.IsHealthy(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.SupportedTypes())
}

func (s *Server) handleAddMetadata(w http.ResponseWriter, r *http.Request) {
	var md registry.SchemaMetadata
	if err := json.NewDecoder(r.Body).Decode(&md); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	info, err := s.registry.AddSchemaMetadata(r.Context(), md)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleFindMetadata(w http.ResponseWriter, r *http.Request) {
	filters := make(map[string]string)
	for _, column := range []string{"name", "type", "schemaGroup", "compatibility"} {
		if v := r.URL.Query().Get(column); v != "" {
			filters[column] = v
		}
	}
	infos, err := s.registry.FindSchemaMetadata(r.Context(), filters)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleGetMetadata(w http.ResponseWriter, r *http.Request) {
	info, err := s.registry.GetSchemaMetadata(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleAddVersion(w http.ResponseWriter, r *http.Request) {
	var sv registry.SchemaVersion
	if err := json.NewDecoder(r.Body).Decode(&sv); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	info, err := s.registry.AddSchemaVersionByName(r.Context(), chi.URLParam(r, "name"), sv)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	infos, err := s.registry.GetAllVersions(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleLatestVersion(w http.ResponseWriter, r *http.Request) {
	info, err := s.registry.GetLatestSchemaVersionInfo(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid version number")
		return
	}
	info, err := s.registry.GetSchemaVersionInfo(r.Context(), registry.SchemaVersionKey{
		Name:    chi.URLParam(r, "name"),
		Version: version,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleGetVersionByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid version id")
		return
	}
	info, err := s.registry.GetSchemaVersionInfoByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type compatibilityRequest struct {
	SchemaText string `json:"schemaText"`
}

func (s *Server) handleLookupVersion(w http.ResponseWriter, r *http.Request) {
	var req compatibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	info, err := s.registry.GetSchemaVersionByText(r.Context(), chi.URLParam(r, "name"), req.SchemaText)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleCheckCompatibility(w http.ResponseWriter, r *http.Request) {
	var req compatibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.registry.CheckCompatibility(r.Context(), chi.URLParam(r, "name"), req.SchemaText)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCheckVersionCompatibility(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid version number")
		return
	}
	var req compatibilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.registry.CheckCompatibilityWithVersion(r.Context(), registry.SchemaVersionKey{
		Name:    chi.URLParam(r, "name"),
		Version: version,
	}, req.SchemaText)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSearchFields(w http.ResponseWriter, r *http.Request) {
	q := registry.SchemaFieldQuery{
		Name:      r.URL.Query().Get("name"),
		Namespace: r.URL.Query().Get("fieldNamespace"),
		Type:      r.URL.Query().Get("type"),
	}
	keys, err := s.registry.SearchFields(r.Context(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	file, _, err := r.FormFile("file")
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	fileID, err := s.registry.UploadFile(r.Context(), file)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"fileId": fileID})
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileId")
	rc, err := s.registry.DownloadFile(r.Context(), fileID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("file download interrupted", "fileId", fileID, "error", err)
	}
}

func (s *Server) handleAddSerDes(w http.ResponseWriter, r *http.Request) {
	var sd registry.SerDes
	if err := json.NewDecoder(r.Body).Decode(&sd); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	info, err := s.registry.AddSerDes(r.Context(), sd)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleGetSerDes(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid serdes id")
		return
	}
	info, err := s.registry.GetSerDes(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDownloadSerDes(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid serdes id")
		return
	}
	rc, err := s.registry.DownloadSerDesFile(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("serdes download interrupted", "serDesId", id, "error", err)
	}
}

func (s *Server) handleMapSerDes(w http.ResponseWriter, r *http.Request) {
	serDesID, err := strconv.ParseInt(chi.URLParam(r, "serDesId"), 10, 64)
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid serdes id")
		return
	}
	if err := s.registry.MapSchemaWithSerDes(r.Context(), chi.URLParam(r, "name"), serDesID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSerDes(w http.ResponseWriter, r *http.Request) {
	infos, err := s.registry.GetSerDesInfos(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleListSerializers(w http.ResponseWriter, r *http.Request) {
	infos, err := s.registry.GetSerializers(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleListDeserializers(w http.ResponseWriter, r *http.Request) {
	infos, err := s.registry.GetDeserializers(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// writeError maps registry error kinds onto status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, registry.ErrSchemaNotFound), errors.Is(err, registry.ErrSerDesNotFound):
		status = http.StatusNotFound
	case errors.Is(err, registry.ErrInvalidSchema):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, registry.ErrIncompatibleSchema):
		status = http.StatusConflict
	case errors.Is(err, registry.ErrConfiguration):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeErrorMessage(w, status, err.Error())
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
