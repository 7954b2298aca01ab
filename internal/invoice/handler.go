package invoice

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/ConectaSur/api-referidos/internal/auth"
	"github.com/ConectaSur/api-referidos/internal/settings"
	"github.com/gorilla/mux"
)

const maxUploadBytes = 20 << 20 // 20 MiB

// Handler serves the invoice upload and audit routes.
type Handler struct {
	Service      *Service
	SettingsRepo *settings.Repository
}

func NewHandler(service *Service, settingsRepo *settings.Repository) *Handler {
	return &Handler{Service: service, SettingsRepo: settingsRepo}
}

// Upload handles POST /invoices/upload (multipart field "file").
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart payload", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		http.Error(w, "error reading file", http.StatusInternalServerError)
		return
	}

	uploadedBy := ""
	if uid, ok := r.Context().Value(auth.CtxUserID).(uint); ok {
		uploadedBy = fmt.Sprint(uid)
	}

	s, err := h.SettingsRepo.Get()
	if err != nil {
		http.Error(w, "error loading settings", http.StatusInternalServerError)
		return
	}

	result, err := h.Service.ProcessUpload(data, header.Filename, uploadedBy, s.Values())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}

// Reprocess handles POST /invoices/uploads/{id}/reprocess.
func (h *Handler) Reprocess(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid upload ID", http.StatusBadRequest)
		return
	}

	s, err := h.SettingsRepo.Get()
	if err != nil {
		http.Error(w, "error loading settings", http.StatusInternalServerError)
		return
	}

	result, err := h.Service.Reprocess(uint(id), s.Values())
	if err != nil {
		http.Error(w, "error reprocessing upload", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// ListUploads handles GET /invoices/uploads.
func (h *Handler) ListUploads(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.Repo.ListUploads()
	if err != nil {
		http.Error(w, "error listing uploads", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// GetUpload handles GET /invoices/uploads/{id}.
func (h *Handler) GetUpload(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid upload ID", http.StatusBadRequest)
		return
	}
	u, err := h.Service.Repo.FindUploadByID(uint(id))
	if err != nil {
		http.Error(w, "upload not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(u)
}

// ListRecords handles GET /invoices/uploads/{id}/records.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid upload ID", http.StatusBadRequest)
		return
	}
	list, err := h.Service.Repo.ListRecordsByUpload(uint(id))
	if err != nil {
		http.Error(w, "error listing records", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}
