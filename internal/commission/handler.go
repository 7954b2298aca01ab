package commission

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ConectaSur/api-referidos/internal/auth"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type applyRequest struct {
	InvoiceID string   `json:"invoiceId" validate:"required"`
	Amount    *float64 `json:"amount" validate:"omitempty,gt=0"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// Handler serves commission routes.
type Handler struct {
	Repo     *Repository
	Service  *Service
	validate *validator.Validate
}

func NewHandler(repo *Repository, service *Service) *Handler {
	return &Handler{Repo: repo, Service: service, validate: validator.New()}
}

// Get handles GET /commissions/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid commission ID", http.StatusBadRequest)
		return
	}
	c, err := h.Repo.FindByID(uint(id))
	if err != nil {
		http.Error(w, "commission not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

// ListByReferral handles GET /referrals/{id}/commissions.
func (h *Handler) ListByReferral(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid referral ID", http.StatusBadRequest)
		return
	}
	list, err := h.Repo.ListByReferral(uint(id))
	if err != nil {
		http.Error(w, "error listing commissions", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// Apply handles POST /commissions/{id}/apply.
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid commission ID", http.StatusBadRequest)
		return
	}
	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed JSON", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	appliedBy := ""
	if uid, ok := r.Context().Value(auth.CtxUserID).(uint); ok {
		appliedBy = fmt.Sprint(uid)
	}

	c, err := h.Service.Apply(uint(id), req.InvoiceID, req.Amount, appliedBy)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

// Cancel handles POST /commissions/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid commission ID", http.StatusBadRequest)
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed JSON", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c, err := h.Service.Cancel(uint(id), req.Reason)
	if err != nil {
		writeLifecycleError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

func writeLifecycleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		http.Error(w, "commission not found", http.StatusNotFound)
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrReasonRequired):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
