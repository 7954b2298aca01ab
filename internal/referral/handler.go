package referral

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ConectaSur/api-referidos/internal/auth"
	"github.com/ConectaSur/api-referidos/internal/commission"
	"github.com/ConectaSur/api-referidos/internal/settings"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// Handler serves lead registration and lifecycle routes.
type Handler struct {
	DB           *gorm.DB
	Repository   Repository
	Commissions  *commission.Service
	SettingsRepo *settings.Repository
	validate     *validator.Validate
}

func NewHandler(db *gorm.DB, commissions *commission.Service, settingsRepo *settings.Repository) *Handler {
	return &Handler{
		DB:           db,
		Repository:   NewRepository(),
		Commissions:  commissions,
		SettingsRepo: settingsRepo,
		validate:     validator.New(),
	}
}

// Create handles POST /clients/{id}/referrals.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid client ID", http.StatusBadRequest)
		return
	}

	userID, _ := r.Context().Value(auth.CtxUserID).(uint)
	isAdmin, _ := r.Context().Value(auth.CtxIsAdmin).(bool)
	if !isAdmin && uint(clientID) != userID {
		http.Error(w, "access denied", http.StatusForbidden)
		return
	}

	var req createReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed JSON", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ref := Referral{
		ClientID: uint(clientID),
		Name:     req.Name,
		Phone:    req.Phone,
		Address:  req.Address,
		Notes:    req.Notes,
		Status:   StatusPending,
	}
	if err := h.Repository.Save(h.DB, &ref); err != nil {
		http.Error(w, "error saving referral", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(ref)
}

// ListByClient handles GET /clients/{id}/referrals.
func (h *Handler) ListByClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid client ID", http.StatusBadRequest)
		return
	}

	userID, _ := r.Context().Value(auth.CtxUserID).(uint)
	isAdmin, _ := r.Context().Value(auth.CtxIsAdmin).(bool)
	if !isAdmin && uint(clientID) != userID {
		http.Error(w, "access denied", http.StatusForbidden)
		return
	}

	list, err := h.Repository.ListByClient(h.DB, uint(clientID))
	if err != nil {
		http.Error(w, "error listing referrals", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// Get handles GET /referrals/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid referral ID", http.StatusBadRequest)
		return
	}
	ref, err := h.Repository.FindByID(h.DB, uint(id))
	if err != nil {
		http.Error(w, "referral not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ref)
}

// UpdateStatus handles PUT /referrals/{id}/status. Moving a lead to INSTALLED
// requires its billing-system id and fires the installation commission
// exactly once.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid referral ID", http.StatusBadRequest)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed JSON", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ref, err := h.Repository.FindByID(h.DB, uint(id))
	if err != nil {
		http.Error(w, "referral not found", http.StatusNotFound)
		return
	}

	if !ValidTransition(ref.Status, req.Status) {
		http.Error(w, "invalid status transition "+ref.Status+" -> "+req.Status, http.StatusConflict)
		return
	}

	ref.Status = req.Status
	if req.Status == StatusInstalled {
		if req.ExternalClientID == "" {
			http.Error(w, "externalClientId is required to mark a referral INSTALLED", http.StatusBadRequest)
			return
		}
		now := time.Now()
		ref.ExternalClientID = req.ExternalClientID
		ref.InstalledAt = &now
	}

	if err := h.Repository.Save(h.DB, ref); err != nil {
		http.Error(w, "error updating referral", http.StatusInternalServerError)
		return
	}

	if req.Status == StatusInstalled {
		s, err := h.SettingsRepo.Get()
		if err != nil {
			http.Error(w, "error loading settings", http.StatusInternalServerError)
			return
		}
		if _, err := h.Commissions.CreateInstallation(ref.ClientID, ref.ID, s.InstallationAmount); err != nil {
			http.Error(w, "error creating installation commission", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ref)
}
