package client

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ConectaSur/api-referidos/internal/auth"
	"github.com/ConectaSur/api-referidos/internal/commission"
	"github.com/ConectaSur/api-referidos/internal/referral"
	"github.com/ConectaSur/api-referidos/internal/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// Handler serves referrer registration, login and dashboard routes.
type Handler struct {
	DB          *gorm.DB
	Repository  Repository
	Commissions *commission.Service
	validate    *validator.Validate
}

func NewHandler(db *gorm.DB, commissions *commission.Service) *Handler {
	return &Handler{
		DB:          db,
		Repository:  NewRepository(),
		Commissions: commissions,
		validate:    validator.New(),
	}
}

// Login issues a JWT for valid credentials.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.Repository.FindByEmail(h.DB, req.Email)
	if err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if !utils.CheckPassword(user.Password, req.Password) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateToken(user.ID, user.IsAdmin)
	if err != nil {
		http.Error(w, "error generating token", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// Create registers a new referrer (open route).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		http.Error(w, "error processing password", http.StatusInternalServerError)
		return
	}
	code, err := utils.GenerateReferralCode(8)
	if err != nil {
		http.Error(w, "error generating referral code", http.StatusInternalServerError)
		return
	}

	// Registration never grants roles; admins are bootstrapped via EnsureAdmin.
	c := Client{
		Name:         req.Name,
		Email:        req.Email,
		Password:     hash,
		Phone:        req.Phone,
		ExternalID:   req.ExternalID,
		ReferralCode: code,
	}
	if err := h.Repository.Save(h.DB, &c); err != nil {
		http.Error(w, "error saving client", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(c)
}

// List returns all clients for admins, or just the caller's own record.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(auth.CtxUserID).(uint)
	isAdmin, _ := r.Context().Value(auth.CtxIsAdmin).(bool)

	if isAdmin {
		clients, err := h.Repository.ListAll(h.DB)
		if err != nil {
			http.Error(w, "error listing clients", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(clients)
		return
	}

	obj, err := h.Repository.FindByID(h.DB, userID)
	if err != nil {
		http.Error(w, "client not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode([]Client{*obj})
}

// Get handles GET /clients/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(auth.CtxUserID).(uint)
	isAdmin, _ := r.Context().Value(auth.CtxIsAdmin).(bool)

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid ID", http.StatusBadRequest)
		return
	}
	if !isAdmin && uint(id) != userID {
		http.Error(w, "access denied", http.StatusForbidden)
		return
	}

	obj, err := h.Repository.FindByID(h.DB, uint(id))
	if err != nil {
		http.Error(w, "client not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(obj)
}

// Summary handles GET /clients/{id}/summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(auth.CtxUserID).(uint)
	isAdmin, _ := r.Context().Value(auth.CtxIsAdmin).(bool)

	idParam := userID
	if idStr := mux.Vars(r)["id"]; idStr != "" {
		i, err := strconv.Atoi(idStr)
		if err != nil {
			http.Error(w, "invalid ID", http.StatusBadRequest)
			return
		}
		if !isAdmin && uint(i) != userID {
			http.Error(w, "access denied", http.StatusForbidden)
			return
		}
		idParam = uint(i)
	}

	obj, err := h.Repository.FindByID(h.DB, idParam)
	if err != nil {
		http.Error(w, "client not found", http.StatusNotFound)
		return
	}

	installed, pending := 0, 0
	for _, ref := range obj.Referrals {
		switch ref.Status {
		case referral.StatusInstalled:
			installed++
		case referral.StatusPending, referral.StatusContacted:
			pending++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ClientSummaryDTO{
		ID:               obj.ID,
		Name:             obj.Name,
		Email:            obj.Email,
		ReferralCode:     obj.ReferralCode,
		IsPaymentCurrent: obj.IsPaymentCurrent,
		TotalReferrals:   len(obj.Referrals),
		Installed:        installed,
		Pending:          pending,
		TotalEarned:      obj.TotalEarned,
		TotalActive:      obj.TotalActive,
		TotalApplied:     obj.TotalApplied,
	})
}

// ActivateCommissions handles POST /clients/{id}/activate-commissions: the
// manual remediation path when a referrer pays off their balance outside of a
// CSV cycle.
func (h *Handler) ActivateCommissions(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid ID", http.StatusBadRequest)
		return
	}
	if _, err := h.Repository.FindByID(h.DB, uint(id)); err != nil {
		http.Error(w, "client not found", http.StatusNotFound)
		return
	}

	count, total, err := h.Commissions.ActivateEarnedForClient(uint(id))
	if err != nil {
		http.Error(w, "error activating commissions", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"activated":   count,
		"totalAmount": total,
	})
}
