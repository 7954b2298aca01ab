package settings

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
)

type updateSettingsRequest struct {
	InstallationAmount float64 `json:"installationAmount" validate:"gte=0"`
	MonthlyAmount      float64 `json:"monthlyAmount" validate:"gte=0"`
	MonthsToEarn       int     `json:"monthsToEarn" validate:"gte=1,lte=60"`
	Currency           string  `json:"currency" validate:"omitempty,len=3"`
}

// Handler serves the admin settings endpoints.
type Handler struct {
	Repo     *Repository
	validate *validator.Validate
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{Repo: repo, validate: validator.New()}
}

// Get handles GET /settings.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.Repo.Get()
	if err != nil {
		http.Error(w, "error loading settings", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}

// Update handles PUT /settings.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed JSON", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s, err := h.Repo.Update(req.InstallationAmount, req.MonthlyAmount, req.MonthsToEarn, req.Currency)
	if err != nil {
		http.Error(w, "error updating settings", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s)
}
