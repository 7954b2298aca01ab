package referral

type createReferralRequest struct {
	Name    string `json:"name" validate:"required"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

type updateStatusRequest struct {
	Status           string `json:"status" validate:"required,oneof=PENDING CONTACTED INSTALLED REJECTED CANCELLED"`
	ExternalClientID string `json:"externalClientId"`
}
