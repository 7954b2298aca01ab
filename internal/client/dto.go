package client

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type createClientRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	Phone      string `json:"phone"`
	ExternalID string `json:"externalId" validate:"required"`
}

// ClientSummaryDTO is the referrer dashboard payload: referral pipeline counts
// plus commission totals reconciled against the commission table.
type ClientSummaryDTO struct {
	ID               uint    `json:"id"`
	Name             string  `json:"name"`
	Email            string  `json:"email"`
	ReferralCode     string  `json:"referralCode"`
	IsPaymentCurrent bool    `json:"isPaymentCurrent"`
	TotalReferrals   int     `json:"totalReferrals"`
	Installed        int     `json:"installed"`
	Pending          int     `json:"pending"`
	TotalEarned      float64 `json:"totalEarned"`
	TotalActive      float64 `json:"totalActive"`
	TotalApplied     float64 `json:"totalApplied"`
}
