package client

import (
	"time"

	"github.com/ConectaSur/api-referidos/internal/referral"
	"gorm.io/gorm"
)

// Client is a subscriber who refers prospects and earns commissions. Created
// on registration, mutated by the reconciliation engine and by commission
// application; never deleted.
type Client struct {
	gorm.Model
	Name     string `json:"name"`
	Email    string `gorm:"uniqueIndex;size:255" json:"email"`
	Password string `json:"-"`
	Phone    string `gorm:"size:50" json:"phone"`
	IsAdmin  bool   `gorm:"not null;default:false" json:"isAdmin"`

	// ExternalID is the billing-system identity matched against invoice CSV
	// rows; ReferralCode is what the client hands out to prospects.
	ExternalID   string `gorm:"uniqueIndex;size:100" json:"externalId"`
	ReferralCode string `gorm:"uniqueIndex;size:20" json:"referralCode"`

	// Payment standing, driven by the latest classified invoice. This flag
	// gates whether newly generated commissions start ACTIVE or stay EARNED.
	IsPaymentCurrent  bool       `gorm:"not null;default:false" json:"isPaymentCurrent"`
	LastInvoiceStatus string     `gorm:"size:20" json:"lastInvoiceStatus"`
	LastInvoiceDate   *time.Time `json:"lastInvoiceDate"`

	// Denormalized running totals, kept in lockstep with commission rows.
	TotalEarned  float64 `gorm:"not null;default:0" json:"totalEarned"`
	TotalActive  float64 `gorm:"not null;default:0" json:"totalActive"`
	TotalApplied float64 `gorm:"not null;default:0" json:"totalApplied"`

	Referrals []referral.Referral `gorm:"foreignKey:ClientID" json:"referrals,omitempty"`
}

// Migrate creates the table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Client{})
}
