package commission

import (
	"time"

	"gorm.io/gorm"
)

// Commission types.
const (
	TypeInstallation = "INSTALLATION"
	TypeMonthly      = "MONTHLY"
)

// Commission statuses. EARNED means the referrer is not current on payments;
// ACTIVE means the commission is eligible to be applied to an invoice.
const (
	StatusPending   = "PENDING"
	StatusEarned    = "EARNED"
	StatusActive    = "ACTIVE"
	StatusApplied   = "APPLIED"
	StatusCancelled = "CANCELLED"
)

// ReasonClientNotCurrent is recorded on commissions generated while the
// referring client is behind on their own invoices.
const ReasonClientNotCurrent = "referring client is not current on payments"

// Commission is a monetary credit owed to a referrer for one referral:
// one-time (INSTALLATION) or recurring (MONTHLY, capped and keyed by
// calendar month).
type Commission struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	ClientID   uint `gorm:"not null;index" json:"clientId"`
	ReferralID uint `gorm:"not null;index;uniqueIndex:idx_referral_type_month;uniqueIndex:idx_referral_type_seq" json:"referralId"`

	Type string `gorm:"size:20;not null;uniqueIndex:idx_referral_type_month;uniqueIndex:idx_referral_type_seq" json:"type"`

	// MonthNumber is the 1-based position in the earning sequence; MonthKey is
	// the YYYYMM identity that deduplicates re-uploads. Both are empty/zero for
	// installation commissions, so the unique indexes also enforce
	// one-installation-per-referral.
	MonthNumber int        `gorm:"not null;default:0;uniqueIndex:idx_referral_type_seq" json:"monthNumber"`
	MonthKey    string     `gorm:"size:6;not null;default:'';uniqueIndex:idx_referral_type_month" json:"monthKey"`
	MonthDate   *time.Time `json:"monthDate"`

	Status       string  `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	Amount       float64 `gorm:"not null;default:0" json:"amount"`
	StatusReason string  `gorm:"size:255" json:"statusReason,omitempty"`

	// Application metadata.
	InvoiceID     string     `gorm:"size:100" json:"invoiceId,omitempty"`
	AppliedAmount float64    `gorm:"not null;default:0" json:"appliedAmount"`
	AppliedAt     *time.Time `json:"appliedAt,omitempty"`
	AppliedBy     string     `gorm:"size:100" json:"appliedBy,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MonthKeyFor returns the YYYYMM key for a given invoice date.
func MonthKeyFor(t time.Time) string {
	return t.Format("200601")
}

// Migrate creates the table and its unique indexes.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Commission{})
}
