package referral

import (
	"time"

	"github.com/ConectaSur/api-referidos/internal/commission"
	"gorm.io/gorm"
)

// Referral lifecycle statuses.
const (
	StatusPending   = "PENDING"
	StatusContacted = "CONTACTED"
	StatusInstalled = "INSTALLED"
	StatusRejected  = "REJECTED"
	StatusCancelled = "CANCELLED"
)

// Referral is a referred prospect, tracked from lead to installed subscriber.
// Commissions attach to it once INSTALLED.
type Referral struct {
	gorm.Model
	ClientID uint `gorm:"not null;index" json:"clientId"`

	Name    string `gorm:"size:255;not null" json:"name"`
	Phone   string `gorm:"size:50" json:"phone"`
	Address string `gorm:"size:255" json:"address"`
	Notes   string `json:"notes,omitempty"`

	Status string `gorm:"size:20;not null;default:'PENDING';index" json:"status"`

	// ExternalClientID is the billing-system identity assigned at install;
	// invoice rows are matched against it from then on.
	ExternalClientID string     `gorm:"size:100;index" json:"externalClientId"`
	InstalledAt      *time.Time `json:"installedAt,omitempty"`

	LastInvoiceStatus string     `gorm:"size:20" json:"lastInvoiceStatus"`
	LastInvoiceDate   *time.Time `json:"lastInvoiceDate"`

	Commissions []commission.Commission `gorm:"foreignKey:ReferralID" json:"commissions,omitempty"`
}

var transitions = map[string][]string{
	StatusPending:   {StatusContacted, StatusInstalled, StatusRejected, StatusCancelled},
	StatusContacted: {StatusInstalled, StatusRejected, StatusCancelled},
	StatusInstalled: {StatusCancelled},
}

// ValidTransition reports whether a lead may move from one status to another.
func ValidTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Migrate creates the table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Referral{})
}
