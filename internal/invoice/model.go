package invoice

import (
	"time"

	"gorm.io/gorm"
)

// Normalized invoice statuses.
const (
	StatusPaid    = "PAID"
	StatusPending = "PENDING"
)

// InvoiceUpload is the audit record for one CSV import: period bounds, counts
// and per-row errors, finalized after the reconciliation pipeline completes.
type InvoiceUpload struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	FileName   string `gorm:"size:255" json:"fileName"`
	FileRef    string `gorm:"size:64" json:"fileRef"`
	UploadedBy string `gorm:"size:100" json:"uploadedBy"`

	PeriodStart *time.Time `json:"periodStart"`
	PeriodEnd   *time.Time `json:"periodEnd"`

	TotalInvoices    int `gorm:"not null;default:0" json:"totalInvoices"`
	PaidInvoices     int `gorm:"not null;default:0" json:"paidInvoices"`
	PendingInvoices  int `gorm:"not null;default:0" json:"pendingInvoices"`
	ReferrerInvoices int `gorm:"not null;default:0" json:"referrerInvoices"`
	ReferralInvoices int `gorm:"not null;default:0" json:"referralInvoices"`

	CommissionsGenerated int `gorm:"not null;default:0" json:"commissionsGenerated"`
	CommissionsActivated int `gorm:"not null;default:0" json:"commissionsActivated"`

	// Per-row errors collected during parsing/classification; the upload
	// itself never aborts on these.
	Errors []string `gorm:"type:jsonb;serializer:json" json:"errors"`

	Processed   bool       `gorm:"not null;default:false" json:"processed"`
	ProcessedAt *time.Time `json:"processedAt"`

	Records []InvoiceRecord `gorm:"foreignKey:UploadID;constraint:OnDelete:CASCADE" json:"records,omitempty"`
}

// InvoiceRecord is one parsed CSV row that survived validation, classified
// against known referrers and installed referrals.
type InvoiceRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UploadID  uint      `gorm:"not null;index" json:"uploadId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	ExternalClientID string    `gorm:"size:100;index" json:"externalClientId"`
	InvoiceNumber    string    `gorm:"size:100" json:"invoiceNumber"`
	ClientName       string    `gorm:"size:255" json:"clientName"`
	InvoiceDate      time.Time `json:"invoiceDate"`
	DueDate          time.Time `json:"dueDate"`
	Amount           float64   `gorm:"not null;default:0" json:"amount"`

	Status    string `gorm:"size:20;not null;index" json:"status"`
	RawStatus string `gorm:"size:100" json:"rawStatus"`

	IsReferrer bool `gorm:"not null;default:false;index" json:"isReferrer"`
	IsReferral bool `gorm:"not null;default:false;index" json:"isReferral"`

	ReferralID   *uint `json:"referralId,omitempty"`
	CommissionID *uint `json:"commissionId,omitempty"`
}

// Migrate creates both tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&InvoiceUpload{}, &InvoiceRecord{})
}
