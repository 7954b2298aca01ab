package invoice

import (
	"gorm.io/gorm"
)

// Repository encapsulates upload and record persistence.
type Repository struct {
	DB *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{DB: db}
}

// WithDB returns a copy of the repo bound to a specific *gorm.DB (e.g. a tx).
func (r *Repository) WithDB(db *gorm.DB) *Repository {
	if db == nil {
		db = r.DB
	}
	return &Repository{DB: db}
}

/* =============================== Uploads =============================== */

func (r *Repository) CreateUpload(u *InvoiceUpload) error {
	return r.DB.Create(u).Error
}

func (r *Repository) SaveUpload(u *InvoiceUpload) error {
	return r.DB.Save(u).Error
}

func (r *Repository) FindUploadByID(id uint) (*InvoiceUpload, error) {
	var u InvoiceUpload
	if err := r.DB.First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) ListUploads() ([]InvoiceUpload, error) {
	var list []InvoiceUpload
	err := r.DB.Order("created_at DESC").Find(&list).Error
	return list, err
}

/* =============================== Records =============================== */

func (r *Repository) CreateRecord(rec *InvoiceRecord) error {
	return r.DB.Create(rec).Error
}

// ListRecordsByUpload returns an upload's rows most-recent-invoice-date
// first, the order the payment-status updater consumes them in.
func (r *Repository) ListRecordsByUpload(uploadID uint) ([]InvoiceRecord, error) {
	var list []InvoiceRecord
	err := r.DB.
		Where("upload_id = ?", uploadID).
		Order("invoice_date DESC, id ASC").
		Find(&list).Error
	return list, err
}

// MarkRecordMatched links a record to the referral/commission it produced.
func (r *Repository) MarkRecordMatched(recordID uint, referralID, commissionID *uint) error {
	updates := map[string]interface{}{}
	if referralID != nil {
		updates["referral_id"] = *referralID
	}
	if commissionID != nil {
		updates["commission_id"] = *commissionID
	}
	if len(updates) == 0 {
		return nil
	}
	return r.DB.Model(&InvoiceRecord{}).Where("id = ?", recordID).Updates(updates).Error
}
