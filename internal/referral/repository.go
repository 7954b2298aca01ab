package referral

import (
	"errors"
	"time"

	"github.com/ConectaSur/api-referidos/internal/utils"
	"gorm.io/gorm"
)

type Repository interface {
	Save(db *gorm.DB, ref *Referral) error
	FindByID(db *gorm.DB, id uint) (*Referral, error)
	ListByClient(db *gorm.DB, clientID uint) ([]Referral, error)
	FindInstalledByExternalID(db *gorm.DB, externalID string) (*Referral, error)
	UpdateLastInvoice(db *gorm.DB, id uint, status string, date time.Time) error
}

type repositoryImpl struct{}

func NewRepository() Repository {
	return &repositoryImpl{}
}

func (r *repositoryImpl) Save(db *gorm.DB, ref *Referral) error {
	return db.Save(ref).Error
}

func (r *repositoryImpl) FindByID(db *gorm.DB, id uint) (*Referral, error) {
	var ref Referral
	err := db.Preload("Commissions").First(&ref, id).Error
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *repositoryImpl) ListByClient(db *gorm.DB, clientID uint) ([]Referral, error) {
	var list []Referral
	err := db.
		Where("client_id = ?", clientID).
		Preload("Commissions").
		Order("id ASC").
		Find(&list).Error
	return list, err
}

// FindInstalledByExternalID resolves a billing service id against INSTALLED
// referrals, with the same id-shape tolerance used for referrers. A miss
// returns (nil, nil).
func (r *repositoryImpl) FindInstalledByExternalID(db *gorm.DB, externalID string) (*Referral, error) {
	variants := utils.IDVariants(externalID)
	if len(variants) == 0 {
		return nil, nil
	}

	var ref Referral
	err := db.
		Where("status = ? AND external_client_id IN ?", StatusInstalled, variants).
		First(&ref).Error
	if err == nil {
		return &ref, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Suffix probe every variant, same tolerance as the referrer lookup.
	for _, v := range variants {
		err = db.
			Where("status = ? AND external_client_id LIKE ?", StatusInstalled, "%"+v).
			First(&ref).Error
		if err == nil {
			return &ref, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// UpdateLastInvoice mirrors the latest classified invoice onto the referral.
func (r *repositoryImpl) UpdateLastInvoice(db *gorm.DB, id uint, status string, date time.Time) error {
	return db.Model(&Referral{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_invoice_status": status,
		"last_invoice_date":   &date,
	}).Error
}
