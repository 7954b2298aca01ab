package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/ConectaSur/api-referidos/internal/utils"
	"gorm.io/gorm"
)

type Repository interface {
	Save(db *gorm.DB, c *Client) error
	FindByID(db *gorm.DB, id uint) (*Client, error)
	FindByEmail(db *gorm.DB, email string) (*Client, error)
	FindByExternalID(db *gorm.DB, externalID string) (*Client, error)
	ListAll(db *gorm.DB) ([]Client, error)
	UpdatePaymentStatus(db *gorm.DB, id uint, current bool, status string, date time.Time) error
}

type repositoryImpl struct{}

func NewRepository() Repository {
	return &repositoryImpl{}
}

func (r *repositoryImpl) Save(db *gorm.DB, c *Client) error {
	return db.Save(c).Error
}

func (r *repositoryImpl) FindByID(db *gorm.DB, id uint) (*Client, error) {
	var c Client
	err := db.Preload("Referrals").First(&c, id).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repositoryImpl) FindByEmail(db *gorm.DB, email string) (*Client, error) {
	var c Client
	if err := db.Where("email = ?", email).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByExternalID resolves a billing-system service id against registered
// referrers. Exact and prefix-wrapped candidates win over the suffix
// fallback; a miss returns (nil, nil) so callers can classify the row as
// not-a-referrer without an error branch.
func (r *repositoryImpl) FindByExternalID(db *gorm.DB, externalID string) (*Client, error) {
	variants := utils.IDVariants(externalID)
	if len(variants) == 0 {
		return nil, nil
	}

	var c Client
	err := db.Where("external_id IN ?", variants).First(&c).Error
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Suffix probe every variant: a prefix-wrapped CSV id still has to reach
	// stored ids carrying a different wrapper.
	for _, v := range variants {
		err = db.Where("external_id LIKE ?", "%"+v).First(&c).Error
		if err == nil {
			return &c, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// EnsureAdmin grants the admin role to the client registered under the given
// email. Registration never accepts a role from the request body; this is the
// bootstrap path, driven by ADMIN_EMAIL at startup.
func EnsureAdmin(db *gorm.DB, email string) error {
	if email == "" {
		return nil
	}
	res := db.Model(&Client{}).Where("email = ?", email).Update("is_admin", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no client registered with email %s", email)
	}
	return nil
}

func (r *repositoryImpl) ListAll(db *gorm.DB) ([]Client, error) {
	var list []Client
	err := db.Order("id ASC").Find(&list).Error
	return list, err
}

// UpdatePaymentStatus mirrors the latest classified invoice onto the client.
func (r *repositoryImpl) UpdatePaymentStatus(db *gorm.DB, id uint, current bool, status string, date time.Time) error {
	return db.Model(&Client{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_payment_current":  current,
		"last_invoice_status": status,
		"last_invoice_date":   &date,
	}).Error
}
