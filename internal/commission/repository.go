package commission

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Repository encapsulates commission data access.
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

/* ============================== Lookups ============================== */

// FindByID fetches a single commission.
func (r *Repository) FindByID(id uint) (*Commission, error) {
	var c Commission
	if err := r.DB.First(&c, id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByReferralAndType returns the commission of the given type for a
// referral, or nil if none exists.
func (r *Repository) FindByReferralAndType(referralID uint, commissionType string) (*Commission, error) {
	var c Commission
	err := r.DB.
		Where("referral_id = ? AND type = ?", referralID, commissionType).
		Order("month_number ASC").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListMonthlyByReferral returns the referral's monthly commissions ordered by
// their sequence number.
func (r *Repository) ListMonthlyByReferral(referralID uint) ([]Commission, error) {
	var list []Commission
	err := r.DB.
		Where("referral_id = ? AND type = ?", referralID, TypeMonthly).
		Order("month_number ASC").
		Find(&list).Error
	return list, err
}

// ListByReferral returns every commission attached to a referral.
func (r *Repository) ListByReferral(referralID uint) ([]Commission, error) {
	var list []Commission
	err := r.DB.
		Where("referral_id = ?", referralID).
		Order("type ASC, month_number ASC").
		Find(&list).Error
	return list, err
}

// ListEarnedByClient returns a client's EARNED commissions across referrals.
func (r *Repository) ListEarnedByClient(clientID uint) ([]Commission, error) {
	var list []Commission
	err := r.DB.
		Where("client_id = ? AND status = ?", clientID, StatusEarned).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

/* ============================== Mutation ============================== */

// Create persists a new commission.
func (r *Repository) Create(c *Commission) error {
	return r.DB.Create(c).Error
}

// Update saves all fields of an existing commission.
func (r *Repository) Update(c *Commission) error {
	return r.DB.Save(c).Error
}

// SumByClientAndStatus aggregates the remaining (unapplied) commission value
// for reconciliation against the client's denormalized totals. Partially
// applied commissions count only their remainder.
func (r *Repository) SumByClientAndStatus(clientID uint, statuses []string) (float64, error) {
	var total float64
	err := r.DB.Model(&Commission{}).
		Where("client_id = ? AND status IN ?", clientID, statuses).
		Select("COALESCE(SUM(amount - applied_amount), 0)").
		Scan(&total).Error
	return total, err
}

/* ========================= Client running totals ========================= */

// AddToClientTotals bumps the referrer's denormalized counters. Updates go
// through the table name to keep this package free of the client package.
func (r *Repository) AddToClientTotals(clientID uint, earnedDelta, activeDelta, appliedDelta float64) error {
	updates := map[string]interface{}{}
	if earnedDelta != 0 {
		updates["total_earned"] = gorm.Expr("total_earned + ?", earnedDelta)
	}
	if activeDelta != 0 {
		updates["total_active"] = gorm.Expr("total_active + ?", activeDelta)
	}
	if appliedDelta != 0 {
		updates["total_applied"] = gorm.Expr("total_applied + ?", appliedDelta)
	}
	if len(updates) == 0 {
		return nil
	}
	return r.DB.Table("clients").Where("id = ?", clientID).Updates(updates).Error
}

// MarkClientPaymentCurrent flips the referrer's payment flag.
func (r *Repository) MarkClientPaymentCurrent(clientID uint, current bool) error {
	return r.DB.Table("clients").Where("id = ?", clientID).
		Update("is_payment_current", current).Error
}

// IsUniqueViolation reports whether err is a unique-constraint failure. Both
// Postgres and the sqlite test driver phrase this with "unique"/"duplicate".
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
