package settings

import (
	"errors"

	"gorm.io/gorm"
)

// Repository encapsulates access to the singleton settings row.
type Repository struct {
	DB *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{DB: db}
}

// Get returns the settings row, creating it with defaults on first access.
func (r *Repository) Get() (*Settings, error) {
	var s Settings
	err := r.DB.First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s = Settings{
			InstallationAmount: 0,
			MonthlyAmount:      0,
			MonthsToEarn:       6,
			Currency:           "USD",
		}
		if err := r.DB.Create(&s).Error; err != nil {
			return nil, err
		}
		return &s, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Update overwrites the configurable fields.
func (r *Repository) Update(installationAmount, monthlyAmount float64, monthsToEarn int, currency string) (*Settings, error) {
	s, err := r.Get()
	if err != nil {
		return nil, err
	}
	s.InstallationAmount = installationAmount
	s.MonthlyAmount = monthlyAmount
	s.MonthsToEarn = monthsToEarn
	if currency != "" {
		s.Currency = currency
	}
	if err := r.DB.Save(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}
