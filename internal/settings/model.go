package settings

import (
	"time"

	"gorm.io/gorm"
)

// Settings is the single program-configuration row: commission amounts and
// the monthly cap. The engine never reads it directly; the orchestrator loads
// a Values snapshot once per pipeline run.
type Settings struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	InstallationAmount float64   `gorm:"not null;default:0" json:"installationAmount"`
	MonthlyAmount      float64   `gorm:"not null;default:0" json:"monthlyAmount"`
	MonthsToEarn       int       `gorm:"not null;default:6" json:"monthsToEarn"`
	Currency           string    `gorm:"size:10;not null;default:'USD'" json:"currency"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Values is the snapshot handed to the commission engine.
type Values struct {
	InstallationAmount float64
	MonthlyAmount      float64
	MonthsToEarn       int
	Currency           string
}

// Values copies the configurable fields into an engine snapshot.
func (s Settings) Values() Values {
	return Values{
		InstallationAmount: s.InstallationAmount,
		MonthlyAmount:      s.MonthlyAmount,
		MonthsToEarn:       s.MonthsToEarn,
		Currency:           s.Currency,
	}
}

// Migrate creates the table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Settings{})
}
