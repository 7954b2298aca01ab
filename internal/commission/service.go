package commission

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	// ErrInvalidState marks lifecycle operations attempted from a status the
	// state machine does not allow.
	ErrInvalidState = errors.New("invalid commission state")
	// ErrReasonRequired rejects cancellations without an audit reason.
	ErrReasonRequired = errors.New("cancellation reason is required")
)

// Service implements the commission lifecycle: the installation trigger,
// apply-to-invoice, cancel, and bulk activation when a referrer becomes
// payment-current.
type Service struct {
	Repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{Repo: repo}
}

// CreateInstallation fires when a referral's install is completed. Idempotent:
// a second call returns the existing commission unchanged.
func (s *Service) CreateInstallation(clientID, referralID uint, amount float64) (*Commission, error) {
	existing, err := s.Repo.FindByReferralAndType(referralID, TypeInstallation)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	c := &Commission{
		ClientID:   clientID,
		ReferralID: referralID,
		Type:       TypeInstallation,
		Status:     StatusEarned,
		Amount:     amount,
	}
	err = s.Repo.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.Repo.WithDB(tx)
		if err := repo.Create(c); err != nil {
			return err
		}
		return repo.AddToClientTotals(clientID, amount, 0, 0)
	})
	if IsUniqueViolation(err) {
		// Raced with a concurrent trigger; the constraint guarantees a single
		// installation commission, so hand back whoever won.
		return s.Repo.FindByReferralAndType(referralID, TypeInstallation)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Apply credits an ACTIVE commission against an external invoice, fully or in
// part. A nil or zero amount applies the whole remaining value; after a partial
// application the commission stays ACTIVE for its remainder and only moves to
// APPLIED once the full amount is consumed.
func (s *Service) Apply(id uint, invoiceID string, amount *float64, appliedBy string) (*Commission, error) {
	c, err := s.Repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusActive {
		return nil, fmt.Errorf("%w: cannot apply commission in status %s, must be %s", ErrInvalidState, c.Status, StatusActive)
	}

	remaining := c.Amount - c.AppliedAmount
	applied := remaining
	if amount != nil && *amount > 0 {
		if *amount > remaining {
			return nil, fmt.Errorf("applied amount %.2f exceeds remaining commission value %.2f", *amount, remaining)
		}
		applied = *amount
	}

	now := time.Now()
	c.InvoiceID = invoiceID
	c.AppliedAmount += applied
	c.AppliedAt = &now
	c.AppliedBy = appliedBy
	if c.AppliedAmount >= c.Amount {
		c.Status = StatusApplied
	}

	err = s.Repo.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.Repo.WithDB(tx)
		if err := repo.Update(c); err != nil {
			return err
		}
		return repo.AddToClientTotals(c.ClientID, 0, -applied, applied)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Cancel moves a non-terminal commission to CANCELLED with an audit reason.
// APPLIED and CANCELLED are terminal and cannot be cancelled (again).
func (s *Service) Cancel(id uint, reason string) (*Commission, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}
	c, err := s.Repo.FindByID(id)
	if err != nil {
		return nil, err
	}
	switch c.Status {
	case StatusApplied, StatusCancelled:
		return nil, fmt.Errorf("%w: cannot cancel commission in terminal status %s", ErrInvalidState, c.Status)
	}

	wasActive := c.Status == StatusActive
	c.Status = StatusCancelled
	c.StatusReason = reason

	err = s.Repo.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.Repo.WithDB(tx)
		if err := repo.Update(c); err != nil {
			return err
		}
		if wasActive {
			// Release only what was never applied.
			return repo.AddToClientTotals(c.ClientID, 0, -(c.Amount - c.AppliedAmount), 0)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ActivateEarnedForClient bulk-transitions a referrer's EARNED commissions to
// ACTIVE once they are current on payments again. Returns how many were
// activated and their total amount; calling it with nothing EARNED is a no-op.
func (s *Service) ActivateEarnedForClient(clientID uint) (int, float64, error) {
	var (
		count int
		total float64
	)
	err := s.Repo.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.Repo.WithDB(tx)
		earned, err := repo.ListEarnedByClient(clientID)
		if err != nil {
			return err
		}
		for i := range earned {
			c := &earned[i]
			c.Status = StatusActive
			c.StatusReason = ""
			if err := repo.Update(c); err != nil {
				return err
			}
			count++
			total += c.Amount
		}
		if count > 0 {
			if err := repo.AddToClientTotals(clientID, 0, total, 0); err != nil {
				return err
			}
		}
		return repo.MarkClientPaymentCurrent(clientID, true)
	})
	if err != nil {
		return 0, 0, err
	}
	return count, total, nil
}
