package invoice

import (
	"fmt"
	"sort"
	"time"

	"github.com/ConectaSur/api-referidos/internal/client"
	"github.com/ConectaSur/api-referidos/internal/commission"
	"github.com/ConectaSur/api-referidos/internal/referral"
	"github.com/ConectaSur/api-referidos/internal/settings"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UploadStats is the aggregate outcome of one reconciliation run.
type UploadStats struct {
	TotalInvoices        int      `json:"totalInvoices"`
	ReferrerInvoices     int      `json:"referrerInvoices"`
	ReferralInvoices     int      `json:"referralInvoices"`
	PaidInvoices         int      `json:"paidInvoices"`
	PendingInvoices      int      `json:"pendingInvoices"`
	CommissionsGenerated int      `json:"commissionsGenerated"`
	CommissionsActivated int      `json:"commissionsActivated"`
	Errors               []string `json:"errors"`
}

// UploadResult is the payload handed back to the caller of an upload or
// reprocess run.
type UploadResult struct {
	UploadID uint        `json:"uploadId"`
	Stats    UploadStats `json:"stats"`
}

// Service runs the CSV reconciliation pipeline: parse, classify, update
// referrer payment standing, generate commissions, finalize the audit record.
type Service struct {
	DB          *gorm.DB
	Repo        *Repository
	Clients     client.Repository
	Referrals   referral.Repository
	Commissions *commission.Repository
	Parser      *Parser
}

func NewService(db *gorm.DB) *Service {
	return &Service{
		DB:          db,
		Repo:        NewRepository(db),
		Clients:     client.NewRepository(),
		Referrals:   referral.NewRepository(),
		Commissions: commission.NewRepository(db),
		Parser:      &Parser{},
	}
}

// ProcessUpload runs the whole pipeline for one uploaded file. Row-level
// problems land in the stats' error list; only header-level failures abort.
func (s *Service) ProcessUpload(data []byte, fileName, uploadedBy string, cfg settings.Values) (*UploadResult, error) {
	upload := &InvoiceUpload{
		FileName:   fileName,
		FileRef:    uuid.NewString(),
		UploadedBy: uploadedBy,
		Errors:     []string{},
	}
	if err := s.Repo.CreateUpload(upload); err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}

	rows, rowErrs, err := s.Parser.Parse(data)
	if err != nil {
		return nil, err
	}
	upload.Errors = append(upload.Errors, rowErrs...)
	upload.TotalInvoices = len(rows) + len(rowErrs)

	// Classify every valid row and persist its record.
	for _, row := range rows {
		if err := s.classifyRow(upload, row); err != nil {
			upload.Errors = append(upload.Errors, fmt.Sprintf("Invoice %s: %v", row.InvoiceNumber, err))
		}
	}
	if err := s.Repo.SaveUpload(upload); err != nil {
		return nil, fmt.Errorf("persist counts: %w", err)
	}

	records, err := s.Repo.ListRecordsByUpload(upload.ID)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return s.reconcile(upload, records, cfg)
}

// Reprocess re-runs the payment-status and commission steps over the
// persisted records of a prior upload, without re-parsing the file. The
// month-key dedupe makes exact re-runs safe.
func (s *Service) Reprocess(uploadID uint, cfg settings.Values) (*UploadResult, error) {
	upload, err := s.Repo.FindUploadByID(uploadID)
	if err != nil {
		return nil, err
	}
	records, err := s.Repo.ListRecordsByUpload(uploadID)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	return s.reconcile(upload, records, cfg)
}

// classifyRow resolves the service id against referrers and installed
// referrals and persists the classified record.
func (s *Service) classifyRow(upload *InvoiceUpload, row Row) error {
	rec := InvoiceRecord{
		UploadID:         upload.ID,
		ExternalClientID: row.ServiceID,
		InvoiceNumber:    row.InvoiceNumber,
		ClientName:       row.ClientName,
		InvoiceDate:      row.IssueDate,
		DueDate:          row.DueDate,
		Amount:           row.Amount,
		Status:           row.Status,
		RawStatus:        row.RawStatus,
	}

	cl, err := s.Clients.FindByExternalID(s.DB, row.ServiceID)
	if err != nil {
		return fmt.Errorf("referrer lookup: %w", err)
	}
	rec.IsReferrer = cl != nil

	ref, err := s.Referrals.FindInstalledByExternalID(s.DB, row.ServiceID)
	if err != nil {
		return fmt.Errorf("referral lookup: %w", err)
	}
	if ref != nil {
		rec.IsReferral = true
		rec.ReferralID = &ref.ID
	}

	if err := s.Repo.CreateRecord(&rec); err != nil {
		return fmt.Errorf("persist record: %w", err)
	}

	if rec.IsReferrer {
		upload.ReferrerInvoices++
	}
	if rec.IsReferral {
		upload.ReferralInvoices++
	}
	if rec.Status == StatusPaid {
		upload.PaidInvoices++
	} else {
		upload.PendingInvoices++
	}
	if upload.PeriodStart == nil || row.IssueDate.Before(*upload.PeriodStart) {
		t := row.IssueDate
		upload.PeriodStart = &t
	}
	if upload.PeriodEnd == nil || row.IssueDate.After(*upload.PeriodEnd) {
		t := row.IssueDate
		upload.PeriodEnd = &t
	}
	return nil
}

// reconcile runs the payment-status updater and the commission engine over
// the upload's records, then finalizes the audit record.
func (s *Service) reconcile(upload *InvoiceUpload, records []InvoiceRecord, cfg settings.Values) (*UploadResult, error) {
	s.updateReferrerPayments(upload, records)

	generated, activated := s.generateCommissions(upload, records, cfg)
	upload.CommissionsGenerated += generated
	upload.CommissionsActivated += activated

	now := time.Now()
	upload.Processed = true
	upload.ProcessedAt = &now
	if err := s.Repo.SaveUpload(upload); err != nil {
		return nil, fmt.Errorf("finalize upload: %w", err)
	}

	return &UploadResult{
		UploadID: upload.ID,
		Stats: UploadStats{
			TotalInvoices:        upload.TotalInvoices,
			ReferrerInvoices:     upload.ReferrerInvoices,
			ReferralInvoices:     upload.ReferralInvoices,
			PaidInvoices:         upload.PaidInvoices,
			PendingInvoices:      upload.PendingInvoices,
			CommissionsGenerated: upload.CommissionsGenerated,
			CommissionsActivated: upload.CommissionsActivated,
			Errors:               upload.Errors,
		},
	}, nil
}

// updateReferrerPayments sets each referrer's payment-current flag from their
// latest invoice in the upload. Records arrive most-recent-first, so the
// first one seen per client wins.
func (s *Service) updateReferrerPayments(upload *InvoiceUpload, records []InvoiceRecord) {
	seen := make(map[uint]bool)
	for i := range records {
		rec := &records[i]
		if !rec.IsReferrer {
			continue
		}
		cl, err := s.Clients.FindByExternalID(s.DB, rec.ExternalClientID)
		if err != nil || cl == nil {
			continue
		}
		if seen[cl.ID] {
			continue
		}
		seen[cl.ID] = true
		current := rec.Status == StatusPaid
		if err := s.Clients.UpdatePaymentStatus(s.DB, cl.ID, current, rec.Status, rec.InvoiceDate); err != nil {
			upload.Errors = append(upload.Errors, fmt.Sprintf("Invoice %s: payment status update: %v", rec.InvoiceNumber, err))
		}
	}
}

// generateCommissions walks the paid referral records oldest-first and
// advances each referral's monthly commission sequence: capped at
// cfg.MonthsToEarn, one per calendar month, initial status gated by the
// owning referrer's payment standing.
func (s *Service) generateCommissions(upload *InvoiceUpload, records []InvoiceRecord, cfg settings.Values) (generated, activated int) {
	ordered := make([]InvoiceRecord, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].InvoiceDate.Before(ordered[j].InvoiceDate)
	})

	for i := range ordered {
		rec := &ordered[i]
		if !rec.IsReferral || rec.Status != StatusPaid {
			continue
		}

		ref, err := s.Referrals.FindInstalledByExternalID(s.DB, rec.ExternalClientID)
		if err != nil {
			upload.Errors = append(upload.Errors, fmt.Sprintf("Invoice %s: referral lookup: %v", rec.InvoiceNumber, err))
			continue
		}
		if ref == nil {
			continue
		}

		// Mirror the latest invoice on the referral regardless of whether a
		// commission comes out of it.
		if err := s.Referrals.UpdateLastInvoice(s.DB, ref.ID, rec.Status, rec.InvoiceDate); err != nil {
			upload.Errors = append(upload.Errors, fmt.Sprintf("Invoice %s: referral mirror: %v", rec.InvoiceNumber, err))
		}

		monthlies, err := s.Commissions.ListMonthlyByReferral(ref.ID)
		if err != nil {
			upload.Errors = append(upload.Errors, fmt.Sprintf("Invoice %s: commission lookup: %v", rec.InvoiceNumber, err))
			continue
		}
		if len(monthlies) >= cfg.MonthsToEarn {
			continue // cap reached, not an error
		}
		key := commission.MonthKeyFor(rec.InvoiceDate)
		duplicate := false
		for _, m := range monthlies {
			if m.MonthKey == key {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue // one commission per calendar month per referral
		}

		owner, err := s.Clients.FindByID(s.DB, ref.ClientID)
		if err != nil {
			upload.Errors = append(upload.Errors, fmt.Sprintf("Invoice %s: owner lookup: %v", rec.InvoiceNumber, err))
			continue
		}

		monthDate := rec.InvoiceDate
		c := &commission.Commission{
			ClientID:    ref.ClientID,
			ReferralID:  ref.ID,
			Type:        commission.TypeMonthly,
			MonthNumber: len(monthlies) + 1,
			MonthKey:    key,
			MonthDate:   &monthDate,
			Amount:      cfg.MonthlyAmount,
		}
		if owner.IsPaymentCurrent {
			c.Status = commission.StatusActive
		} else {
			c.Status = commission.StatusEarned
			c.StatusReason = commission.ReasonClientNotCurrent
		}

		err = s.DB.Transaction(func(tx *gorm.DB) error {
			repo := s.Commissions.WithDB(tx)
			if err := repo.Create(c); err != nil {
				return err
			}
			activeDelta := 0.0
			if c.Status == commission.StatusActive {
				activeDelta = c.Amount
			}
			return repo.AddToClientTotals(ref.ClientID, c.Amount, activeDelta, 0)
		})
		if commission.IsUniqueViolation(err) {
			continue // a concurrent upload generated this month already
		}
		if err != nil {
			upload.Errors = append(upload.Errors, fmt.Sprintf("Invoice %s: commission create: %v", rec.InvoiceNumber, err))
			continue
		}

		if err := s.Repo.MarkRecordMatched(rec.ID, &ref.ID, &c.ID); err != nil {
			upload.Errors = append(upload.Errors, fmt.Sprintf("Invoice %s: record link: %v", rec.InvoiceNumber, err))
		}
		generated++
		if c.Status == commission.StatusActive {
			activated++
		}
	}
	return generated, activated
}
