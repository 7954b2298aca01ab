package commission_test

import (
	"errors"
	"testing"

	"github.com/ConectaSur/api-referidos/internal/client"
	"github.com/ConectaSur/api-referidos/internal/commission"
	"github.com/ConectaSur/api-referidos/internal/referral"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&client.Client{}, &referral.Referral{}, &commission.Commission{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedClientAndReferral(t *testing.T, db *gorm.DB, paymentCurrent bool) (*client.Client, *referral.Referral) {
	t.Helper()
	c := &client.Client{
		Name:             "Referrer",
		Email:            "referrer@example.com",
		ExternalID:       "REF001",
		ReferralCode:     "ABCD1234",
		IsPaymentCurrent: paymentCurrent,
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	r := &referral.Referral{
		ClientID:         c.ID,
		Name:             "Lead",
		Phone:            "555-0001",
		Status:           referral.StatusInstalled,
		ExternalClientID: "SVC123",
	}
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("seed referral: %v", err)
	}
	return c, r
}

func reloadClient(t *testing.T, db *gorm.DB, id uint) *client.Client {
	t.Helper()
	var c client.Client
	if err := db.First(&c, id).Error; err != nil {
		t.Fatalf("reload client: %v", err)
	}
	return &c
}

func TestCreateInstallationIdempotent(t *testing.T) {
	db := setupDB(t)
	svc := commission.NewService(commission.NewRepository(db))
	cl, ref := seedClientAndReferral(t, db, true)

	first, err := svc.CreateInstallation(cl.ID, ref.ID, 25)
	if err != nil {
		t.Fatalf("first install: %v", err)
	}
	if first.Type != commission.TypeInstallation || first.Status != commission.StatusEarned {
		t.Errorf("unexpected commission: %+v", first)
	}

	second, err := svc.CreateInstallation(cl.ID, ref.ID, 25)
	if err != nil {
		t.Fatalf("second install: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second call created a duplicate: %d != %d", second.ID, first.ID)
	}

	var count int64
	db.Model(&commission.Commission{}).Where("referral_id = ?", ref.ID).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 commission, got %d", count)
	}

	got := reloadClient(t, db, cl.ID)
	if got.TotalEarned != 25 {
		t.Errorf("totalEarned = %f, want 25", got.TotalEarned)
	}
}

func TestApplyRequiresActive(t *testing.T) {
	db := setupDB(t)
	svc := commission.NewService(commission.NewRepository(db))
	cl, ref := seedClientAndReferral(t, db, false)

	c, err := svc.CreateInstallation(cl.ID, ref.ID, 25)
	if err != nil {
		t.Fatalf("install: %v", err)
	}

	if _, err := svc.Apply(c.ID, "INV-9", nil, "1"); !errors.Is(err, commission.ErrInvalidState) {
		t.Fatalf("applying an EARNED commission should fail with ErrInvalidState, got %v", err)
	}
}

func TestApplyFullAndPartial(t *testing.T) {
	db := setupDB(t)
	repo := commission.NewRepository(db)
	svc := commission.NewService(repo)
	cl, ref := seedClientAndReferral(t, db, true)

	active := &commission.Commission{
		ClientID:    cl.ID,
		ReferralID:  ref.ID,
		Type:        commission.TypeMonthly,
		MonthNumber: 1,
		MonthKey:    "202503",
		Status:      commission.StatusActive,
		Amount:      10,
	}
	if err := repo.Create(active); err != nil {
		t.Fatalf("seed commission: %v", err)
	}
	if err := repo.AddToClientTotals(cl.ID, 10, 10, 0); err != nil {
		t.Fatalf("seed totals: %v", err)
	}

	partial := 4.0
	applied, err := svc.Apply(active.ID, "INV-100", &partial, "7")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied.Status != commission.StatusActive || applied.AppliedAmount != 4 {
		t.Errorf("partial application should stay ACTIVE for its remainder: %+v", applied)
	}
	if applied.InvoiceID != "INV-100" || applied.AppliedAt == nil || applied.AppliedBy != "7" {
		t.Errorf("application metadata missing: %+v", applied)
	}

	got := reloadClient(t, db, cl.ID)
	if got.TotalApplied != 4 || got.TotalActive != 6 {
		t.Errorf("totals = applied %f active %f, want 4 / 6", got.TotalApplied, got.TotalActive)
	}

	// The remainder reconciles with the ACTIVE aggregate.
	sum, err := repo.SumByClientAndStatus(cl.ID, []string{commission.StatusActive})
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != got.TotalActive {
		t.Errorf("totalActive %f does not reconcile with SUM %f after partial apply", got.TotalActive, sum)
	}

	// Exceeding the remainder is rejected.
	over := 7.0
	if _, err := svc.Apply(active.ID, "INV-101", &over, "7"); err == nil {
		t.Fatal("expected error for amount above the remaining value")
	}

	// Applying the remainder closes the commission out.
	final, err := svc.Apply(active.ID, "INV-101", nil, "7")
	if err != nil {
		t.Fatalf("apply remainder: %v", err)
	}
	if final.Status != commission.StatusApplied || final.AppliedAmount != 10 {
		t.Errorf("remainder application should finish APPLIED: %+v", final)
	}
	got = reloadClient(t, db, cl.ID)
	if got.TotalApplied != 10 || got.TotalActive != 0 {
		t.Errorf("totals = applied %f active %f, want 10 / 0", got.TotalApplied, got.TotalActive)
	}

	// APPLIED is terminal for apply as well.
	if _, err := svc.Apply(active.ID, "INV-102", nil, "7"); !errors.Is(err, commission.ErrInvalidState) {
		t.Errorf("re-applying should fail, got %v", err)
	}
}

func TestApplyRejectsExcessAmount(t *testing.T) {
	db := setupDB(t)
	repo := commission.NewRepository(db)
	svc := commission.NewService(repo)
	cl, ref := seedClientAndReferral(t, db, true)

	c := &commission.Commission{
		ClientID: cl.ID, ReferralID: ref.ID,
		Type: commission.TypeMonthly, MonthNumber: 1, MonthKey: "202501",
		Status: commission.StatusActive, Amount: 10,
	}
	if err := repo.Create(c); err != nil {
		t.Fatalf("seed: %v", err)
	}
	over := 11.0
	if _, err := svc.Apply(c.ID, "INV-1", &over, "1"); err == nil {
		t.Fatal("expected error for amount above the commission value")
	}
}

func TestCancelRules(t *testing.T) {
	db := setupDB(t)
	repo := commission.NewRepository(db)
	svc := commission.NewService(repo)
	cl, ref := seedClientAndReferral(t, db, true)

	c := &commission.Commission{
		ClientID: cl.ID, ReferralID: ref.ID,
		Type: commission.TypeMonthly, MonthNumber: 1, MonthKey: "202501",
		Status: commission.StatusActive, Amount: 10,
	}
	if err := repo.Create(c); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.AddToClientTotals(cl.ID, 10, 10, 0); err != nil {
		t.Fatalf("seed totals: %v", err)
	}

	if _, err := svc.Cancel(c.ID, ""); !errors.Is(err, commission.ErrReasonRequired) {
		t.Fatalf("cancel without reason must fail, got %v", err)
	}

	cancelled, err := svc.Cancel(c.ID, "duplicate row")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != commission.StatusCancelled || cancelled.StatusReason != "duplicate row" {
		t.Errorf("unexpected cancel result: %+v", cancelled)
	}
	got := reloadClient(t, db, cl.ID)
	if got.TotalActive != 0 {
		t.Errorf("cancelling an ACTIVE commission should release totalActive, got %f", got.TotalActive)
	}

	// Terminal: cancelling again fails.
	if _, err := svc.Cancel(c.ID, "again"); !errors.Is(err, commission.ErrInvalidState) {
		t.Errorf("cancelling a CANCELLED commission must fail, got %v", err)
	}

	// Cancelling an APPLIED commission fails too.
	applied := &commission.Commission{
		ClientID: cl.ID, ReferralID: ref.ID,
		Type: commission.TypeMonthly, MonthNumber: 2, MonthKey: "202502",
		Status: commission.StatusApplied, Amount: 10, AppliedAmount: 10,
	}
	if err := repo.Create(applied); err != nil {
		t.Fatalf("seed applied: %v", err)
	}
	if _, err := svc.Cancel(applied.ID, "reason"); !errors.Is(err, commission.ErrInvalidState) {
		t.Errorf("cancelling an APPLIED commission must fail, got %v", err)
	}
}

func TestCancelPartiallyAppliedReleasesRemainder(t *testing.T) {
	db := setupDB(t)
	repo := commission.NewRepository(db)
	svc := commission.NewService(repo)
	cl, ref := seedClientAndReferral(t, db, true)

	c := &commission.Commission{
		ClientID: cl.ID, ReferralID: ref.ID,
		Type: commission.TypeMonthly, MonthNumber: 1, MonthKey: "202501",
		Status: commission.StatusActive, Amount: 10,
	}
	if err := repo.Create(c); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := repo.AddToClientTotals(cl.ID, 10, 10, 0); err != nil {
		t.Fatalf("seed totals: %v", err)
	}

	partial := 4.0
	if _, err := svc.Apply(c.ID, "INV-50", &partial, "1"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := svc.Cancel(c.ID, "service terminated"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	got := reloadClient(t, db, cl.ID)
	if got.TotalActive != 0 {
		t.Errorf("cancel should release only the unapplied remainder, totalActive = %f", got.TotalActive)
	}
	if got.TotalApplied != 4 {
		t.Errorf("applied portion must survive the cancel, totalApplied = %f", got.TotalApplied)
	}
}

func TestActivateEarnedForClient(t *testing.T) {
	db := setupDB(t)
	repo := commission.NewRepository(db)
	svc := commission.NewService(repo)
	cl, ref := seedClientAndReferral(t, db, false)

	for i, key := range []string{"202501", "202502"} {
		c := &commission.Commission{
			ClientID: cl.ID, ReferralID: ref.ID,
			Type: commission.TypeMonthly, MonthNumber: i + 1, MonthKey: key,
			Status: commission.StatusEarned, Amount: 10,
			StatusReason: commission.ReasonClientNotCurrent,
		}
		if err := repo.Create(c); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if err := repo.AddToClientTotals(cl.ID, 20, 0, 0); err != nil {
		t.Fatalf("seed totals: %v", err)
	}

	count, total, err := svc.ActivateEarnedForClient(cl.ID)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if count != 2 || total != 20 {
		t.Errorf("activate = (%d, %f), want (2, 20)", count, total)
	}

	var remaining int64
	db.Model(&commission.Commission{}).
		Where("client_id = ? AND status = ?", cl.ID, commission.StatusEarned).
		Count(&remaining)
	if remaining != 0 {
		t.Errorf("%d commissions left EARNED", remaining)
	}
	var cleared int64
	db.Model(&commission.Commission{}).
		Where("client_id = ? AND status = ? AND status_reason = ''", cl.ID, commission.StatusActive).
		Count(&cleared)
	if cleared != 2 {
		t.Errorf("status reason not cleared on activation")
	}

	got := reloadClient(t, db, cl.ID)
	if got.TotalActive != 20 {
		t.Errorf("totalActive = %f, want 20", got.TotalActive)
	}
	if !got.IsPaymentCurrent {
		t.Error("activation should mark the client payment-current")
	}

	// Totals reconcile with a fresh aggregate.
	sum, err := repo.SumByClientAndStatus(cl.ID, []string{commission.StatusActive})
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if sum != got.TotalActive {
		t.Errorf("totalActive %f does not reconcile with SUM %f", got.TotalActive, sum)
	}

	// Second run is a no-op.
	count, total, err = svc.ActivateEarnedForClient(cl.ID)
	if err != nil {
		t.Fatalf("second activate: %v", err)
	}
	if count != 0 || total != 0 {
		t.Errorf("second activation should be a no-op, got (%d, %f)", count, total)
	}
	got = reloadClient(t, db, cl.ID)
	if got.TotalActive != 20 {
		t.Errorf("totalActive drifted to %f on re-run", got.TotalActive)
	}
}

func TestMonthlyUniqueConstraints(t *testing.T) {
	db := setupDB(t)
	repo := commission.NewRepository(db)
	cl, ref := seedClientAndReferral(t, db, true)

	base := commission.Commission{
		ClientID: cl.ID, ReferralID: ref.ID,
		Type: commission.TypeMonthly, MonthNumber: 1, MonthKey: "202503",
		Status: commission.StatusActive, Amount: 10,
	}
	first := base
	if err := repo.Create(&first); err != nil {
		t.Fatalf("first create: %v", err)
	}

	dupMonth := base
	dupMonth.MonthNumber = 2
	err := repo.Create(&dupMonth)
	if !commission.IsUniqueViolation(err) {
		t.Errorf("same month key should violate the unique index, got %v", err)
	}

	dupSeq := base
	dupSeq.MonthKey = "202504"
	err = repo.Create(&dupSeq)
	if !commission.IsUniqueViolation(err) {
		t.Errorf("same month number should violate the unique index, got %v", err)
	}
}
