//go:build !integration

package admin

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"garageBooking/domain"
)

var now = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type fakeProfiles struct {
	byAccount map[uint]domain.GarageProfile
	staleOnce bool
	saves     int
}

func (f *fakeProfiles) GetByAccountID(_ context.Context, accountID uint) (*domain.GarageProfile, error) {
	p, ok := f.byAccount[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := p
	cp.ReviewHistory = append([]domain.AdminReview(nil), p.ReviewHistory...)
	return &cp, nil
}

func (f *fakeProfiles) SaveWithVersion(_ context.Context, p *domain.GarageProfile) error {
	stored := f.byAccount[p.AccountID]
	if f.staleOnce {
		f.staleOnce = false
		stored.Version++
		f.byAccount[p.AccountID] = stored
		return domain.ErrStaleVersion
	}
	if stored.Version != p.Version {
		return domain.ErrStaleVersion
	}
	p.Version++
	f.byAccount[p.AccountID] = *p
	f.saves++
	return nil
}

func (f *fakeProfiles) List(_ context.Context, filter domain.ApplicationFilter) ([]domain.GarageProfile, int64, error) {
	var out []domain.GarageProfile
	for _, p := range f.byAccount {
		if filter.Verification != "" && p.Verification.Status != filter.Verification {
			continue
		}
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (f *fakeProfiles) CountByVerification(context.Context) (map[string]int64, error) {
	out := map[string]int64{}
	for _, p := range f.byAccount {
		out[string(p.Verification.Status)]++
	}
	return out, nil
}

func (f *fakeProfiles) CountByPayment(context.Context) (map[string]int64, error) {
	out := map[string]int64{}
	for _, p := range f.byAccount {
		out[string(p.Payment.Status)]++
	}
	return out, nil
}

type fakeAccounts struct {
	byID map[uint]domain.Account
}

func (f *fakeAccounts) FindByID(_ context.Context, id uint) (domain.Account, error) {
	a, ok := f.byID[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return a, nil
}

func (f *fakeAccounts) CountByRole(context.Context) (map[domain.Role]int64, error) {
	out := map[domain.Role]int64{}
	for _, a := range f.byID {
		out[a.Role]++
	}
	return out, nil
}

type fakeDocs struct {
	verified []string
}

func (f *fakeDocs) VerifyDocument(_ context.Context, accountID uint, _ domain.Actor, docID, _ string) (*domain.GarageProfile, error) {
	f.verified = append(f.verified, docID)
	p := domain.NewGarageProfile(accountID)
	return &p, nil
}

func (f *fakeDocs) RejectDocument(_ context.Context, accountID uint, _ domain.Actor, _, _ string) (*domain.GarageProfile, error) {
	p := domain.NewGarageProfile(accountID)
	return &p, nil
}

type fakeNotifier struct {
	sent   []string
	bodies []string
	err    error
}

func (f *fakeNotifier) SendEmail(_ context.Context, _, toEmail, _, body string) error {
	f.sent = append(f.sent, toEmail)
	f.bodies = append(f.bodies, body)
	return f.err
}

type count int64

func (c count) CountActive(context.Context) (int64, error) { return int64(c), nil }

type bookingCounts map[string]int64

func (b bookingCounts) CountByStatus(context.Context) (map[string]int64, error) { return b, nil }

var (
	admin = domain.Actor{ID: 90, Role: domain.RoleAdmin}
	super = domain.Actor{ID: 91, Role: domain.RoleSuperAdmin}
	owner = domain.Actor{ID: 7, Role: domain.RoleGarageOwner}
)

func paidProfile() domain.GarageProfile {
	p := domain.NewGarageProfile(7)
	p.ID = 1
	p.BusinessName = "Bole Auto"
	p.Payment.Status = domain.PaymentPaid
	p.Verification.Status = domain.VerificationPaymentCompleted
	return p
}

type harness struct {
	svc      *adminService
	profiles *fakeProfiles
	notif    *fakeNotifier
	docs     *fakeDocs
}

func newHarness(ps ...domain.GarageProfile) harness {
	profiles := &fakeProfiles{byAccount: map[uint]domain.GarageProfile{}}
	for _, p := range ps {
		profiles.byAccount[p.AccountID] = p
	}
	accounts := &fakeAccounts{byID: map[uint]domain.Account{
		7:  {ID: 7, FullName: "Abebe Kebede", Email: "abebe@example.com", Password: "hash", Role: domain.RoleGarageOwner},
		8:  {ID: 8, FullName: "Sara", Email: "sara@example.com", Role: domain.RoleCustomer},
		90: {ID: 90, FullName: "Admin", Email: "admin@example.com", Role: domain.RoleAdmin},
	}}
	notif := &fakeNotifier{}
	docs := &fakeDocs{}
	svc := NewAdminService(profiles, accounts, docs, notif, Counters{
		Garages:  count(3),
		Bookings: bookingCounts{"pending": 2, "completed": 5},
		Reviews:  count(4),
	})
	svc.now = func() time.Time { return now }
	return harness{svc: svc, profiles: profiles, notif: notif, docs: docs}
}

func TestDecide_ApproveStampsNumberAndNotifies(t *testing.T) {
	h := newHarness(paidProfile())

	p, err := h.svc.Decide(context.Background(), 7, admin, ActionApprove, DecisionInput{Comments: "looks good"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Verification.Status != domain.VerificationApproved {
		t.Fatalf("status = %s", p.Verification.Status)
	}
	if p.Verification.ApprovalNumber == nil || !regexp.MustCompile(`^GRG-APR-2026-[0-9A-F]{8}$`).MatchString(*p.Verification.ApprovalNumber) {
		t.Fatalf("approval number = %v", p.Verification.ApprovalNumber)
	}
	if p.Version != 2 {
		t.Errorf("version = %d", p.Version)
	}
	if len(h.notif.sent) != 1 || h.notif.sent[0] != "abebe@example.com" {
		t.Errorf("notifications = %v", h.notif.sent)
	}
}

func TestDecide_ApprovalNumberKeptOnReapproval(t *testing.T) {
	h := newHarness(paidProfile())
	ctx := context.Background()

	first, err := h.svc.Decide(ctx, 7, admin, ActionApprove, DecisionInput{})
	if err != nil {
		t.Fatal(err)
	}
	number := *first.Verification.ApprovalNumber

	if _, err := h.svc.Decide(ctx, 7, admin, ActionSuspend, DecisionInput{Reason: "complaints"}); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.Decide(ctx, 7, admin, ActionStartReview, DecisionInput{}); err != nil {
		t.Fatal(err)
	}
	again, err := h.svc.Decide(ctx, 7, admin, ActionApprove, DecisionInput{})
	if err != nil {
		t.Fatal(err)
	}
	if *again.Verification.ApprovalNumber != number {
		t.Fatalf("approval number changed: %s -> %s", number, *again.Verification.ApprovalNumber)
	}
	if len(again.ReviewHistory) != 4 {
		t.Fatalf("history length = %d", len(again.ReviewHistory))
	}
}

func TestDecide_ExpectedVersion(t *testing.T) {
	t.Run("mismatch is stale", func(t *testing.T) {
		h := newHarness(paidProfile())
		v := uint(5)
		_, err := h.svc.Decide(context.Background(), 7, admin, ActionStartReview, DecisionInput{ExpectedVersion: &v})
		if !errors.Is(err, domain.ErrStaleVersion) {
			t.Fatalf("err = %v", err)
		}
		if h.profiles.saves != 0 {
			t.Fatal("profile saved on version mismatch")
		}
	})

	t.Run("matching version applies", func(t *testing.T) {
		h := newHarness(paidProfile())
		v := uint(1)
		p, err := h.svc.Decide(context.Background(), 7, admin, ActionStartReview, DecisionInput{ExpectedVersion: &v})
		if err != nil {
			t.Fatal(err)
		}
		if p.Verification.Status != domain.VerificationUnderReview {
			t.Fatalf("status = %s", p.Verification.Status)
		}
	})

	t.Run("concurrent write with expected version is not retried", func(t *testing.T) {
		h := newHarness(paidProfile())
		h.profiles.staleOnce = true
		v := uint(1)
		_, err := h.svc.Decide(context.Background(), 7, admin, ActionStartReview, DecisionInput{ExpectedVersion: &v})
		if !errors.Is(err, domain.ErrStaleVersion) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("omitted version retries once", func(t *testing.T) {
		h := newHarness(paidProfile())
		h.profiles.staleOnce = true
		p, err := h.svc.Decide(context.Background(), 7, admin, ActionStartReview, DecisionInput{})
		if err != nil {
			t.Fatal(err)
		}
		if p.Version != 3 {
			t.Fatalf("version = %d", p.Version)
		}
	})
}

func TestDecide_Refusals(t *testing.T) {
	unpaid := paidProfile()
	unpaid.Payment.Status = domain.PaymentPending
	unpaid.Verification.Status = domain.VerificationPendingPayment

	tests := []struct {
		name    string
		profile domain.GarageProfile
		actor   domain.Actor
		action  Action
		in      DecisionInput
		want    error
	}{
		{"unknown action", paidProfile(), admin, "promote", DecisionInput{}, domain.ErrValidation},
		{"owner cannot decide", paidProfile(), owner, ActionApprove, DecisionInput{}, domain.ErrForbidden},
		{"approve without payment", unpaid, admin, ActionApprove, DecisionInput{}, domain.ErrPaymentNotCompleted},
		{"reject needs reason", paidProfile(), admin, ActionReject, DecisionInput{}, domain.ErrValidation},
		{"ban needs super admin", paidProfile(), admin, ActionBan, DecisionInput{Reason: "fraud"}, domain.ErrForbidden},
		{"waive needs super admin", unpaid, admin, ActionWaivePayment, DecisionInput{}, domain.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.profile)
			_, err := h.svc.Decide(context.Background(), 7, tt.actor, tt.action, tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if h.profiles.saves != 0 || len(h.notif.sent) != 0 {
				t.Fatal("refused decision had side effects")
			}
		})
	}
}

func TestDecide_SuperAdminWaivesAndBans(t *testing.T) {
	unpaid := paidProfile()
	unpaid.Payment.Status = domain.PaymentPending
	unpaid.Verification.Status = domain.VerificationDocumentsUploaded
	h := newHarness(unpaid)
	ctx := context.Background()

	p, err := h.svc.Decide(ctx, 7, super, ActionWaivePayment, DecisionInput{Reason: "pilot partner"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Payment.Status != domain.PaymentNotRequired || p.Verification.Status != domain.VerificationPaymentCompleted {
		t.Fatalf("after waive: %s/%s", p.Payment.Status, p.Verification.Status)
	}

	p, err = h.svc.Decide(ctx, 7, super, ActionBan, DecisionInput{Reason: "fraud"})
	if err != nil {
		t.Fatal(err)
	}
	if p.Verification.Status != domain.VerificationBanned {
		t.Fatalf("status = %s", p.Verification.Status)
	}
	if _, err := h.svc.Decide(ctx, 7, admin, ActionStartReview, DecisionInput{}); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("review after ban: err = %v", err)
	}
}

func TestDecide_EmailCarriesReason(t *testing.T) {
	tests := []struct {
		name   string
		actor  domain.Actor
		action Action
		in     DecisionInput
		want   string
	}{
		{"reject", admin, ActionReject, DecisionInput{Reason: "expired trade license"}, "Reason: expired trade license"},
		{"suspend", admin, ActionSuspend, DecisionInput{Reason: "customer complaints"}, "Reason: customer complaints"},
		{"ban", super, ActionBan, DecisionInput{Reason: "forged documents"}, "Reason: forged documents"},
		{"more info", admin, ActionRequestInfo, DecisionInput{Reason: "clearer tax certificate"}, "We need: clearer tax certificate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(paidProfile())

			if _, err := h.svc.Decide(context.Background(), 7, tt.actor, tt.action, tt.in); err != nil {
				t.Fatal(err)
			}
			if len(h.notif.bodies) != 1 || !strings.Contains(h.notif.bodies[0], tt.want) {
				t.Fatalf("bodies = %q, want %q", h.notif.bodies, tt.want)
			}
		})
	}
}

func TestDecide_NotificationFailureIsIgnored(t *testing.T) {
	h := newHarness(paidProfile())
	h.notif.err = errors.New("mailjet down")

	if _, err := h.svc.Decide(context.Background(), 7, admin, ActionStartReview, DecisionInput{}); err != nil {
		t.Fatalf("err = %v", err)
	}
	if h.profiles.byAccount[7].Verification.Status != domain.VerificationUnderReview {
		t.Fatal("decision not stored")
	}
}

func TestGetApplication(t *testing.T) {
	h := newHarness(paidProfile())
	view, err := h.svc.GetApplication(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if view.Account.Password != "" {
		t.Error("password hash leaked")
	}
	if len(view.MissingDocuments) != len(domain.RequiredDocumentTypes) {
		t.Errorf("missing documents = %v", view.MissingDocuments)
	}
	if _, err := h.svc.GetApplication(context.Background(), 8); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("customer without profile: err = %v", err)
	}
}

func TestDocumentChecksRequireAdmin(t *testing.T) {
	h := newHarness(paidProfile())
	if _, err := h.svc.VerifyDocument(context.Background(), 7, owner, "d1", ""); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v", err)
	}
	if _, err := h.svc.VerifyDocument(context.Background(), 7, admin, "d1", ""); err != nil {
		t.Fatal(err)
	}
	if len(h.docs.verified) != 1 {
		t.Fatalf("verified = %v", h.docs.verified)
	}
}

func TestStats(t *testing.T) {
	second := paidProfile()
	second.AccountID = 9
	second.Payment.Status = domain.PaymentPending
	second.Verification.Status = domain.VerificationPendingPayment
	h := newHarness(paidProfile(), second)

	stats, err := h.svc.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.ApplicationsByPayment["paid"] != 1 || stats.ApplicationsByPayment["pending"] != 1 {
		t.Errorf("by payment = %v", stats.ApplicationsByPayment)
	}
	if stats.AccountsByRole[domain.RoleCustomer] != 1 {
		t.Errorf("by role = %v", stats.AccountsByRole)
	}
	if stats.ActiveGarages != 3 || stats.ActiveReviews != 4 || stats.BookingsByStatus["completed"] != 5 {
		t.Errorf("stats = %+v", stats)
	}
}
