package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"garageBooking/business/documents"
	"garageBooking/business/verification"
	"garageBooking/domain"
	"garageBooking/pkg/logger"
	"garageBooking/pkg/metrics"
	"garageBooking/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type ProfileRepository interface {
	GetByAccountID(ctx context.Context, accountID uint) (*domain.GarageProfile, error)
	SaveWithVersion(ctx context.Context, profile *domain.GarageProfile) error
	List(ctx context.Context, filter domain.ApplicationFilter) ([]domain.GarageProfile, int64, error)
	CountByVerification(ctx context.Context) (map[string]int64, error)
	CountByPayment(ctx context.Context) (map[string]int64, error)
}

type AccountRepository interface {
	FindByID(ctx context.Context, id uint) (domain.Account, error)
	CountByRole(ctx context.Context) (map[domain.Role]int64, error)
}

type GarageCounter interface {
	CountActive(ctx context.Context) (int64, error)
}

type BookingCounter interface {
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type ReviewCounter interface {
	CountActive(ctx context.Context) (int64, error)
}

// DocumentReviewer records admin checks of uploaded documents.
type DocumentReviewer interface {
	VerifyDocument(ctx context.Context, accountID uint, actor domain.Actor, docID, notes string) (*domain.GarageProfile, error)
	RejectDocument(ctx context.Context, accountID uint, actor domain.Actor, docID, notes string) (*domain.GarageProfile, error)
}

type NotificationRepository interface {
	SendEmail(ctx context.Context, toName, toEmail, subject, message string) error
}

type Action string

const (
	ActionStartReview  Action = "start_review"
	ActionApprove      Action = "approve"
	ActionReject       Action = "reject"
	ActionRequestInfo  Action = "request_info"
	ActionSuspend      Action = "suspend"
	ActionBan          Action = "ban"
	ActionWaivePayment Action = "waive_payment"
)

// DecisionInput carries every field any decision may need. ExpectedVersion,
// when set, must match the stored profile version.
type DecisionInput struct {
	ExpectedVersion *uint      `json:"expected_version"`
	Comments        string     `json:"comments"`
	Reason          string     `json:"reason"`
	ReReviewAt      *time.Time `json:"re_review_at"`
}

type ApplicationView struct {
	Account          domain.Account        `json:"account"`
	Profile          *domain.GarageProfile `json:"profile"`
	MissingDocuments []domain.DocumentType `json:"missing_documents"`
}

type Stats struct {
	ApplicationsByVerification map[string]int64      `json:"applications_by_verification"`
	ApplicationsByPayment      map[string]int64      `json:"applications_by_payment"`
	AccountsByRole             map[domain.Role]int64 `json:"accounts_by_role"`
	ActiveGarages              int64                 `json:"active_garages"`
	BookingsByStatus           map[string]int64      `json:"bookings_by_status"`
	ActiveReviews              int64                 `json:"active_reviews"`
}

type Counters struct {
	Garages  GarageCounter
	Bookings BookingCounter
	Reviews  ReviewCounter
}

type adminService struct {
	profiles ProfileRepository
	accounts AccountRepository
	docs     DocumentReviewer
	notif    NotificationRepository
	counters Counters
	now      func() time.Time
}

func NewAdminService(profiles ProfileRepository, accounts AccountRepository, docs DocumentReviewer, notif NotificationRepository, counters Counters) *adminService {
	return &adminService{
		profiles: profiles,
		accounts: accounts,
		docs:     docs,
		notif:    notif,
		counters: counters,
		now:      time.Now,
	}
}

func (s *adminService) ListApplications(ctx context.Context, filter domain.ApplicationFilter) ([]domain.GarageProfile, int64, error) {
	return s.profiles.List(ctx, filter)
}

func (s *adminService) GetApplication(ctx context.Context, accountID uint) (ApplicationView, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return ApplicationView{}, err
	}
	profile, err := s.profiles.GetByAccountID(ctx, accountID)
	if err != nil {
		return ApplicationView{}, err
	}

	account.Password = ""
	return ApplicationView{
		Account:          account,
		Profile:          profile,
		MissingDocuments: documents.MissingDocumentTypes(profile),
	}, nil
}

type transition func(p *domain.GarageProfile, actor domain.Actor, in DecisionInput, now time.Time) error

var transitions = map[Action]transition{
	ActionStartReview: func(p *domain.GarageProfile, a domain.Actor, in DecisionInput, now time.Time) error {
		return verification.StartReview(p, a, in.Comments, now)
	},
	ActionApprove: func(p *domain.GarageProfile, a domain.Actor, in DecisionInput, now time.Time) error {
		return verification.Approve(p, a, NewApprovalNumber(now), in.Comments, now)
	},
	ActionReject: func(p *domain.GarageProfile, a domain.Actor, in DecisionInput, now time.Time) error {
		return verification.Reject(p, a, in.Reason, now)
	},
	ActionRequestInfo: func(p *domain.GarageProfile, a domain.Actor, in DecisionInput, now time.Time) error {
		return verification.RequestMoreInfo(p, a, in.Reason, now)
	},
	ActionSuspend: func(p *domain.GarageProfile, a domain.Actor, in DecisionInput, now time.Time) error {
		return verification.Suspend(p, a, in.Reason, in.ReReviewAt, now)
	},
	ActionBan: func(p *domain.GarageProfile, a domain.Actor, in DecisionInput, now time.Time) error {
		return verification.Ban(p, a, in.Reason, now)
	},
	ActionWaivePayment: func(p *domain.GarageProfile, a domain.Actor, in DecisionInput, now time.Time) error {
		return verification.WaivePayment(p, a, in.Reason, now)
	},
}

// NewApprovalNumber is only used the first time a profile is approved.
func NewApprovalNumber(at time.Time) string {
	return fmt.Sprintf("GRG-APR-%d-%s", at.Year(), strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8]))
}

// Decide applies an admin decision. Without an expected version a stale
// write is retried once against the fresh profile.
func (s *adminService) Decide(ctx context.Context, accountID uint, actor domain.Actor, action Action, in DecisionInput) (profile *domain.GarageProfile, err error) {
	apply, ok := transitions[action]
	if !ok {
		return nil, domain.NewValidationError("action", fmt.Sprintf("unknown action %q", action))
	}

	ctx, span := tracing.Start(ctx, "admin.Decide",
		attribute.String("action", string(action)),
		attribute.Int64("account_id", int64(accountID)),
	)
	defer func() { tracing.End(span, err) }()

	for attempt := 0; ; attempt++ {
		p, err := s.profiles.GetByAccountID(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if in.ExpectedVersion != nil && *in.ExpectedVersion != p.Version {
			return nil, fmt.Errorf("%w: expected version %d, current %d", domain.ErrStaleVersion, *in.ExpectedVersion, p.Version)
		}

		if err := apply(p, actor, in, s.now()); err != nil {
			return nil, err
		}

		err = s.profiles.SaveWithVersion(ctx, p)
		if errors.Is(err, domain.ErrStaleVersion) && in.ExpectedVersion == nil && attempt == 0 {
			logger.Warn("profile changed during admin decision, retrying", "account_id", accountID, "action", action)
			continue
		}
		if err != nil {
			return nil, err
		}

		metrics.StateTransitions.WithLabelValues(string(action)).Inc()
		logger.Info("admin decision applied",
			"account_id", accountID,
			"action", action,
			"by", actor.ID,
			"verification", p.Verification.Status,
			"payment", p.Payment.Status,
		)
		s.notify(ctx, accountID, p)
		return p, nil
	}
}

func (s *adminService) VerifyDocument(ctx context.Context, accountID uint, actor domain.Actor, docID, notes string) (*domain.GarageProfile, error) {
	if !actor.Role.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return s.docs.VerifyDocument(ctx, accountID, actor, docID, notes)
}

func (s *adminService) RejectDocument(ctx context.Context, accountID uint, actor domain.Actor, docID, notes string) (*domain.GarageProfile, error) {
	if !actor.Role.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	return s.docs.RejectDocument(ctx, accountID, actor, docID, notes)
}

func (s *adminService) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	var err error

	if out.ApplicationsByVerification, err = s.profiles.CountByVerification(ctx); err != nil {
		return Stats{}, err
	}
	if out.ApplicationsByPayment, err = s.profiles.CountByPayment(ctx); err != nil {
		return Stats{}, err
	}
	if out.AccountsByRole, err = s.accounts.CountByRole(ctx); err != nil {
		return Stats{}, err
	}
	if out.ActiveGarages, err = s.counters.Garages.CountActive(ctx); err != nil {
		return Stats{}, err
	}
	if out.BookingsByStatus, err = s.counters.Bookings.CountByStatus(ctx); err != nil {
		return Stats{}, err
	}
	if out.ActiveReviews, err = s.counters.Reviews.CountActive(ctx); err != nil {
		return Stats{}, err
	}

	return out, nil
}

const (
	SubjectApplicationUpdate   = "Your garage application has been updated"
	EmailBodyApplicationUpdate = `Hello %v,</br></br>the status of your garage application is now <b>%v</b>.%v`
)

// notify is best-effort.
func (s *adminService) notify(ctx context.Context, accountID uint, p *domain.GarageProfile) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		logger.Warn("decision email skipped, account not loaded", "error", err, "account_id", accountID)
		return
	}

	var detail string
	switch p.Verification.Status {
	case domain.VerificationApproved:
		if p.Verification.ApprovalNumber != nil {
			detail = "</br>Approval number: " + *p.Verification.ApprovalNumber
		}
	case domain.VerificationRejected, domain.VerificationBanned:
		detail = "</br>Reason: " + p.Verification.RejectionReason
	case domain.VerificationMoreInfoNeeded:
		detail = "</br>We need: " + p.Verification.MoreInfoRequest
	case domain.VerificationSuspended:
		detail = "</br>Reason: " + p.Verification.SuspensionReason
	}

	body := fmt.Sprintf(EmailBodyApplicationUpdate, account.FullName, p.Verification.Status, detail)
	if err := s.notif.SendEmail(ctx, account.FullName, account.Email, SubjectApplicationUpdate, body); err != nil {
		logger.Warn("failed to send decision email", "error", err, "account_id", accountID)
	}
}
