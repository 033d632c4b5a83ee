// Package verification is the single authority over a garage profile's
// payment and verification states. Nothing else writes those two fields.
package verification

import (
	"fmt"
	"strings"
	"time"

	"garageBooking/domain"
)

// Actor is whoever asks for a transition.
type Actor = domain.Actor

// SubscriptionLapsedReason is the suspension reason used when an approved
// owner's subscription runs out. Owners suspended for it may pay again.
const SubscriptionLapsedReason = "subscription expired"

var paymentRetryable = map[domain.PaymentStatus]bool{
	domain.PaymentPending: true,
	domain.PaymentFailed:  true,
	domain.PaymentExpired: true,
}

var paymentStartable = map[domain.VerificationStatus]bool{
	domain.VerificationRegistrationStarted: true,
	domain.VerificationDocumentsUploaded:   true,
	domain.VerificationPendingPayment:      true,
	domain.VerificationMoreInfoNeeded:      true,
}

// MarkDocumentsUploaded moves a fresh registration to documents_uploaded.
// In every other state attaching a document changes nothing here.
func MarkDocumentsUploaded(p *domain.GarageProfile, now time.Time) bool {
	if p.Verification.Status != domain.VerificationRegistrationStarted {
		return false
	}
	p.Verification.Status = domain.VerificationDocumentsUploaded
	p.Verification.SubmittedAt = &now
	return true
}

// CanBeginPayment reports whether a checkout may be opened right now.
func CanBeginPayment(p *domain.GarageProfile) error {
	if !paymentRetryable[p.Payment.Status] {
		return refuse("begin payment", p, fmt.Sprintf("payment is %s", p.Payment.Status))
	}
	if paymentStartable[p.Verification.Status] {
		return nil
	}
	if p.Verification.Status == domain.VerificationSuspended && p.Verification.SuspensionReason == SubscriptionLapsedReason {
		return nil
	}
	return refuse("begin payment", p, fmt.Sprintf("verification is %s", p.Verification.Status))
}

// BeginPayment binds a new transaction reference to the profile.
func BeginPayment(p *domain.GarageProfile, plan domain.Plan, amount int64, currency, txRef string, now time.Time) error {
	if err := CanBeginPayment(p); err != nil {
		return err
	}
	if !plan.Valid() {
		return refuse("begin payment", p, fmt.Sprintf("unknown plan %q", plan))
	}
	if txRef == "" {
		return refuse("begin payment", p, "empty transaction reference")
	}

	ref := txRef
	p.Payment.Status = domain.PaymentProcessing
	p.Payment.Plan = plan
	p.Payment.Amount = amount
	p.Payment.Currency = currency
	p.Payment.TxRef = &ref
	p.Payment.ProviderRef = ""
	p.Payment.InitiatedAt = &now
	p.Payment.PaidAt = nil
	p.Payment.ExpiresAt = nil
	p.Progress.PaymentCompleted = false

	if p.Verification.Status != domain.VerificationSuspended {
		p.Verification.Status = domain.VerificationPendingPayment
	}
	return nil
}

// ConfirmPayment applies a successful provider result. Re-applying it to a
// paid profile is a no-op and reports applied=false.
func ConfirmPayment(p *domain.GarageProfile, providerRef string, paidAt time.Time) (bool, error) {
	switch p.Payment.Status {
	case domain.PaymentPaid:
		return false, nil
	case domain.PaymentProcessing, domain.PaymentFailed, domain.PaymentExpired:
	default:
		return false, refuse("confirm payment", p, "no checkout in progress")
	}

	expires := paidAt.Add(p.Payment.Plan.Period())
	p.Payment.Status = domain.PaymentPaid
	p.Payment.PaidAt = &paidAt
	p.Payment.ExpiresAt = &expires
	if providerRef != "" {
		p.Payment.ProviderRef = providerRef
	}
	p.Progress.PaymentCompleted = true

	if !p.Verification.Status.Terminal() && !heldByAdmin(p) {
		p.Verification.Status = domain.VerificationPaymentCompleted
		p.Verification.SuspensionReason = ""
		p.Verification.ReReviewAt = nil
	}
	return true, nil
}

// ConfirmSupersededPayment settles a success for an attempt a newer checkout
// replaced. The payment is rebound to that attempt's plan and price. A profile
// that is already paid refuses, so the second charge surfaces to an operator.
func ConfirmSupersededPayment(p *domain.GarageProfile, attempt domain.PaymentAttempt, providerRef string, paidAt time.Time) (bool, error) {
	if attempt.AccountID != p.AccountID {
		return false, refuse("confirm payment", p, "attempt belongs to another account")
	}
	switch p.Payment.Status {
	case domain.PaymentProcessing, domain.PaymentFailed, domain.PaymentExpired:
	default:
		return false, refuse("confirm payment", p, fmt.Sprintf("superseded checkout paid while payment is %s", p.Payment.Status))
	}

	txRef := attempt.TxRef
	p.Payment.TxRef = &txRef
	p.Payment.Plan = attempt.Plan
	p.Payment.Amount = attempt.Amount
	p.Payment.Currency = attempt.Currency
	return ConfirmPayment(p, providerRef, paidAt)
}

// heldByAdmin reports a suspension that only an admin decision may lift.
func heldByAdmin(p *domain.GarageProfile) bool {
	return p.Verification.Status == domain.VerificationSuspended &&
		p.Verification.SuspensionReason != SubscriptionLapsedReason
}

// FailPayment applies a failed provider result. The owner may retry.
func FailPayment(p *domain.GarageProfile) (bool, error) {
	switch p.Payment.Status {
	case domain.PaymentPaid, domain.PaymentFailed:
		return false, nil
	case domain.PaymentProcessing:
	default:
		return false, refuse("fail payment", p, "no checkout in progress")
	}

	p.Payment.Status = domain.PaymentFailed
	if !p.Verification.Status.Terminal() && p.Verification.Status != domain.VerificationSuspended {
		p.Verification.Status = domain.VerificationPendingPayment
	}
	return true, nil
}

// ExpirePayment closes an abandoned checkout or a lapsed subscription.
func ExpirePayment(p *domain.GarageProfile, now time.Time) (bool, error) {
	switch p.Payment.Status {
	case domain.PaymentExpired:
		return false, nil
	case domain.PaymentProcessing:
		p.Payment.Status = domain.PaymentExpired
		return true, nil
	case domain.PaymentPaid:
		if p.Payment.ExpiresAt == nil || now.Before(*p.Payment.ExpiresAt) {
			return false, refuse("expire payment", p, "subscription still active")
		}
	default:
		return false, refuse("expire payment", p, "nothing to expire")
	}

	p.Payment.Status = domain.PaymentExpired
	p.Progress.PaymentCompleted = false

	switch p.Verification.Status {
	case domain.VerificationApproved:
		p.Verification.Status = domain.VerificationSuspended
		p.Verification.SuspensionReason = SubscriptionLapsedReason
	case domain.VerificationPaymentCompleted, domain.VerificationUnderReview:
		p.Verification.Status = domain.VerificationPendingPayment
	}
	return true, nil
}

// StartReview puts a paid application in front of an admin. It is also the
// way back from a suspension once payment is settled again.
func StartReview(p *domain.GarageProfile, actor Actor, comments string, now time.Time) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	switch p.Verification.Status {
	case domain.VerificationPaymentCompleted, domain.VerificationMoreInfoNeeded, domain.VerificationSuspended:
	default:
		return refuse("start review", p, fmt.Sprintf("verification is %s", p.Verification.Status))
	}
	if !p.Payment.Status.Settled() {
		return refuseWith("start review", p, domain.ErrPaymentNotCompleted)
	}

	p.Verification.Status = domain.VerificationUnderReview
	record(p, actor, domain.DecisionStartReview, comments, now)
	return nil
}

// Approve stamps the approval number once; later approvals keep it.
func Approve(p *domain.GarageProfile, actor Actor, approvalNumber, comments string, now time.Time) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if !p.Payment.Status.Settled() {
		return refuseWith("approve", p, domain.ErrPaymentNotCompleted)
	}
	switch p.Verification.Status {
	case domain.VerificationPaymentCompleted, domain.VerificationUnderReview:
	default:
		return refuse("approve", p, fmt.Sprintf("verification is %s", p.Verification.Status))
	}
	if p.Verification.ApprovalNumber == nil {
		if strings.TrimSpace(approvalNumber) == "" {
			return refuse("approve", p, "missing approval number")
		}
		number := approvalNumber
		p.Verification.ApprovalNumber = &number
	}

	by := actor.ID
	p.Verification.Status = domain.VerificationApproved
	p.Verification.ApprovedAt = &now
	p.Verification.ApprovedBy = &by
	p.Verification.RejectionReason = ""
	p.Verification.MoreInfoRequest = ""
	p.Verification.SuspensionReason = ""
	p.Verification.ReReviewAt = nil
	record(p, actor, domain.DecisionApproved, comments, now)
	return nil
}

func Reject(p *domain.GarageProfile, actor Actor, reason string, now time.Time) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if p.Verification.Status.Terminal() {
		return refuse("reject", p, "application is closed")
	}
	if strings.TrimSpace(reason) == "" {
		return domain.NewValidationError("reason", "rejection reason is required")
	}

	p.Verification.Status = domain.VerificationRejected
	p.Verification.RejectionReason = reason
	record(p, actor, domain.DecisionRejected, reason, now)
	return nil
}

func RequestMoreInfo(p *domain.GarageProfile, actor Actor, request string, now time.Time) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if p.Verification.Status.Terminal() {
		return refuse("request more info", p, "application is closed")
	}
	if strings.TrimSpace(request) == "" {
		return domain.NewValidationError("comments", "describe the information needed")
	}

	p.Verification.Status = domain.VerificationMoreInfoNeeded
	p.Verification.MoreInfoRequest = request
	record(p, actor, domain.DecisionMoreInfo, request, now)
	return nil
}

func Suspend(p *domain.GarageProfile, actor Actor, reason string, reReviewAt *time.Time, now time.Time) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if p.Verification.Status.Terminal() {
		return refuse("suspend", p, "application is closed")
	}
	if strings.TrimSpace(reason) == "" {
		return domain.NewValidationError("reason", "suspension reason is required")
	}
	if reReviewAt != nil && !reReviewAt.After(now) {
		return domain.NewValidationError("re_review_at", "re-review date must be in the future")
	}

	p.Verification.Status = domain.VerificationSuspended
	p.Verification.SuspensionReason = reason
	p.Verification.ReReviewAt = reReviewAt
	record(p, actor, domain.DecisionSuspended, reason, now)
	return nil
}

// Ban is reserved for super admins and cannot be undone.
func Ban(p *domain.GarageProfile, actor Actor, reason string, now time.Time) error {
	if err := requireSuperAdmin(actor); err != nil {
		return err
	}
	if p.Verification.Status == domain.VerificationBanned {
		return refuse("ban", p, "already banned")
	}
	if strings.TrimSpace(reason) == "" {
		return domain.NewValidationError("reason", "ban reason is required")
	}

	p.Verification.Status = domain.VerificationBanned
	p.Verification.RejectionReason = reason
	record(p, actor, domain.DecisionBanned, reason, now)
	return nil
}

// WaivePayment marks the subscription fee as not required.
func WaivePayment(p *domain.GarageProfile, actor Actor, reason string, now time.Time) error {
	if err := requireSuperAdmin(actor); err != nil {
		return err
	}
	if !paymentRetryable[p.Payment.Status] {
		return refuse("waive payment", p, fmt.Sprintf("payment is %s", p.Payment.Status))
	}
	if p.Verification.Status.Terminal() {
		return refuse("waive payment", p, "application is closed")
	}

	p.Payment.Status = domain.PaymentNotRequired
	p.Payment.TxRef = nil
	p.Progress.PaymentCompleted = true
	switch p.Verification.Status {
	case domain.VerificationRegistrationStarted, domain.VerificationDocumentsUploaded, domain.VerificationPendingPayment:
		p.Verification.Status = domain.VerificationPaymentCompleted
	}
	record(p, actor, domain.DecisionPaymentWaived, reason, now)
	return nil
}

// RecordDocumentCheck appends a document decision to the review history
// without touching either state.
func RecordDocumentCheck(p *domain.GarageProfile, actor Actor, comments string, now time.Time) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	record(p, actor, domain.DecisionDocumentChecked, comments, now)
	return nil
}

func record(p *domain.GarageProfile, actor Actor, decision domain.ReviewDecision, comments string, now time.Time) {
	p.ReviewHistory = append(p.ReviewHistory, domain.AdminReview{
		ReviewerID: actor.ID,
		ReviewedAt: now,
		Decision:   decision,
		Comments:   comments,
	})
}

func requireAdmin(actor Actor) error {
	if !actor.Role.IsAdmin() {
		return fmt.Errorf("%w: admin decision requires an admin", domain.ErrForbidden)
	}
	return nil
}

func requireSuperAdmin(actor Actor) error {
	if actor.Role != domain.RoleSuperAdmin {
		return fmt.Errorf("%w: super admin required", domain.ErrForbidden)
	}
	return nil
}
