package verification

import (
	"fmt"

	"garageBooking/domain"
)

// TransitionError reports a refused state change. It matches
// domain.ErrInvalidTransition with errors.Is, and also its cause when set.
type TransitionError struct {
	Action       string
	Verification domain.VerificationStatus
	Payment      domain.PaymentStatus
	Reason       string
	cause        error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: cannot %s (verification=%s, payment=%s): %s",
		e.Action, e.Verification, e.Payment, e.Reason)
}

func (e *TransitionError) Is(target error) bool {
	if target == domain.ErrInvalidTransition {
		return true
	}
	return e.cause != nil && target == e.cause
}

func refuse(action string, p *domain.GarageProfile, reason string) error {
	return &TransitionError{
		Action:       action,
		Verification: p.Verification.Status,
		Payment:      p.Payment.Status,
		Reason:       reason,
	}
}

func refuseWith(action string, p *domain.GarageProfile, cause error) error {
	return &TransitionError{
		Action:       action,
		Verification: p.Verification.Status,
		Payment:      p.Payment.Status,
		Reason:       cause.Error(),
		cause:        cause,
	}
}
