package domain

import "time"

// WebhookOutcome is what reconciliation decided about one provider delivery.
type WebhookOutcome string

const (
	OutcomeApplied           WebhookOutcome = "applied"
	OutcomeDuplicate         WebhookOutcome = "duplicate"
	OutcomeUnmatched         WebhookOutcome = "unmatched"
	OutcomeMalformed         WebhookOutcome = "malformed"
	OutcomeIgnored           WebhookOutcome = "ignored"
	OutcomeRejectedSignature WebhookOutcome = "rejected_signature"
	OutcomeError             WebhookOutcome = "error"
)

// NeedsFollowUp marks outcomes an operator must look at.
func (o WebhookOutcome) NeedsFollowUp() bool {
	switch o {
	case OutcomeUnmatched, OutcomeMalformed, OutcomeRejectedSignature, OutcomeError:
		return true
	}
	return false
}

type ProviderSignal string

const (
	SignalSuccess ProviderSignal = "success"
	SignalFailure ProviderSignal = "failure"
	SignalPending ProviderSignal = "pending"
)

type ReconcileResult struct {
	Outcome            WebhookOutcome     `json:"outcome"`
	TxRef              string             `json:"tx_ref,omitempty"`
	Strategy           string             `json:"strategy,omitempty"`
	Signal             ProviderSignal     `json:"signal,omitempty"`
	PaymentStatus      PaymentStatus      `json:"paymentStatus,omitempty"`
	VerificationStatus VerificationStatus `json:"verificationStatus,omitempty"`
	Message            string             `json:"message,omitempty"`
	// FollowUp marks an outcome that changed nothing or changed state in a
	// way an operator should still look at.
	FollowUp bool `json:"follow_up,omitempty"`
}

// NeedsFollowUp reports whether the delivery must stay unresolved in the audit log.
func (r ReconcileResult) NeedsFollowUp() bool {
	return r.FollowUp || r.Outcome.NeedsFollowUp()
}

// WebhookEvent is the audit record of one provider delivery.
type WebhookEvent struct {
	ID             string         `bson:"_id,omitempty" json:"id"`
	Source         string         `bson:"source" json:"source"`
	TxRef          string         `bson:"tx_ref,omitempty" json:"tx_ref,omitempty"`
	Strategy       string         `bson:"strategy,omitempty" json:"strategy,omitempty"`
	Outcome        WebhookOutcome `bson:"outcome" json:"outcome"`
	Signal         ProviderSignal `bson:"signal,omitempty" json:"signal,omitempty"`
	SignatureValid bool           `bson:"signature_valid" json:"signature_valid"`
	Payload        map[string]any `bson:"payload,omitempty" json:"payload,omitempty"`
	Error          string         `bson:"error,omitempty" json:"error,omitempty"`
	Resolved       bool           `bson:"resolved" json:"resolved"`
	ReceivedAt     time.Time      `bson:"received_at" json:"received_at"`
}

// PaymentAttempt binds one transaction reference to its account for good.
// A newer checkout replaces the profile's current reference but never the attempt.
type PaymentAttempt struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"not null;index" json:"account_id"`
	TxRef     string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"tx_ref"`
	Plan      Plan      `gorm:"type:varchar(20);not null" json:"plan"`
	Amount    int64     `gorm:"not null" json:"amount"`
	Currency  string    `gorm:"type:varchar(8);not null" json:"currency"`
	CreatedAt time.Time `json:"created_at"`
}

func (PaymentAttempt) TableName() string {
	return "payment_attempts"
}

type CheckoutSession struct {
	CheckoutURL string `json:"checkout_url"`
	TxRef       string `json:"tx_ref"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Plan        Plan   `json:"plan"`
}

// CheckoutRequest is what a payment provider needs to open a hosted checkout.
type CheckoutRequest struct {
	TxRef       string
	Amount      int64
	Currency    string
	Email       string
	FirstName   string
	LastName    string
	Phone       string
	Title       string
	Description string
}

// ProviderTransaction is a provider's view of one transaction.
type ProviderTransaction struct {
	TxRef     string
	Reference string
	Status    string
	Amount    float64
	Currency  string
	PaidAt    *time.Time
}
