package domain

import (
	"time"

	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentPending     PaymentStatus = "pending"
	PaymentProcessing  PaymentStatus = "processing"
	PaymentPaid        PaymentStatus = "paid"
	PaymentFailed      PaymentStatus = "failed"
	PaymentExpired     PaymentStatus = "expired"
	PaymentRefunded    PaymentStatus = "refunded"
	PaymentCancelled   PaymentStatus = "cancelled"
	PaymentNotRequired PaymentStatus = "not_required"
)

// Settled reports whether the payment satisfies the approval precondition.
func (s PaymentStatus) Settled() bool {
	return s == PaymentPaid || s == PaymentNotRequired
}

type VerificationStatus string

const (
	VerificationRegistrationStarted VerificationStatus = "registration_started"
	VerificationDocumentsUploaded   VerificationStatus = "documents_uploaded"
	VerificationPendingPayment      VerificationStatus = "pending_payment"
	VerificationPaymentCompleted    VerificationStatus = "payment_completed"
	VerificationUnderReview         VerificationStatus = "under_review"
	VerificationMoreInfoNeeded      VerificationStatus = "more_info_needed"
	VerificationApproved            VerificationStatus = "approved"
	VerificationRejected            VerificationStatus = "rejected"
	VerificationSuspended           VerificationStatus = "suspended"
	VerificationBanned              VerificationStatus = "banned"
)

func (s VerificationStatus) Terminal() bool {
	return s == VerificationRejected || s == VerificationBanned
}

type Plan string

const (
	PlanBasic   Plan = "basic"
	PlanPremium Plan = "premium"
	PlanYearly  Plan = "yearly"
)

// Period is the subscription length bought by one payment.
func (p Plan) Period() time.Duration {
	if p == PlanYearly {
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

func (p Plan) Valid() bool {
	return p == PlanBasic || p == PlanPremium || p == PlanYearly
}

type DocumentType string

const (
	DocumentBusinessLicense      DocumentType = "business_license"
	DocumentTaxCertificate       DocumentType = "tax_certificate"
	DocumentOwnerID              DocumentType = "owner_id"
	DocumentInsuranceCertificate DocumentType = "insurance_certificate"
	DocumentOther                DocumentType = "other"
)

// RequiredDocumentTypes must each have a verified document before the
// profile counts as fully documented.
var RequiredDocumentTypes = []DocumentType{
	DocumentBusinessLicense,
	DocumentTaxCertificate,
	DocumentOwnerID,
}

func (t DocumentType) Valid() bool {
	switch t {
	case DocumentBusinessLicense, DocumentTaxCertificate, DocumentOwnerID, DocumentInsuranceCertificate, DocumentOther:
		return true
	}
	return false
}

type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusVerified DocumentStatus = "verified"
	DocumentStatusRejected DocumentStatus = "rejected"
	DocumentStatusExpired  DocumentStatus = "expired"
)

type Document struct {
	ID          string         `json:"id"`
	Type        DocumentType   `json:"type"`
	FileID      string         `json:"file_id"`
	URL         string         `json:"url"`
	FileName    string         `json:"file_name"`
	ContentType string         `json:"content_type,omitempty"`
	Size        int64          `json:"size"`
	Status      DocumentStatus `json:"status"`
	UploadedAt  time.Time      `json:"uploaded_at"`
	VerifiedBy  *uint          `json:"verified_by,omitempty"`
	VerifiedAt  *time.Time     `json:"verified_at,omitempty"`
	Notes       string         `json:"notes,omitempty"`
}

type Agreement struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Version    string    `json:"version"`
	SignerName string    `json:"signer_name"`
	SignedAt   time.Time `json:"signed_at"`
	IPAddress  string    `json:"ip_address,omitempty"`
}

type ReviewDecision string

const (
	DecisionStartReview     ReviewDecision = "start_review"
	DecisionApproved        ReviewDecision = "approved"
	DecisionRejected        ReviewDecision = "rejected"
	DecisionMoreInfo        ReviewDecision = "more_info_needed"
	DecisionSuspended       ReviewDecision = "suspended"
	DecisionBanned          ReviewDecision = "banned"
	DecisionPaymentWaived   ReviewDecision = "payment_waived"
	DecisionDocumentChecked ReviewDecision = "document_checked"
)

type AdminReview struct {
	ReviewerID uint           `json:"reviewer_id"`
	ReviewedAt time.Time      `json:"reviewed_at"`
	Decision   ReviewDecision `json:"decision"`
	Comments   string         `json:"comments,omitempty"`
}

type PaymentInfo struct {
	Status      PaymentStatus `gorm:"column:status;type:varchar(20);not null;default:pending;index" json:"status"`
	Plan        Plan          `gorm:"column:plan;type:varchar(20)" json:"plan,omitempty"`
	Amount      int64         `gorm:"column:amount;not null;default:0" json:"amount"`
	Currency    string        `gorm:"column:currency;type:varchar(8)" json:"currency,omitempty"`
	TxRef       *string       `gorm:"column:tx_ref;uniqueIndex" json:"tx_ref,omitempty"`
	ProviderRef string        `gorm:"column:provider_ref" json:"provider_ref,omitempty"`
	InitiatedAt *time.Time    `gorm:"column:initiated_at" json:"initiated_at,omitempty"`
	PaidAt      *time.Time    `gorm:"column:paid_at" json:"paid_at,omitempty"`
	ExpiresAt   *time.Time    `gorm:"column:expires_at;index" json:"expires_at,omitempty"`
}

type VerificationInfo struct {
	Status           VerificationStatus `gorm:"column:status;type:varchar(32);not null;default:registration_started;index" json:"status"`
	ApprovalNumber   *string            `gorm:"column:approval_number;uniqueIndex" json:"approval_number,omitempty"`
	ApprovedAt       *time.Time         `gorm:"column:approved_at" json:"approved_at,omitempty"`
	ApprovedBy       *uint              `gorm:"column:approved_by" json:"approved_by,omitempty"`
	SubmittedAt      *time.Time         `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	RejectionReason  string             `gorm:"column:rejection_reason" json:"rejection_reason,omitempty"`
	MoreInfoRequest  string             `gorm:"column:more_info_request" json:"more_info_request,omitempty"`
	SuspensionReason string             `gorm:"column:suspension_reason" json:"suspension_reason,omitempty"`
	ReReviewAt       *time.Time         `gorm:"column:re_review_at" json:"re_review_at,omitempty"`
}

type RegistrationProgress struct {
	DocumentsSubmitted bool `gorm:"column:documents_submitted;not null;default:false" json:"documents_submitted"`
	DocumentsVerified  bool `gorm:"column:documents_verified;not null;default:false" json:"documents_verified"`
	AgreementsSigned   bool `gorm:"column:agreements_signed;not null;default:false" json:"agreements_signed"`
	PaymentCompleted   bool `gorm:"column:payment_completed;not null;default:false" json:"payment_completed"`
}

type OpeningHours struct {
	Day   string `json:"day"`
	Open  string `json:"open"`
	Close string `json:"close"`
}

// GarageProfile is the garage-owner sub-record of an Account. Documents,
// Agreements and ReviewHistory are append-only JSONB lists.
type GarageProfile struct {
	ID                 uint                              `gorm:"primaryKey" json:"id"`
	AccountID          uint                              `gorm:"column:account_id;uniqueIndex;not null" json:"account_id"`
	BusinessName       string                            `gorm:"column:business_name;not null" json:"business_name"`
	RegistrationNumber string                            `gorm:"column:registration_number;uniqueIndex;not null" json:"registration_number"`
	Address            string                            `gorm:"column:address" json:"address"`
	City               string                            `gorm:"column:city" json:"city"`
	ContactPhone       string                            `gorm:"column:contact_phone" json:"contact_phone"`
	ContactEmail       string                            `gorm:"column:contact_email" json:"contact_email"`
	Website            string                            `gorm:"column:website" json:"website,omitempty"`
	Description        string                            `gorm:"column:description" json:"description,omitempty"`
	ServiceCatalog     datatypes.JSONSlice[string]       `gorm:"column:service_catalog" json:"service_catalog"`
	OpeningHours       datatypes.JSONSlice[OpeningHours] `gorm:"column:opening_hours" json:"opening_hours"`

	Payment      PaymentInfo          `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`
	Verification VerificationInfo     `gorm:"embedded;embeddedPrefix:verification_" json:"verification"`
	Progress     RegistrationProgress `gorm:"embedded" json:"progress"`

	Documents     datatypes.JSONSlice[Document]    `gorm:"column:documents" json:"documents"`
	Agreements    datatypes.JSONSlice[Agreement]   `gorm:"column:agreements" json:"agreements"`
	ReviewHistory datatypes.JSONSlice[AdminReview] `gorm:"column:review_history" json:"review_history"`

	Version   uint      `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (GarageProfile) TableName() string {
	return "garage_profiles"
}

// NewGarageProfile returns a profile in its initial states.
func NewGarageProfile(accountID uint) GarageProfile {
	return GarageProfile{
		AccountID:     accountID,
		Payment:       PaymentInfo{Status: PaymentPending},
		Verification:  VerificationInfo{Status: VerificationRegistrationStarted},
		Documents:     datatypes.JSONSlice[Document]{},
		Agreements:    datatypes.JSONSlice[Agreement]{},
		ReviewHistory: datatypes.JSONSlice[AdminReview]{},
		Version:       1,
	}
}

func (p *GarageProfile) FindDocument(id string) (int, bool) {
	for i, doc := range p.Documents {
		if doc.ID == id {
			return i, true
		}
	}
	return -1, false
}

// PaymentSnapshot is the public payment/verification view of a profile.
type PaymentSnapshot struct {
	AccountID          uint               `json:"account_id"`
	PaymentStatus      PaymentStatus      `json:"paymentStatus"`
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	Plan               Plan               `json:"plan,omitempty"`
	Amount             int64              `json:"amount"`
	Currency           string             `json:"currency,omitempty"`
	TxRef              string             `json:"tx_ref,omitempty"`
	PaidAt             *time.Time         `json:"paidAt,omitempty"`
	PaymentExpiry      *time.Time         `json:"paymentExpiry,omitempty"`
	ApprovalNumber     string             `json:"approvalNumber,omitempty"`
	Version            uint               `json:"version"`
}

func (p GarageProfile) Snapshot() PaymentSnapshot {
	s := PaymentSnapshot{
		AccountID:          p.AccountID,
		PaymentStatus:      p.Payment.Status,
		VerificationStatus: p.Verification.Status,
		Plan:               p.Payment.Plan,
		Amount:             p.Payment.Amount,
		Currency:           p.Payment.Currency,
		PaidAt:             p.Payment.PaidAt,
		PaymentExpiry:      p.Payment.ExpiresAt,
		Version:            p.Version,
	}
	if p.Payment.TxRef != nil {
		s.TxRef = *p.Payment.TxRef
	}
	if p.Verification.ApprovalNumber != nil {
		s.ApprovalNumber = *p.Verification.ApprovalNumber
	}
	return s
}

type ApplicationFilter struct {
	Verification VerificationStatus
	Payment      PaymentStatus
	Search       string
	Page         int
	Limit        int
}
