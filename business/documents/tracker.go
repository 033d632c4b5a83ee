package documents

import (
	"fmt"
	"strings"
	"time"

	"garageBooking/business/verification"
	"garageBooking/domain"
)

// Attach appends a pending document and flips the submitted flag. It reports
// whether the registration moved to documents_uploaded.
func Attach(p *domain.GarageProfile, doc domain.Document, now time.Time) (bool, error) {
	if !doc.Type.Valid() {
		return false, domain.NewValidationError("type", fmt.Sprintf("unknown document type %q", doc.Type))
	}
	if doc.ID == "" || doc.FileID == "" {
		return false, domain.NewValidationError("file", "document has no stored file")
	}
	if _, exists := p.FindDocument(doc.ID); exists {
		return false, fmt.Errorf("%w: document %s already attached", domain.ErrConflict, doc.ID)
	}

	doc.Status = domain.DocumentStatusPending
	doc.UploadedAt = now
	doc.VerifiedBy = nil
	doc.VerifiedAt = nil
	p.Documents = append(p.Documents, doc)
	refreshProgress(p)

	return verification.MarkDocumentsUploaded(p, now), nil
}

func Verify(p *domain.GarageProfile, docID string, verifierID uint, notes string, now time.Time) error {
	return decide(p, docID, domain.DocumentStatusVerified, verifierID, notes, now)
}

func Reject(p *domain.GarageProfile, docID string, verifierID uint, notes string, now time.Time) error {
	if strings.TrimSpace(notes) == "" {
		return domain.NewValidationError("notes", "say why the document was rejected")
	}
	return decide(p, docID, domain.DocumentStatusRejected, verifierID, notes, now)
}

func decide(p *domain.GarageProfile, docID string, status domain.DocumentStatus, verifierID uint, notes string, now time.Time) error {
	i, ok := p.FindDocument(docID)
	if !ok {
		return fmt.Errorf("%w: document %s", domain.ErrNotFound, docID)
	}

	by := verifierID
	at := now
	p.Documents[i].Status = status
	p.Documents[i].VerifiedBy = &by
	p.Documents[i].VerifiedAt = &at
	p.Documents[i].Notes = notes
	refreshProgress(p)
	return nil
}

// Remove drops the document metadata and returns it so the caller can
// delete the stored blob.
func Remove(p *domain.GarageProfile, docID string) (domain.Document, error) {
	i, ok := p.FindDocument(docID)
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: document %s", domain.ErrNotFound, docID)
	}

	removed := p.Documents[i]
	p.Documents = append(p.Documents[:i], p.Documents[i+1:]...)
	refreshProgress(p)
	return removed, nil
}

// Sign appends an agreement. Signed agreements are never changed or removed.
func Sign(p *domain.GarageProfile, agreement domain.Agreement, now time.Time) error {
	if strings.TrimSpace(agreement.Type) == "" {
		return domain.NewValidationError("type", "agreement type is required")
	}
	if strings.TrimSpace(agreement.Version) == "" {
		return domain.NewValidationError("version", "agreement version is required")
	}
	if strings.TrimSpace(agreement.SignerName) == "" {
		return domain.NewValidationError("signer_name", "signer name is required")
	}
	for _, signed := range p.Agreements {
		if signed.Type == agreement.Type && signed.Version == agreement.Version {
			return fmt.Errorf("%w: %s %s already signed", domain.ErrConflict, agreement.Type, agreement.Version)
		}
	}

	agreement.SignedAt = now
	p.Agreements = append(p.Agreements, agreement)
	refreshProgress(p)
	return nil
}

// AllRequiredVerified reports whether every required document type has at
// least one verified document.
func AllRequiredVerified(p *domain.GarageProfile) bool {
	verified := make(map[domain.DocumentType]bool, len(p.Documents))
	for _, doc := range p.Documents {
		if doc.Status == domain.DocumentStatusVerified {
			verified[doc.Type] = true
		}
	}
	for _, required := range domain.RequiredDocumentTypes {
		if !verified[required] {
			return false
		}
	}
	return true
}

// MissingDocumentTypes lists required types with no upload at all.
func MissingDocumentTypes(p *domain.GarageProfile) []domain.DocumentType {
	present := make(map[domain.DocumentType]bool, len(p.Documents))
	for _, doc := range p.Documents {
		present[doc.Type] = true
	}
	var missing []domain.DocumentType
	for _, required := range domain.RequiredDocumentTypes {
		if !present[required] {
			missing = append(missing, required)
		}
	}
	return missing
}

func refreshProgress(p *domain.GarageProfile) {
	p.Progress.DocumentsSubmitted = len(p.Documents) > 0
	p.Progress.DocumentsVerified = AllRequiredVerified(p)
	p.Progress.AgreementsSigned = len(p.Agreements) > 0
}
