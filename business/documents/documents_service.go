package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"garageBooking/business/verification"
	"garageBooking/domain"
	"garageBooking/pkg/logger"

	"github.com/google/uuid"
)

const MaxDocumentSize = 5 << 20

var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

// ProfileRepository loads and version-checks garage profiles.
type ProfileRepository interface {
	GetByAccountID(ctx context.Context, accountID uint) (*domain.GarageProfile, error)
	SaveWithVersion(ctx context.Context, profile *domain.GarageProfile) error
}

// BlobStore keeps uploaded files.
type BlobStore interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) (fileID string, size int64, err error)
	Open(ctx context.Context, fileID string) (io.ReadCloser, error)
	Delete(ctx context.Context, fileID string) error
}

type Upload struct {
	Type        domain.DocumentType
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type documentsService struct {
	profiles ProfileRepository
	blobs    BlobStore
	now      func() time.Time
}

func NewDocumentsService(profiles ProfileRepository, blobs BlobStore) *documentsService {
	return &documentsService{
		profiles: profiles,
		blobs:    blobs,
		now:      time.Now,
	}
}

// Upload stores the file and attaches its metadata to the owner's profile.
func (s *documentsService) Upload(ctx context.Context, accountID uint, up Upload) (domain.Document, error) {
	if err := CheckUpload(up); err != nil {
		return domain.Document{}, err
	}

	fileID, size, err := s.blobs.Put(ctx, up.FileName, up.ContentType, io.LimitReader(up.Body, MaxDocumentSize+1))
	if err != nil {
		logger.Error("failed to store document", "error", err, "account_id", accountID)
		return domain.Document{}, fmt.Errorf("store document: %w", err)
	}
	if size > MaxDocumentSize {
		s.discard(ctx, fileID)
		return domain.Document{}, domain.NewValidationError("file", "file is larger than 5MB")
	}

	doc := domain.Document{
		ID:          uuid.NewString(),
		Type:        up.Type,
		FileID:      fileID,
		FileName:    filepath.Base(up.FileName),
		ContentType: up.ContentType,
		Size:        size,
	}
	doc.URL = "/api/v1/documents/" + doc.ID + "/file"

	var attached domain.Document
	err = s.mutate(ctx, accountID, func(p *domain.GarageProfile) error {
		if _, err := Attach(p, doc, s.now()); err != nil {
			return err
		}
		i, _ := p.FindDocument(doc.ID)
		attached = p.Documents[i]
		return nil
	})
	if err != nil {
		s.discard(ctx, fileID)
		return domain.Document{}, err
	}
	return attached, nil
}

// AttachAll uploads every file handed in with a garage registration.
func (s *documentsService) AttachAll(ctx context.Context, accountID uint, uploads []Upload) ([]domain.Document, error) {
	docs := make([]domain.Document, 0, len(uploads))
	for _, up := range uploads {
		doc, err := s.Upload(ctx, accountID, up)
		if err != nil {
			return docs, fmt.Errorf("%s: %w", up.Type, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *documentsService) List(ctx context.Context, accountID uint) ([]domain.Document, []domain.Agreement, error) {
	p, err := s.profiles.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	return p.Documents, p.Agreements, nil
}

// Remove deletes the metadata first. A blob that cannot be deleted is only logged.
func (s *documentsService) Remove(ctx context.Context, accountID uint, docID string) error {
	var removed domain.Document
	err := s.mutate(ctx, accountID, func(p *domain.GarageProfile) error {
		doc, err := Remove(p, docID)
		removed = doc
		return err
	})
	if err != nil {
		return err
	}
	s.discard(ctx, removed.FileID)
	return nil
}

// Open streams a stored document. Callers other than the owner must be admins.
func (s *documentsService) Open(ctx context.Context, ownerID uint, actor verification.Actor, docID string) (domain.Document, io.ReadCloser, error) {
	if actor.ID != ownerID && !actor.Role.IsAdmin() {
		return domain.Document{}, nil, domain.ErrForbidden
	}
	p, err := s.profiles.GetByAccountID(ctx, ownerID)
	if err != nil {
		return domain.Document{}, nil, err
	}
	i, ok := p.FindDocument(docID)
	if !ok {
		return domain.Document{}, nil, fmt.Errorf("%w: document %s", domain.ErrNotFound, docID)
	}
	doc := p.Documents[i]
	rc, err := s.blobs.Open(ctx, doc.FileID)
	if err != nil {
		return domain.Document{}, nil, err
	}
	return doc, rc, nil
}

func (s *documentsService) VerifyDocument(ctx context.Context, accountID uint, actor verification.Actor, docID, notes string) (*domain.GarageProfile, error) {
	return s.decide(ctx, accountID, actor, docID, notes, Verify)
}

func (s *documentsService) RejectDocument(ctx context.Context, accountID uint, actor verification.Actor, docID, notes string) (*domain.GarageProfile, error) {
	return s.decide(ctx, accountID, actor, docID, notes, Reject)
}

type decision func(p *domain.GarageProfile, docID string, verifierID uint, notes string, now time.Time) error

func (s *documentsService) decide(ctx context.Context, accountID uint, actor verification.Actor, docID, notes string, apply decision) (*domain.GarageProfile, error) {
	var out *domain.GarageProfile
	err := s.mutate(ctx, accountID, func(p *domain.GarageProfile) error {
		now := s.now()
		if err := apply(p, docID, actor.ID, notes, now); err != nil {
			return err
		}
		i, _ := p.FindDocument(docID)
		comment := fmt.Sprintf("%s %s", p.Documents[i].Type, p.Documents[i].Status)
		if notes != "" {
			comment += ": " + notes
		}
		if err := verification.RecordDocumentCheck(p, actor, comment, now); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

func (s *documentsService) SignAgreement(ctx context.Context, accountID uint, agreement domain.Agreement) (domain.Agreement, error) {
	agreement.ID = uuid.NewString()
	var signed domain.Agreement
	err := s.mutate(ctx, accountID, func(p *domain.GarageProfile) error {
		if err := Sign(p, agreement, s.now()); err != nil {
			return err
		}
		signed = p.Agreements[len(p.Agreements)-1]
		return nil
	})
	return signed, err
}

// mutate loads, applies and saves, reloading once when another request
// wrote the profile in between.
func (s *documentsService) mutate(ctx context.Context, accountID uint, apply func(*domain.GarageProfile) error) error {
	for attempt := 0; ; attempt++ {
		p, err := s.profiles.GetByAccountID(ctx, accountID)
		if err != nil {
			return err
		}
		if err := apply(p); err != nil {
			return err
		}
		err = s.profiles.SaveWithVersion(ctx, p)
		if errors.Is(err, domain.ErrStaleVersion) && attempt == 0 {
			logger.Warn("profile changed during document update, retrying", "account_id", accountID)
			continue
		}
		return err
	}
}

func (s *documentsService) discard(ctx context.Context, fileID string) {
	if fileID == "" {
		return
	}
	if err := s.blobs.Delete(ctx, fileID); err != nil {
		logger.Warn("failed to delete stored document", "error", err, "file_id", fileID)
	}
}

// CheckUpload validates an upload before anything is stored.
func CheckUpload(up Upload) error {
	if !up.Type.Valid() {
		return domain.NewValidationError("type", fmt.Sprintf("unknown document type %q", up.Type))
	}
	if up.Body == nil || strings.TrimSpace(up.FileName) == "" {
		return domain.NewValidationError("file", "file is required")
	}
	if up.Size > MaxDocumentSize {
		return domain.NewValidationError("file", "file is larger than 5MB")
	}
	if !allowedContentTypes[strings.ToLower(up.ContentType)] {
		return domain.NewValidationError("file", "only PDF, JPEG and PNG files are accepted")
	}
	return nil
}
