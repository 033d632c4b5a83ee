//go:build !integration

package documents

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"garageBooking/business/verification"
	"garageBooking/domain"
)

var now = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

type fakeProfiles struct {
	byAccount map[uint]domain.GarageProfile
	staleOnce bool
	saves     int
}

func newFakeProfiles(ps ...domain.GarageProfile) *fakeProfiles {
	f := &fakeProfiles{byAccount: map[uint]domain.GarageProfile{}}
	for _, p := range ps {
		f.byAccount[p.AccountID] = p
	}
	return f
}

func (f *fakeProfiles) GetByAccountID(_ context.Context, accountID uint) (*domain.GarageProfile, error) {
	p, ok := f.byAccount[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := p
	cp.Documents = append([]domain.Document(nil), p.Documents...)
	cp.Agreements = append([]domain.Agreement(nil), p.Agreements...)
	cp.ReviewHistory = append([]domain.AdminReview(nil), p.ReviewHistory...)
	return &cp, nil
}

func (f *fakeProfiles) SaveWithVersion(_ context.Context, p *domain.GarageProfile) error {
	if f.staleOnce {
		f.staleOnce = false
		stored := f.byAccount[p.AccountID]
		stored.Version++
		f.byAccount[p.AccountID] = stored
		return domain.ErrStaleVersion
	}
	stored := f.byAccount[p.AccountID]
	if stored.Version != p.Version {
		return domain.ErrStaleVersion
	}
	p.Version++
	f.byAccount[p.AccountID] = *p
	f.saves++
	return nil
}

type fakeBlobs struct {
	files     map[string][]byte
	deleteErr error
	deleted   []string
}

func (b *fakeBlobs) Put(_ context.Context, name, _ string, r io.Reader) (string, int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	if b.files == nil {
		b.files = map[string][]byte{}
	}
	id := "blob-" + name
	b.files[id] = data
	return id, int64(len(data)), nil
}

func (b *fakeBlobs) Open(_ context.Context, fileID string) (io.ReadCloser, error) {
	data, ok := b.files[fileID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBlobs) Delete(_ context.Context, fileID string) error {
	b.deleted = append(b.deleted, fileID)
	if b.deleteErr != nil {
		return b.deleteErr
	}
	delete(b.files, fileID)
	return nil
}

func profile() domain.GarageProfile {
	p := domain.NewGarageProfile(7)
	p.ID = 1
	return p
}

func doc(id string, t domain.DocumentType) domain.Document {
	return domain.Document{ID: id, Type: t, FileID: "file-" + id, FileName: id + ".pdf"}
}

func TestAttach_AdvancesFreshRegistration(t *testing.T) {
	p := profile()
	advanced, err := Attach(&p, doc("d1", domain.DocumentBusinessLicense), now)
	if err != nil {
		t.Fatal(err)
	}
	if !advanced || p.Verification.Status != domain.VerificationDocumentsUploaded {
		t.Fatalf("advanced=%v status=%s", advanced, p.Verification.Status)
	}
	if !p.Progress.DocumentsSubmitted {
		t.Error("documents submitted flag not set")
	}
	if p.Documents[0].Status != domain.DocumentStatusPending {
		t.Errorf("new document status = %s", p.Documents[0].Status)
	}

	advanced, err = Attach(&p, doc("d2", domain.DocumentTaxCertificate), now)
	if err != nil || advanced {
		t.Fatalf("second attach: advanced=%v err=%v", advanced, err)
	}
}

func TestAttach_DoesNotTouchLaterStates(t *testing.T) {
	p := profile()
	p.Verification.Status = domain.VerificationUnderReview
	p.Payment.Status = domain.PaymentPaid

	if _, err := Attach(&p, doc("d1", domain.DocumentOwnerID), now); err != nil {
		t.Fatal(err)
	}
	if p.Verification.Status != domain.VerificationUnderReview || p.Payment.Status != domain.PaymentPaid {
		t.Fatalf("states changed: %s/%s", p.Verification.Status, p.Payment.Status)
	}
}

func TestAttach_RejectsUnknownType(t *testing.T) {
	p := profile()
	_, err := Attach(&p, doc("d1", "selfie"), now)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
	if len(p.Documents) != 0 {
		t.Fatal("document appended on failure")
	}
}

func TestVerify_RecomputesAggregate(t *testing.T) {
	p := profile()
	for i, typ := range domain.RequiredDocumentTypes {
		id := string(rune('a' + i))
		if _, err := Attach(&p, doc(id, typ), now); err != nil {
			t.Fatal(err)
		}
	}

	if err := Verify(&p, "missing", 90, "", now); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("verify missing: err = %v", err)
	}

	for i := range domain.RequiredDocumentTypes {
		if p.Progress.DocumentsVerified {
			t.Fatalf("aggregate set after %d of %d", i, len(domain.RequiredDocumentTypes))
		}
		if err := Verify(&p, string(rune('a'+i)), 90, "ok", now); err != nil {
			t.Fatal(err)
		}
	}
	if !p.Progress.DocumentsVerified {
		t.Fatal("aggregate not set after all required documents verified")
	}
	if p.Documents[0].VerifiedBy == nil || *p.Documents[0].VerifiedBy != 90 {
		t.Error("verifier not stamped")
	}
}

func TestReject_NeedsNotes(t *testing.T) {
	p := profile()
	if _, err := Attach(&p, doc("d1", domain.DocumentOwnerID), now); err != nil {
		t.Fatal(err)
	}
	if err := Reject(&p, "d1", 90, "", now); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
	if err := Reject(&p, "d1", 90, "blurry", now); err != nil {
		t.Fatal(err)
	}
	if p.Documents[0].Status != domain.DocumentStatusRejected {
		t.Fatalf("status = %s", p.Documents[0].Status)
	}
}

func TestRemove(t *testing.T) {
	p := profile()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := Attach(&p, doc(id, domain.DocumentOther), now); err != nil {
			t.Fatal(err)
		}
	}
	removed, err := Remove(&p, "b")
	if err != nil {
		t.Fatal(err)
	}
	if removed.ID != "b" || len(p.Documents) != 2 || p.Documents[1].ID != "c" {
		t.Fatalf("removed=%s remaining=%v", removed.ID, p.Documents)
	}
	if _, err := Remove(&p, "b"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second remove: err = %v", err)
	}
}

func TestSign_WriteOnce(t *testing.T) {
	p := profile()
	a := domain.Agreement{ID: "x", Type: "partner_terms", Version: "2024-01", SignerName: "Abebe"}
	if err := Sign(&p, a, now); err != nil {
		t.Fatal(err)
	}
	if err := Sign(&p, a, now.Add(time.Minute)); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("duplicate sign: err = %v", err)
	}
	if len(p.Agreements) != 1 || !p.Agreements[0].SignedAt.Equal(now) {
		t.Fatal("agreement changed by duplicate sign")
	}
	if !p.Progress.AgreementsSigned {
		t.Fatal("agreements flag not set")
	}
}

func TestService_Upload(t *testing.T) {
	profiles := newFakeProfiles(profile())
	blobs := &fakeBlobs{}
	svc := NewDocumentsService(profiles, blobs)
	svc.now = func() time.Time { return now }

	got, err := svc.Upload(context.Background(), 7, Upload{
		Type:        domain.DocumentBusinessLicense,
		FileName:    "license.pdf",
		ContentType: "application/pdf",
		Body:        strings.NewReader("%PDF-1.4"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Size != 8 || got.FileID != "blob-license.pdf" {
		t.Fatalf("document = %+v", got)
	}
	stored := profiles.byAccount[7]
	if stored.Verification.Status != domain.VerificationDocumentsUploaded || stored.Version != 2 {
		t.Fatalf("stored status=%s version=%d", stored.Verification.Status, stored.Version)
	}
}

func TestService_UploadRejectsContentType(t *testing.T) {
	blobs := &fakeBlobs{}
	svc := NewDocumentsService(newFakeProfiles(profile()), blobs)
	_, err := svc.Upload(context.Background(), 7, Upload{
		Type:        domain.DocumentOwnerID,
		FileName:    "id.exe",
		ContentType: "application/octet-stream",
		Body:        strings.NewReader("MZ"),
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
	if len(blobs.files) != 0 {
		t.Fatal("blob stored for rejected upload")
	}
}

func TestService_UploadDiscardsBlobWhenProfileMissing(t *testing.T) {
	blobs := &fakeBlobs{}
	svc := NewDocumentsService(newFakeProfiles(), blobs)
	_, err := svc.Upload(context.Background(), 7, Upload{
		Type:        domain.DocumentOwnerID,
		FileName:    "id.png",
		ContentType: "image/png",
		Body:        strings.NewReader("png"),
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
	if len(blobs.deleted) != 1 {
		t.Fatalf("orphan blob not deleted: %v", blobs.deleted)
	}
}

func TestService_RemoveIgnoresBlobFailure(t *testing.T) {
	p := profile()
	if _, err := Attach(&p, doc("d1", domain.DocumentOther), now); err != nil {
		t.Fatal(err)
	}
	profiles := newFakeProfiles(p)
	blobs := &fakeBlobs{deleteErr: errors.New("gridfs down")}
	svc := NewDocumentsService(profiles, blobs)

	if err := svc.Remove(context.Background(), 7, "d1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(profiles.byAccount[7].Documents) != 0 {
		t.Fatal("metadata not removed")
	}
	if len(blobs.deleted) != 1 || blobs.deleted[0] != "file-d1" {
		t.Fatalf("blob delete not attempted: %v", blobs.deleted)
	}
}

func TestService_VerifyRetriesStaleVersion(t *testing.T) {
	p := profile()
	if _, err := Attach(&p, doc("d1", domain.DocumentOwnerID), now); err != nil {
		t.Fatal(err)
	}
	profiles := newFakeProfiles(p)
	profiles.staleOnce = true
	svc := NewDocumentsService(profiles, &fakeBlobs{})
	admin := verification.Actor{ID: 90, Role: domain.RoleAdmin}

	out, err := svc.VerifyDocument(context.Background(), 7, admin, "d1", "")
	if err != nil {
		t.Fatal(err)
	}
	if out.Documents[0].Status != domain.DocumentStatusVerified {
		t.Fatalf("status = %s", out.Documents[0].Status)
	}
	if len(out.ReviewHistory) != 1 || out.ReviewHistory[0].Decision != domain.DecisionDocumentChecked {
		t.Fatalf("history = %+v", out.ReviewHistory)
	}
}

func TestService_OpenRequiresOwnerOrAdmin(t *testing.T) {
	svc := NewDocumentsService(newFakeProfiles(profile()), &fakeBlobs{})
	stranger := verification.Actor{ID: 8, Role: domain.RoleCustomer}
	if _, _, err := svc.Open(context.Background(), 7, stranger, "d1"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v", err)
	}
}
