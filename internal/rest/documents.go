package rest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"garageBooking/business/documents"
	"garageBooking/domain"
	jsonres "garageBooking/pkg/response"

	"github.com/labstack/echo/v4"
)

type DocumentsService interface {
	Upload(ctx context.Context, accountID uint, up documents.Upload) (domain.Document, error)
	List(ctx context.Context, accountID uint) ([]domain.Document, []domain.Agreement, error)
	Remove(ctx context.Context, accountID uint, docID string) error
	Open(ctx context.Context, ownerID uint, actor domain.Actor, docID string) (domain.Document, io.ReadCloser, error)
	SignAgreement(ctx context.Context, accountID uint, agreement domain.Agreement) (domain.Agreement, error)
}

type DocumentsHandler struct {
	documentsService DocumentsService
	timeout          time.Duration
}

func NewDocumentsHandler(documentsService DocumentsService) *DocumentsHandler {
	return &DocumentsHandler{
		documentsService: documentsService,
		timeout:          30 * time.Second,
	}
}

type SignAgreementRequest struct {
	Type       string `json:"type"`
	Version    string `json:"version"`
	SignerName string `json:"signer_name"`
}

// Upload takes a multipart form with a "type" field and a "file" part.
func (h *DocumentsHandler) Upload(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		return domain.NewValidationError("file", "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return domain.NewValidationError("file", "unreadable file")
	}
	defer f.Close()

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	doc, err := h.documentsService.Upload(ctx, actor.ID, documents.Upload{
		Type:        domain.DocumentType(c.FormValue("type")),
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, jsonres.Success("Document uploaded", doc))
}

func (h *DocumentsHandler) List(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	docs, _, err := h.documentsService.List(ctx, actor.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("", docs))
}

func (h *DocumentsHandler) Remove(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	if err := h.documentsService.Remove(ctx, actor.ID, c.Param("docId")); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("Document removed", nil))
}

// Open streams the caller's own document.
func (h *DocumentsHandler) Open(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	return h.stream(c, actor.ID, actor)
}

// OpenForAdmin streams a document of any applicant.
func (h *DocumentsHandler) OpenForAdmin(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}
	accountID, err := pathID(c, "accountId")
	if err != nil {
		return err
	}
	return h.stream(c, accountID, actor)
}

func (h *DocumentsHandler) stream(c echo.Context, ownerID uint, actor domain.Actor) error {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	doc, rc, err := h.documentsService.Open(ctx, ownerID, actor, c.Param("docId"))
	if err != nil {
		return err
	}
	defer rc.Close()

	contentType := doc.ContentType
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", doc.FileName))
	return c.Stream(http.StatusOK, contentType, rc)
}

func (h *DocumentsHandler) SignAgreement(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req SignAgreementRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	agreement, err := h.documentsService.SignAgreement(ctx, actor.ID, domain.Agreement{
		Type:       req.Type,
		Version:    req.Version,
		SignerName: req.SignerName,
		IPAddress:  c.RealIP(),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, jsonres.Success("Agreement signed", agreement))
}

func (h *DocumentsHandler) ListAgreements(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	_, agreements, err := h.documentsService.List(ctx, actor.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("", agreements))
}
