package rest

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"garageBooking/business/auth"
	"garageBooking/business/documents"
	"garageBooking/domain"
	"garageBooking/pkg/logger"
	jsonres "garageBooking/pkg/response"

	"github.com/labstack/echo/v4"
)

type AuthService interface {
	Register(ctx context.Context, in auth.RegisterInput, client auth.ClientInfo) (auth.LoginResult, error)
	RegisterGarage(ctx context.Context, in auth.GarageRegistrationInput, uploads []documents.Upload, client auth.ClientInfo) (auth.LoginResult, error)
	Login(ctx context.Context, email, password string, client auth.ClientInfo) (auth.LoginResult, error)
	Logout(ctx context.Context, id uint) error
	Me(ctx context.Context, id uint) (domain.Account, error)
	UpdateDetails(ctx context.Context, id uint, in auth.UpdateDetailsInput) (domain.Account, error)
	UpdatePassword(ctx context.Context, id uint, current, next string, client auth.ClientInfo) (auth.LoginResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, code, newPassword string) error
}

type AuthHandler struct {
	authService AuthService
	timeout     time.Duration
}

func NewAuthHandler(authService AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		timeout:     defaultTimeout,
	}
}

type (
	LoginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	ForgotPasswordRequest struct {
		Email string `json:"email"`
	}

	ResetPasswordRequest struct {
		Code     string `json:"code"`
		Password string `json:"password"`
	}

	UpdatePasswordRequest struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
)

// 32MB covers four documents at the 5MB limit plus form fields.
const maxRegistrationMemory = 32 << 20

var registrationFileFields = []domain.DocumentType{
	domain.DocumentBusinessLicense,
	domain.DocumentTaxCertificate,
	domain.DocumentOwnerID,
	domain.DocumentInsuranceCertificate,
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req auth.RegisterInput
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	result, err := h.authService.Register(ctx, req, clientInfo(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, jsonres.Success("Registration successful", result))
}

// RegisterGarage accepts multipart form fields plus one optional file per
// document type, named after the type.
func (h *AuthHandler) RegisterGarage(c echo.Context) error {
	if err := c.Request().ParseMultipartForm(maxRegistrationMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return domain.NewValidationError("body", "invalid multipart form")
	}

	in, err := garageRegistrationFromForm(c)
	if err != nil {
		return err
	}

	uploads, closeAll, err := registrationUploads(c)
	defer closeAll()
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, 2*h.timeout)
	defer cancel()

	result, err := h.authService.RegisterGarage(ctx, in, uploads, clientInfo(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, jsonres.Success("Garage registration received", result))
}

func garageRegistrationFromForm(c echo.Context) (auth.GarageRegistrationInput, error) {
	in := auth.GarageRegistrationInput{
		RegisterInput: auth.RegisterInput{
			FullName: c.FormValue("full_name"),
			Email:    c.FormValue("email"),
			Phone:    c.FormValue("phone"),
			Password: c.FormValue("password"),
		},
		BusinessName:       c.FormValue("business_name"),
		RegistrationNumber: c.FormValue("registration_number"),
		Address:            c.FormValue("address"),
		City:               c.FormValue("city"),
		ContactPhone:       c.FormValue("contact_phone"),
		ContactEmail:       c.FormValue("contact_email"),
		Website:            c.FormValue("website"),
		Description:        c.FormValue("description"),
	}

	for _, s := range strings.Split(c.FormValue("service_catalog"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			in.ServiceCatalog = append(in.ServiceCatalog, s)
		}
	}

	if raw := c.FormValue("opening_hours"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.OpeningHours); err != nil {
			return in, domain.NewValidationError("opening_hours", "must be a JSON array of {day, open, close}")
		}
	}

	return in, nil
}

func registrationUploads(c echo.Context) ([]documents.Upload, func(), error) {
	var (
		uploads []documents.Upload
		opened  []multipart.File
	)
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	for _, docType := range registrationFileFields {
		fh, err := c.FormFile(string(docType))
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			continue
		}
		if err != nil {
			return nil, closeAll, domain.NewValidationError(string(docType), "unreadable file")
		}

		f, err := fh.Open()
		if err != nil {
			logger.Warn("failed to open uploaded file", "error", err, "field", docType)
			return nil, closeAll, domain.NewValidationError(string(docType), "unreadable file")
		}
		opened = append(opened, f)

		uploads = append(uploads, documents.Upload{
			Type:        docType,
			FileName:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}

	return uploads, closeAll, nil
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	result, err := h.authService.Login(ctx, req.Email, req.Password, clientInfo(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("Login successful", result))
}

func (h *AuthHandler) Logout(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	if err := h.authService.Logout(ctx, actor.ID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("Logout successful", nil))
}

func (h *AuthHandler) Me(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	account, err := h.authService.Me(ctx, actor.ID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("", account))
}

func (h *AuthHandler) UpdateDetails(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req auth.UpdateDetailsInput
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	account, err := h.authService.UpdateDetails(ctx, actor.ID, req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("Details updated", account))
}

func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return err
	}

	var req UpdatePasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	result, err := h.authService.UpdatePassword(ctx, actor.ID, req.CurrentPassword, req.NewPassword, clientInfo(c))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("Password updated", result))
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	if err := h.authService.ForgotPassword(ctx, req.Email); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("If the email is registered, a reset link has been sent", nil))
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Code == "" {
		req.Code = c.QueryParam("code")
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	if err := h.authService.ResetPassword(ctx, req.Code, req.Password); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, jsonres.Success("Password has been reset", nil))
}
