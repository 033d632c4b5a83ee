package auth

import (
	"context"
	"crypto/aes"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"garageBooking/business/documents"
	"garageBooking/domain"
	"garageBooking/pkg/logger"
	"garageBooking/pkg/utils"

	"github.com/go-playground/validator/v10"
	"github.com/pobyzaarif/goshortcute"
)

// AccountRepository contract interface
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	CreateWithProfile(ctx context.Context, account *domain.Account, profile *domain.GarageProfile) error
	FindByID(ctx context.Context, id uint) (domain.Account, error)
	FindByEmail(ctx context.Context, email string) (domain.Account, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	UpdateDetails(ctx context.Context, account *domain.Account) error
	UpdatePassword(ctx context.Context, id uint, hash string) error
	RecordFailedLogin(ctx context.Context, id uint, attempts int, lockedUntil *time.Time) error
	RecordLogin(ctx context.Context, id uint, at time.Time) error
	SaveLifecycle(ctx context.Context, id uint, lifecycle domain.Lifecycle) error
}

type ProfileRepository interface {
	GetByAccountID(ctx context.Context, accountID uint) (*domain.GarageProfile, error)
	RegistrationNumberExists(ctx context.Context, number string) (bool, error)
}

// DocumentAttacher stores files handed in with a garage registration.
type DocumentAttacher interface {
	AttachAll(ctx context.Context, accountID uint, uploads []documents.Upload) ([]domain.Document, error)
}

// SessionStore keeps issued tokens and single-use reset codes.
type SessionStore interface {
	StoreToken(ctx context.Context, data domain.Session, ttl time.Duration) error
	RevokeToken(ctx context.Context, userID uint) error
	ClaimResetCode(ctx context.Context, code string, ttl time.Duration) (bool, error)
}

// NotificationRepository contract interface
type NotificationRepository interface {
	SendEmail(ctx context.Context, toName, toEmail, subject, message string) error
}

type TokenIssuer interface {
	GenerateJWT(userID, role string) (string, error)
	TTL() time.Duration
}

type Options struct {
	MaxFailedLogins int
	LockDuration    time.Duration
	ResetLinkTTL    time.Duration
	LinkCodeKey     string
	DeploymentURL   string
}

const (
	SubjectResetPassword   = "Reset your password"
	EmailBodyResetPassword = `Hello %v, open the link below to choose a new password</br></br>%v</br>note: the link is valid for %v minutes`
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	ErrInvalidResetLink   = fmt.Errorf("%w: invalid or expired link", domain.ErrValidation)
)

type authService struct {
	accounts AccountRepository
	profiles ProfileRepository
	docs     DocumentAttacher
	sessions SessionStore
	notif    NotificationRepository
	tokens   TokenIssuer
	validate *validator.Validate
	opts     Options
	now      func() time.Time
}

func NewAuthService(
	accounts AccountRepository,
	profiles ProfileRepository,
	docs DocumentAttacher,
	sessions SessionStore,
	notif NotificationRepository,
	tokens TokenIssuer,
	validate *validator.Validate,
	opts Options,
) *authService {
	return &authService{
		accounts: accounts,
		profiles: profiles,
		docs:     docs,
		sessions: sessions,
		notif:    notif,
		tokens:   tokens,
		validate: validate,
		opts:     opts,
		now:      time.Now,
	}
}

type RegisterInput struct {
	FullName string `json:"full_name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
	Password string `json:"password" validate:"required"`
}

type GarageRegistrationInput struct {
	RegisterInput
	BusinessName       string                `json:"business_name" validate:"required,min=2,max=150"`
	RegistrationNumber string                `json:"registration_number" validate:"required,max=64"`
	Address            string                `json:"address" validate:"required"`
	City               string                `json:"city" validate:"required"`
	ContactPhone       string                `json:"contact_phone" validate:"omitempty,max=20"`
	ContactEmail       string                `json:"contact_email" validate:"omitempty,email"`
	Website            string                `json:"website" validate:"omitempty,url"`
	Description        string                `json:"description" validate:"max=2000"`
	ServiceCatalog     []string              `json:"service_catalog"`
	OpeningHours       []domain.OpeningHours `json:"opening_hours"`
}

type UpdateDetailsInput struct {
	FullName string `json:"full_name" validate:"omitempty,min=2,max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
}

// LoginResult is returned by every operation that issues a token.
type LoginResult struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Account   domain.Account `json:"user"`
}

// ClientInfo identifies where a session was opened from.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

func (s *authService) checkRegistration(ctx context.Context, in RegisterInput) error {
	if err := utils.ValidateStruct(s.validate, in); err != nil {
		return err
	}
	if problems := utils.PasswordProblems(in.Password); len(problems) > 0 {
		return domain.NewValidationError("password", problems...)
	}

	exists, err := s.accounts.EmailExists(ctx, in.Email)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: email already registered", domain.ErrConflict)
	}
	return nil
}

func (s *authService) newAccount(in RegisterInput, role domain.Role) (domain.Account, error) {
	passwordHash, err := utils.HashPassword(in.Password)
	if err != nil {
		logger.Error("failed to hash password", "error", err)
		return domain.Account{}, errors.New("failed to hash password")
	}

	return domain.Account{
		FullName:  strings.TrimSpace(in.FullName),
		Email:     in.Email,
		Phone:     in.Phone,
		Password:  string(passwordHash),
		Role:      role,
		Lifecycle: domain.ActiveLifecycle(),
	}, nil
}

// Register creates a customer account and opens a session for it.
func (s *authService) Register(ctx context.Context, in RegisterInput, client ClientInfo) (LoginResult, error) {
	if err := s.checkRegistration(ctx, in); err != nil {
		return LoginResult{}, err
	}

	account, err := s.newAccount(in, domain.RoleCustomer)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.accounts.Create(ctx, &account); err != nil {
		logger.Error("failed to create account", "error", err)
		return LoginResult{}, err
	}

	return s.issue(ctx, account, client)
}

// RegisterGarage checks every upload, creates a garage owner with its
// profile, then attaches the documents. Attach failures are reported but the
// account stays.
func (s *authService) RegisterGarage(ctx context.Context, in GarageRegistrationInput, uploads []documents.Upload, client ClientInfo) (LoginResult, error) {
	if err := utils.ValidateStruct(s.validate, in); err != nil {
		return LoginResult{}, err
	}
	if err := s.checkRegistration(ctx, in.RegisterInput); err != nil {
		return LoginResult{}, err
	}

	exists, err := s.profiles.RegistrationNumberExists(ctx, in.RegistrationNumber)
	if err != nil {
		return LoginResult{}, err
	}
	if exists {
		return LoginResult{}, fmt.Errorf("%w: registration number already registered", domain.ErrConflict)
	}
	for _, up := range uploads {
		if err := documents.CheckUpload(up); err != nil {
			return LoginResult{}, err
		}
	}

	account, err := s.newAccount(in.RegisterInput, domain.RoleGarageOwner)
	if err != nil {
		return LoginResult{}, err
	}

	profile := domain.NewGarageProfile(0)
	profile.BusinessName = strings.TrimSpace(in.BusinessName)
	profile.RegistrationNumber = strings.TrimSpace(in.RegistrationNumber)
	profile.Address = in.Address
	profile.City = in.City
	profile.ContactPhone = in.ContactPhone
	profile.ContactEmail = in.ContactEmail
	profile.Website = in.Website
	profile.Description = in.Description
	profile.ServiceCatalog = in.ServiceCatalog
	profile.OpeningHours = in.OpeningHours

	if err := s.accounts.CreateWithProfile(ctx, &account, &profile); err != nil {
		logger.Error("failed to create garage owner", "error", err)
		return LoginResult{}, err
	}

	if len(uploads) > 0 {
		if _, err := s.docs.AttachAll(ctx, account.ID, uploads); err != nil {
			logger.Warn("garage registered but document upload failed", "error", err, "account_id", account.ID)
			return LoginResult{}, fmt.Errorf("account created, documents not stored: %w", err)
		}
	}

	return s.issue(ctx, account, client)
}

func (s *authService) Login(ctx context.Context, email, password string, client ClientInfo) (LoginResult, error) {
	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		logger.Error("failed to load account for login", "error", err)
		return LoginResult{}, err
	}
	if !account.Lifecycle.IsActive() {
		return LoginResult{}, ErrInvalidCredentials
	}

	now := s.now()
	if account.IsLocked(now) {
		return LoginResult{}, domain.ErrAccountLocked
	}

	if !utils.CheckPassword(password, account.Password) {
		return LoginResult{}, s.recordFailure(ctx, account, now)
	}

	if err := s.accounts.RecordLogin(ctx, account.ID, now); err != nil {
		logger.Error("failed to record login", "error", err, "account_id", account.ID)
		return LoginResult{}, err
	}
	account.FailedLoginAttempts = 0
	account.LockedUntil = nil
	account.LastLoginAt = &now

	return s.issue(ctx, account, client)
}

// recordFailure counts a bad password. An expired lock starts a fresh count.
func (s *authService) recordFailure(ctx context.Context, account domain.Account, now time.Time) error {
	attempts := account.FailedLoginAttempts
	if account.LockedUntil != nil {
		attempts = 0
	}
	attempts++

	var lockedUntil *time.Time
	result := ErrInvalidCredentials
	if attempts >= s.opts.MaxFailedLogins {
		until := now.Add(s.opts.LockDuration)
		lockedUntil = &until
		result = domain.ErrAccountLocked
		logger.Warn("account locked after failed logins", "account_id", account.ID, "attempts", attempts)
	}

	if err := s.accounts.RecordFailedLogin(ctx, account.ID, attempts, lockedUntil); err != nil {
		logger.Error("failed to record failed login", "error", err, "account_id", account.ID)
	}
	return result
}

func (s *authService) issue(ctx context.Context, account domain.Account, client ClientInfo) (LoginResult, error) {
	token, err := s.tokens.GenerateJWT(strconv.FormatUint(uint64(account.ID), 10), string(account.Role))
	if err != nil {
		logger.Error("failed to generate token", "error", err)
		return LoginResult{}, errors.New("failed to generate token")
	}

	issuedAt := s.now()
	session := domain.Session{
		UserID:    account.ID,
		Role:      account.Role,
		Token:     token,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(s.tokens.TTL()),
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
	}
	if err := s.sessions.StoreToken(ctx, session, s.tokens.TTL()); err != nil {
		logger.Error("failed to store session", "error", err, "account_id", account.ID)
		return LoginResult{}, err
	}

	account.Password = ""
	return LoginResult{Token: token, ExpiresAt: session.ExpiresAt, Account: account}, nil
}

// Me returns the account, with its garage profile for garage owners.
func (s *authService) Me(ctx context.Context, id uint) (domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}
	if account.Role == domain.RoleGarageOwner {
		profile, err := s.profiles.GetByAccountID(ctx, id)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return domain.Account{}, err
		}
		account.GarageProfile = profile
	}

	account.Password = ""
	return account, nil
}

func (s *authService) UpdateDetails(ctx context.Context, id uint, in UpdateDetailsInput) (domain.Account, error) {
	if err := utils.ValidateStruct(s.validate, in); err != nil {
		return domain.Account{}, err
	}

	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}

	if in.FullName != "" {
		account.FullName = strings.TrimSpace(in.FullName)
	}
	if in.Phone != "" {
		account.Phone = in.Phone
	}
	if in.Email != "" && !strings.EqualFold(in.Email, account.Email) {
		other, err := s.accounts.FindByEmail(ctx, in.Email)
		if err == nil && other.ID != id {
			return domain.Account{}, fmt.Errorf("%w: email already registered", domain.ErrConflict)
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return domain.Account{}, err
		}
		account.Email = in.Email
	}
	account.UpdatedAt = s.now()

	if err := s.accounts.UpdateDetails(ctx, &account); err != nil {
		logger.Error("failed to update account", "error", err, "account_id", id)
		return domain.Account{}, err
	}

	account.Password = ""
	return account, nil
}

// UpdatePassword replaces the password and rotates the session.
func (s *authService) UpdatePassword(ctx context.Context, id uint, current, next string, client ClientInfo) (LoginResult, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return LoginResult{}, err
	}
	if !utils.CheckPassword(current, account.Password) {
		return LoginResult{}, fmt.Errorf("%w: current password is incorrect", domain.ErrUnauthorized)
	}
	if problems := utils.PasswordProblems(next); len(problems) > 0 {
		return LoginResult{}, domain.NewValidationError("new_password", problems...)
	}

	passwordHash, err := utils.HashPassword(next)
	if err != nil {
		return LoginResult{}, errors.New("failed to hash password")
	}
	if err := s.accounts.UpdatePassword(ctx, id, string(passwordHash)); err != nil {
		return LoginResult{}, err
	}
	if err := s.sessions.RevokeToken(ctx, id); err != nil {
		logger.Warn("failed to revoke session after password change", "error", err, "account_id", id)
	}

	return s.issue(ctx, account, client)
}

// ForgotPassword mails a reset link when the account exists. Unknown emails
// are not reported to the caller.
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	account, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Info("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	expAt := s.now().Add(s.opts.ResetLinkTTL).Unix()
	resetCode := fmt.Sprintf("%v|%v", account.Email, expAt)
	resetCodeEncrypt, err := goshortcute.AESCBCEncrypt([]byte(resetCode), []byte(s.opts.LinkCodeKey))
	if err != nil {
		logger.Error("failed to encrypt reset code", "error", err)
		return errors.New("failed to create reset link")
	}
	strEncode := goshortcute.StringtoBase64Encode(resetCodeEncrypt)
	resetLink := s.opts.DeploymentURL + "/reset-password?code=" + url.QueryEscape(strEncode)

	minutes := int(s.opts.ResetLinkTTL.Minutes())
	err = s.notif.SendEmail(ctx, account.FullName, account.Email, SubjectResetPassword, fmt.Sprintf(EmailBodyResetPassword, account.FullName, resetLink, minutes))
	if err != nil {
		logger.Warn("failed to send reset email", "error", err, "account_id", account.ID)
	}

	return nil
}

// ResetPassword accepts each code once.
func (s *authService) ResetPassword(ctx context.Context, code, newPassword string) error {
	strDecode := goshortcute.StringtoBase64Decode(code)
	if len(strDecode) == 0 || len(strDecode)%aes.BlockSize != 0 {
		return ErrInvalidResetLink
	}
	resetCodeDecrypt, err := goshortcute.AESCBCDecrypt([]byte(strDecode), []byte(s.opts.LinkCodeKey))
	if err != nil {
		logger.Warn("reset code could not be decrypted", "error", err)
		return ErrInvalidResetLink
	}

	parts := strings.Split(resetCodeDecrypt, "|")
	if len(parts) != 2 {
		return ErrInvalidResetLink
	}
	ts, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ErrInvalidResetLink
	}
	expAt := time.Unix(ts, 0)
	if s.now().After(expAt) {
		return ErrInvalidResetLink
	}

	if problems := utils.PasswordProblems(newPassword); len(problems) > 0 {
		return domain.NewValidationError("password", problems...)
	}

	account, err := s.accounts.FindByEmail(ctx, parts[0])
	if errors.Is(err, domain.ErrNotFound) {
		return ErrInvalidResetLink
	}
	if err != nil {
		return err
	}

	claimed, err := s.sessions.ClaimResetCode(ctx, code, time.Until(expAt)+time.Minute)
	if err != nil {
		return err
	}
	if !claimed {
		return ErrInvalidResetLink
	}

	passwordHash, err := utils.HashPassword(newPassword)
	if err != nil {
		return errors.New("failed to hash password")
	}
	if err := s.accounts.UpdatePassword(ctx, account.ID, string(passwordHash)); err != nil {
		return err
	}
	if err := s.sessions.RevokeToken(ctx, account.ID); err != nil {
		logger.Warn("failed to revoke session after reset", "error", err, "account_id", account.ID)
	}

	return nil
}

func (s *authService) Logout(ctx context.Context, id uint) error {
	return s.sessions.RevokeToken(ctx, id)
}

// ArchiveAccount soft-deletes a customer or garage owner account.
func (s *authService) ArchiveAccount(ctx context.Context, adminID, id uint) (domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}
	if account.Role.IsAdmin() {
		return domain.Account{}, fmt.Errorf("%w: admin accounts cannot be archived", domain.ErrForbidden)
	}
	if err := account.Lifecycle.Archive(adminID, s.now()); err != nil {
		return domain.Account{}, err
	}
	if err := s.accounts.SaveLifecycle(ctx, id, account.Lifecycle); err != nil {
		return domain.Account{}, err
	}
	if err := s.sessions.RevokeToken(ctx, id); err != nil {
		logger.Warn("failed to revoke session of archived account", "error", err, "account_id", id)
	}

	account.Password = ""
	return account, nil
}

func (s *authService) RestoreAccount(ctx context.Context, id uint) (domain.Account, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}
	if err := account.Lifecycle.Restore(); err != nil {
		return domain.Account{}, err
	}
	if err := s.accounts.SaveLifecycle(ctx, id, account.Lifecycle); err != nil {
		return domain.Account{}, err
	}

	account.Password = ""
	return account, nil
}
