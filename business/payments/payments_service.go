package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"garageBooking/business/verification"
	"garageBooking/domain"
	"garageBooking/pkg/config"
	"garageBooking/pkg/logger"
	"garageBooking/pkg/metrics"
	"garageBooking/pkg/tracing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Gateway is a hosted-checkout payment provider.
type Gateway interface {
	Initialize(ctx context.Context, req domain.CheckoutRequest) (checkoutURL string, err error)
	Verify(ctx context.Context, txRef string) (domain.ProviderTransaction, error)
}

type ProfileRepository interface {
	GetByAccountID(ctx context.Context, accountID uint) (*domain.GarageProfile, error)
	GetByTxRef(ctx context.Context, txRef string) (*domain.GarageProfile, error)
	TxRefExists(ctx context.Context, txRef string) (bool, error)
	SaveWithVersion(ctx context.Context, profile *domain.GarageProfile) error
	ListExpirable(ctx context.Context, processingBefore, paidBefore time.Time, limit int) ([]domain.GarageProfile, error)
}

// AttemptLog keeps every transaction reference ever issued, so a reference
// replaced by a newer checkout still resolves to its account.
type AttemptLog interface {
	Create(ctx context.Context, attempt *domain.PaymentAttempt) error
	GetByTxRef(ctx context.Context, txRef string) (domain.PaymentAttempt, error)
}

type AccountRepository interface {
	FindByID(ctx context.Context, id uint) (domain.Account, error)
}

// WebhookLog keeps every provider delivery for audit and follow-up.
type WebhookLog interface {
	Record(ctx context.Context, event domain.WebhookEvent) error
	ListUnresolved(ctx context.Context, limit int64) ([]domain.WebhookEvent, error)
	Resolve(ctx context.Context, id string) error
}

const expiryBatchSize = 200

var (
	errAmountMismatch = errors.New("charged amount does not match checkout")
	errSuperseded     = errors.New("failure for a superseded checkout")
)

type paymentsService struct {
	profiles ProfileRepository
	attempts AttemptLog
	accounts AccountRepository
	gateway  Gateway
	webhooks WebhookLog
	cfg      config.PaymentConfig
	now      func() time.Time
	newTxRef func(accountID uint, at time.Time) string
}

func NewPaymentsService(
	profiles ProfileRepository,
	attempts AttemptLog,
	accounts AccountRepository,
	gateway Gateway,
	webhooks WebhookLog,
	cfg config.PaymentConfig,
) *paymentsService {
	return &paymentsService{
		profiles: profiles,
		attempts: attempts,
		accounts: accounts,
		gateway:  gateway,
		webhooks: webhooks,
		cfg:      cfg,
		now:      time.Now,
		newTxRef: NewTxRef,
	}
}

// NewTxRef builds GRG-<account>-<unix millis>-<8 hex>.
func NewTxRef(accountID uint, at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("GRG-%d-%d-%s", accountID, at.UnixMilli(), suffix)
}

// Initiate opens a checkout with the provider. State is only written after
// the provider accepted the session.
func (s *paymentsService) Initiate(ctx context.Context, accountID uint, plan string) (session domain.CheckoutSession, err error) {
	ctx, span := tracing.Start(ctx, "payments.Initiate",
		attribute.Int64("account_id", int64(accountID)),
		attribute.String("plan", plan),
	)
	defer func() { tracing.End(span, err) }()

	amount, ok := s.cfg.PlanAmount(plan)
	if !ok {
		return domain.CheckoutSession{}, domain.NewValidationError("plan", fmt.Sprintf("unknown plan %q", plan))
	}

	profile, err := s.profiles.GetByAccountID(ctx, accountID)
	if err != nil {
		return domain.CheckoutSession{}, err
	}
	if err := verification.CanBeginPayment(profile); err != nil {
		metrics.PaymentInitiations.WithLabelValues(plan, "refused").Inc()
		return domain.CheckoutSession{}, err
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return domain.CheckoutSession{}, err
	}

	now := s.now()
	txRef := s.newTxRef(accountID, now)
	exists, err := s.txRefTaken(ctx, txRef)
	if err != nil {
		return domain.CheckoutSession{}, err
	}
	if exists {
		logger.Error("generated transaction reference already stored", "tx_ref", txRef)
		metrics.PaymentInitiations.WithLabelValues(plan, "collision").Inc()
		return domain.CheckoutSession{}, fmt.Errorf("%w: %s", domain.ErrTxRefCollision, txRef)
	}

	first, last := splitName(account.FullName)
	gwCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	checkoutURL, err := s.gateway.Initialize(gwCtx, domain.CheckoutRequest{
		TxRef:       txRef,
		Amount:      amount,
		Currency:    s.cfg.Currency,
		Email:       account.Email,
		FirstName:   first,
		LastName:    last,
		Phone:       account.Phone,
		Title:       "Garage subscription",
		Description: fmt.Sprintf("%s plan for %s", plan, profile.BusinessName),
	})
	if err != nil {
		logger.Error("payment provider refused checkout", "error", err, "account_id", accountID, "tx_ref", txRef)
		metrics.PaymentInitiations.WithLabelValues(plan, "gateway_error").Inc()
		return domain.CheckoutSession{}, gatewayError(err)
	}

	err = s.attempts.Create(ctx, &domain.PaymentAttempt{
		AccountID: accountID,
		TxRef:     txRef,
		Plan:      domain.Plan(plan),
		Amount:    amount,
		Currency:  s.cfg.Currency,
		CreatedAt: now,
	})
	if err == nil {
		_, _, err = s.update(ctx, func(ctx context.Context) (*domain.GarageProfile, error) {
			return s.profiles.GetByAccountID(ctx, accountID)
		}, func(p *domain.GarageProfile) (bool, error) {
			return true, verification.BeginPayment(p, domain.Plan(plan), amount, s.cfg.Currency, txRef, now)
		})
	}
	if errors.Is(err, domain.ErrConflict) {
		err = fmt.Errorf("%w: %s", domain.ErrTxRefCollision, txRef)
	}
	if err != nil {
		metrics.PaymentInitiations.WithLabelValues(plan, "error").Inc()
		return domain.CheckoutSession{}, err
	}

	metrics.PaymentInitiations.WithLabelValues(plan, "ok").Inc()
	metrics.StateTransitions.WithLabelValues("begin_payment").Inc()
	logger.Info("payment initiated", "account_id", accountID, "tx_ref", txRef, "plan", plan, "amount", amount)

	return domain.CheckoutSession{
		CheckoutURL: checkoutURL,
		TxRef:       txRef,
		Amount:      amount,
		Currency:    s.cfg.Currency,
		Plan:        domain.Plan(plan),
	}, nil
}

// Reconcile applies one provider notification. It never fails: every
// problem becomes an outcome so the caller can always acknowledge.
func (s *paymentsService) Reconcile(ctx context.Context, payload map[string]any, rawBody []byte, signature string) domain.ReconcileResult {
	ctx, span := tracing.Start(ctx, "payments.Reconcile")
	defer span.End()

	event := domain.WebhookEvent{
		ID:         uuid.NewString(),
		Source:     s.cfg.Provider,
		Payload:    payload,
		ReceivedAt: s.now(),
	}

	result := s.reconcile(ctx, payload, rawBody, signature, &event)

	event.TxRef = result.TxRef
	event.Strategy = result.Strategy
	event.Outcome = result.Outcome
	event.Signal = result.Signal
	event.Resolved = !result.NeedsFollowUp()
	if result.NeedsFollowUp() {
		event.Error = result.Message
	}
	if err := s.webhooks.Record(ctx, event); err != nil {
		logger.Error("failed to record webhook event", "error", err, "tx_ref", result.TxRef)
	}

	strategy := result.Strategy
	if strategy == "" {
		strategy = "none"
	}
	metrics.WebhookOutcomes.WithLabelValues(string(result.Outcome), strategy).Inc()
	span.SetAttributes(
		attribute.String("outcome", string(result.Outcome)),
		attribute.String("tx_ref", result.TxRef),
		attribute.String("strategy", strategy),
	)
	logger.Info("payment webhook reconciled",
		"outcome", result.Outcome,
		"tx_ref", result.TxRef,
		"strategy", strategy,
		"signal", result.Signal,
		"follow_up", result.FollowUp,
	)
	return result
}

func (s *paymentsService) reconcile(ctx context.Context, payload map[string]any, rawBody []byte, signature string, event *domain.WebhookEvent) domain.ReconcileResult {
	if s.cfg.WebhookSecret != "" {
		if !ValidSignature(s.cfg.WebhookSecret, rawBody, signature) {
			logger.Warn("payment webhook signature rejected")
			return domain.ReconcileResult{Outcome: domain.OutcomeRejectedSignature, Message: "invalid signature"}
		}
		event.SignatureValid = true
	}

	txRef, strategy, ok := ExtractTxRef(payload)
	if !ok {
		return domain.ReconcileResult{Outcome: domain.OutcomeMalformed, Message: "no transaction reference in payload"}
	}

	result := domain.ReconcileResult{
		TxRef:    txRef,
		Strategy: strategy,
		Signal:   ClassifyPayload(payload),
	}

	if result.Signal == domain.SignalPending {
		p, err := s.lookup(ctx, txRef)
		if errors.Is(err, domain.ErrNotFound) {
			result.Outcome = domain.OutcomeUnmatched
			result.Message = "unknown transaction reference"
			return result
		}
		if err != nil {
			result.Outcome = domain.OutcomeError
			result.Message = err.Error()
			return result
		}
		result.Outcome = domain.OutcomeIgnored
		result.Message = "status is not final"
		result.PaymentStatus = p.Payment.Status
		result.VerificationStatus = p.Verification.Status
		return result
	}

	providerRef := providerReference(payload, txRef)
	reported := amountOf(payload)
	var superseded bool
	p, applied, err := s.update(ctx, func(ctx context.Context) (*domain.GarageProfile, error) {
		return s.lookup(ctx, txRef)
	}, func(p *domain.GarageProfile) (applied bool, err error) {
		applied, superseded, err = s.settle(ctx, p, txRef, result.Signal, providerRef, s.now(), reported)
		return applied, err
	})

	switch {
	case errors.Is(err, domain.ErrNotFound):
		result.Outcome = domain.OutcomeUnmatched
		result.Message = "unknown transaction reference"
		return result
	case errors.Is(err, errAmountMismatch):
		logger.Warn("payment webhook amount mismatch", "error", err, "tx_ref", txRef)
		result.Outcome = domain.OutcomeIgnored
		result.Message = err.Error()
		result.FollowUp = true
	case errors.Is(err, errSuperseded):
		result.Outcome = domain.OutcomeIgnored
		result.Message = err.Error()
	case errors.Is(err, domain.ErrInvalidTransition):
		result.Outcome = domain.OutcomeIgnored
		result.Message = err.Error()
		// a success for an old checkout after another one was paid
		result.FollowUp = superseded && result.Signal == domain.SignalSuccess
	case err != nil:
		logger.Error("failed to apply payment webhook", "error", err, "tx_ref", txRef)
		result.Outcome = domain.OutcomeError
		result.Message = err.Error()
		return result
	case applied:
		result.Outcome = domain.OutcomeApplied
		if superseded {
			logger.Warn("late payment for a superseded checkout", "tx_ref", txRef, "account_id", p.AccountID)
			result.Message = "late payment for a superseded checkout"
			result.FollowUp = true
		}
		metrics.StateTransitions.WithLabelValues(signalAction(result.Signal)).Inc()
	default:
		result.Outcome = domain.OutcomeDuplicate
	}

	if p != nil {
		result.PaymentStatus = p.Payment.Status
		result.VerificationStatus = p.Verification.Status
	}
	return result
}

// Verify asks the provider directly, for owners returning from checkout
// before the webhook arrived.
func (s *paymentsService) Verify(ctx context.Context, accountID uint, txRef string) (snapshot domain.PaymentSnapshot, err error) {
	ctx, span := tracing.Start(ctx, "payments.Verify",
		attribute.Int64("account_id", int64(accountID)),
		attribute.String("tx_ref", txRef),
	)
	defer func() { tracing.End(span, err) }()

	profile, err := s.profiles.GetByAccountID(ctx, accountID)
	if err != nil {
		return domain.PaymentSnapshot{}, err
	}
	if !currentRef(profile, txRef) {
		attempt, err := s.attempts.GetByTxRef(ctx, txRef)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return domain.PaymentSnapshot{}, err
		}
		if err != nil || attempt.AccountID != accountID {
			return domain.PaymentSnapshot{}, fmt.Errorf("%w: transaction %s", domain.ErrNotFound, txRef)
		}
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	tx, err := s.gateway.Verify(gwCtx, txRef)
	if err != nil {
		logger.Error("payment provider verify failed", "error", err, "tx_ref", txRef)
		return domain.PaymentSnapshot{}, gatewayError(err)
	}

	signal := ClassifyStatus(tx.Status)
	if signal == domain.SignalPending {
		return profile.Snapshot(), nil
	}

	paidAt := s.now()
	if tx.PaidAt != nil {
		paidAt = *tx.PaidAt
	}
	updated, applied, err := s.update(ctx, func(ctx context.Context) (*domain.GarageProfile, error) {
		return s.profiles.GetByAccountID(ctx, accountID)
	}, func(p *domain.GarageProfile) (bool, error) {
		applied, _, err := s.settle(ctx, p, txRef, signal, tx.Reference, paidAt, providerAmount(tx))
		return applied, err
	})
	switch {
	case errors.Is(err, errSuperseded):
		return updated.Snapshot(), nil
	case errors.Is(err, errAmountMismatch):
		logger.Warn("verified payment amount mismatch", "error", err, "account_id", accountID, "tx_ref", txRef)
		return domain.PaymentSnapshot{}, fmt.Errorf("%w: %v", domain.ErrConflict, err)
	case err != nil:
		return domain.PaymentSnapshot{}, err
	}
	if applied {
		metrics.StateTransitions.WithLabelValues(signalAction(signal)).Inc()
		logger.Info("payment verified with provider", "account_id", accountID, "tx_ref", txRef, "signal", signal)
	}
	return updated.Snapshot(), nil
}

func (s *paymentsService) Status(ctx context.Context, accountID uint) (domain.PaymentSnapshot, error) {
	profile, err := s.profiles.GetByAccountID(ctx, accountID)
	if err != nil {
		return domain.PaymentSnapshot{}, err
	}
	return profile.Snapshot(), nil
}

// ExpireLapsed closes checkouts older than the processing TTL and paid
// subscriptions past their expiry. It returns how many profiles changed.
func (s *paymentsService) ExpireLapsed(ctx context.Context) (expired int, err error) {
	ctx, span := tracing.Start(ctx, "payments.ExpireLapsed")
	defer func() { tracing.End(span, err) }()

	now := s.now()
	candidates, err := s.profiles.ListExpirable(ctx, now.Add(-s.cfg.ProcessingTTL), now, expiryBatchSize)
	if err != nil {
		return 0, err
	}

	for i := range candidates {
		p := &candidates[i]
		applied, err := verification.ExpirePayment(p, now)
		if err != nil || !applied {
			continue
		}
		if err := s.profiles.SaveWithVersion(ctx, p); err != nil {
			// picked up again on the next sweep
			logger.Warn("failed to expire payment", "error", err, "account_id", p.AccountID)
			continue
		}
		expired++
		metrics.ExpiredPayments.Inc()
		metrics.StateTransitions.WithLabelValues("expire_payment").Inc()
	}

	span.SetAttributes(attribute.Int("expired", expired))
	if expired > 0 {
		logger.Info("expired lapsed payments", "count", expired)
	}
	return expired, nil
}

func (s *paymentsService) UnresolvedWebhooks(ctx context.Context, limit int64) ([]domain.WebhookEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.webhooks.ListUnresolved(ctx, limit)
}

func (s *paymentsService) ResolveWebhook(ctx context.Context, id string) error {
	return s.webhooks.Resolve(ctx, id)
}

// update loads a profile, applies a transition and saves it with a version
// check. A stale write is retried once against a fresh read.
func (s *paymentsService) update(
	ctx context.Context,
	load func(context.Context) (*domain.GarageProfile, error),
	apply func(*domain.GarageProfile) (bool, error),
) (*domain.GarageProfile, bool, error) {
	for attempt := 0; ; attempt++ {
		p, err := load(ctx)
		if err != nil {
			return nil, false, err
		}
		applied, err := apply(p)
		if err != nil {
			return p, false, err
		}
		if !applied {
			return p, false, nil
		}
		err = s.profiles.SaveWithVersion(ctx, p)
		if errors.Is(err, domain.ErrStaleVersion) && attempt == 0 {
			logger.Warn("profile changed concurrently, re-reading", "account_id", p.AccountID)
			continue
		}
		if err != nil {
			return p, false, err
		}
		return p, true, nil
	}
}

// txRefTaken checks the attempt history and the profiles' current
// references; profiles written before the history existed only have the latter.
func (s *paymentsService) txRefTaken(ctx context.Context, txRef string) (bool, error) {
	_, err := s.attempts.GetByTxRef(ctx, txRef)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	return s.profiles.TxRefExists(ctx, txRef)
}

// lookup resolves a reference to its profile, falling back to the attempt
// history for references a newer checkout replaced.
func (s *paymentsService) lookup(ctx context.Context, txRef string) (*domain.GarageProfile, error) {
	p, err := s.profiles.GetByTxRef(ctx, txRef)
	if !errors.Is(err, domain.ErrNotFound) {
		return p, err
	}
	attempt, err := s.attempts.GetByTxRef(ctx, txRef)
	if err != nil {
		return nil, err
	}
	return s.profiles.GetByAccountID(ctx, attempt.AccountID)
}

// settle applies a final provider signal for txRef. The reference is either
// the profile's current one or an older attempt of the same account; the
// second case reports superseded=true. Successes are checked against the
// price of the checkout they pay for.
func (s *paymentsService) settle(
	ctx context.Context,
	p *domain.GarageProfile,
	txRef string,
	signal domain.ProviderSignal,
	providerRef string,
	at time.Time,
	reported *reportedAmount,
) (applied, superseded bool, err error) {
	if currentRef(p, txRef) {
		if signal == domain.SignalSuccess {
			if err := checkAmount(p.Payment.Amount, p.Payment.Currency, reported); err != nil {
				return false, false, err
			}
		}
		applied, err := applySignal(p, signal, providerRef, at)
		return applied, false, err
	}

	attempt, err := s.attempts.GetByTxRef(ctx, txRef)
	if err != nil {
		return false, true, err
	}
	if attempt.AccountID != p.AccountID {
		return false, true, fmt.Errorf("%w: transaction %s", domain.ErrNotFound, txRef)
	}
	if signal != domain.SignalSuccess {
		return false, true, errSuperseded
	}
	if err := checkAmount(attempt.Amount, attempt.Currency, reported); err != nil {
		return false, true, err
	}
	applied, err = verification.ConfirmSupersededPayment(p, attempt, providerRef, at)
	return applied, true, err
}

func currentRef(p *domain.GarageProfile, txRef string) bool {
	return p.Payment.TxRef != nil && *p.Payment.TxRef == txRef
}

// providerAmount treats a zero amount as not reported.
func providerAmount(tx domain.ProviderTransaction) *reportedAmount {
	if tx.Amount == 0 && tx.Currency == "" {
		return nil
	}
	return &reportedAmount{amount: tx.Amount, currency: tx.Currency}
}

func applySignal(p *domain.GarageProfile, signal domain.ProviderSignal, providerRef string, at time.Time) (bool, error) {
	switch signal {
	case domain.SignalSuccess:
		return verification.ConfirmPayment(p, providerRef, at)
	case domain.SignalFailure:
		return verification.FailPayment(p)
	}
	return false, nil
}

func signalAction(signal domain.ProviderSignal) string {
	if signal == domain.SignalSuccess {
		return "confirm_payment"
	}
	return "fail_payment"
}

func gatewayError(err error) error {
	if errors.Is(err, domain.ErrGateway) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrGateway, err)
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
