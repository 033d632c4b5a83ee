//go:build !integration

package payments

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"garageBooking/domain"
	"garageBooking/pkg/config"
)

var now = time.Date(2026, 5, 10, 9, 30, 0, 0, time.UTC)

type fakeProfiles struct {
	byAccount map[uint]domain.GarageProfile
	// beforeSave runs once, ahead of the next save, to simulate a racing writer.
	beforeSave func(f *fakeProfiles)
	saves      int
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
	return &p, nil
}

func (f *fakeProfiles) GetByTxRef(_ context.Context, txRef string) (*domain.GarageProfile, error) {
	for _, p := range f.byAccount {
		if p.Payment.TxRef != nil && *p.Payment.TxRef == txRef {
			cp := p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeProfiles) TxRefExists(ctx context.Context, txRef string) (bool, error) {
	_, err := f.GetByTxRef(ctx, txRef)
	return err == nil, nil
}

func (f *fakeProfiles) SaveWithVersion(_ context.Context, p *domain.GarageProfile) error {
	if hook := f.beforeSave; hook != nil {
		f.beforeSave = nil
		hook(f)
	}
	stored, ok := f.byAccount[p.AccountID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Version != p.Version {
		return domain.ErrStaleVersion
	}
	p.Version++
	f.byAccount[p.AccountID] = *p
	f.saves++
	return nil
}

func (f *fakeProfiles) ListExpirable(_ context.Context, processingBefore, paidBefore time.Time, _ int) ([]domain.GarageProfile, error) {
	var out []domain.GarageProfile
	for _, p := range f.byAccount {
		switch {
		case p.Payment.Status == domain.PaymentProcessing && p.Payment.InitiatedAt != nil && p.Payment.InitiatedAt.Before(processingBefore):
			out = append(out, p)
		case p.Payment.Status == domain.PaymentPaid && p.Payment.ExpiresAt != nil && p.Payment.ExpiresAt.Before(paidBefore):
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeAttempts struct {
	byRef map[string]domain.PaymentAttempt
}

func newFakeAttempts(as ...domain.PaymentAttempt) *fakeAttempts {
	f := &fakeAttempts{byRef: map[string]domain.PaymentAttempt{}}
	for _, a := range as {
		f.byRef[a.TxRef] = a
	}
	return f
}

func (f *fakeAttempts) Create(_ context.Context, a *domain.PaymentAttempt) error {
	if _, ok := f.byRef[a.TxRef]; ok {
		return domain.ErrConflict
	}
	f.byRef[a.TxRef] = *a
	return nil
}

func (f *fakeAttempts) GetByTxRef(_ context.Context, txRef string) (domain.PaymentAttempt, error) {
	a, ok := f.byRef[txRef]
	if !ok {
		return domain.PaymentAttempt{}, domain.ErrNotFound
	}
	return a, nil
}

type fakeAccounts struct{}

func (fakeAccounts) FindByID(_ context.Context, id uint) (domain.Account, error) {
	return domain.Account{ID: id, FullName: "Abebe Kebede", Email: "abebe@example.com", Role: domain.RoleGarageOwner}, nil
}

type fakeGateway struct {
	initErr   error
	initCalls int
	lastReq   domain.CheckoutRequest
	verifyTx  domain.ProviderTransaction
	verifyErr error
}

func (g *fakeGateway) Initialize(_ context.Context, req domain.CheckoutRequest) (string, error) {
	g.initCalls++
	g.lastReq = req
	if g.initErr != nil {
		return "", g.initErr
	}
	return "https://checkout.chapa.co/checkout/payment/" + req.TxRef, nil
}

func (g *fakeGateway) Verify(_ context.Context, txRef string) (domain.ProviderTransaction, error) {
	if g.verifyErr != nil {
		return domain.ProviderTransaction{}, g.verifyErr
	}
	tx := g.verifyTx
	tx.TxRef = txRef
	return tx, nil
}

type fakeWebhooks struct {
	events []domain.WebhookEvent
}

func (w *fakeWebhooks) Record(_ context.Context, e domain.WebhookEvent) error {
	w.events = append(w.events, e)
	return nil
}

func (w *fakeWebhooks) ListUnresolved(_ context.Context, _ int64) ([]domain.WebhookEvent, error) {
	var out []domain.WebhookEvent
	for _, e := range w.events {
		if !e.Resolved {
			out = append(out, e)
		}
	}
	return out, nil
}

func (w *fakeWebhooks) Resolve(_ context.Context, id string) error {
	for i := range w.events {
		if w.events[i].ID == id {
			w.events[i].Resolved = true
			return nil
		}
	}
	return domain.ErrNotFound
}

func paymentConfig() config.PaymentConfig {
	return config.PaymentConfig{
		Provider:      "chapa",
		SecretKey:     "CHASECK_TEST",
		BaseURL:       "https://api.chapa.co",
		Currency:      "ETB",
		Plans:         map[string]int64{"basic": 500, "premium": 1000, "yearly": 5000},
		Timeout:       time.Second,
		ProcessingTTL: 24 * time.Hour,
	}
}

type fixture struct {
	svc      *paymentsService
	profiles *fakeProfiles
	attempts *fakeAttempts
	gateway  *fakeGateway
	webhooks *fakeWebhooks
}

func newFixture(cfg config.PaymentConfig, ps ...domain.GarageProfile) fixture {
	f := fixture{
		profiles: newFakeProfiles(ps...),
		attempts: newFakeAttempts(),
		gateway:  &fakeGateway{},
		webhooks: &fakeWebhooks{},
	}
	f.svc = NewPaymentsService(f.profiles, f.attempts, fakeAccounts{}, f.gateway, f.webhooks, cfg)
	f.svc.now = func() time.Time { return now }
	return f
}

func uploadedProfile(accountID uint) domain.GarageProfile {
	p := domain.NewGarageProfile(accountID)
	p.ID = accountID
	p.BusinessName = "Bole Auto"
	p.Verification.Status = domain.VerificationDocumentsUploaded
	return p
}

func processing(accountID uint, txRef string) domain.GarageProfile {
	p := uploadedProfile(accountID)
	ref := txRef
	initiated := now.Add(-time.Hour)
	p.Payment = domain.PaymentInfo{
		Status:      domain.PaymentProcessing,
		Plan:        domain.PlanBasic,
		Amount:      500,
		Currency:    "ETB",
		TxRef:       &ref,
		InitiatedAt: &initiated,
	}
	p.Verification.Status = domain.VerificationPendingPayment
	return p
}

func payload(t *testing.T, raw string) (map[string]any, []byte) {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatal(err)
	}
	return m, []byte(raw)
}

func TestNewTxRef(t *testing.T) {
	ref := NewTxRef(42, now)
	pattern := regexp.MustCompile(`^GRG-42-\d{13}-[0-9a-f]{8}$`)
	if !pattern.MatchString(ref) {
		t.Fatalf("tx ref %q does not match %s", ref, pattern)
	}
	if NewTxRef(42, now) == ref {
		t.Fatal("two references for the same instant collided")
	}
}

func TestInitiate_Basic(t *testing.T) {
	f := newFixture(paymentConfig(), uploadedProfile(7))

	session, err := f.svc.Initiate(context.Background(), 7, "basic")
	if err != nil {
		t.Fatal(err)
	}
	if session.Amount != 500 || session.Currency != "ETB" || session.Plan != domain.PlanBasic {
		t.Fatalf("session = %+v", session)
	}
	if session.CheckoutURL == "" || session.TxRef == "" {
		t.Fatalf("session missing checkout data: %+v", session)
	}

	stored := f.profiles.byAccount[7]
	if stored.Payment.Status != domain.PaymentProcessing || stored.Verification.Status != domain.VerificationPendingPayment {
		t.Fatalf("stored states = %s/%s", stored.Payment.Status, stored.Verification.Status)
	}
	if stored.Payment.TxRef == nil || *stored.Payment.TxRef != session.TxRef {
		t.Fatal("tx ref not persisted")
	}
	if f.gateway.lastReq.FirstName != "Abebe" || f.gateway.lastReq.LastName != "Kebede" {
		t.Errorf("customer name = %q %q", f.gateway.lastReq.FirstName, f.gateway.lastReq.LastName)
	}
}

func TestInitiate_GatewayFailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(paymentConfig(), uploadedProfile(7))
	f.gateway.initErr = context.DeadlineExceeded

	_, err := f.svc.Initiate(context.Background(), 7, "premium")
	if !errors.Is(err, domain.ErrGateway) {
		t.Fatalf("err = %v", err)
	}
	stored := f.profiles.byAccount[7]
	if stored.Payment.Status != domain.PaymentPending || stored.Payment.TxRef != nil || f.profiles.saves != 0 {
		t.Fatalf("state changed after provider failure: %+v", stored.Payment)
	}
}

func TestInitiate_UnknownPlan(t *testing.T) {
	f := newFixture(paymentConfig(), uploadedProfile(7))
	_, err := f.svc.Initiate(context.Background(), 7, "platinum")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
	if f.gateway.initCalls != 0 {
		t.Fatal("provider called for unknown plan")
	}
}

func TestInitiate_RefusedWhilePaid(t *testing.T) {
	p := processing(7, "GRG-7-1-aaaaaaaa")
	p.Payment.Status = domain.PaymentPaid
	f := newFixture(paymentConfig(), p)

	_, err := f.svc.Initiate(context.Background(), 7, "basic")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v", err)
	}
	if f.gateway.initCalls != 0 {
		t.Fatal("provider called for refused initiation")
	}
}

func TestInitiate_TxRefCollision(t *testing.T) {
	taken := processing(8, "GRG-7-fixed")
	f := newFixture(paymentConfig(), uploadedProfile(7), taken)
	f.svc.newTxRef = func(uint, time.Time) string { return "GRG-7-fixed" }

	_, err := f.svc.Initiate(context.Background(), 7, "basic")
	if !errors.Is(err, domain.ErrTxRefCollision) {
		t.Fatalf("err = %v", err)
	}
	if f.gateway.initCalls != 0 {
		t.Fatal("provider called despite collision")
	}
}

func TestReconcile_SuccessThenDuplicate(t *testing.T) {
	f := newFixture(paymentConfig(), processing(7, "GRG-7-1-abcdef01"))
	body, raw := payload(t, `{"event":"charge.success","status":"success","tx_ref":"GRG-7-1-abcdef01","reference":"APfxE2Ks"}`)

	result := f.svc.Reconcile(context.Background(), body, raw, "")
	if result.Outcome != domain.OutcomeApplied {
		t.Fatalf("outcome = %s (%s)", result.Outcome, result.Message)
	}
	stored := f.profiles.byAccount[7]
	if stored.Payment.Status != domain.PaymentPaid || stored.Verification.Status != domain.VerificationPaymentCompleted {
		t.Fatalf("states = %s/%s", stored.Payment.Status, stored.Verification.Status)
	}
	if got := stored.Payment.ExpiresAt.Sub(now); got != 30*24*time.Hour {
		t.Fatalf("expiry offset = %v", got)
	}
	if stored.Payment.ProviderRef != "APfxE2Ks" {
		t.Errorf("provider ref = %q", stored.Payment.ProviderRef)
	}

	f.svc.now = func() time.Time { return now.Add(time.Minute) }
	again := f.svc.Reconcile(context.Background(), body, raw, "")
	if again.Outcome != domain.OutcomeDuplicate {
		t.Fatalf("second outcome = %s", again.Outcome)
	}
	after := f.profiles.byAccount[7]
	if !after.Payment.PaidAt.Equal(*stored.Payment.PaidAt) || after.Version != stored.Version {
		t.Fatal("duplicate delivery changed the profile")
	}
	if len(f.webhooks.events) != 2 {
		t.Fatalf("recorded %d events", len(f.webhooks.events))
	}
}

func TestReconcile_Failure(t *testing.T) {
	f := newFixture(paymentConfig(), processing(7, "GRG-7-1-abcdef01"))
	body, raw := payload(t, `{"status":"failed","tx_ref":"GRG-7-1-abcdef01"}`)

	result := f.svc.Reconcile(context.Background(), body, raw, "")
	if result.Outcome != domain.OutcomeApplied || result.PaymentStatus != domain.PaymentFailed {
		t.Fatalf("result = %+v", result)
	}
	if f.profiles.byAccount[7].Verification.Status != domain.VerificationPendingPayment {
		t.Fatal("verification should wait for a retry")
	}
}

func TestReconcile_Unmatched(t *testing.T) {
	f := newFixture(paymentConfig(), processing(7, "GRG-7-1-abcdef01"))
	body, raw := payload(t, `{"status":"success","tx_ref":"GRG-unknown"}`)

	result := f.svc.Reconcile(context.Background(), body, raw, "")
	if result.Outcome != domain.OutcomeUnmatched {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	if f.profiles.saves != 0 {
		t.Fatal("unmatched delivery mutated a profile")
	}
	unresolved, _ := f.svc.UnresolvedWebhooks(context.Background(), 0)
	if len(unresolved) != 1 || unresolved[0].TxRef != "GRG-unknown" {
		t.Fatalf("unresolved = %+v", unresolved)
	}
	if err := f.svc.ResolveWebhook(context.Background(), unresolved[0].ID); err != nil {
		t.Fatal(err)
	}
	if unresolved, _ = f.svc.UnresolvedWebhooks(context.Background(), 0); len(unresolved) != 0 {
		t.Fatal("event still unresolved")
	}
}

func TestReconcile_Malformed(t *testing.T) {
	f := newFixture(paymentConfig())
	body, raw := payload(t, `{"status":"success","amount":500}`)

	result := f.svc.Reconcile(context.Background(), body, raw, "")
	if result.Outcome != domain.OutcomeMalformed {
		t.Fatalf("outcome = %s", result.Outcome)
	}
	if f.webhooks.events[0].Resolved {
		t.Fatal("malformed delivery recorded as resolved")
	}
}

func TestReconcile_PendingIgnored(t *testing.T) {
	f := newFixture(paymentConfig(), processing(7, "GRG-7-1-abcdef01"))
	body, raw := payload(t, `{"status":"pending","tx_ref":"GRG-7-1-abcdef01"}`)

	result := f.svc.Reconcile(context.Background(), body, raw, "")
	if result.Outcome != domain.OutcomeIgnored || result.PaymentStatus != domain.PaymentProcessing {
		t.Fatalf("result = %+v", result)
	}
}

func TestReconcile_Signature(t *testing.T) {
	cfg := paymentConfig()
	cfg.WebhookSecret = "whsec"
	f := newFixture(cfg, processing(7, "GRG-7-1-abcdef01"))
	body, raw := payload(t, `{"status":"success","tx_ref":"GRG-7-1-abcdef01"}`)

	bad := f.svc.Reconcile(context.Background(), body, raw, Sign("other", raw))
	if bad.Outcome != domain.OutcomeRejectedSignature {
		t.Fatalf("outcome = %s", bad.Outcome)
	}
	if f.profiles.byAccount[7].Payment.Status != domain.PaymentProcessing {
		t.Fatal("rejected delivery mutated state")
	}

	good := f.svc.Reconcile(context.Background(), body, raw, Sign("whsec", raw))
	if good.Outcome != domain.OutcomeApplied {
		t.Fatalf("outcome = %s", good.Outcome)
	}
	if !f.webhooks.events[1].SignatureValid {
		t.Fatal("valid signature not recorded")
	}
}

func TestReconcile_ConcurrentDeliveryBecomesDuplicate(t *testing.T) {
	f := newFixture(paymentConfig(), processing(7, "GRG-7-1-abcdef01"))
	f.profiles.beforeSave = func(fp *fakeProfiles) {
		// another delivery of the same event wins the race
		p := fp.byAccount[7]
		paid := now
		expires := now.Add(30 * 24 * time.Hour)
		p.Payment.Status = domain.PaymentPaid
		p.Payment.PaidAt = &paid
		p.Payment.ExpiresAt = &expires
		p.Verification.Status = domain.VerificationPaymentCompleted
		p.Version++
		fp.byAccount[7] = p
	}
	body, raw := payload(t, `{"status":"success","tx_ref":"GRG-7-1-abcdef01"}`)

	result := f.svc.Reconcile(context.Background(), body, raw, "")
	if result.Outcome != domain.OutcomeDuplicate {
		t.Fatalf("outcome = %s (%s)", result.Outcome, result.Message)
	}
	if f.profiles.byAccount[7].Version != 2 {
		t.Fatalf("version = %d, want the racing writer's 2", f.profiles.byAccount[7].Version)
	}
}

func TestExtractTxRef_Strategies(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		ref      string
		strategy string
	}{
		{"top level", `{"tx_ref":"A","reference":"B"}`, "A", "tx_ref"},
		{"trx alias", `{"trx_ref":"A"}`, "A", "trx_ref"},
		{"reference", `{"reference":"A"}`, "A", "reference"},
		{"nested data", `{"data":{"tx_ref":"A"}}`, "A", "data.tx_ref"},
		{"meta", `{"tx_ref":"","meta":{"tx_ref":"A"}}`, "A", "meta.tx_ref"},
		{"customization", `{"customization":{"tx_ref":"A"}}`, "A", "customization.tx_ref"},
		{"non-string skipped", `{"tx_ref":12,"data":{"tx_ref":"A"}}`, "A", "data.tx_ref"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := payload(t, tt.raw)
			ref, strategy, ok := ExtractTxRef(m)
			if !ok || ref != tt.ref || strategy != tt.strategy {
				t.Fatalf("got %q via %q (ok=%v)", ref, strategy, ok)
			}
		})
	}

	if _, _, ok := ExtractTxRef(map[string]any{"data": "tx_ref"}); ok {
		t.Fatal("extracted a reference from a payload without one")
	}
}

func TestClassifyPayload(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.ProviderSignal
	}{
		{`{"status":"success"}`, domain.SignalSuccess},
		{`{"status":"Successful"}`, domain.SignalSuccess},
		{`{"status":"completed"}`, domain.SignalSuccess},
		{`{"status":"paid"}`, domain.SignalSuccess},
		{`{"status":"failed"}`, domain.SignalFailure},
		{`{"status":"cancelled"}`, domain.SignalFailure},
		{`{"status":"expired"}`, domain.SignalFailure},
		{`{"status":"pending"}`, domain.SignalPending},
		{`{"data":{"status":"failure"}}`, domain.SignalFailure},
		{`{"event":"charge.success"}`, domain.SignalSuccess},
		{`{}`, domain.SignalPending},
	}
	for _, tt := range tests {
		m, _ := payload(t, tt.raw)
		if got := ClassifyPayload(m); got != tt.want {
			t.Errorf("%s: got %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestVerify(t *testing.T) {
	f := newFixture(paymentConfig(), processing(7, "GRG-7-1-abcdef01"))
	paidAt := now.Add(-10 * time.Minute)
	f.gateway.verifyTx = domain.ProviderTransaction{Status: "success", Reference: "APx", PaidAt: &paidAt}

	if _, err := f.svc.Verify(context.Background(), 7, "GRG-other"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign tx ref: err = %v", err)
	}

	snap, err := f.svc.Verify(context.Background(), 7, "GRG-7-1-abcdef01")
	if err != nil {
		t.Fatal(err)
	}
	if snap.PaymentStatus != domain.PaymentPaid || snap.VerificationStatus != domain.VerificationPaymentCompleted {
		t.Fatalf("snapshot = %+v", snap)
	}
	if !snap.PaidAt.Equal(paidAt) {
		t.Fatalf("paid at = %v", snap.PaidAt)
	}
}

func TestVerify_GatewayError(t *testing.T) {
	f := newFixture(paymentConfig(), processing(7, "GRG-7-1-abcdef01"))
	f.gateway.verifyErr = errors.New("connection reset")

	_, err := f.svc.Verify(context.Background(), 7, "GRG-7-1-abcdef01")
	if !errors.Is(err, domain.ErrGateway) {
		t.Fatalf("err = %v", err)
	}
	if f.profiles.byAccount[7].Payment.Status != domain.PaymentProcessing {
		t.Fatal("state changed after provider error")
	}
}

func TestExpireLapsed(t *testing.T) {
	stale := processing(7, "GRG-7-stale")
	old := now.Add(-48 * time.Hour)
	stale.Payment.InitiatedAt = &old

	fresh := processing(8, "GRG-8-fresh")

	lapsed := processing(9, "GRG-9-paid")
	paidAt := now.Add(-40 * 24 * time.Hour)
	expires := paidAt.Add(30 * 24 * time.Hour)
	approval := "GA-9"
	lapsed.Payment.Status = domain.PaymentPaid
	lapsed.Payment.PaidAt = &paidAt
	lapsed.Payment.ExpiresAt = &expires
	lapsed.Verification.Status = domain.VerificationApproved
	lapsed.Verification.ApprovalNumber = &approval

	f := newFixture(paymentConfig(), stale, fresh, lapsed)
	n, err := f.svc.ExpireLapsed(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expired %d, want 2", n)
	}
	if f.profiles.byAccount[7].Payment.Status != domain.PaymentExpired {
		t.Error("stale checkout not expired")
	}
	if f.profiles.byAccount[8].Payment.Status != domain.PaymentProcessing {
		t.Error("fresh checkout expired")
	}
	if got := f.profiles.byAccount[9]; got.Payment.Status != domain.PaymentExpired || got.Verification.Status != domain.VerificationSuspended {
		t.Errorf("lapsed subscription = %s/%s", got.Payment.Status, got.Verification.Status)
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(paymentConfig(), processing(7, "GRG-7-1-abcdef01"))
	snap, err := f.svc.Status(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if snap.TxRef != "GRG-7-1-abcdef01" || snap.PaymentStatus != domain.PaymentProcessing || snap.Amount != 500 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if _, err := f.svc.Status(context.Background(), 99); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing profile: err = %v", err)
	}
}

func basicAttempt(accountID uint, txRef string) domain.PaymentAttempt {
	return domain.PaymentAttempt{AccountID: accountID, TxRef: txRef, Plan: domain.PlanBasic, Amount: 500, Currency: "ETB", CreatedAt: now.Add(-time.Hour)}
}

func TestInitiate_RecordsAttempt(t *testing.T) {
	f := newFixture(paymentConfig(), uploadedProfile(7))

	session, err := f.svc.Initiate(context.Background(), 7, "premium")
	if err != nil {
		t.Fatal(err)
	}
	attempt, ok := f.attempts.byRef[session.TxRef]
	if !ok {
		t.Fatal("attempt not recorded")
	}
	if attempt.AccountID != 7 || attempt.Plan != domain.PlanPremium || attempt.Amount != 1000 || attempt.Currency != "ETB" {
		t.Fatalf("attempt = %+v", attempt)
	}
}

func TestInitiate_CollidesWithSupersededRef(t *testing.T) {
	// account 8 moved on to a newer checkout; its old reference stays taken
	f := newFixture(paymentConfig(), uploadedProfile(7), processing(8, "GRG-8-new"))
	f.attempts.byRef["GRG-8-old"] = basicAttempt(8, "GRG-8-old")
	f.svc.newTxRef = func(uint, time.Time) string { return "GRG-8-old" }

	_, err := f.svc.Initiate(context.Background(), 7, "basic")
	if !errors.Is(err, domain.ErrTxRefCollision) {
		t.Fatalf("err = %v", err)
	}
	if f.gateway.initCalls != 0 {
		t.Fatal("provider called despite collision")
	}
}

func TestReconcile_SupersededCheckout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(paymentConfig(), processing(7, "GRG-7-old"))
	f.attempts.byRef["GRG-7-old"] = basicAttempt(7, "GRG-7-old")

	body, raw := payload(t, `{"status":"failed","tx_ref":"GRG-7-old"}`)
	if got := f.svc.Reconcile(ctx, body, raw, ""); got.Outcome != domain.OutcomeApplied {
		t.Fatalf("failure outcome = %s", got.Outcome)
	}

	f.svc.newTxRef = func(uint, time.Time) string { return "GRG-7-new" }
	if _, err := f.svc.Initiate(ctx, 7, "premium"); err != nil {
		t.Fatal(err)
	}

	// a repeated failure for the old checkout leaves the new one alone
	body, raw = payload(t, `{"status":"failed","tx_ref":"GRG-7-old"}`)
	stale := f.svc.Reconcile(ctx, body, raw, "")
	if stale.Outcome != domain.OutcomeIgnored || stale.NeedsFollowUp() {
		t.Fatalf("stale failure = %+v", stale)
	}
	if f.profiles.byAccount[7].Payment.Status != domain.PaymentProcessing {
		t.Fatal("stale failure changed the new checkout")
	}

	body, raw = payload(t, `{"status":"success","tx_ref":"GRG-7-old","amount":"500.00","currency":"ETB","reference":"APold"}`)
	late := f.svc.Reconcile(ctx, body, raw, "")
	if late.Outcome != domain.OutcomeApplied || !late.FollowUp {
		t.Fatalf("late success = %+v", late)
	}
	stored := f.profiles.byAccount[7]
	if stored.Payment.Status != domain.PaymentPaid || stored.Verification.Status != domain.VerificationPaymentCompleted {
		t.Fatalf("states = %s/%s", stored.Payment.Status, stored.Verification.Status)
	}
	if *stored.Payment.TxRef != "GRG-7-old" || stored.Payment.Plan != domain.PlanBasic || stored.Payment.Amount != 500 {
		t.Fatalf("payment not bound to the paid attempt: %+v", stored.Payment)
	}
	if last := f.webhooks.events[len(f.webhooks.events)-1]; last.Resolved || last.Error == "" {
		t.Fatalf("late success not flagged: %+v", last)
	}

	// the newer checkout also went through: possible double charge
	body, raw = payload(t, `{"status":"success","tx_ref":"GRG-7-new","amount":1000,"currency":"ETB"}`)
	double := f.svc.Reconcile(ctx, body, raw, "")
	if double.Outcome != domain.OutcomeIgnored || !double.FollowUp {
		t.Fatalf("second charge = %+v", double)
	}
	if *f.profiles.byAccount[7].Payment.TxRef != "GRG-7-old" {
		t.Fatal("second charge rebound the payment")
	}
}

func TestReconcile_SupersededRefOfAnotherAccount(t *testing.T) {
	f := newFixture(paymentConfig(), processing(7, "GRG-7-1-abcdef01"))
	body, raw := payload(t, `{"status":"success","tx_ref":"GRG-9-gone"}`)

	result := f.svc.Reconcile(context.Background(), body, raw, "")
	if result.Outcome != domain.OutcomeUnmatched {
		t.Fatalf("outcome = %s", result.Outcome)
	}
}

func TestReconcile_AmountCheck(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     domain.WebhookOutcome
		followUp bool
	}{
		{name: "matching string amount", body: `{"status":"success","tx_ref":"GRG-7-1-abcdef01","amount":"500.00","currency":"ETB"}`, want: domain.OutcomeApplied},
		{name: "matching nested amount", body: `{"status":"success","data":{"tx_ref":"GRG-7-1-abcdef01","amount":500,"currency":"etb"}}`, want: domain.OutcomeApplied},
		{name: "no amount reported", body: `{"status":"success","tx_ref":"GRG-7-1-abcdef01"}`, want: domain.OutcomeApplied},
		{name: "short payment", body: `{"status":"success","tx_ref":"GRG-7-1-abcdef01","amount":"5.00","currency":"ETB"}`, want: domain.OutcomeIgnored, followUp: true},
		{name: "other currency", body: `{"status":"success","tx_ref":"GRG-7-1-abcdef01","amount":500,"currency":"USD"}`, want: domain.OutcomeIgnored, followUp: true},
		{name: "unreadable amount", body: `{"status":"success","tx_ref":"GRG-7-1-abcdef01","amount":"five hundred"}`, want: domain.OutcomeIgnored, followUp: true},
		{name: "failure is not compared", body: `{"status":"failed","tx_ref":"GRG-7-1-abcdef01","amount":"1.00"}`, want: domain.OutcomeApplied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(paymentConfig(), processing(7, "GRG-7-1-abcdef01"))
			body, raw := payload(t, tt.body)

			result := f.svc.Reconcile(context.Background(), body, raw, "")
			if result.Outcome != tt.want || result.FollowUp != tt.followUp {
				t.Fatalf("result = %+v", result)
			}
			if f.webhooks.events[0].Resolved == tt.followUp {
				t.Fatalf("resolved = %v", f.webhooks.events[0].Resolved)
			}
			if tt.followUp && f.profiles.byAccount[7].Payment.Status != domain.PaymentProcessing {
				t.Fatal("mismatched charge changed the payment")
			}
		})
	}
}

func TestVerify_AmountMismatch(t *testing.T) {
	f := newFixture(paymentConfig(), processing(7, "GRG-7-1-abcdef01"))
	f.gateway.verifyTx = domain.ProviderTransaction{Status: "success", Reference: "APfxE2Ks", Amount: 50, Currency: "ETB"}

	_, err := f.svc.Verify(context.Background(), 7, "GRG-7-1-abcdef01")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v", err)
	}
	if f.profiles.byAccount[7].Payment.Status != domain.PaymentProcessing {
		t.Fatal("mismatched charge confirmed the payment")
	}
}

func TestVerify_SupersededRef(t *testing.T) {
	p := processing(7, "GRG-7-new")
	p.Payment.Plan, p.Payment.Amount = domain.PlanPremium, 1000
	f := newFixture(paymentConfig(), p)
	f.attempts.byRef["GRG-7-old"] = basicAttempt(7, "GRG-7-old")
	f.gateway.verifyTx = domain.ProviderTransaction{Status: "success", Reference: "APold", Amount: 500, Currency: "ETB"}

	snap, err := f.svc.Verify(context.Background(), 7, "GRG-7-old")
	if err != nil {
		t.Fatal(err)
	}
	if snap.PaymentStatus != domain.PaymentPaid {
		t.Fatalf("snapshot = %+v", snap)
	}
	if stored := f.profiles.byAccount[7]; stored.Payment.Plan != domain.PlanBasic || *stored.Payment.TxRef != "GRG-7-old" {
		t.Fatalf("payment = %+v", stored.Payment)
	}

	if _, err := f.svc.Verify(context.Background(), 8, "GRG-7-old"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("other account err = %v", err)
	}
}
