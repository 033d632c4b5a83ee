//go:build !integration

package chapa

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"garageBooking/domain"
)

func newTestRepo(t *testing.T, h http.HandlerFunc) *ChapaRepository {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewChapaRepository(ChapaConfig{
		SecretKey:   "CHASECK_TEST-abc",
		BaseURL:     srv.URL + "/",
		CallbackURL: "https://api.example.com/api/v1/payments/callback",
		ReturnURL:   "https://app.example.com/payment/done",
		Timeout:     2 * time.Second,
	})
}

func TestInitialize(t *testing.T) {
	repo := newTestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/transaction/initialize" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer CHASECK_TEST-abc" {
			t.Errorf("authorization = %q", got)
		}
		var body domain.ChapaInitializeRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Amount != "500" || body.TxRef != "GRG-7-1-abcd" || body.CallbackURL == "" {
			t.Errorf("payload = %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Hosted Link","status":"success","data":{"checkout_url":"https://checkout.chapa.co/checkout/payment/xyz"}}`))
	})

	got, err := repo.Initialize(context.Background(), domain.CheckoutRequest{
		TxRef:    "GRG-7-1-abcd",
		Amount:   500,
		Currency: "ETB",
		Email:    "owner@example.com",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://checkout.chapa.co/checkout/payment/xyz" {
		t.Fatalf("checkout url = %q", got)
	}
}

func TestInitialize_ProviderRefusal(t *testing.T) {
	repo := newTestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":{"email":["The email must be a valid email address."]},"status":"failed","data":null}`))
	})

	_, err := repo.Initialize(context.Background(), domain.CheckoutRequest{TxRef: "x", Amount: 1, Currency: "ETB"})
	if !errors.Is(err, domain.ErrGateway) {
		t.Fatalf("err = %v", err)
	}
}

func TestInitialize_ServerError(t *testing.T) {
	repo := newTestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := repo.Initialize(context.Background(), domain.CheckoutRequest{TxRef: "x", Amount: 1, Currency: "ETB"})
	if !errors.Is(err, domain.ErrGateway) {
		t.Fatalf("err = %v", err)
	}
}

func TestInitialize_Timeout(t *testing.T) {
	repo := newTestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := repo.Initialize(ctx, domain.CheckoutRequest{TxRef: "x", Amount: 1, Currency: "ETB"})
	if !errors.Is(err, domain.ErrGateway) {
		t.Fatalf("err = %v", err)
	}
}

func TestVerify(t *testing.T) {
	repo := newTestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transaction/verify/GRG-7-1-abcd" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"message":"Payment details","status":"success","data":{
			"currency":"ETB","amount":500,"status":"success","reference":"APfxE2Ks",
			"tx_ref":"GRG-7-1-abcd","created_at":"2026-03-01T10:00:00Z","updated_at":"2026-03-01T10:01:00Z"}}`))
	})

	tx, err := repo.Verify(context.Background(), "GRG-7-1-abcd")
	if err != nil {
		t.Fatal(err)
	}
	if tx.Status != "success" || tx.Reference != "APfxE2Ks" || tx.Amount != 500 {
		t.Fatalf("tx = %+v", tx)
	}
	want := time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC)
	if tx.PaidAt == nil || !tx.PaidAt.Equal(want) {
		t.Fatalf("paid at = %v", tx.PaidAt)
	}
}

func TestVerify_UnknownTransaction(t *testing.T) {
	repo := newTestRepo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Invalid transaction or Transaction not found","status":"failed","data":null}`))
	})

	_, err := repo.Verify(context.Background(), "nope")
	if !errors.Is(err, domain.ErrGateway) {
		t.Fatalf("err = %v", err)
	}
}
