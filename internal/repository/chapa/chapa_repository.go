package chapa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"garageBooking/domain"
)

type ChapaConfig struct {
	SecretKey   string
	BaseURL     string
	CallbackURL string
	ReturnURL   string
	Timeout     time.Duration
}

type ChapaRepository struct {
	chapaConfig ChapaConfig
	client      *http.Client
}

func NewChapaRepository(cfg ChapaConfig) *ChapaRepository {
	return &ChapaRepository{
		chapaConfig: cfg,
		client:      &http.Client{Timeout: cfg.Timeout},
	}
}

// Initialize opens a hosted checkout and returns its URL.
func (r *ChapaRepository) Initialize(ctx context.Context, req domain.CheckoutRequest) (string, error) {
	payload := domain.ChapaInitializeRequest{
		Amount:      strconv.FormatInt(req.Amount, 10),
		Currency:    req.Currency,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.Phone,
		TxRef:       req.TxRef,
		CallbackURL: r.chapaConfig.CallbackURL,
		ReturnURL:   r.chapaConfig.ReturnURL,
		Customization: domain.ChapaCustomization{
			Title:       req.Title,
			Description: req.Description,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var chapaResponse domain.ChapaInitializeResponse
	if err := r.do(ctx, http.MethodPost, "/v1/transaction/initialize", bytes.NewReader(body), &chapaResponse); err != nil {
		return "", err
	}
	if chapaResponse.Status != "success" || chapaResponse.Data == nil || chapaResponse.Data.CheckoutURL == "" {
		return "", fmt.Errorf("%w: initialize returned status %q: %v", domain.ErrGateway, chapaResponse.Status, chapaResponse.Message)
	}
	return chapaResponse.Data.CheckoutURL, nil
}

// Verify asks the provider for the current state of a transaction.
func (r *ChapaRepository) Verify(ctx context.Context, txRef string) (domain.ProviderTransaction, error) {
	var chapaResponse domain.ChapaVerifyResponse
	path := "/v1/transaction/verify/" + url.PathEscape(txRef)
	if err := r.do(ctx, http.MethodGet, path, nil, &chapaResponse); err != nil {
		return domain.ProviderTransaction{}, err
	}
	if chapaResponse.Data == nil {
		return domain.ProviderTransaction{}, fmt.Errorf("%w: verify returned no transaction: %v", domain.ErrGateway, chapaResponse.Message)
	}

	tx := chapaResponse.Data
	out := domain.ProviderTransaction{
		TxRef:     tx.TxRef,
		Reference: tx.Reference,
		Status:    tx.Status,
		Amount:    tx.Amount,
		Currency:  tx.Currency,
	}
	if out.TxRef == "" {
		out.TxRef = txRef
	}
	if tx.UpdatedAt != nil {
		out.PaidAt = tx.UpdatedAt
	} else if tx.CreatedAt != nil {
		out.PaidAt = tx.CreatedAt
	}
	return out, nil
}

func (r *ChapaRepository) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	endpoint := strings.TrimRight(r.chapaConfig.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Add("Authorization", "Bearer "+r.chapaConfig.SecretKey)
	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}

	res, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGateway, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", domain.ErrGateway, err)
	}
	if res.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s %s returned %d", domain.ErrGateway, method, path, res.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode response (%d): %v", domain.ErrGateway, res.StatusCode, err)
	}
	return nil
}
