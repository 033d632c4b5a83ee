package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"garageBooking/domain"
)

type refStrategy struct {
	name string
	path []string
}

// Providers and their test consoles put the merchant reference in different
// places. The first non-empty string wins.
var txRefStrategies = []refStrategy{
	{name: "tx_ref", path: []string{"tx_ref"}},
	{name: "trx_ref", path: []string{"trx_ref"}},
	{name: "reference", path: []string{"reference"}},
	{name: "data.tx_ref", path: []string{"data", "tx_ref"}},
	{name: "meta.tx_ref", path: []string{"meta", "tx_ref"}},
	{name: "customization.tx_ref", path: []string{"customization", "tx_ref"}},
}

// ExtractTxRef returns the transaction reference and the strategy that found it.
func ExtractTxRef(payload map[string]any) (ref, strategy string, ok bool) {
	for _, s := range txRefStrategies {
		if v, found := lookupString(payload, s.path...); found {
			return v, s.name, true
		}
	}
	return "", "", false
}

var (
	successStatuses = map[string]bool{"success": true, "successful": true, "completed": true, "paid": true}
	failureStatuses = map[string]bool{"failed": true, "failure": true, "cancelled": true, "expired": true}
)

// ClassifyStatus maps a provider status string onto a signal.
func ClassifyStatus(status string) domain.ProviderSignal {
	s := strings.ToLower(strings.TrimSpace(status))
	switch {
	case successStatuses[s]:
		return domain.SignalSuccess
	case failureStatuses[s]:
		return domain.SignalFailure
	}
	return domain.SignalPending
}

// ClassifyPayload reads status, then data.status, then the event suffix
// ("charge.success").
func ClassifyPayload(payload map[string]any) domain.ProviderSignal {
	if status, ok := lookupString(payload, "status"); ok {
		return ClassifyStatus(status)
	}
	if status, ok := lookupString(payload, "data", "status"); ok {
		return ClassifyStatus(status)
	}
	if event, ok := lookupString(payload, "event"); ok {
		if i := strings.LastIndex(event, "."); i >= 0 {
			event = event[i+1:]
		}
		return ClassifyStatus(event)
	}
	return domain.SignalPending
}

func providerReference(payload map[string]any, txRef string) string {
	for _, path := range [][]string{{"reference"}, {"data", "reference"}} {
		if v, ok := lookupString(payload, path...); ok && v != txRef {
			return v
		}
	}
	return ""
}

// reportedAmount is what the provider says it charged.
type reportedAmount struct {
	amount   float64
	currency string
}

func (r reportedAmount) String() string {
	return fmt.Sprintf("%.2f %s", r.amount, r.currency)
}

// amountOf reads amount and currency from the payload or its data object.
// An unreadable amount is kept as -1 so it never matches a price.
func amountOf(payload map[string]any) *reportedAmount {
	for _, prefix := range [][]string{nil, {"data"}} {
		raw, ok := lookupValue(payload, append(prefix, "amount")...)
		if !ok {
			continue
		}
		r := &reportedAmount{amount: -1}
		switch v := raw.(type) {
		case float64:
			r.amount = v
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				r.amount = f
			}
		}
		r.currency, _ = lookupString(payload, append(prefix, "currency")...)
		return r
	}
	return nil
}

// checkAmount compares a reported charge with the checkout price. A nil
// report passes; an empty reported currency is not compared.
func checkAmount(amount int64, currency string, r *reportedAmount) error {
	if r == nil {
		return nil
	}
	if math.Abs(r.amount-float64(amount)) > 0.005 ||
		(r.currency != "" && !strings.EqualFold(r.currency, currency)) {
		return fmt.Errorf("%w: provider reported %s, checkout was %d %s", errAmountMismatch, r, amount, currency)
	}
	return nil
}

// ValidSignature checks a hex HMAC-SHA256 of the raw body.
func ValidSignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign is the counterpart of ValidSignature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func lookupValue(m map[string]any, path ...string) (any, bool) {
	var cur any = m
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

func lookupString(m map[string]any, path ...string) (string, bool) {
	cur, ok := lookupValue(m, path...)
	if !ok {
		return "", false
	}
	s, ok := cur.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return strings.TrimSpace(s), true
}
