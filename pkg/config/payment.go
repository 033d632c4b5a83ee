package config

import (
	"errors"
	"fmt"
	"time"
)

// KnownPlans lists the subscription plans a deployment may price.
var KnownPlans = []string{"basic", "premium", "yearly"}

var defaultPlanPrices = map[string]int64{
	"basic":   500,
	"premium": 1000,
	"yearly":  5000,
}

// PaymentConfig is built once at startup and handed to the payment adapter.
type PaymentConfig struct {
	Provider      string
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	CallbackURL   string
	ReturnURL     string
	Currency      string
	Plans         map[string]int64
	Timeout       time.Duration
	ProcessingTTL time.Duration
}

func (p PaymentConfig) Validate() error {
	if p.SecretKey == "" {
		return errors.New("missing payment provider secret key")
	}

	if p.BaseURL == "" {
		return errors.New("missing payment provider base url")
	}

	if p.Currency == "" {
		return errors.New("missing payment currency")
	}

	if p.Timeout <= 0 {
		return errors.New("payment provider timeout must be positive")
	}

	for _, plan := range KnownPlans {
		amount, ok := p.Plans[plan]
		if !ok {
			return fmt.Errorf("missing price for plan %s", plan)
		}
		if amount <= 0 {
			return fmt.Errorf("price for plan %s must be positive", plan)
		}
	}

	for plan := range p.Plans {
		if !isKnownPlan(plan) {
			return fmt.Errorf("unknown plan %s", plan)
		}
	}

	return nil
}

// PlanAmount returns the configured price for plan.
func (p PaymentConfig) PlanAmount(plan string) (int64, bool) {
	amount, ok := p.Plans[plan]
	return amount, ok
}

func isKnownPlan(plan string) bool {
	for _, known := range KnownPlans {
		if known == plan {
			return true
		}
	}

	return false
}
