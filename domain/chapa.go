package domain

import "time"

type ChapaInitializeRequest struct {
	Amount        string             `json:"amount"`
	Currency      string             `json:"currency"`
	Email         string             `json:"email,omitempty"`
	FirstName     string             `json:"first_name,omitempty"`
	LastName      string             `json:"last_name,omitempty"`
	PhoneNumber   string             `json:"phone_number,omitempty"`
	TxRef         string             `json:"tx_ref"`
	CallbackURL   string             `json:"callback_url,omitempty"`
	ReturnURL     string             `json:"return_url,omitempty"`
	Customization ChapaCustomization `json:"customization"`
}

type ChapaCustomization struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

type ChapaInitializeResponse struct {
	Message any    `json:"message"`
	Status  string `json:"status"`
	Data    *struct {
		CheckoutURL string `json:"checkout_url"`
	} `json:"data"`
}

type ChapaVerifyResponse struct {
	Message any               `json:"message"`
	Status  string            `json:"status"`
	Data    *ChapaTransaction `json:"data"`
}

type ChapaTransaction struct {
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email"`
	Currency  string     `json:"currency"`
	Amount    float64    `json:"amount"`
	Charge    float64    `json:"charge"`
	Mode      string     `json:"mode"`
	Method    string     `json:"method"`
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	Reference string     `json:"reference"`
	TxRef     string     `json:"tx_ref"`
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}
