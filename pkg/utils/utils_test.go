package utils

import (
	"errors"
	"testing"
	"time"

	"garageBooking/domain"
)

func TestPasswordProblems(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     int
	}{
		{name: "strong", password: "Garage2024", want: 0},
		{name: "too short", password: "Ab1", want: 1},
		{name: "no upper", password: "garage2024", want: 1},
		{name: "no digit or upper", password: "garagegarage", want: 2},
		{name: "empty", password: "", want: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PasswordProblems(tt.password)
			if len(got) != tt.want {
				t.Fatalf("expected %d problems, got %d (%v)", tt.want, len(got), got)
			}
		})
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Garage2024")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if !CheckPassword("Garage2024", string(hash)) {
		t.Fatal("expected password to match its hash")
	}
	if CheckPassword("garage2024", string(hash)) {
		t.Fatal("expected different password to be rejected")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	token, err := m.GenerateJWT("42", "garage_owner")
	if err != nil {
		t.Fatalf("GenerateJWT returned error: %v", err)
	}

	claims, err := m.ParseJWT(token)
	if err != nil {
		t.Fatalf("ParseJWT returned error: %v", err)
	}
	if claims.UserID != "42" || claims.Role != "garage_owner" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	other := NewJWTManager("another", time.Hour)
	if _, err := other.ParseJWT(token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}

func TestJWTExpired(t *testing.T) {
	m := NewJWTManager("secret", -time.Minute)
	token, err := m.GenerateJWT("1", "customer")
	if err != nil {
		t.Fatalf("GenerateJWT returned error: %v", err)
	}
	if _, err := m.ParseJWT(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestValidateStruct(t *testing.T) {
	type input struct {
		Email  string `json:"email" validate:"required,email"`
		Name   string `json:"name" validate:"required,min=2"`
		Rating int    `json:"rating" validate:"gte=1,lte=5"`
	}

	v := NewValidator()
	if err := ValidateStruct(v, input{Email: "a@example.com", Name: "Al", Rating: 3}); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}

	err := ValidateStruct(v, input{Email: "nope", Name: "A", Rating: 9})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *domain.ValidationError, got %T", err)
	}
	for _, field := range []string{"email", "name", "rating"} {
		if len(verr.Fields[field]) == 0 {
			t.Errorf("missing message for %s: %v", field, verr.Fields)
		}
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Error("validation error does not match domain.ErrValidation")
	}
}
