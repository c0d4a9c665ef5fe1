// Package payment talks to the Asaas payment gateway.
package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

type BillingType string

const (
	BillingPix        BillingType = "PIX"
	BillingCreditCard BillingType = "CREDIT_CARD"
)

// Provider is the gateway contract the HTTP layer depends on.
type Provider interface {
	CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error)
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	CreatePixCharge(ctx context.Context, in PixCharge) (*Payment, error)
	PixQRCode(ctx context.Context, paymentID string) (*PixQRCode, error)
	CreateCardCharge(ctx context.Context, in CardCharge) (*Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
}

type CustomerInput struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	CPFCnpj     string `json:"cpfCnpj"`
	MobilePhone string `json:"mobilePhone,omitempty"`
}

type Customer struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	CPFCnpj       string `json:"cpfCnpj"`
	Phone         string `json:"phone"`
	MobilePhone   string `json:"mobilePhone"`
	PostalCode    string `json:"postalCode"`
	AddressNumber string `json:"addressNumber"`
}

type Payment struct {
	ID          string          `json:"id"`
	Customer    string          `json:"customer"`
	Status      string          `json:"status"`
	BillingType BillingType     `json:"billingType"`
	Value       decimal.Decimal `json:"value"`
	Description string          `json:"description"`
}

type PixQRCode struct {
	EncodedImage string `json:"encodedImage"`
	Payload      string `json:"payload"`
}

// DataURI renders the QR image for an <img> tag.
func (q PixQRCode) DataURI() string {
	if q.EncodedImage == "" {
		return ""
	}
	return "data:image/png;base64," + q.EncodedImage
}

type PixCharge struct {
	CustomerID  string
	Value       decimal.Decimal
	Description string
}

type CreditCard struct {
	HolderName  string `json:"holderName"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
	CCV         string `json:"ccv"`
}

func (c CreditCard) Complete() bool {
	return c.HolderName != "" && c.Number != "" && c.ExpiryMonth != "" && c.ExpiryYear != "" && c.CCV != ""
}

type CardCharge struct {
	CustomerID   string
	Value        decimal.Decimal
	Description  string
	Installments int
	Card         CreditCard
	RemoteIP     string
}

// APIError is a non-2xx answer from Asaas.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("asaas: status %d", e.StatusCode)
	}
	return fmt.Sprintf("asaas: status %d: %s", e.StatusCode, e.Description)
}
