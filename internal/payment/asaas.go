package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Sandbox accounts reject card holders without address data; these fill the
// gaps when the base URL points at the sandbox.
const (
	sandboxPostalCode    = "30130010"
	sandboxAddressNumber = "100"
	sandboxPhone         = "31999999999"
)

type AsaasClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	now     func() time.Time
}

func NewAsaasClient(baseURL, apiKey string, hc *http.Client) *AsaasClient {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &AsaasClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		hc:      hc,
		now:     time.Now,
	}
}

func (c *AsaasClient) sandbox() bool {
	return strings.Contains(c.baseURL, "api-sandbox")
}

func (c *AsaasClient) CreateCustomer(ctx context.Context, in CustomerInput) (*Customer, error) {
	var customer Customer
	if err := c.do(ctx, http.MethodPost, "/customers", in, &customer); err != nil {
		return nil, fmt.Errorf("creating customer: %w", err)
	}
	if customer.ID == "" {
		return nil, errors.New("creating customer: empty id in response")
	}
	return &customer, nil
}

func (c *AsaasClient) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	var customer Customer
	if err := c.do(ctx, http.MethodGet, "/customers/"+url.PathEscape(id), nil, &customer); err != nil {
		return nil, fmt.Errorf("fetching customer %s: %w", id, err)
	}
	return &customer, nil
}

type holderInfo struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	CPFCnpj       string `json:"cpfCnpj"`
	PostalCode    string `json:"postalCode"`
	AddressNumber string `json:"addressNumber"`
	Phone         string `json:"phone"`
}

type chargeRequest struct {
	Customer             string      `json:"customer"`
	BillingType          BillingType `json:"billingType"`
	Value                float64     `json:"value"`
	Description          string      `json:"description"`
	DueDate              string      `json:"dueDate"`
	InstallmentCount     int         `json:"installmentCount,omitempty"`
	InstallmentValue     float64     `json:"installmentValue,omitempty"`
	CreditCard           *CreditCard `json:"creditCard,omitempty"`
	CreditCardHolderInfo *holderInfo `json:"creditCardHolderInfo,omitempty"`
	Capture              bool        `json:"capture,omitempty"`
	RemoteIP             string      `json:"remoteIp,omitempty"`
}

func (c *AsaasClient) CreatePixCharge(ctx context.Context, in PixCharge) (*Payment, error) {
	desc := in.Description
	if desc == "" {
		desc = "Pagamento PIX"
	}
	req := chargeRequest{
		Customer:    in.CustomerID,
		BillingType: BillingPix,
		Value:       in.Value.InexactFloat64(),
		Description: desc,
		DueDate:     c.today(),
	}
	return c.createCharge(ctx, req)
}

func (c *AsaasClient) PixQRCode(ctx context.Context, paymentID string) (*PixQRCode, error) {
	var qr PixQRCode
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID)+"/pixQrCode", nil, &qr); err != nil {
		return nil, fmt.Errorf("fetching pix qr code for %s: %w", paymentID, err)
	}
	return &qr, nil
}

var nonDigits = regexp.MustCompile(`\D`)

// CreateCardCharge charges the card in one call. Holder data comes from the
// customer record.
func (c *AsaasClient) CreateCardCharge(ctx context.Context, in CardCharge) (*Payment, error) {
	customer, err := c.GetCustomer(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}

	installments := in.Installments
	if installments < 1 {
		installments = 1
	}
	desc := in.Description
	if desc == "" {
		desc = "Pagamento Cartão"
	}

	card := in.Card
	card.Number = nonDigits.ReplaceAllString(card.Number, "")
	card.CCV = nonDigits.ReplaceAllString(card.CCV, "")

	holder := &holderInfo{
		Name:          card.HolderName,
		Email:         customer.Email,
		CPFCnpj:       customer.CPFCnpj,
		PostalCode:    customer.PostalCode,
		AddressNumber: customer.AddressNumber,
		Phone:         customer.MobilePhone,
	}
	if holder.Name == "" {
		holder.Name = customer.Name
	}
	if holder.Phone == "" {
		holder.Phone = customer.Phone
	}
	if c.sandbox() {
		holder.PostalCode = orDefault(holder.PostalCode, sandboxPostalCode)
		holder.AddressNumber = orDefault(holder.AddressNumber, sandboxAddressNumber)
		holder.Phone = orDefault(holder.Phone, sandboxPhone)
	}

	remoteIP := in.RemoteIP
	if remoteIP == "" {
		remoteIP = "127.0.0.1"
	}

	req := chargeRequest{
		Customer:             in.CustomerID,
		BillingType:          BillingCreditCard,
		Value:                in.Value.InexactFloat64(),
		Description:          desc,
		DueDate:              c.today(),
		InstallmentCount:     installments,
		InstallmentValue:     in.Value.Div(decimal.NewFromInt(int64(installments))).Round(2).InexactFloat64(),
		CreditCard:           &card,
		CreditCardHolderInfo: holder,
		Capture:              true,
		RemoteIP:             remoteIP,
	}
	return c.createCharge(ctx, req)
}

func (c *AsaasClient) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var p Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, &p); err != nil {
		return nil, fmt.Errorf("fetching payment %s: %w", paymentID, err)
	}
	return &p, nil
}

func (c *AsaasClient) createCharge(ctx context.Context, req chargeRequest) (*Payment, error) {
	var p Payment
	if err := c.do(ctx, http.MethodPost, "/payments", req, &p); err != nil {
		return nil, fmt.Errorf("creating %s charge: %w", req.BillingType, err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("creating %s charge: empty id in response", req.BillingType)
	}
	return &p, nil
}

func (c *AsaasClient) today() string {
	return c.now().Format("2006-01-02")
}

func (c *AsaasClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var reply struct {
		Errors []struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"errors"`
	}
	if json.Unmarshal(raw, &reply) == nil && len(reply.Errors) > 0 {
		apiErr.Code = reply.Errors[0].Code
		apiErr.Description = reply.Errors[0].Description
	} else {
		apiErr.Description = strings.TrimSpace(string(raw))
	}
	return apiErr
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// FriendlyCardError turns the common card rejections into a message the
// buyer can act on.
func FriendlyCardError(err error) string {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return "Falha no pagamento de cartão."
	}
	lower := strings.ToLower(apiErr.Description)
	switch {
	case apiErr.Code == "invalid_creditCard" && (strings.Contains(lower, "cep") || strings.Contains(lower, "postal")):
		return "Informe o CEP (postalCode) e o número do endereço do titular do cartão."
	case apiErr.Code == "invalid_billingType":
		return "Cartão de crédito não habilitado na sua conta Asaas. Habilite o método no painel."
	case apiErr.Description != "":
		return apiErr.Description
	default:
		return "Falha no pagamento de cartão."
	}
}
