package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"donation-gate/internal/domain"
)

const DefaultMercadoPagoURL = "https://api.mercadopago.com"

type mercadoPago struct {
	baseURL     string
	accessToken string
	client      *http.Client
}

// NewMercadoPago returns a gateway backed by the Mercado Pago REST API.
func NewMercadoPago(baseURL, accessToken string, timeout time.Duration) PaymentGateway {
	if baseURL == "" {
		baseURL = DefaultMercadoPagoURL
	}
	return &mercadoPago{
		baseURL:     baseURL,
		accessToken: accessToken,
		client:      &http.Client{Timeout: timeout},
	}
}

type mpItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	CurrencyID string  `json:"currency_id"`
	UnitPrice  float64 `json:"unit_price"`
}

type mpPaymentType struct {
	ID string `json:"id"`
}

type mpPreferenceRequest struct {
	Items          []mpItem `json:"items"`
	PaymentMethods struct {
		ExcludedPaymentTypes []mpPaymentType `json:"excluded_payment_types"`
	} `json:"payment_methods"`
	BackURLs struct {
		Success string `json:"success"`
		Failure string `json:"failure"`
		Pending string `json:"pending"`
	} `json:"back_urls"`
	AutoReturn        string `json:"auto_return"`
	NotificationURL   string `json:"notification_url"`
	ExternalReference string `json:"external_reference"`
}

type mpPreference struct {
	ID        string `json:"id"`
	InitPoint string `json:"init_point"`
}

type mpPayment struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	ExternalReference string      `json:"external_reference"`
	PreferenceID      string      `json:"preference_id"`
}

type mpSearch struct {
	Results []mpPayment `json:"results"`
}

func (p mpPayment) transaction() Transaction {
	return Transaction{
		PaymentID:   p.ID.String(),
		ReferenceID: p.PreferenceID,
		IntentID:    p.ExternalReference,
		Status:      Status(p.Status),
	}
}

func (mp *mercadoPago) OpenCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	var body mpPreferenceRequest
	body.Items = []mpItem{{
		Title:      req.Title,
		Quantity:   1,
		CurrencyID: req.Currency,
		UnitPrice:  req.Amount.InexactFloat64(),
	}}
	body.PaymentMethods.ExcludedPaymentTypes = []mpPaymentType{{ID: "atm"}}
	body.BackURLs.Success = req.Callbacks.Success
	body.BackURLs.Failure = req.Callbacks.Failure
	body.BackURLs.Pending = req.Callbacks.Pending
	body.AutoReturn = "approved"
	body.NotificationURL = req.Callbacks.Notification
	body.ExternalReference = req.IntentID.String()

	var pref mpPreference
	if err := mp.do(ctx, http.MethodPost, "/checkout/preferences", body, &pref); err != nil {
		return nil, err
	}
	if pref.ID == "" || pref.InitPoint == "" {
		return nil, fmt.Errorf("%w: preference response missing id or init_point", domain.ErrGatewayUnavailable)
	}
	return &Charge{ReferenceID: pref.ID, RedirectURL: pref.InitPoint}, nil
}

func (mp *mercadoPago) TransactionStatus(ctx context.Context, paymentID string) (*Transaction, error) {
	var p mpPayment
	if err := mp.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &p); err != nil {
		return nil, err
	}
	txn := p.transaction()
	return &txn, nil
}

func (mp *mercadoPago) SearchTransactions(ctx context.Context, intentID uuid.UUID) ([]Transaction, error) {
	q := url.Values{}
	q.Set("external_reference", intentID.String())
	q.Set("sort", "date_created")
	q.Set("criteria", "desc")

	var res mpSearch
	if err := mp.do(ctx, http.MethodGet, "/v1/payments/search?"+q.Encode(), nil, &res); err != nil {
		return nil, err
	}
	out := make([]Transaction, 0, len(res.Results))
	for _, p := range res.Results {
		out = append(out, p.transaction())
	}
	return out, nil
}

func (mp *mercadoPago) do(ctx context.Context, method, path string, in, out any) error {
	var payload io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", domain.ErrGatewayRejected, err)
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, mp.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domain.ErrGatewayRejected, err)
	}
	req.Header.Set("Authorization", "Bearer "+mp.accessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := mp.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Bad credentials are retried, not acknowledged.
		return fmt.Errorf("%w: %s %s returned %d", domain.ErrGatewayUnavailable, method, path, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: %s %s returned %d", domain.ErrGatewayRejected, method, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrGatewayUnavailable, err)
	}
	return nil
}
