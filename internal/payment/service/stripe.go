package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"findash/pkg/httpx"
)

var (
	ErrNoInvoice       = errors.New("No invoices found for subscription")
	ErrNoPaymentIntent = errors.New("No payment intent found for subscription")
)

// Gateway is the payment processor the service talks to.
type Gateway interface {
	Name() string
	CancelSubscription(ctx context.Context, subID string) (status string, err error)
	RefundLatest(ctx context.Context, subID string) (refundID string, amount decimal.Decimal, err error)
	CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, description string) (string, error)
	CreateCheckoutSession(ctx context.Context, plan string, amount decimal.Decimal, customer string) (id, url string, err error)
}

// StripeGateway speaks the form-encoded Stripe REST API in test mode.
type StripeGateway struct {
	http    *httpx.Client
	baseURL string
}

func NewStripeGateway(client *httpx.Client, baseURL string) *StripeGateway {
	return &StripeGateway{http: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) CancelSubscription(ctx context.Context, subID string) (string, error) {
	data, err := g.http.Do(ctx, http.MethodDelete, g.baseURL+"/v1/subscriptions/"+url.PathEscape(subID), nil, nil)
	if err != nil {
		return "", errors.Wrap(err, "stripe cancel")
	}
	var sub struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(data, &sub); err != nil {
		return "", errors.Wrap(err, "decode subscription")
	}
	return sub.Status, nil
}

type invoiceList struct {
	Data []struct {
		ID            string          `json:"id"`
		PaymentIntent json.RawMessage `json:"payment_intent"`
	} `json:"data"`
}

// paymentIntentID accepts both the bare id and the expanded object.
func paymentIntentID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}

func (g *StripeGateway) RefundLatest(ctx context.Context, subID string) (string, decimal.Decimal, error) {
	q := url.Values{}
	q.Set("subscription", subID)
	q.Set("limit", "1")
	q.Add("expand[]", "data.payment_intent")

	data, err := g.http.Do(ctx, http.MethodGet, g.baseURL+"/v1/invoices?"+q.Encode(), nil, nil)
	if err != nil {
		return "", decimal.Zero, errors.Wrap(err, "stripe invoices")
	}
	var invoices invoiceList
	if err := json.Unmarshal(data, &invoices); err != nil {
		return "", decimal.Zero, errors.Wrap(err, "decode invoices")
	}
	if len(invoices.Data) == 0 {
		return "", decimal.Zero, ErrNoInvoice
	}
	pi := paymentIntentID(invoices.Data[0].PaymentIntent)
	if pi == "" {
		return "", decimal.Zero, ErrNoPaymentIntent
	}

	var refund struct {
		ID     string `json:"id"`
		Amount int64  `json:"amount"`
	}
	if err := g.postForm(ctx, "/v1/refunds", url.Values{"payment_intent": []string{pi}}, &refund); err != nil {
		return "", decimal.Zero, errors.Wrap(err, "stripe refund")
	}
	// amounts are in cents
	return refund.ID, decimal.New(refund.Amount, -2), nil
}

func cents(amount decimal.Decimal) string {
	return amount.Shift(2).Round(0).String()
}

func (g *StripeGateway) postForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	data, err := g.http.Do(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(form.Encode()),
		http.Header{"Content-Type": []string{"application/x-www-form-urlencoded"}})
	if err != nil {
		return err
	}
	return errors.Wrap(json.Unmarshal(data, out), "decode response")
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, description string) (string, error) {
	form := url.Values{}
	form.Set("amount", cents(amount))
	form.Set("currency", "usd")
	form.Add("payment_method_types[]", "card")
	form.Set("description", description)

	var pi struct {
		ID string `json:"id"`
	}
	if err := g.postForm(ctx, "/v1/payment_intents", form, &pi); err != nil {
		return "", errors.Wrap(err, "stripe payment intent")
	}
	return pi.ID, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, plan string, amount decimal.Decimal, customer string) (string, string, error) {
	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("success_url", "https://example.com/success")
	form.Set("cancel_url", "https://example.com/cancel")
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", "usd")
	form.Set("line_items[0][price_data][unit_amount]", cents(amount))
	form.Set("line_items[0][price_data][recurring][interval]", "month")
	form.Set("line_items[0][price_data][product_data][name]", plan)
	if customer != "" {
		form.Set("customer", customer)
	}

	var cs struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := g.postForm(ctx, "/v1/checkout/sessions", form, &cs); err != nil {
		return "", "", errors.Wrap(err, "stripe checkout session")
	}
	return cs.ID, cs.URL, nil
}
