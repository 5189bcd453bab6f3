// Package webhook turns raw provider webhook deliveries into canonical
// payment events. Event types the platform does not act on are reported as
// ErrEventIgnored so the transport layer can acknowledge them.
package webhook

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	paymentdomain "github.com/namevault/namevault/internal/payment/domain"
	"github.com/shopspring/decimal"
)

type Parser struct {
	validate *validator.Validate
}

func NewParser() *Parser {
	return &Parser{validate: validator.New(validator.WithRequiredStructEnabled())}
}

type wireAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
	// Legacy sale payloads use total/currency instead.
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type wireEvent struct {
	ID         string          `json:"id" validate:"required"`
	EventType  string          `json:"event_type" validate:"required"`
	CreateTime string          `json:"create_time" validate:"required"`
	Resource   json.RawMessage `json:"resource" validate:"required"`
}

type wireCaptureResource struct {
	ID                string     `json:"id" validate:"required"`
	Amount            wireAmount `json:"amount"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

type wireSubscriptionResource struct {
	ID         string `json:"id" validate:"required"`
	PlanID     string `json:"plan_id"`
	CustomID   string `json:"custom_id"`
	Subscriber struct {
		EmailAddress string `json:"email_address"`
	} `json:"subscriber"`
	BillingInfo struct {
		NextBillingTime string `json:"next_billing_time"`
	} `json:"billing_info"`
	StatusChangeNote string `json:"status_change_note"`
}

type wireSaleResource struct {
	ID                 string     `json:"id" validate:"required"`
	Amount             wireAmount `json:"amount"`
	BillingAgreementID string     `json:"billing_agreement_id" validate:"required"`
}

func (p *Parser) Parse(provider string, payload []byte) (*paymentdomain.PaymentEvent, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return nil, paymentdomain.ErrInvalidProvider
	}
	if !json.Valid(payload) {
		return nil, paymentdomain.ErrInvalidPayload
	}

	var envelope wireEvent
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if err := p.validate.Struct(envelope); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	occurredAt, err := time.Parse(time.RFC3339, envelope.CreateTime)
	if err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	event := &paymentdomain.PaymentEvent{
		Provider:        provider,
		ProviderEventID: envelope.ID,
		OccurredAt:      occurredAt.UTC(),
		RawPayload:      payload,
	}

	switch envelope.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		return p.parseCapture(event, envelope.Resource)
	case "BILLING.SUBSCRIPTION.ACTIVATED":
		return p.parseSubscription(event, envelope.Resource, paymentdomain.EventTypeSubscriptionActivated)
	case "PAYMENT.SALE.COMPLETED":
		return p.parseSale(event, envelope.Resource)
	case "BILLING.SUBSCRIPTION.PAYMENT.FAILED":
		return p.parseSubscription(event, envelope.Resource, paymentdomain.EventTypePaymentFailed)
	case "BILLING.SUBSCRIPTION.CANCELLED":
		return p.parseSubscription(event, envelope.Resource, paymentdomain.EventTypeSubscriptionCancelled)
	case "BILLING.SUBSCRIPTION.SUSPENDED":
		return p.parseSubscription(event, envelope.Resource, paymentdomain.EventTypeSubscriptionSuspended)
	default:
		return nil, paymentdomain.ErrEventIgnored
	}
}

func (p *Parser) parseCapture(event *paymentdomain.PaymentEvent, raw json.RawMessage) (*paymentdomain.PaymentEvent, error) {
	var resource wireCaptureResource
	if err := json.Unmarshal(raw, &resource); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if err := p.validate.Struct(resource); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	amount, currency, err := parseAmount(resource.Amount)
	if err != nil {
		return nil, err
	}

	event.Type = paymentdomain.EventTypeCaptureCompleted
	event.Capture = &paymentdomain.CaptureData{
		ProviderOrderID: resource.SupplementaryData.RelatedIDs.OrderID,
		TransactionID:   resource.ID,
		Amount:          amount,
		Currency:        currency,
	}
	return event, event.Validate()
}

func (p *Parser) parseSubscription(event *paymentdomain.PaymentEvent, raw json.RawMessage, eventType string) (*paymentdomain.PaymentEvent, error) {
	var resource wireSubscriptionResource
	if err := json.Unmarshal(raw, &resource); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if err := p.validate.Struct(resource); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	data := &paymentdomain.SubscriptionData{
		ProviderSubscriptionID: resource.ID,
		PlanCode:               resource.PlanID,
		CustomerEmail:          strings.TrimSpace(resource.Subscriber.EmailAddress),
		DomainRef:              strings.TrimSpace(resource.CustomID),
		Reason:                 strings.TrimSpace(resource.StatusChangeNote),
	}
	if raw := strings.TrimSpace(resource.BillingInfo.NextBillingTime); raw != "" {
		if next, err := time.Parse(time.RFC3339, raw); err == nil {
			next = next.UTC()
			data.NextBillingTime = &next
		}
	}

	event.Type = eventType
	event.Subscription = data
	return event, event.Validate()
}

func (p *Parser) parseSale(event *paymentdomain.PaymentEvent, raw json.RawMessage) (*paymentdomain.PaymentEvent, error) {
	var resource wireSaleResource
	if err := json.Unmarshal(raw, &resource); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if err := p.validate.Struct(resource); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	amount, currency, err := parseAmount(resource.Amount)
	if err != nil {
		return nil, err
	}

	event.Type = paymentdomain.EventTypeSubscriptionPayment
	event.Subscription = &paymentdomain.SubscriptionData{
		ProviderSubscriptionID: resource.BillingAgreementID,
		TransactionID:          resource.ID,
		Amount:                 amount,
		Currency:               currency,
	}
	return event, event.Validate()
}

func parseAmount(raw wireAmount) (decimal.Decimal, string, error) {
	value := raw.Value
	currency := raw.CurrencyCode
	if value == "" {
		value = raw.Total
		currency = raw.Currency
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, "", paymentdomain.ErrInvalidAmount
	}
	return amount, strings.ToUpper(strings.TrimSpace(currency)), nil
}
