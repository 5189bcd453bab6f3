package webhook

import (
	"testing"
	"time"

	paymentdomain "github.com/namevault/namevault/internal/payment/domain"
	"github.com/stretchr/testify/require"
)

func TestParseCaptureCompleted(t *testing.T) {
	payload := []byte(`{
		"id": "WH-58D329510W468432D-8HN650336L201105X",
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"create_time": "2025-01-15T10:13:41Z",
		"resource": {
			"id": "0JF852973C016714D",
			"amount": {"currency_code": "USD", "value": "499.00"},
			"supplementary_data": {"related_ids": {"order_id": "5O190127TN364715T"}}
		}
	}`)

	event, err := NewParser().Parse("PayPal", payload)
	require.NoError(t, err)
	require.Equal(t, "paypal", event.Provider)
	require.Equal(t, "WH-58D329510W468432D-8HN650336L201105X", event.ProviderEventID)
	require.Equal(t, paymentdomain.EventTypeCaptureCompleted, event.Type)
	require.True(t, event.OccurredAt.Equal(time.Date(2025, 1, 15, 10, 13, 41, 0, time.UTC)))

	require.NotNil(t, event.Capture)
	require.Nil(t, event.Subscription)
	require.Equal(t, "5O190127TN364715T", event.Capture.ProviderOrderID)
	require.Equal(t, "0JF852973C016714D", event.Capture.TransactionID)
	require.Equal(t, "499.00", event.Capture.Amount.StringFixed(2))
	require.Equal(t, "USD", event.Capture.Currency)
}

func TestParseSubscriptionActivated(t *testing.T) {
	payload := []byte(`{
		"id": "WH-77687562XN25889J8-8Y6T55435R66168T6",
		"event_type": "BILLING.SUBSCRIPTION.ACTIVATED",
		"create_time": "2025-01-15T10:13:41Z",
		"resource": {
			"id": "I-BW452GLLEP1G",
			"plan_id": "P-5ML4271244454362WXNWU5NQ",
			"custom_id": "1879500000000001",
			"subscriber": {"email_address": "buyer@example.com"},
			"billing_info": {"next_billing_time": "2026-01-15T10:00:00Z"}
		}
	}`)

	event, err := NewParser().Parse("paypal", payload)
	require.NoError(t, err)
	require.Equal(t, paymentdomain.EventTypeSubscriptionActivated, event.Type)
	require.NotNil(t, event.Subscription)
	require.Equal(t, "I-BW452GLLEP1G", event.Subscription.ProviderSubscriptionID)
	require.Equal(t, "buyer@example.com", event.Subscription.CustomerEmail)
	require.Equal(t, "1879500000000001", event.Subscription.DomainRef)
	require.NotNil(t, event.Subscription.NextBillingTime)
	require.True(t, event.Subscription.NextBillingTime.Equal(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)))
}

func TestParseSaleCompletedLegacyAmount(t *testing.T) {
	payload := []byte(`{
		"id": "WH-2WR32451HC0233532-67976317FL4543714",
		"event_type": "PAYMENT.SALE.COMPLETED",
		"create_time": "2025-02-01T06:21:19Z",
		"resource": {
			"id": "80021663DE681814L",
			"amount": {"total": "29.00", "currency": "usd"},
			"billing_agreement_id": "I-BW452GLLEP1G"
		}
	}`)

	event, err := NewParser().Parse("paypal", payload)
	require.NoError(t, err)
	require.Equal(t, paymentdomain.EventTypeSubscriptionPayment, event.Type)
	require.Equal(t, "I-BW452GLLEP1G", event.Subscription.ProviderSubscriptionID)
	require.Equal(t, "80021663DE681814L", event.Subscription.TransactionID)
	require.Equal(t, "29.00", event.Subscription.Amount.StringFixed(2))
	require.Equal(t, "USD", event.Subscription.Currency)
}

func TestParseIgnoresUnhandledEventTypes(t *testing.T) {
	payload := []byte(`{
		"id": "WH-123",
		"event_type": "CUSTOMER.DISPUTE.CREATED",
		"create_time": "2025-01-15T10:13:41Z",
		"resource": {"id": "x"}
	}`)

	_, err := NewParser().Parse("paypal", payload)
	require.ErrorIs(t, err, paymentdomain.ErrEventIgnored)
}

func TestParseRejectsMalformedPayloads(t *testing.T) {
	p := NewParser()

	_, err := p.Parse("", []byte(`{}`))
	require.ErrorIs(t, err, paymentdomain.ErrInvalidProvider)

	_, err = p.Parse("paypal", []byte(`{broken`))
	require.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)

	// Envelope missing the event id.
	_, err = p.Parse("paypal", []byte(`{
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"create_time": "2025-01-15T10:13:41Z",
		"resource": {"id": "x"}
	}`))
	require.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)

	// Capture without an order reference fails event validation.
	_, err = p.Parse("paypal", []byte(`{
		"id": "WH-1",
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"create_time": "2025-01-15T10:13:41Z",
		"resource": {"id": "CAP-1", "amount": {"currency_code": "USD", "value": "10.00"}}
	}`))
	require.ErrorIs(t, err, paymentdomain.ErrInvalidEvent)

	// Unparseable amount.
	_, err = p.Parse("paypal", []byte(`{
		"id": "WH-2",
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"create_time": "2025-01-15T10:13:41Z",
		"resource": {
			"id": "CAP-2",
			"amount": {"currency_code": "USD", "value": "ten"},
			"supplementary_data": {"related_ids": {"order_id": "ORD-2"}}
		}
	}`))
	require.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)
}
