package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"tutorbook/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test_secret"

func sign(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts.Unix(), payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func newTestGateway(t *testing.T, backendURL string) *StripeGateway {
	t.Helper()
	cfg := StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: testWebhookSecret,
		SuccessURL:    "https://tutorbook.test/success",
		CancelURL:     "https://tutorbook.test/cancel",
	}
	if backendURL != "" {
		backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
			URL:               stripe.String(backendURL),
			MaxNetworkRetries: stripe.Int64(0),
		})
		cfg.Backends = &stripe.Backends{API: backend, Connect: backend, Uploads: backend}
	}
	return NewStripeGateway(cfg, zap.NewNop())
}

const checkoutCompletedJSON = `{
  "id": "evt_1",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {"object": {
    "id": "cs_test_1",
    "object": "checkout.session",
    "payment_status": "paid",
    "payment_intent": "PAY1",
    "amount_total": 4500,
    "currency": "gbp",
    "metadata": {"bookingId": "BK1", "buyerId": "U1", "slotId": "S1"}
  }}
}`

func TestParseEvent_CheckoutCompleted(t *testing.T) {
	g := newTestGateway(t, "")
	payload := []byte(checkoutCompletedJSON)

	ev, err := g.ParseEvent(payload, sign(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)

	cc, ok := ev.(CheckoutCompleted)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, CheckoutCompleted{
		EventID:   "evt_1",
		BookingID: "BK1",
		BuyerID:   "U1",
		SlotID:    "S1",
		PaymentID: "PAY1",
		Amount:    4500,
		Currency:  "gbp",
	}, cc)
	assert.Equal(t, "evt_1", EventID(ev))
}

func TestParseEvent_ChargeRefunded(t *testing.T) {
	g := newTestGateway(t, "")
	payload := []byte(`{"id":"evt_2","object":"event","type":"charge.refunded",
		"data":{"object":{"id":"ch_1","object":"charge","payment_intent":"PAY1","refunded":true}}}`)

	ev, err := g.ParseEvent(payload, sign(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, ChargeRefunded{EventID: "evt_2", PaymentID: "PAY1"}, ev)
}

func TestParseEvent_UnknownKinds(t *testing.T) {
	g := newTestGateway(t, "")

	tests := []struct {
		name    string
		payload string
	}{
		{"unhandled type", `{"id":"evt_3","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`},
		{"unpaid session", `{"id":"evt_4","object":"event","type":"checkout.session.completed",
			"data":{"object":{"id":"cs_2","payment_status":"unpaid","metadata":{"bookingId":"BK1","slotId":"S1"}}}}`},
		{"foreign session", `{"id":"evt_5","object":"event","type":"checkout.session.completed",
			"data":{"object":{"id":"cs_3","payment_status":"paid","payment_intent":"PAY9"}}}`},
		{"partial refund", `{"id":"evt_6","object":"event","type":"charge.refunded",
			"data":{"object":{"id":"ch_2","object":"charge","payment_intent":"PAY1","refunded":false,
			"amount":4500,"amount_refunded":1000}}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			payload := []byte(tc.payload)
			ev, err := g.ParseEvent(payload, sign(payload, testWebhookSecret, time.Now()))
			require.NoError(t, err)
			assert.IsType(t, UnknownEvent{}, ev)
		})
	}
}

func TestParseEvent_InvalidSignature(t *testing.T) {
	g := newTestGateway(t, "")
	payload := []byte(checkoutCompletedJSON)

	_, err := g.ParseEvent(payload, sign(payload, "whsec_other", time.Now()))
	assert.ErrorIs(t, err, models.ErrInvalidSignature)

	_, err = g.ParseEvent(payload, "")
	assert.ErrorIs(t, err, models.ErrInvalidSignature)

	_, err = g.ParseEvent(payload, sign(payload, testWebhookSecret, time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, models.ErrInvalidSignature)

	tampered := []byte(checkoutCompletedJSON + " ")
	_, err = g.ParseEvent(tampered, sign(payload, testWebhookSecret, time.Now()))
	assert.ErrorIs(t, err, models.ErrInvalidSignature)
}

func TestCreateCheckoutSession_SendsCorrelationAndIdempotencyKey(t *testing.T) {
	var form url.Values
	var idemKey, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		idemKey = r.Header.Get("Idempotency-Key")
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.test/cs_test_1"}`)
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	sess, err := g.CreateCheckoutSession(context.Background(), CheckoutRequest{
		BookingID:      "BK1",
		BuyerID:        "U1",
		SlotID:         "S1",
		Description:    "Maths (GCSE)",
		Amount:         4500,
		Currency:       "gbp",
		IdempotencyKey: CheckoutKey("BK1"),
	})
	require.NoError(t, err)

	assert.Equal(t, &CheckoutSession{ID: "cs_test_1", RedirectURL: "https://checkout.stripe.test/cs_test_1"}, sess)
	assert.Equal(t, "/v1/checkout/sessions", path)
	assert.Equal(t, "checkout:BK1", idemKey)
	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, "BK1", form.Get("metadata[bookingId]"))
	assert.Equal(t, "S1", form.Get("metadata[slotId]"))
	assert.Equal(t, "U1", form.Get("payment_intent_data[metadata][buyerId]"))
	assert.Equal(t, "4500", form.Get("line_items[0][price_data][unit_amount]"))
	assert.NotEmpty(t, form.Get("expires_at"))
}

func TestCreateCheckoutSession_GatewayFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"bad currency"}}`)
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	_, err := g.CreateCheckoutSession(context.Background(), CheckoutRequest{BookingID: "BK1", Amount: 100, Currency: "xxx"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrGateway)

	var gwErr *GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "create checkout session", gwErr.Op)
}

func TestRefund_UsesPaymentIntentAndKey(t *testing.T) {
	var form url.Values
	var idemKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idemKey = r.Header.Get("Idempotency-Key")
		body, _ := io.ReadAll(r.Body)
		form, _ = url.ParseQuery(string(body))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"re_1","object":"refund","status":"pending"}`)
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL)
	r, err := g.Refund(context.Background(), RefundRequest{PaymentID: "PAY1", BookingID: "BK1", IdempotencyKey: RefundKey("PAY1")})
	require.NoError(t, err)
	assert.Equal(t, &Refund{ID: "re_1", Status: "pending"}, r)
	assert.Equal(t, "refund:PAY1", idemKey)
	assert.Equal(t, "PAY1", form.Get("payment_intent"))
}
