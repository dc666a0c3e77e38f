package routes

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tutorbook/config"
	"tutorbook/database/memstore"
	"tutorbook/handlers"
	"tutorbook/models"
	"tutorbook/services/cancellation"
	"tutorbook/services/checkout"
	"tutorbook/services/hold"
	"tutorbook/services/payment"
	"tutorbook/services/settlement"
	"tutorbook/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

const webhookSecret = "whsec_routes"

type memQueue struct {
	mu   sync.Mutex
	sent []models.BookingConfirmedPayload
}

func (q *memQueue) EnqueueBookingConfirmed(_ context.Context, p models.BookingConfirmedPayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent = append(q.sent, p)
	return nil
}

type app struct {
	router   *gin.Engine
	slots    *memstore.SlotStore
	bookings *memstore.BookingStore
	payments *memstore.PaymentStore
}

// fakeStripe answers checkout session and refund creation.
func fakeStripe(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/checkout/sessions":
			fmt.Fprint(w, `{"id":"cs_1","object":"checkout.session","url":"https://checkout.stripe.test/cs_1"}`)
		case "/v1/refunds":
			fmt.Fprint(w, `{"id":"re_1","object":"refund","status":"pending"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"unknown path"}}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newApp(t *testing.T) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.AppConfig.JWTSecret = "routes-secret"
	ctx := context.Background()
	logger := zap.NewNop()

	a := &app{
		slots:    memstore.NewSlotStore(),
		bookings: memstore.NewBookingStore(),
		payments: memstore.NewPaymentStore(),
	}
	start := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Minute)
	require.NoError(t, a.slots.Create(ctx, &models.Slot{
		ID: "S1", ProviderID: "P1", Start: start, End: start.Add(time.Hour), Subject: "Maths", Level: "gcse",
	}))
	require.NoError(t, a.bookings.Create(ctx, &models.Booking{
		ID: "BK1", BuyerID: "U1", ProviderID: "P1", SlotID: "S1", Currency: "gbp",
		Status: models.BookingStatusPendingPayment, Start: start, End: start.Add(time.Hour),
	}))

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(fakeStripe(t).URL),
		MaxNetworkRetries: stripe.Int64(0),
	})
	gateway := payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:     "sk_test_routes",
		WebhookSecret: webhookSecret,
		SuccessURL:    "https://tutorbook.test/ok",
		CancelURL:     "https://tutorbook.test/cancel",
		Backends:      &stripe.Backends{API: backend, Connect: backend, Uploads: backend},
	}, logger)

	profiles := memstore.NewUserStore()
	holds := hold.NewManager(a.slots, hold.DefaultTTL, logger)
	initiator := checkout.NewInitiator(a.bookings, profiles, holds, gateway,
		checkout.Pricing{Tiers: checkout.PriceTable{"gcse_standard": 4500}, Currency: "gbp"}, logger)
	settler := settlement.NewHandler(a.slots, a.bookings, a.payments, gateway, &memQueue{}, logger)
	canceller := cancellation.NewHandler(a.bookings, a.slots, a.payments, gateway, cancellation.DefaultWindow, logger)

	hb := handlers.NewHandlerBundle(
		handlers.NewBookingHandler(holds, initiator, canceller),
		handlers.NewWebhookHandler(settler),
	)
	a.router = gin.New()
	RegisterRoutes(a.router, hb)
	return a
}

func (a *app) do(t *testing.T, method, path, userID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if userID != "" {
		token, err := utils.GenerateToken(userID, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *app) webhook(t *testing.T, payload, secret string) *httptest.ResponseRecorder {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payments", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

const paidEvent = `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{
	"id":"cs_1","object":"checkout.session","payment_status":"paid","payment_intent":"PAY1",
	"amount_total":4500,"currency":"gbp","metadata":{"bookingId":"BK1","buyerId":"U1","slotId":"S1"}}}}`

func TestBookingLifecycleOverHTTP(t *testing.T) {
	a := newApp(t)
	ctx := context.Background()

	// Another buyer can hold and release the free slot.
	w := a.do(t, http.MethodPost, "/api/slots/S1/hold", "U2")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = a.do(t, http.MethodDelete, "/api/slots/S1/hold", "U2")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = a.do(t, http.MethodPost, "/api/bookings/BK1/checkout", "U1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "https://checkout.stripe.test/cs_1", body["redirectUrl"])
	assert.Equal(t, "cs_1", body["sessionId"])

	w = a.do(t, http.MethodPost, "/api/slots/S1/hold", "U2")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "held_by_other", decode(t, w)["code"])

	w = a.webhook(t, paidEvent, "whsec_wrong")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	b, _ := a.bookings.GetByID(ctx, "BK1")
	assert.Equal(t, models.BookingStatusPendingPayment, b.Status)

	for i := 0; i < 2; i++ {
		w = a.webhook(t, paidEvent, webhookSecret)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	b, _ = a.bookings.GetByID(ctx, "BK1")
	assert.Equal(t, models.BookingStatusConfirmed, b.Status)
	assert.Equal(t, 1, a.payments.Count())

	w = a.do(t, http.MethodPost, "/api/bookings/BK1/cancel", "U2")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(t, http.MethodPost, "/api/bookings/BK1/cancel", "U1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "re_1", decode(t, w)["refundId"])

	w = a.do(t, http.MethodPost, "/api/slots/S1/hold", "U2")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	a := newApp(t)
	for _, path := range []string{"/api/slots/S1/hold", "/api/bookings/BK1/checkout", "/api/bookings/BK1/cancel"} {
		w := a.do(t, http.MethodPost, path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestUnknownWebhookEventIsAcknowledged(t *testing.T) {
	a := newApp(t)
	w := a.webhook(t, `{"id":"evt_9","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1"}}}`, webhookSecret)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCheckoutErrorsMapToStatus(t *testing.T) {
	a := newApp(t)
	w := a.do(t, http.MethodPost, "/api/bookings/missing/checkout", "U1")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(t, http.MethodPost, "/api/bookings/BK1/checkout", "U9")
	assert.Equal(t, http.StatusForbidden, w.Code)
}
