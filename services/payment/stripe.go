package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tutorbook/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

const (
	eventCheckoutCompleted     = "checkout.session.completed"
	eventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	eventChargeRefunded        = "charge.refunded"

	// Stripe rejects checkout sessions that expire sooner than this.
	minSessionLifetime = 31 * time.Minute
)

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	// Backends overrides the API endpoints; nil uses Stripe's.
	Backends *stripe.Backends
}

// StripeGateway implements Gateway with Stripe Checkout.
type StripeGateway struct {
	sc            *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
	logger        *zap.Logger
	now           func() time.Time
}

func NewStripeGateway(cfg StripeConfig, logger *zap.Logger) *StripeGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	sc := &client.API{}
	sc.Init(cfg.SecretKey, cfg.Backends)
	return &StripeGateway{
		sc:            sc,
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		logger:        logger,
		now:           time.Now,
	}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
		ClientReferenceID: stripe.String(req.BookingID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(req.Currency),
					UnitAmount: stripe.Int64(req.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: correlation(req.BookingID, req.BuyerID, req.SlotID),
		},
	}
	for k, v := range correlation(req.BookingID, req.BuyerID, req.SlotID) {
		params.AddMetadata(k, v)
	}

	expiresAt := req.ExpiresAt
	if earliest := g.now().Add(minSessionLifetime); expiresAt.Before(earliest) {
		expiresAt = earliest
	}
	params.ExpiresAt = stripe.Int64(expiresAt.Unix())

	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	sess, err := g.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, NewGatewayError("create checkout session", err)
	}

	g.logger.Info("Checkout session created",
		zap.String("bookingId", req.BookingID),
		zap.String("sessionId", sess.ID))
	return &CheckoutSession{ID: sess.ID, RedirectURL: sess.URL}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (*Refund, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentID),
	}
	if req.BookingID != "" {
		params.AddMetadata("bookingId", req.BookingID)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	params.Context = ctx

	r, err := g.sc.Refunds.New(params)
	if err != nil {
		return nil, NewGatewayError("refund", err)
	}
	return &Refund{ID: r.ID, Status: string(r.Status)}, nil
}

func (g *StripeGateway) ParseEvent(payload []byte, signatureHeader string) (Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidSignature, err)
	}

	switch string(event.Type) {
	case eventCheckoutCompleted, eventAsyncPaymentSucceeded:
		return checkoutCompletedFrom(event)
	case eventChargeRefunded:
		return chargeRefundedFrom(event)
	default:
		return UnknownEvent{EventID: event.ID, Type: string(event.Type)}, nil
	}
}

func checkoutCompletedFrom(event stripe.Event) (Event, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("decode checkout session in event %s: %w", event.ID, err)
	}
	// Delayed methods complete the session before the money arrives; the
	// async_payment_succeeded event follows once it does.
	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return UnknownEvent{EventID: event.ID, Type: string(event.Type), Reason: "payment not yet paid"}, nil
	}
	md := sess.Metadata
	if md["bookingId"] == "" || md["slotId"] == "" {
		return UnknownEvent{EventID: event.ID, Type: string(event.Type), Reason: "missing booking metadata"}, nil
	}
	if sess.PaymentIntent == nil || sess.PaymentIntent.ID == "" {
		return UnknownEvent{EventID: event.ID, Type: string(event.Type), Reason: "missing payment intent"}, nil
	}
	return CheckoutCompleted{
		EventID:   event.ID,
		BookingID: md["bookingId"],
		BuyerID:   md["buyerId"],
		SlotID:    md["slotId"],
		PaymentID: sess.PaymentIntent.ID,
		Amount:    sess.AmountTotal,
		Currency:  string(sess.Currency),
	}, nil
}

func chargeRefundedFrom(event stripe.Event) (Event, error) {
	var ch stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
		return nil, fmt.Errorf("decode charge in event %s: %w", event.ID, err)
	}
	if ch.PaymentIntent == nil || ch.PaymentIntent.ID == "" {
		return UnknownEvent{EventID: event.ID, Type: string(event.Type), Reason: "charge without payment intent"}, nil
	}
	// charge.refunded also fires for partial refunds; only a full one settles.
	if !ch.Refunded {
		return UnknownEvent{EventID: event.ID, Type: string(event.Type), Reason: "partial refund"}, nil
	}
	return ChargeRefunded{EventID: event.ID, PaymentID: ch.PaymentIntent.ID}, nil
}

func correlation(bookingID, buyerID, slotID string) map[string]string {
	return map[string]string{
		"bookingId": bookingID,
		"buyerId":   buyerID,
		"slotId":    slotID,
	}
}
