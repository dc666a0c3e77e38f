// Package notification queues and delivers booking confirmation pushes.
package notification

import (
	"context"
	"errors"
	"fmt"

	userRepo "tutorbook/database/repository/user"
	"tutorbook/models"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// Pusher sends one FCM message. *messaging.Client satisfies it.
type Pusher interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Sender delivers confirmations to the buyer's and provider's devices.
type Sender struct {
	profiles userRepo.UserRepository
	push     Pusher
	logger   *zap.Logger
}

// NewSender returns a Sender. With a nil pusher deliveries are only logged.
func NewSender(profiles userRepo.UserRepository, push Pusher, logger *zap.Logger) *Sender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sender{profiles: profiles, push: push, logger: logger}
}

func (s *Sender) DeliverBookingConfirmed(ctx context.Context, p models.BookingConfirmedPayload) error {
	when := p.Start.Format("Mon 2 Jan 15:04")
	data := map[string]string{
		"type":      "booking_confirmed",
		"bookingId": p.BookingID,
		"slotId":    p.SlotID,
	}

	buyerData := withRole(data, "user")
	if err := s.sendTo(ctx, p.BuyerID, "Booking confirmed", fmt.Sprintf("Your lesson on %s is booked.", when), buyerData); err != nil {
		return err
	}
	if p.ProviderID == "" {
		return nil
	}
	providerData := withRole(data, "provider")
	return s.sendTo(ctx, p.ProviderID, "New booking", fmt.Sprintf("A student booked your %s slot.", when), providerData)
}

func (s *Sender) sendTo(ctx context.Context, userID, title, body string, data map[string]string) error {
	profile, err := s.profiles.GetProfile(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		s.logger.Warn("No profile for push target", zap.String("userId", userID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load profile %s: %w", userID, err)
	}
	if profile.FCMToken == "" {
		s.logger.Debug("Push target has no device token", zap.String("userId", userID))
		return nil
	}
	if s.push == nil {
		s.logger.Info("Push delivery disabled", zap.String("userId", userID), zap.String("title", title))
		return nil
	}

	msg := &messaging.Message{
		Token: profile.FCMToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
	if _, err := s.push.Send(ctx, msg); err != nil {
		if messaging.IsUnregistered(err) {
			s.logger.Warn("Stale device token", zap.String("userId", userID))
			return nil
		}
		return fmt.Errorf("send push to %s: %w", userID, err)
	}
	return nil
}

func withRole(data map[string]string, role string) map[string]string {
	out := make(map[string]string, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["role"] = role
	return out
}
