// Package paymenttest provides a mock payment.Gateway for tests.
package paymenttest

import (
	"context"

	"tutorbook/services/payment"

	"github.com/stretchr/testify/mock"
)

type MockGateway struct {
	mock.Mock
}

var _ payment.Gateway = (*MockGateway)(nil)

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CheckoutSession), args.Error(1)
}

func (m *MockGateway) Refund(ctx context.Context, req payment.RefundRequest) (*payment.Refund, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Refund), args.Error(1)
}

func (m *MockGateway) ParseEvent(payload []byte, signatureHeader string) (payment.Event, error) {
	args := m.Called(payload, signatureHeader)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(payment.Event), args.Error(1)
}
