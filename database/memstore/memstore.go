// Package memstore keeps slots, bookings, payments and profiles in process
// memory behind the same repository contracts as the Mongo store. Each
// collection serialises its transactions with a mutex, which gives the same
// linearisation per document that Mongo transactions provide.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	bookingRepo "tutorbook/database/repository/booking"
	paymentRepo "tutorbook/database/repository/payment"
	timeslotRepo "tutorbook/database/repository/timeslot"
	userRepo "tutorbook/database/repository/user"
	"tutorbook/models"

	"github.com/google/uuid"
)

var (
	_ timeslotRepo.SlotRepository   = (*SlotStore)(nil)
	_ bookingRepo.BookingRepository = (*BookingStore)(nil)
	_ paymentRepo.PaymentRepository = (*PaymentStore)(nil)
	_ userRepo.UserRepository       = (*UserStore)(nil)
)

// SlotStore is an in-memory SlotRepository.
type SlotStore struct {
	mu    sync.Mutex
	slots map[string]*models.Slot
}

func NewSlotStore() *SlotStore {
	return &SlotStore{slots: make(map[string]*models.Slot)}
}

func (s *SlotStore) Create(_ context.Context, slot *models.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot.ID == "" {
		slot.ID = uuid.New().String()
	}
	if _, ok := s.slots[slot.ID]; ok {
		return fmt.Errorf("slot %s already exists", slot.ID)
	}
	s.slots[slot.ID] = slot.Clone()
	return nil
}

func (s *SlotStore) GetByID(_ context.Context, slotID string) (*models.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[slotID]
	if !ok {
		return nil, fmt.Errorf("slot %s: %w", slotID, models.ErrNotFound)
	}
	return slot.Clone(), nil
}

func (s *SlotStore) Transact(ctx context.Context, slotID string, fn timeslotRepo.TxFunc) (*models.Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.slots[slotID]
	next, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}
	if next == nil || current == nil {
		return current.Clone(), nil
	}
	next.ID = current.ID
	next.Version = current.Version + 1
	s.slots[slotID] = next.Clone()
	return next, nil
}

func (s *SlotStore) FindExpiredHolds(_ context.Context, from, to, now time.Time) ([]models.Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Slot
	for _, slot := range s.slots {
		if slot.IsBooked || slot.HoldUntil == nil || slot.HoldUntil.After(now) {
			continue
		}
		if slot.Start.Before(from) || slot.Start.After(to) {
			continue
		}
		out = append(out, *slot.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// BookingStore is an in-memory BookingRepository.
type BookingStore struct {
	mu       sync.Mutex
	bookings map[string]*models.Booking
}

func NewBookingStore() *BookingStore {
	return &BookingStore{bookings: make(map[string]*models.Booking)}
}

func (s *BookingStore) Create(_ context.Context, booking *models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	if _, ok := s.bookings[booking.ID]; ok {
		return fmt.Errorf("booking %s already exists", booking.ID)
	}
	s.bookings[booking.ID] = booking.Clone()
	return nil
}

func (s *BookingStore) GetByID(_ context.Context, bookingID string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, fmt.Errorf("booking %s: %w", bookingID, models.ErrNotFound)
	}
	return b.Clone(), nil
}

func (s *BookingStore) Transact(ctx context.Context, bookingID string, fn bookingRepo.TxFunc) (*models.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.bookings[bookingID]
	next, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}
	if next == nil || current == nil {
		return current.Clone(), nil
	}
	next.ID = current.ID
	next.Version = current.Version + 1
	s.bookings[bookingID] = next.Clone()
	return next, nil
}

func (s *BookingStore) ListByStatusStarting(_ context.Context, status models.BookingStatus, from, to time.Time) ([]models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Booking
	for _, b := range s.bookings {
		if b.Status != status || b.Start.Before(from) || b.Start.After(to) {
			continue
		}
		out = append(out, *b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// PaymentStore is an in-memory PaymentRepository.
type PaymentStore struct {
	mu       sync.Mutex
	payments map[string]models.Payment
}

func NewPaymentStore() *PaymentStore {
	return &PaymentStore{payments: make(map[string]models.Payment)}
}

func (s *PaymentStore) CreateIfAbsent(_ context.Context, payment *models.Payment) (bool, error) {
	if payment.PaymentID == "" {
		return false, fmt.Errorf("payment id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[payment.PaymentID]; ok {
		return false, nil
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	s.payments[payment.PaymentID] = *payment
	return true, nil
}

func (s *PaymentStore) GetByID(_ context.Context, paymentID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("payment %s: %w", paymentID, models.ErrNotFound)
	}
	return &p, nil
}

func (s *PaymentStore) SetRefundStatus(_ context.Context, paymentID string, status models.RefundStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return fmt.Errorf("payment %s: %w", paymentID, models.ErrNotFound)
	}
	if p.RefundStatus == models.RefundStatusSucceeded && status != models.RefundStatusSucceeded {
		return nil
	}
	p.RefundStatus = status
	s.payments[paymentID] = p
	return nil
}

// Count returns the number of stored payment records.
func (s *PaymentStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

// UserStore is an in-memory UserRepository.
type UserStore struct {
	mu       sync.RWMutex
	profiles map[string]models.UserProfile
}

func NewUserStore() *UserStore {
	return &UserStore{profiles: make(map[string]models.UserProfile)}
}

// Put inserts or replaces a profile.
func (s *UserStore) Put(profile models.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.ID] = profile
}

func (s *UserStore) GetProfile(_ context.Context, userID string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	return &p, nil
}
