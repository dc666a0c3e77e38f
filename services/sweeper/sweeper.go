// Package sweeper holds the periodic jobs that keep slots consistent without
// a caller: expired hold cleanup and booking/slot reconciliation.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingRepo "tutorbook/database/repository/booking"
	timeslotRepo "tutorbook/database/repository/timeslot"
	"tutorbook/models"

	"go.uber.org/zap"
)

// DefaultHorizon limits both jobs to slots starting within the next two days.
const DefaultHorizon = 48 * time.Hour

type Sweeper struct {
	slots    timeslotRepo.SlotRepository
	bookings bookingRepo.BookingRepository
	horizon  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

func New(slots timeslotRepo.SlotRepository, bookings bookingRepo.BookingRepository, horizon time.Duration, logger *zap.Logger) *Sweeper {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		slots:    slots,
		bookings: bookings,
		horizon:  horizon,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Sweep clears expired holds on unbooked slots starting within the horizon
// and returns how many it cleared. Each slot is re-checked inside its own
// transaction, so booked slots and holds refreshed since the scan are left
// alone.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	expired, err := s.slots.FindExpiredHolds(ctx, now, now.Add(s.horizon), now)
	if err != nil {
		return 0, fmt.Errorf("scan expired holds: %w", err)
	}

	cleared := 0
	var errs []error
	for _, candidate := range expired {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		var wrote bool
		_, err := s.slots.Transact(ctx, candidate.ID, func(cur *models.Slot) (*models.Slot, error) {
			wrote = false
			if cur == nil || cur.IsBooked || !cur.HoldExpired(now) {
				return nil, nil
			}
			cur.ClearHold()
			wrote = true
			return cur, nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("clear hold on slot %s: %w", candidate.ID, err))
			continue
		}
		if wrote {
			cleared++
		}
	}

	if cleared > 0 || len(errs) > 0 {
		s.logger.Info("Expired holds swept",
			zap.Int("scanned", len(expired)),
			zap.Int("cleared", cleared),
			zap.Int("failed", len(errs)))
	}
	return cleared, errors.Join(errs...)
}

// Reconcile repairs slots that disagree with their booking after a partial
// failure: confirmed bookings whose slot is not marked booked for them, and
// cancelled bookings whose slot is still booked for them. It returns the
// number of slots repaired.
func (s *Sweeper) Reconcile(ctx context.Context) (int, error) {
	now := s.now()
	from, to := now, now.Add(s.horizon)

	confirmed, err := s.bookings.ListByStatusStarting(ctx, models.BookingStatusConfirmed, from, to)
	if err != nil {
		return 0, fmt.Errorf("list confirmed bookings: %w", err)
	}
	cancelled, err := s.bookings.ListByStatusStarting(ctx, models.BookingStatusCancelled, from, to)
	if err != nil {
		return 0, fmt.Errorf("list cancelled bookings: %w", err)
	}

	repaired := 0
	var errs []error
	for i := range confirmed {
		ok, err := s.markBooked(ctx, &confirmed[i])
		if err != nil {
			errs = append(errs, err)
		}
		if ok {
			repaired++
		}
	}
	for i := range cancelled {
		ok, err := s.reopen(ctx, &cancelled[i])
		if err != nil {
			errs = append(errs, err)
		}
		if ok {
			repaired++
		}
	}

	if repaired > 0 || len(errs) > 0 {
		s.logger.Warn("Reconciled slots with bookings",
			zap.Int("repaired", repaired),
			zap.Int("failed", len(errs)))
	}
	return repaired, errors.Join(errs...)
}

func (s *Sweeper) markBooked(ctx context.Context, listed *models.Booking) (bool, error) {
	// The list may be stale; a booking cancelled since must not take the slot back.
	b, err := s.bookings.GetByID(ctx, listed.ID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reload booking %s: %w", listed.ID, err)
	}
	if b.Status != models.BookingStatusConfirmed {
		s.logger.Debug("Booking changed since listing, skipped",
			zap.String("bookingId", b.ID),
			zap.String("status", string(b.Status)))
		return false, nil
	}

	var wrote bool
	_, err = s.slots.Transact(ctx, b.SlotID, func(cur *models.Slot) (*models.Slot, error) {
		wrote = false
		if cur == nil {
			return nil, fmt.Errorf("slot %s of confirmed booking %s: %w", b.SlotID, b.ID, models.ErrSlotGone)
		}
		if cur.IsBooked && cur.BookedBy == b.ID {
			return nil, nil
		}
		if cur.IsBooked {
			return nil, fmt.Errorf("slot %s booked by %s but confirmed for %s: %w", cur.ID, cur.BookedBy, b.ID, models.ErrSlotConflict)
		}
		cur.IsBooked = true
		cur.BookedBy = b.ID
		cur.ClearHold()
		wrote = true
		return cur, nil
	})
	if err != nil {
		s.logger.Error("Cannot reconcile confirmed booking", zap.String("bookingId", b.ID), zap.Error(err))
		return false, err
	}
	return wrote, nil
}

func (s *Sweeper) reopen(ctx context.Context, b *models.Booking) (bool, error) {
	var wrote bool
	_, err := s.slots.Transact(ctx, b.SlotID, func(cur *models.Slot) (*models.Slot, error) {
		wrote = false
		if cur == nil || !cur.IsBooked || cur.BookedBy != b.ID {
			return nil, nil
		}
		cur.IsBooked = false
		cur.BookedBy = ""
		wrote = true
		return cur, nil
	})
	if err != nil {
		return false, fmt.Errorf("reopen slot %s of cancelled booking %s: %w", b.SlotID, b.ID, err)
	}
	return wrote, nil
}
