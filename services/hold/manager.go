// Package hold places, refreshes and releases the time-bounded soft lock a
// buyer keeps on a slot while paying for it.
package hold

import (
	"context"
	"fmt"
	"time"

	timeslotRepo "tutorbook/database/repository/timeslot"
	"tutorbook/models"

	"go.uber.org/zap"
)

// DefaultTTL bounds how long an unpaid hold keeps a slot away from other buyers.
const DefaultTTL = 15 * time.Minute

// Manager reads hold state through the slot repository on every call and
// never caches it.
type Manager struct {
	slots  timeslotRepo.SlotRepository
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewManager(slots timeslotRepo.SlotRepository, ttl time.Duration, logger *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		slots:  slots,
		ttl:    ttl,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Acquire gives buyerID the hold on slotID for one TTL. A buyer who already
// holds the slot gets a fresh TTL; a stale hold by anyone is overwritten.
func (m *Manager) Acquire(ctx context.Context, slotID, buyerID string) (*models.Slot, error) {
	now := m.now()
	slot, err := m.slots.Transact(ctx, slotID, func(cur *models.Slot) (*models.Slot, error) {
		switch {
		case cur == nil:
			return nil, fmt.Errorf("slot %s: %w", slotID, models.ErrSlotGone)
		case cur.IsBooked:
			return nil, fmt.Errorf("slot %s: %w", slotID, models.ErrSlotBooked)
		case cur.HoldBy != buyerID && cur.HoldLive(now):
			return nil, fmt.Errorf("slot %s: %w", slotID, models.ErrHeldByOther)
		}
		until := now.Add(m.ttl)
		cur.HoldBy = buyerID
		cur.HoldUntil = &until
		return cur, nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("Hold acquired",
		zap.String("slotId", slotID),
		zap.String("buyerId", buyerID),
		zap.Timep("holdUntil", slot.HoldUntil))
	return slot, nil
}

// Release drops buyerID's hold. It leaves booked slots and live holds of
// other buyers alone, and succeeds when there is nothing to release.
func (m *Manager) Release(ctx context.Context, slotID, buyerID string) error {
	now := m.now()
	_, err := m.slots.Transact(ctx, slotID, func(cur *models.Slot) (*models.Slot, error) {
		if cur == nil || cur.IsBooked {
			return nil, nil
		}
		if cur.HoldBy == "" && cur.HoldUntil == nil {
			return nil, nil
		}
		if cur.HoldBy != buyerID && !cur.HoldExpired(now) {
			return nil, nil
		}
		cur.ClearHold()
		return cur, nil
	})
	if err != nil {
		return fmt.Errorf("release hold on slot %s: %w", slotID, err)
	}
	return nil
}
