// File: database/repository/timeslot/interface.go
package timeslotRepo

import (
	"context"
	"time"

	"tutorbook/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// TxFunc receives a private copy of the current slot (nil when the slot does
// not exist) and returns the slot to persist. Returning a nil slot commits
// nothing; returning an error aborts the transaction.
type TxFunc func(current *models.Slot) (*models.Slot, error)

type SlotRepository interface {
	Create(ctx context.Context, slot *models.Slot) error
	GetByID(ctx context.Context, slotID string) (*models.Slot, error)
	// Transact is the only way slot state is mutated. It returns the slot as
	// committed (or as read, when fn wrote nothing).
	Transact(ctx context.Context, slotID string, fn TxFunc) (*models.Slot, error)
	// FindExpiredHolds lists unbooked slots starting in [from, to] whose hold
	// expired before now.
	FindExpiredHolds(ctx context.Context, from, to, now time.Time) ([]models.Slot, error)
}

type mongoTimeSlotRepo struct {
	coll *mongo.Collection
}

// NewMongoTimeSlotRepo constructs a new MongoDB SlotRepository.
func NewMongoTimeSlotRepo(db *mongo.Database) SlotRepository {
	return &mongoTimeSlotRepo{
		coll: db.Collection("slots"),
	}
}
