package bookingRepo

import (
	"context"
	"time"

	"tutorbook/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// TxFunc receives a private copy of the booking (nil when absent) and returns
// the booking to persist, or nil to write nothing.
type TxFunc func(current *models.Booking) (*models.Booking, error)

type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, bookingID string) (*models.Booking, error)
	// Transact serialises status transitions with the same discipline as slot
	// mutations, so settlement and cancellation never interleave.
	Transact(ctx context.Context, bookingID string, fn TxFunc) (*models.Booking, error)
	// ListByStatusStarting returns bookings in status whose lesson starts in [from, to].
	ListByStatusStarting(ctx context.Context, status models.BookingStatus, from, to time.Time) ([]models.Booking, error)
}

type mongoBookingRepo struct {
	coll *mongo.Collection
}

// NewMongoBookingRepo constructs a MongoDB BookingRepository.
func NewMongoBookingRepo(db *mongo.Database) BookingRepository {
	return &mongoBookingRepo{coll: db.Collection("bookings")}
}
