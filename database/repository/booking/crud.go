package bookingRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutorbook/database"
	"tutorbook/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (r *mongoBookingRepo) Create(ctx context.Context, booking *models.Booking) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if booking.ID == "" {
		booking.ID = uuid.New().String()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, booking); err != nil {
		return fmt.Errorf("insert booking failed: %w", err)
	}
	return nil
}

func (r *mongoBookingRepo) GetByID(ctx context.Context, bookingID string) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var b models.Booking
	err := r.coll.FindOne(ctx, bson.M{"id": bookingID}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("booking %s: %w", bookingID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch booking %s: %w", bookingID, err)
	}
	return &b, nil
}

func (r *mongoBookingRepo) Transact(ctx context.Context, bookingID string, fn TxFunc) (*models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var out *models.Booking
	err := database.RetryOnConflict(ctx, func() error {
		var err error
		out, err = r.transactOnce(ctx, bookingID, fn)
		return err
	})
	return out, err
}

func (r *mongoBookingRepo) transactOnce(ctx context.Context, bookingID string, fn TxFunc) (*models.Booking, error) {
	res, err := database.WithTransaction(ctx, r.coll.Database().Client(), func(sc mongo.SessionContext) (interface{}, error) {
		var current *models.Booking
		var doc models.Booking
		err := r.coll.FindOne(sc, bson.M{"id": bookingID}).Decode(&doc)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
		case err != nil:
			return nil, fmt.Errorf("read booking %s: %w", bookingID, err)
		default:
			current = &doc
		}

		next, err := fn(current.Clone())
		if err != nil {
			return nil, err
		}
		if next == nil || current == nil {
			return current, nil
		}

		next.ID = current.ID
		next.Version = current.Version + 1
		upd, err := r.coll.ReplaceOne(sc, bson.M{"id": bookingID, "version": current.Version}, next)
		if err != nil {
			return nil, fmt.Errorf("write booking %s: %w", bookingID, err)
		}
		if upd.MatchedCount == 0 {
			return nil, fmt.Errorf("booking %s: %w", bookingID, database.ErrConcurrentUpdate)
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	booking, _ := res.(*models.Booking)
	return booking, nil
}

func (r *mongoBookingRepo) ListByStatusStarting(ctx context.Context, status models.BookingStatus, from, to time.Time) ([]models.Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"status": status,
		"start":  bson.M{"$gte": from, "$lte": to},
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "start", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list %s bookings: %w", status, err)
	}
	defer cursor.Close(ctx)

	var bookings []models.Booking
	if err := cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("decode bookings: %w", err)
	}
	return bookings, nil
}

// EnsureIndexes creates the necessary indexes on the bookings collection.
func (r *mongoBookingRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true).SetName("unique_id")},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "start", Value: 1}}, Options: options.Index().SetName("status_start_idx")},
		{Keys: bson.D{{Key: "slotId", Value: 1}}, Options: options.Index().SetName("slot_idx")},
	})
	if err != nil {
		return fmt.Errorf("failed to create booking indexes: %w", err)
	}
	return nil
}
