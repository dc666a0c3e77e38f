// FILE: database/repository/timeslot/indexes.go
package timeslotRepo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the necessary indexes on the slots collection.
func (r *mongoTimeSlotRepo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("unique_id"),
		},
		// Sweeper scan: bounded start window over unbooked slots with a hold.
		{
			Keys:    bson.D{{Key: "isBooked", Value: 1}, {Key: "start", Value: 1}, {Key: "holdUntil", Value: 1}},
			Options: options.Index().SetName("booked_start_hold_idx").SetPartialFilterExpression(bson.M{"holdUntil": bson.M{"$exists": true}}),
		},
		{
			Keys:    bson.D{{Key: "providerId", Value: 1}, {Key: "start", Value: 1}},
			Options: options.Index().SetName("provider_start_idx"),
		},
	}

	_, err := r.coll.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return fmt.Errorf("failed to create slot indexes: %w", err)
	}
	return nil
}
