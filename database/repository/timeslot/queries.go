// File: database/repository/timeslot/queries.go
package timeslotRepo

import (
	"context"
	"fmt"
	"time"

	"tutorbook/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// sweepBatchLimit bounds a single sweep query; remaining slots are picked up
// on the next run.
const sweepBatchLimit = 500

func (repo *mongoTimeSlotRepo) FindExpiredHolds(ctx context.Context, from, to, now time.Time) ([]models.Slot, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"start":     bson.M{"$gte": from, "$lte": to},
		"isBooked":  false,
		"holdUntil": bson.M{"$lte": now},
	}
	opts := options.Find().SetSort(bson.D{{Key: "start", Value: 1}}).SetLimit(sweepBatchLimit)

	cursor, err := repo.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch expired holds: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []models.Slot
	if err := cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("error decoding slots: %w", err)
	}
	return slots, nil
}
