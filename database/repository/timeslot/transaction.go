package timeslotRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutorbook/database"
	"tutorbook/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func (r *mongoTimeSlotRepo) Transact(ctx context.Context, slotID string, fn TxFunc) (*models.Slot, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var out *models.Slot
	err := database.RetryOnConflict(ctx, func() error {
		var err error
		out, err = r.transactOnce(ctx, slotID, fn)
		return err
	})
	return out, err
}

func (r *mongoTimeSlotRepo) transactOnce(ctx context.Context, slotID string, fn TxFunc) (*models.Slot, error) {
	client := r.coll.Database().Client()
	res, err := database.WithTransaction(ctx, client, func(sc mongo.SessionContext) (interface{}, error) {
		var current *models.Slot
		var doc models.Slot
		err := r.coll.FindOne(sc, bson.M{"id": slotID}).Decode(&doc)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
		case err != nil:
			return nil, fmt.Errorf("read slot %s: %w", slotID, err)
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
		upd, err := r.coll.ReplaceOne(sc, bson.M{"id": slotID, "version": current.Version}, next)
		if err != nil {
			return nil, fmt.Errorf("write slot %s: %w", slotID, err)
		}
		if upd.MatchedCount == 0 {
			return nil, fmt.Errorf("slot %s: %w", slotID, database.ErrConcurrentUpdate)
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	slot, _ := res.(*models.Slot)
	return slot, nil
}
