// File: database/repository/timeslot/crud.go
package timeslotRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"tutorbook/models"
)

func (r *mongoTimeSlotRepo) Create(ctx context.Context, slot *models.Slot) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if slot.ID == "" {
		slot.ID = uuid.New().String()
	}
	if _, err := r.coll.InsertOne(ctx, slot); err != nil {
		return fmt.Errorf("insert slot %s: %w", slot.ID, err)
	}
	return nil
}

func (r *mongoTimeSlotRepo) GetByID(ctx context.Context, slotID string) (*models.Slot, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var slot models.Slot
	err := r.coll.FindOne(ctx, bson.M{"id": slotID}).Decode(&slot)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("slot %s: %w", slotID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch slot %s: %w", slotID, err)
	}
	return &slot, nil
}
