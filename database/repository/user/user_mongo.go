package userRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutorbook/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoUserRepo implements UserRepository using MongoDB.
type MongoUserRepo struct {
	coll *mongo.Collection
}

// NewMongoUserRepo creates a new instance of UserRepository using MongoDB.
func NewMongoUserRepo(db *mongo.Database) UserRepository {
	return &MongoUserRepo{coll: db.Collection("users")}
}

// profileProjection keeps credentials and personal data out of this service.
var profileProjection = bson.M{"id": 1, "discountApproved": 1, "fcmToken": 1}

// GetProfile always reads through to the store; eligibility may change between checkouts.
func (r *MongoUserRepo) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.FindOne().SetProjection(profileProjection)

	var profile models.UserProfile
	err := r.coll.FindOne(ctx, bson.M{"id": userID}, opts).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user with id %s: %w", userID, err)
	}
	return &profile, nil
}
