package paymentRepo

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

func (r *mongoPaymentRepo) CreateIfAbsent(ctx context.Context, payment *models.Payment) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if payment.PaymentID == "" {
		return false, errors.New("payment id is required")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	_, err := r.coll.InsertOne(ctx, payment)
	if database.IsDuplicateKey(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert payment %s: %w", payment.PaymentID, err)
	}
	return true, nil
}

func (r *mongoPaymentRepo) GetByID(ctx context.Context, paymentID string) (*models.Payment, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var p models.Payment
	err := r.coll.FindOne(ctx, bson.M{"_id": paymentID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("payment %s: %w", paymentID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch payment %s: %w", paymentID, err)
	}
	return &p, nil
}

// SetRefundStatus never downgrades a succeeded refund back to pending, so a
// late cancellation write cannot undo the gateway's refund notification.
func (r *mongoPaymentRepo) SetRefundStatus(ctx context.Context, paymentID string, status models.RefundStatus) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"_id": paymentID}
	if status != models.RefundStatusSucceeded {
		filter["refundStatus"] = bson.M{"$ne": models.RefundStatusSucceeded}
	}
	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"refundStatus": status}})
	if err != nil {
		return fmt.Errorf("update refund status for %s: %w", paymentID, err)
	}
	if res.MatchedCount == 0 {
		// Either absent or already refunded; only the former is an error.
		if _, err := r.GetByID(ctx, paymentID); err != nil {
			return err
		}
	}
	return nil
}
