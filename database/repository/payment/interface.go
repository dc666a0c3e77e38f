package paymentRepo

import (
	"context"

	"tutorbook/models"

	"go.mongodb.org/mongo-driver/mongo"
)

type PaymentRepository interface {
	// CreateIfAbsent inserts the record keyed by its gateway payment id and
	// reports whether this call created it. A second call with the same id
	// leaves the stored record untouched.
	CreateIfAbsent(ctx context.Context, payment *models.Payment) (bool, error)
	GetByID(ctx context.Context, paymentID string) (*models.Payment, error)
	SetRefundStatus(ctx context.Context, paymentID string, status models.RefundStatus) error
}

type mongoPaymentRepo struct {
	coll *mongo.Collection
}

// NewMongoPaymentRepo returns a PaymentRepository backed by MongoDB. The
// payment id is the document _id, so uniqueness needs no extra index.
func NewMongoPaymentRepo(db *mongo.Database) PaymentRepository {
	return &mongoPaymentRepo{coll: db.Collection("payments")}
}

func newPaymentRepoForCollection(coll *mongo.Collection) *mongoPaymentRepo {
	return &mongoPaymentRepo{coll: coll}
}
