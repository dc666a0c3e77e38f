package paymentRepo

import (
	"context"
	"testing"

	"tutorbook/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func paymentDoc(id string, refund models.RefundStatus) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "bookingId", Value: "BK1"},
		{Key: "status", Value: string(models.PaymentStatusSucceeded)},
		{Key: "refundStatus", Value: string(refund)},
	}
}

func TestPaymentRepoMongo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("create inserts a new payment", func(mt *mtest.T) {
		repo := newPaymentRepoForCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		created, err := repo.CreateIfAbsent(ctx, &models.Payment{PaymentID: "PAY1", BookingID: "BK1"})
		require.NoError(mt, err)
		assert.True(mt, created)
	})

	mt.Run("duplicate payment id is not an error", func(mt *mtest.T) {
		repo := newPaymentRepoForCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error",
		}))

		created, err := repo.CreateIfAbsent(ctx, &models.Payment{PaymentID: "PAY1", BookingID: "BK1"})
		require.NoError(mt, err)
		assert.False(mt, created)
	})

	mt.Run("create requires an id", func(mt *mtest.T) {
		repo := newPaymentRepoForCollection(mt.Coll)
		_, err := repo.CreateIfAbsent(ctx, &models.Payment{BookingID: "BK1"})
		assert.Error(mt, err)
	})

	mt.Run("get decodes the stored payment", func(mt *mtest.T) {
		repo := newPaymentRepoForCollection(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, paymentDoc("PAY1", models.RefundStatusPending)))

		p, err := repo.GetByID(ctx, "PAY1")
		require.NoError(mt, err)
		assert.Equal(mt, "BK1", p.BookingID)
		assert.Equal(mt, models.RefundStatusPending, p.RefundStatus)
	})

	mt.Run("get unknown payment", func(mt *mtest.T) {
		repo := newPaymentRepoForCollection(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := repo.GetByID(ctx, "PAY404")
		assert.ErrorIs(mt, err, models.ErrNotFound)
	})

	mt.Run("refund status update", func(mt *mtest.T) {
		repo := newPaymentRepoForCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1},
		))
		assert.NoError(mt, repo.SetRefundStatus(ctx, "PAY1", models.RefundStatusSucceeded))
	})

	mt.Run("pending does not overwrite a succeeded refund", func(mt *mtest.T) {
		repo := newPaymentRepoForCollection(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, paymentDoc("PAY1", models.RefundStatusSucceeded)),
		)
		assert.NoError(mt, repo.SetRefundStatus(ctx, "PAY1", models.RefundStatusPending))
	})

	mt.Run("refund status for unknown payment", func(mt *mtest.T) {
		repo := newPaymentRepoForCollection(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
		)
		assert.ErrorIs(mt, repo.SetRefundStatus(ctx, "PAY404", models.RefundStatusSucceeded), models.ErrNotFound)
	})
}
