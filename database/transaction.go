package database

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// ErrConcurrentUpdate is returned when a version-guarded write matched no
// document. The caller may retry the whole read-modify-write.
var ErrConcurrentUpdate = errors.New("document was modified concurrently")

// WithTransaction runs fn inside a snapshot transaction on client. The driver
// retries fn on transient transaction errors (write conflicts) and commits
// with majority write concern.
func WithTransaction(ctx context.Context, client *mongo.Client, fn func(sc mongo.SessionContext) (interface{}, error)) (interface{}, error) {
	sess, err := client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("could not start mongo session: %w", err)
	}
	defer sess.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	res, err := sess.WithTransaction(ctx, fn, txnOpts)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// IsDuplicateKey reports whether err is a unique index violation.
func IsDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

// maxConflictRetries bounds how often a version-guarded read-modify-write is
// replayed after losing a race.
const maxConflictRetries = 3

// RetryOnConflict runs fn until it succeeds, fails with an error other than
// ErrConcurrentUpdate, or the retry budget is spent.
func RetryOnConflict(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err = fn(); !errors.Is(err, ErrConcurrentUpdate) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return err
}
