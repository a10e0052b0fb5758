package repositories

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"civicpulse-be/models"
)

// MongoTxRunner runs a function inside a MongoDB multi-document transaction.
// Store operations made with the session context join the transaction, so the
// ledger write and the counter write commit or abort together.
type MongoTxRunner struct {
	client *mongo.Client
}

// NewMongoTxRunner builds a TxRunner over the given client. Transactions
// require a replica set or mongos deployment.
func NewMongoTxRunner(client *mongo.Client) *MongoTxRunner {
	return &MongoTxRunner{client: client}
}

func (r *MongoTxRunner) RunTx(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session (%v): %w", err, models.ErrTransient)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil {
		return err
	}
	return nil
}
