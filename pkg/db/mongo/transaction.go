package mongo

import (
	"context"
	"fmt"

	"parksphere/pkg/db"
	apperrors "parksphere/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type mongoTransactionManager struct {
	client *mongo.Client
}

// NewTransactionManager runs callbacks inside a session transaction. Write
// conflicts between concurrent transactions are retried by the driver, so
// the callback may run more than once and must be idempotent up to commit.
func NewTransactionManager(client *mongo.Client) db.TransactionManager {
	return &mongoTransactionManager{
		client: client,
	}
}

func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn db.TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	})

	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

type pinger struct {
	client *mongo.Client
}

func NewPinger(client *mongo.Client) db.Pinger {
	return &pinger{client: client}
}

func (p *pinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx, readpref.Primary())
}
