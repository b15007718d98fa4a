// Package mongostore is the MongoDB backend for the catalog and the bill
// ledger. Stock reservations are single conditional $inc updates; a bill and its
// items are one document.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	productsCollection = "products"
	billsCollection    = "bills"
	retiredCollection  = "retired_bill_numbers"

	billNumberIndex = "bills_bill_number_value_key"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    logrus.FieldLogger
}

func Connect(ctx context.Context, uri, database string, log logrus.FieldLogger) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &Store{client: client, db: client.Database(database), log: log}
	if err := s.EnsureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	return s, nil
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(billsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "bill_number_value", Value: -1}},
		Options: options.Index().SetUnique(true).SetName(billNumberIndex),
	})
	if err != nil {
		return fmt.Errorf("create bill number index: %w", err)
	}

	_, err = s.db.Collection(productsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create product name index: %w", err)
	}

	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Catalog() *Catalog {
	return &Catalog{products: s.db.Collection(productsCollection), log: s.log}
}

func (s *Store) Ledger() *Ledger {
	return &Ledger{
		bills:   s.db.Collection(billsCollection),
		retired: s.db.Collection(retiredCollection),
		log:     s.log,
	}
}

// watch follows a collection's change stream and emits a fresh snapshot from
// load after each burst of changes. Change streams need a replica set.
func watch[T any](ctx context.Context, coll *mongo.Collection, log logrus.FieldLogger, load func(context.Context) (T, error)) (<-chan T, error) {
	stream, err := coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", coll.Name(), err)
	}

	initial, err := load(ctx)
	if err != nil {
		stream.Close(context.Background())
		return nil, err
	}

	out := make(chan T, 1)
	out <- initial

	log = log.WithField("collection", coll.Name())

	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			for stream.RemainingBatchLength() > 0 && stream.TryNext(ctx) {
			}

			snapshot, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.WithError(err).Warn("failed to load snapshot")
				continue
			}

			select {
			case out <- snapshot:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("change stream closed")
		}
	}()

	return out, nil
}
