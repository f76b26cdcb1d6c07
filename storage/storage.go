// Package storage persists users and todos in MongoDB. It is the only
// component that talks to the database; multi-record invariants (reorder,
// token rotation) run inside session-scoped transactions started through
// InTransaction.
package storage

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	usersCollection = "users"
	todosCollection = "todos"

	connectTimeout = 10 * time.Second
)

// Store wraps the mongo client and the two collections.
type Store struct {
	client *mongo.Client
	users  *mongo.Collection
	todos  *mongo.Collection
}

// New connects to MongoDB and pings the primary before returning.
func New(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, err
	}
	db := client.Database(database)
	return &Store{
		client: client,
		users:  db.Collection(usersCollection),
		todos:  db.Collection(todosCollection),
	}, nil
}

// EnsureIndexes creates the uniqueness and lookup indexes both collections
// rely on. Safe to call on every startup.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return err
	}
	_, err = s.todos.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "category", Value: 1}, {Key: "archived", Value: 1}, {Key: "order", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "completed", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "priority", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "dueDate", Value: 1}}},
	})
	return err
}

// InTransaction runs fn inside one mongo session transaction. The context
// handed to fn is session-scoped, so every store call made with it joins the
// transaction. The session is released on all paths; an error from fn aborts
// with no partial writes.
func (s *Store) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
