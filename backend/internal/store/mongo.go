package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"classrecord/backend/internal/shared"
)

// DefaultTimeout bounds every store call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// MongoStore implements RecordStore on a MongoDB database. Each grading
// template owns one collection; the document _id is the idNumber.
type MongoStore struct {
	db      *mongo.Database
	timeout time.Duration
	logger  *zap.Logger
}

// NewMongoStore wraps db. A zero timeout selects DefaultTimeout.
func NewMongoStore(db *mongo.Database, timeout time.Duration, logger *zap.Logger) *MongoStore {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &MongoStore{db: db, timeout: timeout, logger: logger}
}

// ListAll reads the whole collection ordered by _id.
func (s *MongoStore) ListAll(ctx context.Context, collection string) ([]shared.Document, error) {
	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	findOptions := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := s.db.Collection(collection).Find(queryCtx, bson.M{}, findOptions)
	if err != nil {
		return nil, shared.Unavailable("list "+collection, err)
	}
	defer cursor.Close(queryCtx)

	var docs []shared.Document
	for cursor.Next(queryCtx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			s.logger.Warn("skipping undecodable document", zap.String("collection", collection), zap.Error(err))
			continue
		}
		docs = append(docs, toDocument(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, shared.Unavailable("list "+collection, err)
	}
	return docs, nil
}

// Upsert $sets fields on the document, creating it if absent.
func (s *MongoStore) Upsert(ctx context.Context, collection, id string, fields map[string]any) error {
	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	set := bson.M{}
	for k, v := range fields {
		if k == "_id" {
			continue
		}
		set[k] = v
	}

	opts := options.Update().SetUpsert(true)
	if _, err := s.db.Collection(collection).UpdateOne(queryCtx, bson.M{"_id": id}, bson.M{"$set": set}, opts); err != nil {
		return shared.Unavailable(fmt.Sprintf("upsert %s/%s", collection, id), err)
	}
	return nil
}

// Delete removes the document with the given _id.
func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.Collection(collection).DeleteOne(queryCtx, bson.M{"_id": id}); err != nil {
		return shared.Unavailable(fmt.Sprintf("delete %s/%s", collection, id), err)
	}
	return nil
}

// Watch opens a change stream on the collection and re-lists it after every
// change event. Change streams need a replica set or Atlas cluster.
func (s *MongoStore) Watch(ctx context.Context, collection string) (*Subscription, error) {
	col := s.db.Collection(collection)

	openCtx, cancel := context.WithTimeout(ctx, s.timeout)
	stream, err := col.Watch(openCtx, mongo.Pipeline{})
	cancel()
	if err != nil {
		return nil, shared.Unavailable("watch "+collection, err)
	}

	return newSubscription(ctx, func(ctx context.Context, publish func([]shared.Document)) {
		defer stream.Close(context.Background())

		snap, err := s.ListAll(ctx, collection)
		if err != nil {
			s.logger.Warn("initial snapshot failed", zap.String("collection", collection), zap.Error(err))
			return
		}
		publish(snap)

		for stream.Next(ctx) {
			snap, err := s.ListAll(ctx, collection)
			if err != nil {
				s.logger.Warn("snapshot refresh failed", zap.String("collection", collection), zap.Error(err))
				return
			}
			publish(snap)
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			s.logger.Warn("change stream ended", zap.String("collection", collection), zap.Error(err))
		}
	}), nil
}

// Ping checks the primary is reachable within the store timeout.
func (s *MongoStore) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.db.Client().Ping(pingCtx, readpref.Primary()); err != nil {
		return shared.Unavailable("ping", err)
	}
	return nil
}

// toDocument splits the _id off a raw BSON document.
func toDocument(raw bson.M) shared.Document {
	doc := shared.Document{Fields: make(map[string]any, len(raw))}
	for k, v := range raw {
		if k == "_id" {
			doc.ID = fmt.Sprint(v)
			continue
		}
		doc.Fields[k] = v
	}
	return doc
}
