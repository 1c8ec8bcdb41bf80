// Package document is the adapter for the MongoDB document store, the
// primary store and single source of truth. Cross-store identifiers are
// minted here, in the write path, and threaded through all graph and
// relational references afterwards.
package document

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BillClerici/skill-forge-sub000/internal/config"
	"github.com/BillClerici/skill-forge-sub000/internal/types"
)

// Store provides string-keyed collection operations over MongoDB.
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
	logger  *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger for store diagnostics.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Connect opens a client against the configured MongoDB instance and
// verifies connectivity with a ping.
func Connect(ctx context.Context, cfg config.DocumentConfig, opts ...StoreOption) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, types.WrapError(types.DOC_CONNECT_FAILED, "failed to connect to document store", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, types.WrapError(types.DOC_CONNECT_FAILED, "document store ping failed", err)
	}

	s := &Store{
		client:  client,
		db:      client.Database(cfg.Database),
		timeout: cfg.Timeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Insert writes doc into coll, minting an id first when *id is zero. The
// caller passes a pointer to the document's ID field so minting happens
// exactly once, here.
func (s *Store) Insert(ctx context.Context, coll string, id *types.ID, doc any) (types.ID, error) {
	if id.IsZero() {
		*id = types.NewID()
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	if _, err := s.db.Collection(coll).InsertOne(opCtx, doc); err != nil {
		return "", types.WrapRetryableError(types.DOC_WRITE_FAILED, "insert into "+coll+" failed", err)
	}
	return *id, nil
}

// FindByID loads one document by _id into out.
func (s *Store) FindByID(ctx context.Context, coll string, id types.ID, out any) error {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	err := s.db.Collection(coll).FindOne(opCtx, bson.M{"_id": id.String()}).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return types.NewError(types.DOC_NOT_FOUND, coll+" document not found: "+id.String())
	}
	if err != nil {
		return types.WrapRetryableError(types.DOC_WRITE_FAILED, "find in "+coll+" failed", err)
	}
	return nil
}

// FindByIDs loads all documents whose _id is in ids into out (a pointer to
// a slice). Missing ids are silently absent from the result.
func (s *Store) FindByIDs(ctx context.Context, coll string, ids []types.ID, out any) error {
	if len(ids) == 0 {
		return nil
	}
	return s.FindWhereIn(ctx, coll, "_id", ids, out)
}

// FindWhere loads all documents with field == value into out.
func (s *Store) FindWhere(ctx context.Context, coll, field string, value any, out any) error {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	cursor, err := s.db.Collection(coll).Find(opCtx, bson.M{field: value})
	if err != nil {
		return types.WrapRetryableError(types.DOC_WRITE_FAILED, "find in "+coll+" failed", err)
	}
	return cursor.All(opCtx, out)
}

// FindWhereIn loads all documents whose field is in ids into out. This is
// the id-list lookup used to resolve one containment level per query
// instead of scanning children one parent at a time.
func (s *Store) FindWhereIn(ctx context.Context, coll, field string, ids []types.ID, out any) error {
	if len(ids) == 0 {
		return nil
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	cursor, err := s.db.Collection(coll).Find(opCtx, bson.M{field: bson.M{"$in": types.Strings(ids)}})
	if err != nil {
		return types.WrapRetryableError(types.DOC_WRITE_FAILED, "find in "+coll+" failed", err)
	}
	return cursor.All(opCtx, out)
}

// UpdateFields applies a $set of the given fields to one document.
func (s *Store) UpdateFields(ctx context.Context, coll string, id types.ID, fields map[string]any) error {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.Collection(coll).UpdateOne(opCtx,
		bson.M{"_id": id.String()},
		bson.M{"$set": fields})
	if err != nil {
		return types.WrapRetryableError(types.DOC_WRITE_FAILED, "update in "+coll+" failed", err)
	}
	return nil
}

// PullFromArray removes value from an array field on one document.
func (s *Store) PullFromArray(ctx context.Context, coll string, id types.ID, field string, value any) error {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.Collection(coll).UpdateOne(opCtx,
		bson.M{"_id": id.String()},
		bson.M{"$pull": bson.M{field: value}})
	if err != nil {
		return types.WrapRetryableError(types.DOC_WRITE_FAILED, "array pull in "+coll+" failed", err)
	}
	return nil
}

// AddToArray adds value to an array field on one document, without
// duplicates.
func (s *Store) AddToArray(ctx context.Context, coll string, id types.ID, field string, value any) error {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err := s.db.Collection(coll).UpdateOne(opCtx,
		bson.M{"_id": id.String()},
		bson.M{"$addToSet": bson.M{field: value}})
	if err != nil {
		return types.WrapRetryableError(types.DOC_WRITE_FAILED, "array add in "+coll+" failed", err)
	}
	return nil
}

// DeleteByID removes one document. Returns the deleted count (0 or 1).
func (s *Store) DeleteByID(ctx context.Context, coll string, id types.ID) (int64, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.Collection(coll).DeleteOne(opCtx, bson.M{"_id": id.String()})
	if err != nil {
		return 0, types.WrapRetryableError(types.DOC_DELETE_FAILED, "delete in "+coll+" failed", err)
	}
	return res.DeletedCount, nil
}

// DeleteManyByIDs bulk-removes documents by id-list. Returns the deleted
// count.
func (s *Store) DeleteManyByIDs(ctx context.Context, coll string, ids []types.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	res, err := s.db.Collection(coll).DeleteMany(opCtx,
		bson.M{"_id": bson.M{"$in": types.Strings(ids)}})
	if err != nil {
		return 0, types.WrapRetryableError(types.DOC_DELETE_FAILED, "bulk delete in "+coll+" failed", err)
	}

	s.logger.Debug("bulk delete", "collection", coll, "requested", len(ids), "deleted", res.DeletedCount)
	return res.DeletedCount, nil
}
