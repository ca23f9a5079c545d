// Package store persists accepted investigations in MongoDB.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	investigationsCollection = "investigations"
	defaultTimeout           = 10 * time.Second
)

// ErrDuplicateBridgeTx means the submission's bridge transaction hash is
// already attached to a stored investigation. One payment funds one
// submission; callers treat this as a client error, not a store failure.
var ErrDuplicateBridgeTx = errors.New("bridge transaction already used")

type Store struct {
	client       *mongo.Client
	databaseName string
	logger       *zap.Logger
}

type Opts struct {
	URI          string
	DatabaseName string
	Logger       *zap.Logger
}

func NewStore(opts Opts) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetMaxPoolSize(100).
		SetServerSelectionTimeout(5 * time.Second).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Store{
		client:       client,
		databaseName: opts.DatabaseName,
		logger:       opts.Logger.With(zap.String("component", "Store")),
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) collection() *mongo.Collection {
	return s.client.Database(s.databaseName).Collection(investigationsCollection)
}

// CreateIndexes sets up the investigations indexes. The unique index on the
// bridge transaction hash prevents one payment from funding two submissions.
func (s *Store) CreateIndexes(ctx context.Context) error {
	_, err := s.collection().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "bridge_tx.hash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "bridge_status", Value: 1}}},
		{Keys: bson.D{{Key: "user_wallet", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create investigations indexes: %w", err)
	}
	return nil
}

// Insert stores a new investigation and returns its assigned ID.
func (s *Store) Insert(ctx context.Context, inv *Investigation) (primitive.ObjectID, error) {
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	res, err := s.collection().InsertOne(ctx, inv)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, fmt.Errorf("%w: %s", ErrDuplicateBridgeTx, inv.BridgeTx.Hash)
		}
		return primitive.NilObjectID, fmt.Errorf("failed to insert investigation: %w", err)
	}

	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("unexpected inserted ID type %T", res.InsertedID)
	}
	inv.ID = id
	return id, nil
}

// UpdateBridgeStatus moves an investigation to a new bridge lifecycle state.
func (s *Store) UpdateBridgeStatus(ctx context.Context, id primitive.ObjectID, status BridgeStatus) error {
	res, err := s.collection().UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"bridge_status": status,
			"updated_at":    time.Now().UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to update bridge status: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("investigation %s not found", id.Hex())
	}
	s.logger.Debug("Bridge status updated",
		zap.String("id", id.Hex()),
		zap.String("status", string(status)))
	return nil
}

// FindPendingBySequence looks up a pending investigation by its bridge
// sequence number; used by the completion watcher's streaming mode.
func (s *Store) FindPendingBySequence(ctx context.Context, sequence string) (*Investigation, error) {
	var inv Investigation
	err := s.collection().FindOne(ctx, bson.M{
		"bridge_status":               BridgePending,
		"bridge_tx.wormhole_sequence": sequence,
	}).Decode(&inv)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pending investigation: %w", err)
	}
	return &inv, nil
}

// List returns a page of investigations, newest first.
func (s *Store) List(ctx context.Context, filter Filter, page, pageSize int64) (*Page, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["bridge_status"] = filter.Status
	}
	if filter.UserWallet != "" {
		query["user_wallet"] = filter.UserWallet
	}

	coll := s.collection()
	total, err := coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count investigations: %w", err)
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip((page - 1) * pageSize).
		SetLimit(pageSize)

	cursor, err := coll.Find(ctx, query, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to query investigations: %w", err)
	}
	defer cursor.Close(ctx)

	investigations := make([]Investigation, 0, pageSize)
	if err := cursor.All(ctx, &investigations); err != nil {
		return nil, fmt.Errorf("failed to decode investigations: %w", err)
	}

	return &Page{
		Investigations: investigations,
		Total:          total,
		PageNumber:     page,
		PageSize:       pageSize,
	}, nil
}
