package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arrxxhh/Payment-gateway/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// maxCASAttempts bounds how often an update re-reads a record whose version moved.
const maxCASAttempts = 5

type MongoTransactionRepository struct {
	collection *mongo.Collection
}

func NewMongoTransactionRepository(db *mongo.Database) *MongoTransactionRepository {
	return &MongoTransactionRepository{collection: db.Collection("transactions")}
}

// EnsureIndexes creates the unique hash index and the scan indexes.
func (r *MongoTransactionRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "txn_id_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id_hash", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create transaction indexes: %w", err)
	}
	return nil
}

func (r *MongoTransactionRepository) Insert(ctx context.Context, txn *models.Transaction) error {
	if _, err := r.collection.InsertOne(ctx, txn); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (r *MongoTransactionRepository) FindByHash(ctx context.Context, txnIDHash string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.collection.FindOne(ctx, bson.M{"txn_id_hash": txnIDHash}).Decode(&txn)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &txn, nil
}

func (r *MongoTransactionRepository) FindManyByHashes(ctx context.Context, txnIDHashes []string, status *models.TransactionStatus) ([]models.Transaction, error) {
	if len(txnIDHashes) == 0 {
		return nil, nil
	}
	filter := bson.M{"txn_id_hash": bson.M{"$in": txnIDHashes}}
	if status != nil {
		filter["status"] = string(*status)
	}
	return r.find(ctx, filter, nil)
}

func (r *MongoTransactionRepository) Scan(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	return r.find(ctx, mongoFilter(filter), opts)
}

func (r *MongoTransactionRepository) Count(ctx context.Context, filter TransactionFilter) (int64, error) {
	return r.collection.CountDocuments(ctx, mongoFilter(filter))
}

// Update swaps the document only if its version is unchanged since it was read.
func (r *MongoTransactionRepository) Update(ctx context.Context, txnIDHash string, mutate MutateFunc) (*models.Transaction, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		row, err := r.FindByHash(ctx, txnIDHash)
		if err != nil {
			return nil, err
		}
		prev := row.Version

		if err := mutate(row); err != nil {
			return nil, err
		}
		row.TxnIDHash = txnIDHash
		row.Version = prev + 1
		row.UpdatedAt = time.Now().UTC()

		filter := bson.M{"txn_id_hash": txnIDHash, "version": prev}
		if prev == 0 {
			// rows written before versioning have no version field
			filter["version"] = bson.M{"$in": bson.A{0, nil}}
		}
		res, err := r.collection.ReplaceOne(ctx, filter, row)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 1 {
			return row, nil
		}
	}
	return nil, ErrConcurrentUpdate
}

func (r *MongoTransactionRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Transaction, error) {
	var findOpts []*options.FindOptions
	if opts != nil {
		findOpts = append(findOpts, opts)
	}
	cursor, err := r.collection.Find(ctx, filter, findOpts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var txns []models.Transaction
	if err := cursor.All(ctx, &txns); err != nil {
		return nil, err
	}
	return txns, nil
}

func mongoFilter(f TransactionFilter) bson.M {
	m := bson.M{}
	if len(f.Statuses) > 0 {
		m["status"] = bson.M{"$in": statusStrings(f.Statuses)}
	}
	if f.Method != "" {
		m["method"] = string(f.Method)
	}
	if f.UserIDHash != "" {
		m["user_id_hash"] = f.UserIDHash
	}
	if f.From != nil || f.To != nil {
		rng := bson.M{}
		if f.From != nil {
			rng["$gte"] = *f.From
		}
		if f.To != nil {
			rng["$lte"] = *f.To
		}
		m["timestamp"] = rng
	}
	if f.SettledOnly {
		m["settlement_date"] = bson.M{"$ne": nil}
	}
	return m
}
