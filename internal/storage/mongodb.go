package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ety001/steem-account-watcher/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	operationsCollection  = "operations"
	syncStateCollection   = "sync_state"
	checkpointsCollection = "curation_checkpoints"
)

// MongoDB implements Store on top of MongoDB.
type MongoDB struct {
	client      *mongo.Client
	database    *mongo.Database
	operations  *mongo.Collection
	syncState   *mongo.Collection
	checkpoints *mongo.Collection
}

var _ Store = (*MongoDB)(nil)

// NewMongoDB creates a new MongoDB storage client
func NewMongoDB(uri, databaseName string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(databaseName)

	return &MongoDB{
		client:      client,
		database:    db,
		operations:  db.Collection(operationsCollection),
		syncState:   db.Collection(syncStateCollection),
		checkpoints: db.Collection(checkpointsCollection),
	}, nil
}

// Close closes the MongoDB connection
func (m *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoDB) dedupFilter(op *models.AccountOperation) bson.M {
	return bson.M{
		"account":   op.Account,
		"block_num": op.BlockNum,
		"trx_id":    op.TrxID,
		"op_in_trx": op.OpInTrx,
	}
}

// AppendOperation inserts op with the account's next sequence number.
// The sequence counter is the record count itself, so assignment and insert
// share the same durability boundary; the unique dedup index turns a lost
// race (or a re-run after a crash) into a lookup of the existing record.
// The block listener is the only concurrent writer per account, which keeps
// the count-then-insert step safe.
func (m *MongoDB) AppendOperation(ctx context.Context, op *models.AccountOperation) (int64, error) {
	var existing models.AccountOperation
	err := m.operations.FindOne(ctx, m.dedupFilter(op)).Decode(&existing)
	if err == nil {
		return existing.Sequence, nil
	}
	if err != mongo.ErrNoDocuments {
		return 0, &PersistError{Op: "find operation", Err: err}
	}

	seq, err := m.operations.CountDocuments(ctx, bson.M{"account": op.Account})
	if err != nil {
		return 0, &PersistError{Op: "count operations", Err: err}
	}

	op.Sequence = seq
	op.CreatedAt = time.Now().UTC()

	if _, err := m.operations.InsertOne(ctx, op); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if err := m.operations.FindOne(ctx, m.dedupFilter(op)).Decode(&existing); err != nil {
				return 0, &PersistError{Op: "reread operation", Err: err}
			}
			return existing.Sequence, nil
		}
		return 0, &PersistError{Op: "insert operation", Err: err}
	}

	return seq, nil
}

// CountOperations returns the number of records for an account.
func (m *MongoDB) CountOperations(ctx context.Context, account string) (int64, error) {
	count, err := m.operations.CountDocuments(ctx, bson.M{"account": account})
	if err != nil {
		return 0, &PersistError{Op: "count operations", Err: err}
	}
	return count, nil
}

// ReadOperations returns records with sequence in [start, start+limit) in
// ascending sequence order.
func (m *MongoDB) ReadOperations(ctx context.Context, account string, start, limit int64) ([]models.AccountOperation, error) {
	if start < 0 {
		start = 0
	}
	if limit <= 0 {
		return []models.AccountOperation{}, nil
	}

	filter := bson.M{
		"account":  account,
		"sequence": bson.M{"$gte": start, "$lt": start + limit},
	}
	opts := options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}})

	cursor, err := m.operations.Find(ctx, filter, opts)
	if err != nil {
		return nil, &PersistError{Op: "find operations", Err: err}
	}
	defer cursor.Close(ctx)

	operations := []models.AccountOperation{}
	if err := cursor.All(ctx, &operations); err != nil {
		return nil, &PersistError{Op: "decode operations", Err: err}
	}

	return operations, nil
}

// TrackedAccounts returns the distinct accounts with recorded operations.
func (m *MongoDB) TrackedAccounts(ctx context.Context) ([]string, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$account"},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "_id", Value: 1},
		}}},
	}

	cursor, err := m.operations.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, &PersistError{Op: "aggregate accounts", Err: err}
	}
	defer cursor.Close(ctx)

	var results []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, &PersistError{Op: "decode accounts", Err: err}
	}

	accounts := make([]string, len(results))
	for i, result := range results {
		accounts[i] = result.ID
	}

	return accounts, nil
}

// GetSyncState retrieves the listener cursor, defaulting to block 0 when no
// cursor has been written yet.
func (m *MongoDB) GetSyncState(ctx context.Context) (*models.SyncState, error) {
	var state models.SyncState
	err := m.syncState.FindOne(ctx, bson.M{}).Decode(&state)
	if err == mongo.ErrNoDocuments {
		return &models.SyncState{UpdatedAt: time.Now().UTC()}, nil
	}
	if err != nil {
		return nil, &PersistError{Op: "get sync state", Err: err}
	}
	return &state, nil
}

// UpdateSyncState persists the listener cursor.
func (m *MongoDB) UpdateSyncState(ctx context.Context, lastBlock, lastIrreversible int64) error {
	state := models.SyncState{
		LastBlock:             lastBlock,
		LastIrreversibleBlock: lastIrreversible,
		UpdatedAt:             time.Now().UTC(),
	}

	opts := options.Update().SetUpsert(true)
	if _, err := m.syncState.UpdateOne(ctx, bson.M{}, bson.M{"$set": state}, opts); err != nil {
		return &PersistError{Op: "update sync state", Err: err}
	}
	return nil
}

// GetCheckpoint retrieves the curation checkpoint for an account.
func (m *MongoDB) GetCheckpoint(ctx context.Context, account string) (*models.CurationCheckpoint, error) {
	var checkpoint models.CurationCheckpoint
	err := m.checkpoints.FindOne(ctx, bson.M{"account": account}).Decode(&checkpoint)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistError{Op: "get checkpoint", Err: err}
	}
	return &checkpoint, nil
}

// SaveCheckpoint upserts the curation checkpoint for an account.
func (m *MongoDB) SaveCheckpoint(ctx context.Context, checkpoint *models.CurationCheckpoint) error {
	opts := options.Update().SetUpsert(true)
	filter := bson.M{"account": checkpoint.Account}
	if _, err := m.checkpoints.UpdateOne(ctx, filter, bson.M{"$set": checkpoint}, opts); err != nil {
		return &PersistError{Op: "save checkpoint", Err: err}
	}
	return nil
}

// CreateIndexes creates necessary indexes for better query performance
func (m *MongoDB) CreateIndexes(ctx context.Context) error {
	// Unique dedup index: an operation is uniquely identified by
	// block_num + trx_id + op_in_trx + account
	dedupIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "block_num", Value: 1},
			{Key: "trx_id", Value: 1},
			{Key: "op_in_trx", Value: 1},
			{Key: "account", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}

	// Unique per-account sequence index, used for range reads
	sequenceIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "account", Value: 1},
			{Key: "sequence", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}

	opTypeIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "op_type", Value: 1}},
	}

	_, err := m.operations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		dedupIndex,
		sequenceIndex,
		opTypeIndex,
	})
	if err != nil {
		return err
	}

	checkpointIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "account", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, err = m.checkpoints.Indexes().CreateMany(ctx, []mongo.IndexModel{checkpointIndex})
	return err
}
