// Package mongo implements store.Store on MongoDB. Transactions run in a
// session with snapshot read concern and majority write concern; write
// conflicts and duplicate keys surface as store.ErrConflict. Transactions
// need a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readconcern"
	"go.mongodb.org/mongo-driver/v2/mongo/writeconcern"

	"github.com/xraph/accredit"
	"github.com/xraph/accredit/claim"
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/id"
	"github.com/xraph/accredit/store"
	"github.com/xraph/accredit/window"
)

// Collection name constants.
const (
	colAccounts  = "accredit_accounts"
	colYearStats = "accredit_year_stats"
	colAnswers   = "accredit_answers"
	colClaims    = "accredit_claims"
	colEvents    = "accredit_processed_events"
	colWindows   = "accredit_windows"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New creates a store over the named database of client.
func New(client *mongo.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
	}
}

// Open connects to uri and verifies the connection.
func Open(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("accredit/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("accredit/mongo: ping: %w", err)
	}
	return New(client, database), nil
}

// Database returns the underlying database handle.
func (s *Store) Database() *mongo.Database { return s.db }

// Migrate creates indexes for all accredit collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("accredit/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// ==================== Accounts ====================

func (s *Store) GetAccount(ctx context.Context, userID string) (*entitlement.Account, error) {
	var m accountModel
	err := s.db.Collection(colAccounts).FindOne(ctx, bson.M{"_id": userID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, accredit.ErrAccountNotFound
		}
		return nil, fmt.Errorf("accredit/mongo: get account: %w", err)
	}
	return fromAccountModel(&m), nil
}

func (s *Store) CreateAccount(ctx context.Context, a *entitlement.Account) error {
	m := toAccountModel(a)
	m.Version = 1

	_, err := s.db.Collection(colAccounts).InsertOne(ctx, m)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return accredit.ErrAlreadyExists
		}
		return fmt.Errorf("accredit/mongo: create account: %w", err)
	}
	a.Version = m.Version
	return nil
}

func (s *Store) FindAccountsByCustomerID(ctx context.Context, customerID string) ([]*entitlement.Account, error) {
	result := make([]*entitlement.Account, 0, 1)
	if customerID == "" {
		return result, nil
	}

	return s.findAccounts(ctx, bson.M{"customer_id": customerID}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
}

func (s *Store) ListStaleAccounts(ctx context.Context, now time.Time, limit int) ([]*entitlement.Account, error) {
	now = now.UTC()
	filter := bson.M{"$or": bson.A{
		bson.M{
			"tier": string(entitlement.TierCMEAnnual),
			"$or":  bson.A{bson.M{"cme_live_until": nil}, bson.M{"cme_live_until": bson.M{"$lte": now}}},
		},
		bson.M{
			"tier": string(entitlement.TierBoardReview),
			"$or":  bson.A{bson.M{"board_review_live_until": nil}, bson.M{"board_review_live_until": bson.M{"$lte": now}}},
		},
	}}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.findAccounts(ctx, filter, opts)
}

func (s *Store) findAccounts(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]*entitlement.Account, error) {
	cursor, err := s.db.Collection(colAccounts).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("accredit/mongo: find accounts: %w", err)
	}

	var models []accountModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("accredit/mongo: decode accounts: %w", err)
	}

	result := make([]*entitlement.Account, 0, len(models))
	for i := range models {
		result = append(result, fromAccountModel(&models[i]))
	}
	return result, nil
}

// ==================== Claims ====================

func (s *Store) ListClaims(ctx context.Context, userID string, opts claim.ListOpts) ([]*claim.Claim, error) {
	findOpts := options.Find().
		SetSort(bson.D{{Key: "claimed_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(opts.Offset))
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := s.db.Collection(colClaims).Find(ctx, bson.M{"user_id": userID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("accredit/mongo: list claims: %w", err)
	}

	var models []claimModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("accredit/mongo: decode claims: %w", err)
	}

	result := make([]*claim.Claim, 0, len(models))
	for i := range models {
		c, err := fromClaimModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

func (s *Store) AttachClaimArtifact(ctx context.Context, userID string, claimID id.ClaimID, path string) error {
	res, err := s.db.Collection(colClaims).UpdateOne(ctx,
		bson.M{"_id": claimID.String(), "user_id": userID},
		bson.M{"$set": bson.M{"file_path": path}},
	)
	if err != nil {
		return fmt.Errorf("accredit/mongo: attach artifact: %w", err)
	}
	if res.MatchedCount == 0 {
		return accredit.ErrNotFound
	}
	return nil
}

// ==================== Windows ====================

func (s *Store) ListWindows(ctx context.Context) ([]*window.Window, error) {
	cursor, err := s.db.Collection(colWindows).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("accredit/mongo: list windows: %w", err)
	}

	var models []windowModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("accredit/mongo: decode windows: %w", err)
	}

	result := make([]*window.Window, 0, len(models))
	for i := range models {
		result = append(result, fromWindowModel(&models[i]))
	}
	return result, nil
}

func (s *Store) PutWindow(ctx context.Context, w *window.Window) error {
	m := &windowModel{ID: w.ID, StartDate: w.StartDate.UTC(), EndDate: w.EndDate.UTC()}
	_, err := s.db.Collection(colWindows).ReplaceOne(ctx, bson.M{"_id": m.ID}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("accredit/mongo: put window: %w", err)
	}
	return nil
}

// ==================== Transactions ====================

// RunInTx runs fn once in a multi-document transaction. The driver's
// automatic retry is not used; conflicts are reported as store.ErrConflict
// for the caller to retry.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("accredit/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := sess.StartTransaction(txnOpts); err != nil {
		return fmt.Errorf("accredit/mongo: start transaction: %w", err)
	}

	sctx := mongo.NewSessionContext(ctx, sess)
	if err := fn(sctx, &tx{db: s.db}); err != nil {
		_ = sess.AbortTransaction(context.WithoutCancel(ctx))
		return err
	}

	if err := sess.CommitTransaction(sctx); err != nil {
		_ = sess.AbortTransaction(context.WithoutCancel(ctx))
		return mapErr(err)
	}
	return nil
}

// mapErr translates transaction aborts into store.ErrConflict.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %w", store.ErrConflict, err)
	}

	var labeled mongo.ServerError
	if errors.As(err, &labeled) &&
		(labeled.HasErrorLabel("TransientTransactionError") || labeled.HasErrorLabel("UnknownTransactionCommitResult")) {
		return fmt.Errorf("%w: %w", store.ErrConflict, err)
	}
	return err
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all accredit collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAccounts: {
			{Keys: bson.D{{Key: "customer_id", Value: 1}}},
			{Keys: bson.D{{Key: "tier", Value: 1}, {Key: "cme_live_until", Value: 1}}},
			{Keys: bson.D{{Key: "tier", Value: 1}, {Key: "board_review_live_until", Value: 1}}},
		},
		colYearStats: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "year_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colAnswers: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "year_id", Value: 1}, {Key: "question_hash", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colClaims: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "claimed_at", Value: 1}}},
		},
		colEvents: {
			{Keys: bson.D{{Key: "processed_at", Value: -1}}},
		},
		colWindows: {
			{Keys: bson.D{{Key: "start_date", Value: 1}}},
		},
	}
}
