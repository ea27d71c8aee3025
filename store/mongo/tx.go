package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/accredit"
	"github.com/xraph/accredit/answer"
	"github.com/xraph/accredit/claim"
	"github.com/xraph/accredit/credit"
	"github.com/xraph/accredit/entitlement"
	"github.com/xraph/accredit/id"
	"github.com/xraph/accredit/store"
)

// tx is the store.Tx view over one session transaction. The context passed
// to each method must carry the session.
type tx struct {
	db *mongo.Database
}

var _ store.Tx = (*tx)(nil)

func (t *tx) GetAccount(ctx context.Context, userID string) (*entitlement.Account, error) {
	var m accountModel
	err := t.db.Collection(colAccounts).FindOne(ctx, bson.M{"_id": userID}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, accredit.ErrAccountNotFound
		}
		return nil, mapErr(err)
	}
	return fromAccountModel(&m), nil
}

func (t *tx) PutAccount(ctx context.Context, a *entitlement.Account) error {
	m := toAccountModel(a)
	m.Version = a.Version + 1

	_, err := t.db.Collection(colAccounts).ReplaceOne(ctx, bson.M{"_id": m.UserID}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return mapErr(err)
	}
	a.Version = m.Version
	return nil
}

func (t *tx) GetYearStats(ctx context.Context, userID, yearID string) (*credit.YearStats, error) {
	var m yearStatsModel
	err := t.db.Collection(colYearStats).FindOne(ctx, bson.M{"_id": statsID(userID, yearID)}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, accredit.ErrNotFound
		}
		return nil, mapErr(err)
	}
	return fromYearStatsModel(&m), nil
}

func (t *tx) PutYearStats(ctx context.Context, ys *credit.YearStats) error {
	m := toYearStatsModel(ys)
	m.Version = ys.Version + 1

	_, err := t.db.Collection(colYearStats).ReplaceOne(ctx, bson.M{"_id": m.ID}, m, options.Replace().SetUpsert(true))
	if err != nil {
		return mapErr(err)
	}
	ys.Version = m.Version
	return nil
}

func (t *tx) GetAnswer(ctx context.Context, userID, yearID, questionHash string) (*answer.Record, error) {
	var m answerModel
	err := t.db.Collection(colAnswers).FindOne(ctx, bson.M{"_id": answerID(userID, yearID, questionHash)}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, accredit.ErrNotFound
		}
		return nil, mapErr(err)
	}
	return fromAnswerModel(&m), nil
}

func (t *tx) PutAnswer(ctx context.Context, r *answer.Record) error {
	m := toAnswerModel(r)
	_, err := t.db.Collection(colAnswers).ReplaceOne(ctx, bson.M{"_id": m.ID}, m, options.Replace().SetUpsert(true))
	return mapErr(err)
}

func (t *tx) AppendClaim(ctx context.Context, c *claim.Claim) error {
	_, err := t.db.Collection(colClaims).InsertOne(ctx, toClaimModel(c))
	return mapErr(err)
}

// MarkEventProcessed reads before inserting: a duplicate key error inside
// a transaction aborts it.
func (t *tx) MarkEventProcessed(ctx context.Context, eventID, eventType string, at time.Time) (bool, error) {
	col := t.db.Collection(colEvents)

	err := col.FindOne(ctx, bson.M{"_id": eventID}).Err()
	switch {
	case err == nil:
		return false, nil
	case !isNoDocuments(err):
		return false, mapErr(err)
	}

	_, err = col.InsertOne(ctx, &eventModel{
		EventID:     eventID,
		ReceiptID:   id.NewReceiptID().String(),
		EventType:   eventType,
		ProcessedAt: at.UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("mark event %s: %w", eventID, mapErr(err))
	}
	return true, nil
}
