package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/safar/stockbill/internal/database"
	"github.com/safar/stockbill/internal/models"
	"github.com/safar/stockbill/internal/store"
)

const liveBillLimit = 100

type Ledger struct {
	bills   *mongo.Collection
	retired *mongo.Collection
	log     logrus.FieldLogger
}

func (l *Ledger) CreateBill(ctx context.Context, bill *models.Bill) (*models.Bill, error) {
	created := *bill
	created.ID = uuid.NewString()
	created.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	created.Items = append([]models.BillItem(nil), bill.Items...)

	doc, err := newBillDoc(created)
	if err != nil {
		return nil, fmt.Errorf("create bill: %w", err)
	}
	if _, err := l.bills.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, database.ErrDuplicateBillNumber
		}
		return nil, fmt.Errorf("create bill: %w", err)
	}

	return &created, nil
}

func (l *Ledger) GetBill(ctx context.Context, id string) (*models.Bill, error) {
	var doc billDoc
	err := l.bills.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, database.ErrBillNotFound
		}
		return nil, fmt.Errorf("get bill: %w", err)
	}

	bill := doc.model()
	return &bill, nil
}

// DeleteBill retires the bill's number before removing the document, so the
// number is never handed out again.
func (l *Ledger) DeleteBill(ctx context.Context, id string) error {
	var doc struct {
		BillNumber      string `bson:"bill_number"`
		BillNumberValue int64  `bson:"bill_number_value"`
	}
	err := l.bills.FindOne(ctx, bson.M{"_id": id},
		options.FindOne().SetProjection(bson.M{"bill_number": 1, "bill_number_value": 1}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return database.ErrBillNotFound
		}
		return fmt.Errorf("delete bill: %w", err)
	}

	_, err = l.retired.UpdateOne(ctx,
		bson.M{"_id": doc.BillNumber},
		bson.M{"$setOnInsert": bson.M{
			"bill_number_value": doc.BillNumberValue,
			"retired_at":        time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("retire bill number: %w", err)
	}

	result, err := l.bills.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}
	if result.DeletedCount == 0 {
		return database.ErrBillNotFound
	}
	return nil
}

// ListBillNumbers returns live and retired numbers alike.
func (l *Ledger) ListBillNumbers(ctx context.Context) ([]string, error) {
	cursor, err := l.bills.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"bill_number": 1}))
	if err != nil {
		return nil, fmt.Errorf("list bill numbers: %w", err)
	}

	var docs []struct {
		BillNumber string `bson:"bill_number"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode bill numbers: %w", err)
	}

	numbers := make([]string, 0, len(docs))
	for _, doc := range docs {
		numbers = append(numbers, doc.BillNumber)
	}

	cursor, err = l.retired.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("list retired bill numbers: %w", err)
	}
	var retired []struct {
		BillNumber string `bson:"_id"`
	}
	if err := cursor.All(ctx, &retired); err != nil {
		return nil, fmt.Errorf("decode retired bill numbers: %w", err)
	}
	for _, doc := range retired {
		numbers = append(numbers, doc.BillNumber)
	}

	return numbers, nil
}

func (l *Ledger) ListBills(ctx context.Context, cursor string, limit int) (*store.CursorPage, error) {
	cursorData, err := store.DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	bills, err := l.find(ctx,
		bson.M{"bill_number_value": bson.M{"$lt": cursorData.NumberValue}},
		int64(limit+1))
	if err != nil {
		return nil, err
	}

	return store.NextPage(bills, limit, func(b models.Bill) int64 { return b.BillNumberValue }), nil
}

func (l *Ledger) Subscribe(ctx context.Context) (<-chan []models.Bill, error) {
	return watch(ctx, l.bills, l.log, func(ctx context.Context) ([]models.Bill, error) {
		return l.find(ctx, bson.M{}, liveBillLimit)
	})
}

func (l *Ledger) find(ctx context.Context, filter bson.M, limit int64) ([]models.Bill, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "bill_number_value", Value: -1}}).
		SetLimit(limit)

	cursor, err := l.bills.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}

	var docs []billDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode bills: %w", err)
	}

	bills := make([]models.Bill, 0, len(docs))
	for _, doc := range docs {
		bills = append(bills, doc.model())
	}
	return bills, nil
}
