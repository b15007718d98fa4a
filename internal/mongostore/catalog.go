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

type Catalog struct {
	products *mongo.Collection
	log      logrus.FieldLogger
}

func (c *Catalog) CreateProduct(ctx context.Context, p models.Product) (*models.Product, error) {
	if len(p.Variations) > 0 && p.Quantity == 0 {
		p.Quantity = p.Variations.TotalQuantity()
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	p.ID = uuid.NewString()
	p.CreatedAt, p.UpdatedAt = now, now

	doc, err := newProductDoc(p)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	if _, err := c.products.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return &p, nil
}

func (c *Catalog) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var doc productDoc
	err := c.products.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	p := doc.model()
	return &p, nil
}

func (c *Catalog) DeleteProduct(ctx context.Context, id string) error {
	result, err := c.products.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if result.DeletedCount == 0 {
		return database.ErrProductNotFound
	}
	return nil
}

// ReserveStock is a single conditional update: the quantity is decremented only
// if it still covers amount.
func (c *Catalog) ReserveStock(ctx context.Context, productID string, amount int) (int, error) {
	var doc productDoc
	err := c.products.FindOneAndUpdate(ctx,
		bson.M{"_id": productID, "quantity": bson.M{"$gte": amount}},
		bson.M{
			"$inc":         bson.M{"quantity": -amount},
			"$currentDate": bson.M{"updated_at": true},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return doc.Quantity, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("decrement stock: %w", err)
	}

	current, err := c.GetProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	return 0, &database.InsufficientStockError{
		ProductID: productID,
		Requested: amount,
		Available: current.Quantity,
	}
}

func (c *Catalog) ReleaseStock(ctx context.Context, productID string, amount int) (int, error) {
	var doc productDoc
	err := c.products.FindOneAndUpdate(ctx,
		bson.M{"_id": productID},
		bson.M{
			"$inc":         bson.M{"quantity": amount},
			"$currentDate": bson.M{"updated_at": true},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, database.ErrProductNotFound
		}
		return 0, fmt.Errorf("increment stock: %w", err)
	}
	return doc.Quantity, nil
}

func (c *Catalog) ListProducts(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	total, err := c.products.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	products, err := c.find(ctx, opts)
	if err != nil {
		return nil, err
	}

	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}

	return &store.OffsetPage{
		Items:      products,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

func (c *Catalog) Subscribe(ctx context.Context) (<-chan []models.Product, error) {
	return watch(ctx, c.products, c.log, func(ctx context.Context) ([]models.Product, error) {
		return c.find(ctx, options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}))
	})
}

func (c *Catalog) find(ctx context.Context, opts *options.FindOptions) ([]models.Product, error) {
	cursor, err := c.products.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	var docs []productDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}

	products := make([]models.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.model())
	}
	return products, nil
}
