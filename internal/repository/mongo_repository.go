package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Prices are stored as decimal strings; bson has no decimal.Decimal codec.
type cartDocument struct {
	ID        string         `bson:"_id,omitempty"`
	OwnerKey  string         `bson:"owner_key"`
	Items     []itemDocument `bson:"items"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

type itemDocument struct {
	ID          string    `bson:"id"`
	ProductID   int64     `bson:"product_id"`
	ProductName string    `bson:"product_name,omitempty"`
	Name        string    `bson:"name,omitempty"`
	Price       string    `bson:"price"`
	Quantity    int       `bson:"quantity"`
	Image       string    `bson:"image"`
	AddedAt     time.Time `bson:"added_at"`
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m mongoRepository) GetCart(ctx context.Context, ownerKey string) (*domain.Cart, error) {
	var doc cartDocument

	err := m.collection.FindOne(ctx, bson.M{"owner_key": ownerKey}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return doc.toDomain()
}

// AddItem increases the quantity when the product is already in the cart.
func (m mongoRepository) AddItem(ctx context.Context, ownerKey string, item domain.CartItem) error {
	now := time.Now().UTC()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.AddedAt = now
	doc := newItemDocument(item)

	filter := bson.M{"owner_key": ownerKey}

	var existing cartDocument
	err := m.collection.FindOne(ctx, filter).Decode(&existing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			cart := cartDocument{
				OwnerKey:  ownerKey,
				Items:     []itemDocument{doc},
				CreatedAt: now,
				UpdatedAt: now,
			}
			if _, err := m.collection.InsertOne(ctx, cart); err != nil {
				return fmt.Errorf("failed to create cart with item: %w", err)
			}
			return nil
		}
		return fmt.Errorf("failed to check existing cart: %w", err)
	}

	for _, existingItem := range existing.Items {
		if existingItem.ProductID != doc.ProductID {
			continue
		}
		update := bson.M{
			"$set": bson.M{
				"items.$[elem].quantity": existingItem.Quantity + item.Quantity,
				"items.$[elem].price":    doc.Price,
				"items.$[elem].added_at": now,
				"updated_at":             now,
			},
		}
		arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"elem.product_id": doc.ProductID},
			},
		})
		if _, err := m.collection.UpdateOne(ctx, filter, update, arrayFilters); err != nil {
			return fmt.Errorf("failed to update existing item: %w", err)
		}
		return nil
	}

	update := bson.M{
		"$push": bson.M{"items": doc},
		"$set":  bson.M{"updated_at": now},
	}
	if _, err := m.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to add new item: %w", err)
	}
	return nil
}

func (m mongoRepository) RemoveItem(ctx context.Context, ownerKey string, productID int64) error {
	filter := bson.M{
		"owner_key":        ownerKey,
		"items.product_id": productID,
	}
	update := bson.M{
		"$pull": bson.M{"items": bson.M{"product_id": productID}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}

	result, err := m.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (m mongoRepository) DeleteCart(ctx context.Context, ownerKey string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"owner_key": ownerKey})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// EnsureIndexes creates the cart indexes when repo is backed by MongoDB.
func EnsureIndexes(ctx context.Context, repo CartRepository) error {
	if m, ok := repo.(*mongoRepository); ok {
		return m.CreateIndexes(ctx)
	}
	return nil
}

func newItemDocument(item domain.CartItem) itemDocument {
	doc := itemDocument{
		ID:        item.ID,
		ProductID: item.CatalogID(),
		Name:      item.Name,
		Price:     item.Price.String(),
		Quantity:  item.Quantity,
		Image:     item.Image,
		AddedAt:   item.AddedAt,
	}
	if item.Product != nil {
		doc.ProductName = item.Product.Name
	}
	return doc
}

func (d cartDocument) toDomain() (*domain.Cart, error) {
	cart := &domain.Cart{
		OwnerKey:  d.OwnerKey,
		Items:     make([]domain.CartItem, 0, len(d.Items)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, it := range d.Items {
		price, err := decimal.NewFromString(it.Price)
		if err != nil {
			return nil, fmt.Errorf("invalid price %q for product %d: %w", it.Price, it.ProductID, err)
		}
		item := domain.CartItem{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     price,
			Quantity:  it.Quantity,
			Image:     it.Image,
			AddedAt:   it.AddedAt,
		}
		if it.ProductName != "" {
			item.Product = &domain.ProductRef{ID: it.ProductID, Name: it.ProductName}
		}
		cart.Items = append(cart.Items, item)
	}
	return cart, nil
}
