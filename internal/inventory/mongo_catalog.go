package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const productsCollection = "products"

type productDocument struct {
	ID        primitive.ObjectID `bson:"_id"`
	Name      string             `bson:"name"`
	Price     decimal.Decimal    `bson:"price"`
	Stock     int                `bson:"stock"`
	IsActive  *bool              `bson:"isActive"`
	IsDeleted bool               `bson:"isDeleted"`
	Images    []struct {
		URL       string `bson:"url"`
		IsPrimary bool   `bson:"isPrimary"`
	} `bson:"images"`
}

// MongoCatalog reads products straight from the catalog's products
// collection. The database must be opened with the decimal-aware registry
// of repository.ConnectMongoDB.
type MongoCatalog struct {
	collection *mongo.Collection
}

func NewMongoCatalog(db *mongo.Database) *MongoCatalog {
	return &MongoCatalog{collection: db.Collection(productsCollection)}
}

func (c *MongoCatalog) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	oid, err := primitive.ObjectIDFromHex(productID)
	if err != nil {
		// ids that cannot exist in the collection
		return domain.Product{}, domain.ErrProductNotFound
	}

	projection := bson.M{"name": 1, "price": 1, "stock": 1, "isActive": 1, "isDeleted": 1, "images": 1}
	var doc productDocument
	err = c.collection.FindOne(ctx, bson.M{"_id": oid}, options.FindOne().SetProjection(projection)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to get product: %w", err)
	}

	images := make([]catalogImage, 0, len(doc.Images))
	for _, img := range doc.Images {
		images = append(images, catalogImage{URL: img.URL, IsPrimary: img.IsPrimary})
	}

	return domain.Product{
		ID:        doc.ID.Hex(),
		Name:      doc.Name,
		Image:     primaryImage(images),
		Price:     doc.Price,
		Stock:     doc.Stock,
		IsActive:  doc.IsActive == nil || *doc.IsActive,
		IsDeleted: doc.IsDeleted,
	}, nil
}
