package catalog

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"shopassist/internal/domain"
)

const (
	defaultMongoDatabase   = "store"
	defaultMongoCollection = "products"
)

// productDocument is the stored shape of a product.
type productDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	UnitPrice float64            `bson:"unit_price"`
	Stock     int                `bson:"stock"`
}

func (d productDocument) toProduct() domain.Product {
	return domain.Product{Name: d.Name, UnitPrice: d.UnitPrice, Stock: d.Stock}
}

// MongoStore reads products from a MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongoStore connects and pings MongoDB. An empty database falls back to
// the database in the URI path, then to "store".
func NewMongoStore(ctx context.Context, uri, database, collection string, timeout time.Duration) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		database = databaseFromURI(uri)
	}
	if collection == "" {
		collection = defaultMongoCollection
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(timeout))
	if err != nil {
		return nil, unavailable("connect", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, unavailable("ping", err)
	}
	return &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(collection),
		timeout:    timeout,
	}, nil
}

func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return defaultMongoDatabase
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return defaultMongoDatabase
}

// nameFilter matches term anywhere in the name, case-insensitively. The term
// is quoted so regex metacharacters in product names match literally.
func nameFilter(term string) bson.M {
	return bson.M{"name": bson.M{"$regex": regexp.QuoteMeta(term), "$options": "i"}}
}

func (s *MongoStore) FindByNameSubstring(ctx context.Context, term string, limit int) ([]domain.Product, error) {
	limit, ok := normalizeLimit(limit)
	if !ok {
		return nil, nil
	}
	return s.find(ctx, "find products", nameFilter(term), limit)
}

func (s *MongoStore) List(ctx context.Context, limit int) ([]domain.Product, error) {
	limit, ok := normalizeLimit(limit)
	if !ok {
		return nil, nil
	}
	return s.find(ctx, "list products", bson.M{}, limit)
}

func (s *MongoStore) find(ctx context.Context, op string, filter bson.M, limit int) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cursor, err := s.collection.Find(ctx, filter, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer cursor.Close(ctx)

	out := make([]domain.Product, 0, limit)
	for cursor.Next(ctx) {
		var doc productDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, unavailable(op+": decode", err)
		}
		out = append(out, doc.toProduct())
	}
	if err := cursor.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return out, nil
}

// Ping runs a metadata-only document count.
func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.collection.EstimatedDocumentCount(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
