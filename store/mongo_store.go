package store

import (
	"context"
	"os"

	"github.com/Luismorlan/postmux/normalizer"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	// Numeric copy of the record timestamp, records may carry it as an ISO
	// string. It is stripped when reading records back.
	epochField = "_epoch"

	defaultMongoDB         = "postmux"
	defaultMongoCollection = "records"
)

type MongoRecordStore struct {
	collection *mongo.Collection
}

// NewMongoRecordStore uses collection as is and makes sure the timestamp index
// exists.
func NewMongoRecordStore(ctx context.Context, collection *mongo.Collection) (*MongoRecordStore, error) {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: epochField, Value: 1}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "fail to create timestamp index")
	}
	return &MongoRecordStore{collection: collection}, nil
}

// NewMongoRecordStoreFromEnv connects with MONGO_URI and opens MONGO_DB /
// MONGO_COLLECTION.
func NewMongoRecordStoreFromEnv(ctx context.Context) (*MongoRecordStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(os.Getenv("MONGO_URI")))
	if err != nil {
		return nil, errors.Wrap(err, "fail to connect to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "mongo does not answer")
	}
	collection := client.
		Database(envOr("MONGO_DB", defaultMongoDB)).
		Collection(envOr("MONGO_COLLECTION", defaultMongoCollection))
	return NewMongoRecordStore(ctx, collection)
}

func (s *MongoRecordStore) Save(ctx context.Context, record normalizer.Record) error {
	epoch, err := recordEpoch(record)
	if err != nil {
		return err
	}
	doc := bson.M{}
	for key, value := range record {
		doc[key] = value
	}
	doc[epochField] = epoch

	_, err = s.collection.ReplaceOne(ctx,
		bson.M{normalizer.IdKey: record.ID()},
		doc,
		options.Replace().SetUpsert(true),
	)
	return errors.Wrapf(err, "fail to upsert record %s", record.ID())
}

func (s *MongoRecordStore) Get(ctx context.Context, id string) (normalizer.Record, error) {
	doc := bson.M{}
	err := s.collection.FindOne(ctx, bson.M{normalizer.IdKey: id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, errors.Wrapf(ErrRecordNotFound, "id %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fail to read record %s", id)
	}
	return recordFromBSON(doc), nil
}

func (s *MongoRecordStore) Range(ctx context.Context, start, end float64) ([]normalizer.Record, error) {
	cursor, err := s.collection.Find(ctx,
		bson.M{epochField: bson.M{"$gte": start, "$lt": end}},
		options.Find().SetSort(bson.D{{Key: normalizer.IdKey, Value: 1}}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "fail to query records")
	}
	docs := []bson.M{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "fail to read records")
	}
	res := make([]normalizer.Record, 0, len(docs))
	for _, doc := range docs {
		res = append(res, recordFromBSON(doc))
	}
	return res, nil
}

func recordFromBSON(doc bson.M) normalizer.Record {
	record := normalizer.Record{}
	for key, value := range doc {
		if key == epochField {
			continue
		}
		record[key] = fromBSON(value)
	}
	return record
}

// fromBSON turns driver container types back into the plain maps and slices
// records are made of.
func fromBSON(value interface{}) interface{} {
	switch v := value.(type) {
	case primitive.M:
		m := make(map[string]interface{}, len(v))
		for key, item := range v {
			m[key] = fromBSON(item)
		}
		return m
	case primitive.D:
		m := make(map[string]interface{}, len(v))
		for _, elem := range v {
			m[elem.Key] = fromBSON(elem.Value)
		}
		return m
	case primitive.A:
		list := make([]interface{}, 0, len(v))
		for _, item := range v {
			list = append(list, fromBSON(item))
		}
		return list
	}
	return value
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
