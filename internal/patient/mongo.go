package patient

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "patients"

type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection(CollectionName)}
}

// EnsureIndexes creates the unique registration number index that Create
// relies on to reject concurrent duplicates.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "regNumber", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("regNumber_unique"),
	})
	if err != nil {
		return fmt.Errorf("create patients index: %w", err)
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, record *Record) error {
	_, err := s.collection.InsertOne(ctx, record)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateRegNumber
	}
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByRegNumber(ctx context.Context, regNumber string) (*Record, error) {
	var record Record
	err := s.collection.FindOne(ctx, bson.M{"regNumber": regNumber}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find patient: %w", err)
	}
	return &record, nil
}

func (s *MongoStore) Exists(ctx context.Context, regNumber string) (bool, error) {
	opts := options.FindOne().SetProjection(bson.M{"_id": 1})
	err := s.collection.FindOne(ctx, bson.M{"regNumber": regNumber}, opts).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check patient: %w", err)
	}
	return true, nil
}

func (s *MongoStore) Update(ctx context.Context, regNumber string, fields Fields) (*Record, error) {
	if fields.Empty() {
		return s.FindByRegNumber(ctx, regNumber)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var record Record
	err := s.collection.FindOneAndUpdate(ctx,
		bson.M{"regNumber": regNumber},
		bson.D{{Key: "$set", Value: setDocument(fields)}},
		opts,
	).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update patient: %w", err)
	}
	return &record, nil
}

// setDocument lists every provided field by its bson name. Marshalling Fields
// directly would let omitempty drop a provided but cleared date.
func setDocument(fields Fields) bson.D {
	v := reflect.ValueOf(fields)
	t := v.Type()
	set := bson.D{}
	for i := 0; i < v.NumField(); i++ {
		if v.Field(i).IsNil() {
			continue
		}
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("bson"), ",")
		set = append(set, bson.E{Key: name, Value: v.Field(i).Interface()})
	}
	return set
}
