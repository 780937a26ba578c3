package medical

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mesikahq/patient-care-portal/internal/types"
)

const CollectionName = "medicalinfos"

// MongoStore keeps one document per patient in the medicalinfos collection.
// Writes are read-modify-write without a version check, so two concurrent
// updates of the same section resolve as last write wins.
type MongoStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		collection: db.Collection(CollectionName),
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "regNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("regNumber_unique"),
		},
		{
			Keys:    bson.D{{Key: "department", Value: 1}, {Key: "admissionDateTime", Value: 1}},
			Options: options.Index().SetName("department_admission"),
		},
	})
	if err != nil {
		return fmt.Errorf("create medical indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByRegNumber(ctx context.Context, regNumber string) (*Record, error) {
	var record Record
	err := s.collection.FindOne(ctx, bson.M{"regNumber": regNumber}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrMedicalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find medical info: %w", err)
	}
	record.AdmissionDateTime = nilIfZero(record.AdmissionDateTime)
	return &record, nil
}

func (s *MongoStore) Upsert(ctx context.Context, regNumber string, u Update) (*Record, bool, error) {
	now := s.now()

	record, err := s.FindByRegNumber(ctx, regNumber)
	if errors.Is(err, ErrMedicalNotFound) {
		record = NewRecord(regNumber, now)
		ApplyUpdate(record, u, now)

		_, err = s.collection.InsertOne(ctx, record)
		if err == nil {
			return record, true, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, false, fmt.Errorf("insert medical info: %w", err)
		}
		// Lost a race with a concurrent first save; update the winner's record.
		record, err = s.FindByRegNumber(ctx, regNumber)
	}
	if err != nil {
		return nil, false, err
	}

	ApplyUpdate(record, u, now)
	res, err := s.collection.ReplaceOne(ctx, bson.M{"regNumber": regNumber}, record)
	if err != nil {
		return nil, false, fmt.Errorf("replace medical info: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, false, ErrMedicalNotFound
	}
	return record, false, nil
}

func (s *MongoStore) UpdateSection(ctx context.Context, regNumber, section string, data json.RawMessage) (*Record, error) {
	if !ValidSection(section) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSection, section)
	}

	record, err := s.FindByRegNumber(ctx, regNumber)
	if err != nil {
		return nil, err
	}
	if err := MergeSection(record, section, data, s.now()); err != nil {
		return nil, err
	}

	set, err := sectionSet(record, section)
	if err != nil {
		return nil, err
	}
	set = append(set, bson.E{Key: "updatedAt", Value: record.UpdatedAt})

	res, err := s.collection.UpdateOne(ctx, bson.M{"regNumber": regNumber}, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return nil, fmt.Errorf("update medical section: %w", err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrMedicalNotFound
	}
	return record, nil
}

// sectionSet builds the $set document for one section. Flat sections set
// each of their leaves at the top level; the others replace their subdocument.
func sectionSet(record *Record, section string) (bson.D, error) {
	var value interface{}
	switch section {
	case SectionMedicalHistory:
		value = record.MedicalHistory
	case SectionAdmission:
		value = record.Admission
	default:
		target, err := sectionTarget(record, section)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: section, Value: target}}, nil
	}

	raw, err := bson.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", section, err)
	}
	var set bson.D
	if err := bson.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("encode %s: %w", section, err)
	}
	return set, nil
}

func (s *MongoStore) Delete(ctx context.Context, regNumber string) error {
	res, err := s.collection.DeleteOne(ctx, bson.M{"regNumber": regNumber})
	if err != nil {
		return fmt.Errorf("delete medical info: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrMedicalNotFound
	}
	return nil
}

func (s *MongoStore) Summary(ctx context.Context, filter SummaryFilter) ([]Summary, error) {
	query := bson.M{}
	if filter.Department != "" {
		query["department"] = filter.Department
	}
	if !filter.DateFrom.IsZero() || !filter.DateTo.IsZero() {
		rng := bson.M{}
		if !filter.DateFrom.IsZero() {
			rng["$gte"] = filter.DateFrom
		}
		if !filter.DateTo.IsZero() {
			rng["$lte"] = filter.DateTo
		}
		query["createdAt"] = rng
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{
			"regNumber":         1,
			"department":        1,
			"admissionDateTime": 1,
			"chiefComplaint":    1,
			"initialDiagnosis":  1,
			"createdAt":         1,
			"updatedAt":         1,
		})

	cursor, err := s.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("query medical summary: %w", err)
	}
	defer cursor.Close(ctx)

	summaries := make([]Summary, 0)
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, fmt.Errorf("decode medical summary: %w", err)
	}
	for i := range summaries {
		summaries[i].AdmissionDateTime = nilIfZero(summaries[i].AdmissionDateTime)
	}
	return summaries, nil
}

// nilIfZero undoes the decoder allocating a Date for a stored null.
func nilIfZero(d *types.Date) *types.Date {
	if d == nil || d.IsZero() {
		return nil
	}
	return d
}
