package medical

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newMockStore(mt *mtest.T) *MongoStore {
	return &MongoStore{
		collection: mt.Coll,
		now:        func() time.Time { return testNow },
	}
}

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	ns := func(mt *mtest.T) string {
		return mt.Coll.Database().Name() + "." + mt.Coll.Name()
	}

	mt.Run("find missing", func(mt *mtest.T) {
		store := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch))

		_, err := store.FindByRegNumber(context.Background(), "123456")
		assert.ErrorIs(mt, err, ErrMedicalNotFound)
	})

	mt.Run("upsert creates", func(mt *mtest.T) {
		store := newMockStore(mt)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch),
			mtest.CreateSuccessResponse(),
		)

		record, created, err := store.Upsert(context.Background(), "123456", Update{
			Vitals: &Vitals{HeartRate: "72"},
		})
		require.NoError(mt, err)
		assert.True(mt, created)
		assert.Equal(mt, "72", record.Vitals.HeartRate)
		assert.Equal(mt, testNow, record.CreatedAt)
	})

	mt.Run("update section", func(mt *mtest.T) {
		store := newMockStore(mt)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{
				{Key: "regNumber", Value: "123456"},
				{Key: "vitals", Value: bson.D{
					{Key: "bloodPressure", Value: "120/80"},
					{Key: "heartRate", Value: "72"},
				}},
			}),
			bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 1}},
		)

		record, err := store.UpdateSection(context.Background(), "123456", SectionVitals, json.RawMessage(`{"heartRate":"88"}`))
		require.NoError(mt, err)
		assert.Equal(mt, "120/80", record.Vitals.BloodPressure)
		assert.Equal(mt, "88", record.Vitals.HeartRate)
		assert.Equal(mt, testNow, record.UpdatedAt)
	})

	mt.Run("update invalid section", func(mt *mtest.T) {
		store := newMockStore(mt)

		_, err := store.UpdateSection(context.Background(), "123456", "billing", json.RawMessage(`{}`))
		assert.ErrorIs(mt, err, ErrInvalidSection)
	})

	mt.Run("delete missing", func(mt *mtest.T) {
		store := newMockStore(mt)
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}})

		err := store.Delete(context.Background(), "123456")
		assert.ErrorIs(mt, err, ErrMedicalNotFound)
	})

	mt.Run("summary", func(mt *mtest.T) {
		store := newMockStore(mt)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch,
				bson.D{
					{Key: "regNumber", Value: "100002"},
					{Key: "department", Value: "ER"},
					{Key: "chiefComplaint", Value: "fracture"},
					{Key: "admissionDateTime", Value: nil},
				},
				bson.D{
					{Key: "regNumber", Value: "100001"},
					{Key: "department", Value: "ER"},
				},
			),
		)

		summaries, err := store.Summary(context.Background(), SummaryFilter{Department: "ER", DateFrom: testNow})
		require.NoError(mt, err)
		require.Len(mt, summaries, 2)
		assert.Equal(mt, "100002", summaries[0].RegNumber)
		assert.Equal(mt, "fracture", summaries[0].ChiefComplaint)
		assert.Nil(mt, summaries[0].AdmissionDateTime)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		filter := started.Command.Lookup("filter").Document()
		assert.Equal(mt, "ER", filter.Lookup("department").StringValue())
		_, err = filter.LookupErr("createdAt", "$gte")
		assert.NoError(mt, err)
		_, err = filter.LookupErr("admissionDateTime")
		assert.Error(mt, err)
	})

	mt.Run("find null admission date", func(mt *mtest.T) {
		store := newMockStore(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns(mt), mtest.FirstBatch, bson.D{
			{Key: "regNumber", Value: "123456"},
			{Key: "admissionDateTime", Value: nil},
		}))

		record, err := store.FindByRegNumber(context.Background(), "123456")
		require.NoError(mt, err)
		assert.Nil(mt, record.AdmissionDateTime)
	})
}
