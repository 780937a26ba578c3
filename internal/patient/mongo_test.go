package patient

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

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	mt.Run("create", func(mt *mtest.T) {
		store := &MongoStore{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		err := store.Create(context.Background(), &Record{RegNumber: "123456", CreatedAt: created})
		assert.NoError(mt, err)
	})

	mt.Run("create duplicate", func(mt *mtest.T) {
		store := &MongoStore{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error",
		}))

		err := store.Create(context.Background(), &Record{RegNumber: "123456"})
		assert.ErrorIs(mt, err, ErrDuplicateRegNumber)
	})

	mt.Run("find", func(mt *mtest.T) {
		store := &MongoStore{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{
			{Key: "regNumber", Value: "123456"},
			{Key: "firstName", Value: "Asha"},
			{Key: "age", Value: 31},
			{Key: "createdAt", Value: created},
		}))

		record, err := store.FindByRegNumber(context.Background(), "123456")
		require.NoError(mt, err)
		assert.Equal(mt, "123456", record.RegNumber)
		assert.Equal(mt, "Asha", *record.FirstName)
		assert.Equal(mt, 31, *record.Age)
		assert.True(mt, created.Equal(record.CreatedAt))
	})

	mt.Run("find missing", func(mt *mtest.T) {
		store := &MongoStore{collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := store.FindByRegNumber(context.Background(), "123456")
		assert.ErrorIs(mt, err, ErrPatientNotFound)
	})

	mt.Run("exists", func(mt *mtest.T) {
		store := &MongoStore{collection: mt.Coll}
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{{Key: "_id", Value: 1}}),
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch),
		)

		exists, err := store.Exists(context.Background(), "123456")
		require.NoError(mt, err)
		assert.True(mt, exists)

		exists, err = store.Exists(context.Background(), "654321")
		require.NoError(mt, err)
		assert.False(mt, exists)
	})

	mt.Run("update", func(mt *mtest.T) {
		store := &MongoStore{collection: mt.Coll}
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: bson.D{
				{Key: "regNumber", Value: "123456"},
				{Key: "firstName", Value: "Asha"},
				{Key: "lastName", Value: "Rao"},
				{Key: "createdAt", Value: created},
			}},
		})

		record, err := store.Update(context.Background(), "123456", Fields{LastName: strPtr("Rao")})
		require.NoError(mt, err)
		assert.Equal(mt, "Rao", *record.LastName)
		assert.Equal(mt, "Asha", *record.FirstName)
	})

	mt.Run("update missing", func(mt *mtest.T) {
		store := &MongoStore{collection: mt.Coll}
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: nil},
		})

		_, err := store.Update(context.Background(), "123456", Fields{LastName: strPtr("Rao")})
		assert.ErrorIs(mt, err, ErrPatientNotFound)
	})

	mt.Run("update clears dates", func(mt *mtest.T) {
		store := &MongoStore{collection: mt.Coll}
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: bson.D{
				{Key: "regNumber", Value: "123456"},
				{Key: "dob", Value: nil},
				{Key: "createdAt", Value: created},
			}},
		})

		var fields Fields
		require.NoError(mt, json.Unmarshal([]byte(`{"dob":"","admissionDate":"","lastName":"Rao"}`), &fields))

		_, err := store.Update(context.Background(), "123456", fields)
		require.NoError(mt, err)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		set := started.Command.Lookup("update", "$set").Document()
		assert.Equal(mt, bson.TypeNull, set.Lookup("dob").Type)
		assert.Equal(mt, bson.TypeNull, set.Lookup("admissionDate").Type)
		assert.Equal(mt, "Rao", set.Lookup("lastName").StringValue())
		_, err = set.LookupErr("firstName")
		assert.Error(mt, err)
	})
}
