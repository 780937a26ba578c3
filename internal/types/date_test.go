package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestDate_UnmarshalJSONFormats(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`"1990-04-12"`, time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC)},
		{`"2024-01-02T08:30"`, time.Date(2024, 1, 2, 8, 30, 0, 0, time.UTC)},
		{`"2024-01-02T08:30:00Z"`, time.Date(2024, 1, 2, 8, 30, 0, 0, time.UTC)},
		{`"2024-01-02T10:30:00+02:00"`, time.Date(2024, 1, 2, 8, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		var d Date
		require.NoError(t, json.Unmarshal([]byte(tt.in), &d), tt.in)
		assert.True(t, tt.want.Equal(d.Time), "%s: got %s", tt.in, d.Time)
	}
}

func TestDate_EmptyAndNull(t *testing.T) {
	var d Date
	require.NoError(t, json.Unmarshal([]byte(`""`), &d))
	assert.True(t, d.IsZero())
	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.True(t, d.IsZero())

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}

func TestDate_RejectsGarbage(t *testing.T) {
	var d Date
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`42`), &d))
}

func TestDate_BSONRoundTrip(t *testing.T) {
	type doc struct {
		When    Date  `bson:"when"`
		Missing *Date `bson:"missing,omitempty"`
	}

	in := doc{When: NewDate(time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC))}
	raw, err := bson.Marshal(in)
	require.NoError(t, err)

	var out doc
	require.NoError(t, bson.Unmarshal(raw, &out))
	assert.True(t, in.When.Equal(out.When.Time))
	assert.Nil(t, out.Missing)

	raw, err = bson.Marshal(doc{})
	require.NoError(t, err)
	require.NoError(t, bson.Unmarshal(raw, &out))
	assert.True(t, out.When.IsZero())
}
