package medical

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func TestNewRecordDefaults(t *testing.T) {
	r := NewRecord("123456", testNow)

	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "123456", doc["regNumber"])
	assert.Equal(t, "", doc["medicalConditions"])
	assert.Nil(t, doc["admissionDateTime"])
	assert.Equal(t, map[string]interface{}{"medication": "", "food": "", "environmental": ""}, doc["allergies"])
	assert.Equal(t, false, doc["consent"].(map[string]interface{})["surgeryConsent"])
	assert.Equal(t, "", doc["vitals"].(map[string]interface{})["bloodPressure"])
}

func TestApplyUpdateReplacesNestedObjects(t *testing.T) {
	r := NewRecord("123456", testNow)
	ApplyUpdate(r, Update{
		Vitals:            &Vitals{BloodPressure: "120/80", HeartRate: "72"},
		MedicalConditions: strPtr("asthma"),
	}, testNow)

	later := testNow.Add(time.Hour)
	ApplyUpdate(r, Update{Vitals: &Vitals{HeartRate: "80"}}, later)

	assert.Equal(t, "", r.Vitals.BloodPressure)
	assert.Equal(t, "80", r.Vitals.HeartRate)
	assert.Equal(t, "asthma", r.MedicalConditions)
	assert.Equal(t, later, r.UpdatedAt)
	assert.Equal(t, testNow, r.CreatedAt)
}

func TestMergeSectionKeepsOmittedLeaves(t *testing.T) {
	r := NewRecord("123456", testNow)
	ApplyUpdate(r, Update{Vitals: &Vitals{BloodPressure: "120/80", HeartRate: "72"}}, testNow)

	err := MergeSection(r, SectionVitals, json.RawMessage(`{"heartRate":"80"}`), testNow)
	require.NoError(t, err)

	assert.Equal(t, "120/80", r.Vitals.BloodPressure)
	assert.Equal(t, "80", r.Vitals.HeartRate)
}

func TestMergeSectionFlatSections(t *testing.T) {
	r := NewRecord("123456", testNow)
	ApplyUpdate(r, Update{
		Allergies:        &Allergies{Medication: "penicillin", Food: "peanuts"},
		Department:       strPtr("Cardiology"),
		InitialDiagnosis: strPtr("angina"),
	}, testNow)

	err := MergeSection(r, SectionMedicalHistory, json.RawMessage(`{"allergies":{"food":"shellfish"},"pastSurgeries":"appendectomy"}`), testNow)
	require.NoError(t, err)
	assert.Equal(t, "penicillin", r.Allergies.Medication)
	assert.Equal(t, "shellfish", r.Allergies.Food)
	assert.Equal(t, "appendectomy", r.PastSurgeries)

	err = MergeSection(r, SectionAdmission, json.RawMessage(`{"admissionDateTime":"2024-05-09T14:30","chiefComplaint":"chest pain"}`), testNow)
	require.NoError(t, err)
	assert.Equal(t, "Cardiology", r.Department)
	assert.Equal(t, "angina", r.InitialDiagnosis)
	assert.Equal(t, "chest pain", r.ChiefComplaint)
	require.NotNil(t, r.AdmissionDateTime)
	assert.True(t, time.Date(2024, 5, 9, 14, 30, 0, 0, time.UTC).Equal(r.AdmissionDateTime.Time))

	err = MergeSection(r, SectionAdmission, json.RawMessage(`{"admissionDateTime":""}`), testNow)
	require.NoError(t, err)
	assert.Nil(t, r.AdmissionDateTime)
}

func TestMergeSectionConsent(t *testing.T) {
	r := NewRecord("123456", testNow)

	err := MergeSection(r, SectionConsent, json.RawMessage(`{"surgeryConsent":true,"insuranceDetails":"HDFC-778"}`), testNow)
	require.NoError(t, err)
	assert.True(t, r.Consent.SurgeryConsent)
	assert.False(t, r.Consent.AnesthesiaConsent)
	assert.Equal(t, "HDFC-778", r.Consent.InsuranceDetails)
}

func TestMergeSectionInvalid(t *testing.T) {
	r := NewRecord("123456", testNow)
	before := *r

	err := MergeSection(r, "billing", json.RawMessage(`{"x":"y"}`), testNow.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidSection)
	assert.Equal(t, before, *r)
}

func TestMergeSectionMalformedBodyLeavesRecord(t *testing.T) {
	r := NewRecord("123456", testNow)
	ApplyUpdate(r, Update{Notes: &Notes{ProgressNotes: "stable"}}, testNow)
	before := *r

	err := MergeSection(r, SectionNotes, json.RawMessage(`{"progressNotes": 12}`), testNow.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInvalidData)
	assert.Equal(t, before, *r)
}

func TestValidSection(t *testing.T) {
	for _, s := range Sections() {
		assert.True(t, ValidSection(s), s)
	}
	assert.Len(t, Sections(), 9)
	assert.False(t, ValidSection("Vitals"))
	assert.False(t, ValidSection(""))
}

func TestSummaryFilterMatches(t *testing.T) {
	r := NewRecord("123456", testNow)
	require.NoError(t, MergeSection(r, SectionAdmission,
		json.RawMessage(`{"department":"Neurology","admissionDateTime":"2024-04-02"}`), testNow))

	day := func(d int) time.Time { return time.Date(2024, 5, d, 0, 0, 0, 0, time.UTC) }
	endOfDay := func(d int) time.Time { return day(d).Add(24*time.Hour - time.Nanosecond) }

	assert.True(t, SummaryFilter{}.Matches(r))
	assert.True(t, SummaryFilter{Department: "Neurology"}.Matches(r))
	assert.False(t, SummaryFilter{Department: "Cardiology"}.Matches(r))
	assert.True(t, SummaryFilter{DateFrom: day(10), DateTo: endOfDay(10)}.Matches(r))
	assert.False(t, SummaryFilter{DateFrom: day(11)}.Matches(r))
	assert.False(t, SummaryFilter{DateTo: endOfDay(9)}.Matches(r))

	// Dates bound creation time, so a record without an admission date is
	// still listed.
	empty := NewRecord("654321", testNow)
	assert.True(t, SummaryFilter{DateFrom: day(10), DateTo: endOfDay(10)}.Matches(empty))
}
