package features

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotValue(t *testing.T, s *Schema, row []float64, name string) float64 {
	t.Helper()
	for i, n := range s.FeatureNames {
		if n == name {
			return row[i]
		}
	}
	t.Fatalf("slot %s not in schema", name)
	return 0
}

func clinical(values map[string]float64) Record {
	return Record{Numeric: values}
}

func TestStaticReferenceRecord(t *testing.T) {
	s := StaticSchema()
	r := clinical(map[string]float64{
		"age": 45, "sex": 1, "cp": 2, "trestbps": 130, "chol": 220, "fbs": 0, "restecg": 0,
		"thalach": 85, "exang": 0, "oldpeak": 1.0, "slope": 1, "ca": 0, "thal": 2,
	})

	row, err := s.Vector(r)
	require.NoError(t, err)
	require.Len(t, row, len(s.Slots))
	assert.Len(t, row, 17)

	assert.Equal(t, 1.0, slotValue(t, s, row, "age_group"))
	assert.Equal(t, 1.0, slotValue(t, s, row, "bp_category"))
	assert.Equal(t, 1.0, slotValue(t, s, row, "chol_category"))
	// thalach 85 is below 120, the only threshold hit
	assert.Equal(t, 1.0, slotValue(t, s, row, "risk_score"))
	assert.Equal(t, []float64{45, 1, 2, 130, 220, 0, 0, 85, 0, 1, 1, 0, 2}, row[:13])

	again, err := s.Vector(r)
	require.NoError(t, err)
	assert.Equal(t, row, again)
}

func TestStaticBucketEdges(t *testing.T) {
	s := StaticSchema()
	cases := []struct {
		field string
		value float64
		slot  string
		code  float64
	}{
		{"age", 40, "age_group", 0},
		{"age", 41, "age_group", 1},
		{"age", 50, "age_group", 1},
		{"age", 70, "age_group", 3},
		{"age", 71, "age_group", 4},
		{"trestbps", 120, "bp_category", 0},
		{"trestbps", 121, "bp_category", 1},
		{"trestbps", 161, "bp_category", 3},
		{"chol", 200, "chol_category", 0},
		{"chol", 300, "chol_category", 2},
		{"chol", 301, "chol_category", 3},
	}
	for _, tc := range cases {
		row, err := s.Vector(clinical(map[string]float64{tc.field: tc.value}))
		require.NoError(t, err)
		assert.Equal(t, tc.code, slotValue(t, s, row, tc.slot), "%s=%v", tc.field, tc.value)
	}
}

func TestStaticDefaultsAndHeartRateAlternate(t *testing.T) {
	s := StaticSchema()
	row, err := s.Vector(clinical(map[string]float64{"heartRate": 95}))
	require.NoError(t, err)
	assert.Equal(t, 95.0, slotValue(t, s, row, "thalach"))
	assert.Equal(t, 50.0, slotValue(t, s, row, "age"))
	assert.Equal(t, 2.0, slotValue(t, s, row, "thal"))

	row, err = s.Vector(clinical(nil))
	require.NoError(t, err)
	assert.Equal(t, 80.0, slotValue(t, s, row, "thalach"))
	// thalach 80 < 120 is the only hit with defaults
	assert.Equal(t, 1.0, slotValue(t, s, row, "risk_score"))
}

func TestRiskScoreCountsEveryHit(t *testing.T) {
	s := StaticSchema()
	row, err := s.Vector(clinical(map[string]float64{"age": 61, "trestbps": 150, "chol": 250, "thalach": 110, "exang": 1}))
	require.NoError(t, err)
	assert.Equal(t, 5.0, slotValue(t, s, row, "risk_score"))
}

func TestFitStaticBuildsObservedLabelMap(t *testing.T) {
	records := []Record{clinical(nil), clinical(nil), clinical(nil)}
	ds, err := FitStatic(records, []string{"3", "0", "9"})
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "3"}, ds.Schema.Labels.Labels())
	assert.Equal(t, []int{1, 0}, ds.Labels)
	assert.Equal(t, 1, ds.Dropped)
}

func historyCorpus() ([]Record, []string) {
	at := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	records := []Record{
		{Numeric: map[string]float64{"heartRate": 55, "age": 30, "weight": 60, "created_hour": 23}, Categories: map[string]string{"gender": "Male"}, Conditions: []string{"Diabetes", "asthma"}, Timestamp: at},
		{Numeric: map[string]float64{"heartRate": 110, "age": 50, "created_hour": 10}, Categories: map[string]string{"gender": "female"}, Conditions: []string{"hypertension", "asthma"}},
		{Numeric: map[string]float64{"heartRate": 80, "weight": 80, "created_hour": 3}, Conditions: []string{"diabetes"}},
		{Numeric: map[string]float64{"heartRate": 70, "age": 40, "weight": 70}},
		{Numeric: map[string]float64{"heartRate": 72}},
	}
	labels := []string{"high", "low", "warning", "low", "unlabelled"}
	return records, labels
}

func TestFitHistorySchema(t *testing.T) {
	records, labels := historyCorpus()
	ds, err := FitHistory(records, labels, HistoryOptions{ConditionLimit: 2})
	require.NoError(t, err)
	s := ds.Schema

	assert.Equal(t, 1, ds.Dropped)
	assert.Equal(t, []string{"low", "high", "warning"}, s.Labels.Labels())
	assert.Equal(t, []int{1, 0, 2, 0}, ds.Labels)

	// diabetes and asthma both appear twice; diabetes was seen first
	assert.Equal(t, []string{"diabetes", "asthma"}, s.Conditions)
	assert.Equal(t, []string{
		"heartRate", "age", "weight", "gender_enc", "created_hour",
		"is_night", "hr_is_low", "hr_is_high", "cond_diabetes", "cond_asthma",
	}, s.FeatureNames)

	assert.Equal(t, 40.0, s.Medians["age"])
	assert.Equal(t, 70.0, s.Medians["weight"])
	assert.Equal(t, []string{"female", "male", "other"}, s.Enumerations["gender"].Values)

	first := ds.Samples[0]
	assert.Equal(t, []float64{55, 30, 60, 1, 23, 1, 1, 0, 1, 1}, first)
	third := ds.Samples[2]
	assert.Equal(t, []float64{80, 40, 80, 2, 3, 1, 0, 0, 1, 0}, third)
}

func TestHistoryInferenceUsesPersistedContract(t *testing.T) {
	records, labels := historyCorpus()
	ds, err := FitHistory(records, labels, HistoryOptions{ConditionLimit: 20})
	require.NoError(t, err)

	raw, err := json.Marshal(ds.Schema)
	require.NoError(t, err)
	var loaded Schema
	require.NoError(t, json.Unmarshal(raw, &loaded))
	require.NoError(t, loaded.Validate())

	r := Record{
		Numeric:    map[string]float64{"heartRate": 45},
		Conditions: []string{"ASTHMA", "unheard-of"},
	}
	row, err := loaded.Vector(r)
	require.NoError(t, err)
	assert.Len(t, row, len(loaded.Slots))
	assert.Equal(t, 40.0, slotValue(t, &loaded, row, "age"))
	assert.Equal(t, 2.0, slotValue(t, &loaded, row, "gender_enc"))
	assert.Equal(t, 12.0, slotValue(t, &loaded, row, "created_hour"))
	assert.Equal(t, 0.0, slotValue(t, &loaded, row, "is_night"))
	assert.Equal(t, 1.0, slotValue(t, &loaded, row, "cond_asthma"))

	want, err := ds.Schema.Vector(r)
	require.NoError(t, err)
	assert.Equal(t, want, row)
}

func TestHistoryUnknownGender(t *testing.T) {
	records, labels := historyCorpus()
	ds, err := FitHistory(records, labels, HistoryOptions{})
	require.NoError(t, err)

	_, err = ds.Schema.Vector(Record{
		Numeric:    map[string]float64{"heartRate": 70},
		Categories: map[string]string{"gender": "robot"},
	})
	var unknown *UnknownCategoryError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "robot", unknown.Value)
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestHistoryRequiresHeartRate(t *testing.T) {
	records, labels := historyCorpus()
	ds, err := FitHistory(records, labels, HistoryOptions{})
	require.NoError(t, err)

	_, err = ds.Schema.Vector(Record{Numeric: map[string]float64{"age": 30}})
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestTopConditionsLimit(t *testing.T) {
	corpus := [][]string{{"a", "b"}, {"c", "b"}, {"c", "d"}, {" C "}}
	assert.Equal(t, []string{"c", "b", "a"}, TopConditions(corpus, 3))
}

func TestLabelMapRejectsGaps(t *testing.T) {
	var m LabelMap
	err := json.Unmarshal([]byte(`{"low":0,"high":2}`), &m)
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestValidateCatchesReorderedNames(t *testing.T) {
	s := StaticSchema()
	s.Labels = NewLabelMap(StaticLabelOrder, []string{"0"})
	require.NoError(t, s.Validate())
	s.FeatureNames[0], s.FeatureNames[1] = s.FeatureNames[1], s.FeatureNames[0]
	assert.ErrorIs(t, s.Validate(), ErrInvalidSchema)
}
