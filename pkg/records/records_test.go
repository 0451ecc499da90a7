package records

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/synaptica-ai/cardiorisk/pkg/features"
)

func ptr(v float64) *float64 { return &v }

func reading(hr *float64, status, severity string, at time.Time, profile Profile) Document {
	doc := Document{
		Telemetry: Telemetry{HeartRate: hr, Status: status, CreatedAt: &at},
		Profile:   profile,
	}
	if severity != "" {
		doc.AIDiagnosis = &Diagnosis{Severity: severity}
	}
	return doc
}

func TestLabelSources(t *testing.T) {
	at := time.Date(2024, 3, 1, 23, 15, 0, 0, time.UTC)
	both := reading(ptr(80), "warning", "High", at, Profile{})
	statusOnly := reading(ptr(80), "normal", "", at, Profile{})

	assert.Equal(t, "high", Label(both, LabelFromSeverity))
	assert.Equal(t, "warning", Label(both, LabelFromStatus))
	assert.Equal(t, "high", Label(both, LabelAuto))
	assert.Equal(t, "", Label(statusOnly, LabelFromSeverity))
	assert.Equal(t, "normal", Label(statusOnly, LabelAuto))
}

func TestBuildHistoryRows(t *testing.T) {
	at := time.Date(2024, 3, 1, 23, 15, 0, 0, time.UTC)
	profile := Profile{Age: ptr(61), Gender: "Female", Weight: ptr(72.5), Conditions: []string{"Hypertension"}}
	docs := []Document{
		reading(ptr(95), "warning", "", at, profile),
		reading(nil, "critical", "", at, profile),
		reading(ptr(70), "", "", at, profile),
		{Telemetry: Telemetry{HeartRate: ptr(55), Status: "normal"}},
	}

	recs, labels, skipped, err := BuildHistoryRows(docs, LabelFromStatus)
	require.NoError(t, err)
	assert.Equal(t, 2, skipped)
	require.Len(t, recs, 2)
	assert.Equal(t, []string{"warning", "normal"}, labels)

	first := recs[0]
	assert.Equal(t, 95.0, first.Numeric[features.FieldHeartRate])
	assert.Equal(t, 61.0, first.Numeric[features.FieldAge])
	assert.Equal(t, 72.5, first.Numeric[features.FieldWeight])
	assert.Equal(t, 23.0, first.Numeric[features.FieldHour])
	assert.Equal(t, "female", first.Category(features.FieldGender))
	assert.Equal(t, []string{"Hypertension"}, first.Conditions)

	second := recs[1]
	_, hasHour := second.Value(features.FieldHour)
	assert.False(t, hasHour, "no timestamp leaves the hour to the schema default")
	_, hasAge := second.Value(features.FieldAge)
	assert.False(t, hasAge)

	_, _, _, err = BuildHistoryRows(docs, "diagnosis")
	assert.Error(t, err)
}

func TestApplyProfileKeepsRecordValues(t *testing.T) {
	r := features.Record{
		Numeric:    map[string]float64{features.FieldAge: 30},
		Categories: map[string]string{features.FieldGender: "male"},
	}
	ApplyProfile(&r, Profile{Age: ptr(70), Gender: "female", Weight: ptr(60), Conditions: []string{"asthma"}})
	assert.Equal(t, 30.0, r.Numeric[features.FieldAge])
	assert.Equal(t, 60.0, r.Numeric[features.FieldWeight])
	assert.Equal(t, "male", r.Categories[features.FieldGender])
	assert.Equal(t, []string{"asthma"}, r.Conditions)
}

func TestReadClinicalCSV(t *testing.T) {
	data := strings.Join([]string{
		"63.0,1.0,1.0,145.0,233.0,1.0,2.0,150.0,0.0,2.3,3.0,0.0,6.0,0",
		"67.0,1.0,4.0,160.0,286.0,0.0,2.0,108.0,1.0,1.5,2.0,3.0,3.0,2",
		"56.0,1.0,3.0,130.0,256.0,1.0,2.0,142.0,1.0,0.6,2.0,?,6.0,2",
		"38.0,1.0,3.0,138.0,175.0,0.0,0.0,173.0,0.0,0.0,1.0,?,3.0,0",
		"57.0,1.0,4.0,130.0,131.0,0.0,0.0,115.0,1.0,1.2,2.0,1.0,7.0,3",
		"",
	}, "\n")

	set, err := ReadClinicalCSV(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 2, set.Dropped)
	require.Len(t, set.Records, 3)
	assert.Equal(t, []string{"0", "2", "3"}, set.Labels)
	assert.Equal(t, 63.0, set.Records[0].Numeric[features.FieldAge])
	assert.Equal(t, 6.0, set.Records[0].Numeric[features.FieldThal])
	assert.Equal(t, 115.0, set.Records[2].Numeric[features.FieldMaxHeartRate])
	assert.NotContains(t, set.Records[0].Numeric, "target")
}

func TestReadClinicalCSVWithHeader(t *testing.T) {
	data := "age,sex,cp,trestbps,chol,fbs,restecg,thalach,exang,oldpeak,slope,ca,thal,target\n" +
		"45,1,2,130,220,0,0,85,0,1.0,1,0,2,1\n"
	set, err := ReadClinicalCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, set.Records, 1)
	assert.Equal(t, []string{"1"}, set.Labels)
}

func TestReadClinicalCSVRejectsBadInput(t *testing.T) {
	_, err := ReadClinicalCSV(strings.NewReader("1,2,3\n"))
	assert.Error(t, err)

	_, err = ReadClinicalCSV(strings.NewReader("?,1,1,1,1,1,1,1,1,1,1,1,1,0\n"))
	assert.Error(t, err)

	_, err = LoadClinicalCSV("does-not-exist.csv")
	assert.Error(t, err)
}

func TestWindowFilter(t *testing.T) {
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, bson.M{}, Window{}.Filter(now))
	assert.Equal(t, bson.M{"createdAt": bson.M{"$gte": now.Add(-30 * 24 * time.Hour)}}, Window{Days: 30}.Filter(now))

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	f := Window{Days: 30, Start: &start}.Filter(now)
	assert.Equal(t, bson.M{"createdAt": bson.M{"$gte": start}}, f)
}

func TestUserKeyAndPickCollection(t *testing.T) {
	oid := primitive.NewObjectID()
	assert.Equal(t, oid.Hex(), UserKey(oid))
	assert.Equal(t, "u-1", UserKey("u-1"))
	assert.Equal(t, "", UserKey(nil))

	assert.Equal(t, "data", pickCollection([]string{"users", "data"}, []string{"datas", "data", "Data"}))
	assert.Equal(t, "Data", pickCollection(nil, []string{"datas", "data", "Data"}))
	assert.Equal(t, "", pickCollection([]string{"x"}, nil))
}

func TestJoinProfilesLoadsEachUserOncePerFetch(t *testing.T) {
	users := map[string]Profile{"u1": {Age: ptr(40)}}
	calls := map[string]int{}
	lookup := func(ctx context.Context, id string) (Profile, error) {
		calls[id]++
		return users[id], nil
	}
	readings := []Telemetry{{UserID: "u1"}, {UserID: "u1"}, {UserID: "u2"}}

	docs, n, err := joinProfiles(context.Background(), readings, lookup)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, calls["u1"])
	require.Len(t, docs, 3)
	assert.Equal(t, 40.0, *docs[1].Profile.Age)
	assert.Nil(t, docs[2].Profile.Age)

	users["u1"] = Profile{Age: ptr(60), Conditions: []string{"diabetes"}}
	docs, _, err = joinProfiles(context.Background(), readings, lookup)
	require.NoError(t, err)
	assert.Equal(t, 2, calls["u1"])
	assert.Equal(t, 60.0, *docs[0].Profile.Age)
	assert.Equal(t, []string{"diabetes"}, docs[1].Profile.Conditions)
}

func TestJoinProfilesStopsOnLookupError(t *testing.T) {
	boom := errors.New("users unavailable")
	_, _, err := joinProfiles(context.Background(), []Telemetry{{UserID: "u1"}}, func(ctx context.Context, id string) (Profile, error) {
		return Profile{}, boom
	})
	assert.ErrorIs(t, err, boom)
}
