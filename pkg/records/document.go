// Package records reads raw observations from the telemetry store and the
// clinical dataset and turns them into feature records.
package records

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Diagnosis is the assessment stored alongside a telemetry reading.
type Diagnosis struct {
	Diagnosis       string     `json:"diagnosis,omitempty" bson:"diagnosis,omitempty"`
	Severity        string     `json:"severity,omitempty" bson:"severity,omitempty"` // low, medium, high, critical
	Analysis        string     `json:"analysis,omitempty" bson:"analysis,omitempty"`
	Recommendations []string   `json:"recommendations,omitempty" bson:"recommendations,omitempty"`
	RiskFactors     []string   `json:"risk_factors,omitempty" bson:"riskFactors,omitempty"`
	NeedsAttention  bool       `json:"needs_attention,omitempty" bson:"needsAttention,omitempty"`
	UrgencyLevel    string     `json:"urgency_level,omitempty" bson:"urgencyLevel,omitempty"` // routine, urgent, emergency
	Model           string     `json:"model,omitempty" bson:"aiModel,omitempty"`
	DiagnosedAt     *time.Time `json:"diagnosed_at,omitempty" bson:"diagnosedAt,omitempty"`
}

// Telemetry is one stored heart-rate reading.
type Telemetry struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID      interface{}        `json:"user_id" bson:"userId"`
	HeartRate   *float64           `json:"heart_rate,omitempty" bson:"heartRate,omitempty"`
	Status      string             `json:"status,omitempty" bson:"status,omitempty"` // normal, warning, critical
	Notes       string             `json:"notes,omitempty" bson:"notes,omitempty"`
	AIDiagnosis *Diagnosis         `json:"ai_diagnosis,omitempty" bson:"aiDiagnosis,omitempty"`
	CreatedAt   *time.Time         `json:"created_at,omitempty" bson:"createdAt,omitempty"`
}

// Profile is the user document joined onto every reading.
type Profile struct {
	ID         interface{} `json:"id,omitempty" bson:"_id,omitempty"`
	Age        *float64    `json:"age,omitempty" bson:"age,omitempty"`
	Gender     string      `json:"gender,omitempty" bson:"gender,omitempty"`
	Weight     *float64    `json:"weight,omitempty" bson:"weight,omitempty"`
	Conditions []string    `json:"conditions,omitempty" bson:"conditions,omitempty"`
}

// Document is a reading with its owner's profile attached. A reading whose
// owner cannot be found carries an empty profile.
type Document struct {
	Telemetry
	Profile Profile `json:"profile"`
}

// UserKey renders a user id the way both ObjectId and string references are
// compared.
func UserKey(id interface{}) string {
	switch v := id.(type) {
	case nil:
		return ""
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
