package models

import (
	"context"
	"time"
)

// DataType enumerates the kinds of health data points we ingest.
type DataType string

const (
	DataSteps         DataType = "steps"
	DataHeartRate     DataType = "heart_rate"
	DataSleep         DataType = "sleep"
	DataWeight        DataType = "weight"
	DataCalories      DataType = "calories"
	DataExercise      DataType = "exercise"
	DataBloodPressure DataType = "blood_pressure"
)

// HealthDataPoint is a single time-series measurement pulled from a connected
// service. Rows are append-only and never mutated after insert.
type HealthDataPoint struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	IntegrationID string         `json:"integration_id"`
	DataType      DataType       `json:"data_type"`
	Value         float64        `json:"value"`
	Unit          string         `json:"unit"`
	RecordedAt    time.Time      `json:"recorded_at"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// HealthDataRepository stores the append-only measurement series.
type HealthDataRepository interface {
	Insert(ctx context.Context, points []HealthDataPoint) error
	ListRange(ctx context.Context, userID string, dataType DataType, from, to time.Time) ([]HealthDataPoint, error)
}
