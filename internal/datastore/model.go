// model.go this code defines the data model for the diagnosis history
package datastore

import "time"

// Record represents a single completed diagnosis.
type Record struct {
	ID             uint   `gorm:"primaryKey"`
	RequestID      string `gorm:"index:idx_records_request_id"`
	Date           string `gorm:"index:idx_records_date"`
	Time           string
	Filename       string
	Model          string `gorm:"index:idx_records_model"`
	PredictedClass string `gorm:"index:idx_records_class"`
	Confidence     float64
	InferenceTime  float64
	Uncertainty    float64
	Entropy        float64
	BeginTime      time.Time
	Top3           []TopEntry `gorm:"foreignKey:RecordID;constraint:OnDelete:CASCADE"`
}

// TopEntry is one ranked prediction linked to a Record.
type TopEntry struct {
	ID         uint   `gorm:"primaryKey"`
	RecordID   uint   `gorm:"index;not null;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;foreignKey:RecordID;references:ID"`
	Rank       int    `gorm:"not null"`
	Class      string `gorm:"type:varchar(64)"`
	Confidence float64
}
