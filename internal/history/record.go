// Package history stores successful predictions per user and rebuilds their
// analysis and feedback when they are viewed again.
package history

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Record is one saved prediction. DetailedResults keeps each classifier's
// distribution as percentages so the analysis can be recomputed.
type Record struct {
	ID              uuid.UUID            `gorm:"primaryKey;type:uuid" json:"id"`
	UserID          uuid.UUID            `gorm:"type:uuid;index;not null" json:"user_id"`
	Filename        string               `gorm:"size:255;not null" json:"filename"`
	Prediction      string               `gorm:"size:100;index;not null" json:"prediction"`
	Confidence      float64              `gorm:"not null" json:"confidence"`
	ImagePath       string               `gorm:"size:500" json:"image_path"`
	DetailedResults map[string][]float64 `gorm:"type:text;serializer:json" json:"detailed_results,omitempty"`
	CreatedAt       time.Time            `gorm:"index" json:"created_at"`
}

func (Record) TableName() string {
	return "prediction_history"
}

func (r *Record) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
