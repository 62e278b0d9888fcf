package model

import (
	"time"
)

// ScoreRecordModel mirrors the append-only 'score_records' table.
type ScoreRecordModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	AccountID  string    `gorm:"type:varchar(128);not null;index"`
	Score      float64   `gorm:"not null"`
	Label      string    `gorm:"type:varchar(100)"`
	RecordedAt time.Time `gorm:"not null"`
}

// TableName explicitly sets the table name for GORM.
func (ScoreRecordModel) TableName() string {
	return "score_records"
}
