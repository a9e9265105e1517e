package migration_0

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Snapshot of the schema as of this migration. Later migrations must not
// reach back into the live schema structs.

type SamplingRun struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Mode      string `gorm:"size:20;not null"`
	ModelName string `gorm:"not null"`
	Epoch     int
	OutDir    string

	Status         string `gorm:"size:20;not null"`
	NumDevices     int
	CreationTime   time.Time
	CompletionTime sql.NullTime

	Tasks  []SampleTask `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
	Errors []RunError   `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
}

type SampleTask struct {
	RunId  uuid.UUID `gorm:"type:uuid;primaryKey"`
	TaskId int       `gorm:"primaryKey"`

	Name   string `gorm:"not null"`
	Device string `gorm:"size:20"`

	Status           string `gorm:"size:20;not null"`
	TotalSamples     int    `gorm:"default:0"`
	CompletedSamples int    `gorm:"default:0"`
	CompletionTime   sql.NullTime
}

type RunError struct {
	RunId     uuid.UUID `gorm:"type:uuid;primaryKey"`
	ErrorId   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Error     string
	Timestamp time.Time
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&SamplingRun{}, &SampleTask{}, &RunError{}); err != nil {
		return fmt.Errorf("error applying migration 0: %w", err)
	}
	return nil
}
