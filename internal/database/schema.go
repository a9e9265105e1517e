package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	JobQueued    string = "QUEUED"
	JobRunning   string = "RUNNING"
	JobCompleted string = "COMPLETED"
	JobFailed    string = "FAILED"
)

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

// SampleTask is one unit of sampling work: a motif name for scaffold runs, a
// target length for unconditional runs. TaskId is the task's position in the
// pre-partition task list.
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
