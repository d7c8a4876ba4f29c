package model

import (
	"time"

	"gorm.io/datatypes"
)

/*

RecordRow is a normalized post persisted in Postgres

Id: primary key, the record's _id
CreatedAt: time when the row is first written
UpdatedAt: time when the row was last overwritten by a re-normalization

Timestamp: the record timestamp as epoch seconds, used for date range queries
Document: the full record as a JSON document, keys vary with configuration
*/

type RecordRow struct {
	Id        string `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	Timestamp float64 `gorm:"index"`
	Document  datatypes.JSON
}
