// Package domain contains persistence models for usage metering.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// ItemValueType constrains the sample payload of a tracker item.
type ItemValueType string

const (
	ValueTypeString  ItemValueType = "string"
	ValueTypeInteger ItemValueType = "integer"
	ValueTypeDouble  ItemValueType = "double"
)

// ItemProcess selects the aggregation applied over a billing window.
type ItemProcess string

const (
	ProcessMin     ItemProcess = "min"
	ProcessMedian  ItemProcess = "median"
	ProcessAverage ItemProcess = "average"
	ProcessMax     ItemProcess = "max"
	// ProcessEquals expects a single fixed sample; ambiguity resolves to
	// the last recorded value.
	ProcessEquals ItemProcess = "equals"
)

// ItemRound selects how aggregated usage snaps to the billing step.
type ItemRound string

const (
	RoundUp      ItemRound = "up"
	RoundDown    ItemRound = "down"
	RoundNearest ItemRound = "nearest"
	RoundNone    ItemRound = "none"
)

// Tracker groups the metered items of one pay-as-you-go add-on.
type Tracker struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	OrgID       snowflake.ID `gorm:"not null;index"`
	Name        string       `gorm:"type:text;not null"`
	Description string       `gorm:"type:text"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Tracker) TableName() string { return "trackers" }

// TrackerItem is one metered dimension with its pricing configuration.
// Amount is the price per Step units of aggregated usage.
type TrackerItem struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	TrackerID snowflake.ID    `gorm:"not null;index"`
	Key       string          `gorm:"type:text;not null"`
	Name      string          `gorm:"type:text;not null"`
	ValueType ItemValueType   `gorm:"type:text;not null;default:'double'"`
	Process   ItemProcess     `gorm:"type:text;not null"`
	Round     ItemRound       `gorm:"type:text;not null;default:'none'"`
	Step      decimal.Decimal `gorm:"type:numeric(18,6);not null;default:1"`
	Amount    decimal.Decimal `gorm:"type:numeric(18,6);not null"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TrackerItem) TableName() string { return "tracker_items" }

// TrackerInstance attaches a tracker to a specific contract position and
// accumulates usage samples between billing runs.
type TrackerInstance struct {
	ID                 snowflake.ID `gorm:"primaryKey"`
	OrgID              snowflake.ID `gorm:"not null;index"`
	TrackerID          snowflake.ID `gorm:"not null;index"`
	ContractPositionID snowflake.ID `gorm:"not null;index"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TrackerInstance) TableName() string { return "tracker_instances" }

// TrackerSample is one recorded usage value. Append-only, no dedup.
type TrackerSample struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	InstanceID snowflake.ID `gorm:"not null;index"`
	ItemKey    string       `gorm:"type:text;not null;index"`
	Value      float64      `gorm:"not null"`
	RecordedAt time.Time    `gorm:"not null;index"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TrackerSample) TableName() string { return "tracker_samples" }
