package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONB for PostgreSQL JSON support
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONB source type %T", value)
	}
	return json.Unmarshal(bytes, j)
}

type EventType string

const (
	EventPledgeCreated    EventType = "pledge_created"
	EventPledgeWithdrawn  EventType = "pledge_withdrawn"
	EventApproved         EventType = "approved"
	EventRejected         EventType = "rejected"
	EventTokenDeployed    EventType = "token_deployed"
	EventLiquidityCreated EventType = "liquidity_created"
	EventLiquidityFailed  EventType = "liquidity_failed"
)

// AutomationActor is recorded as the user address of events raised by background automation.
const AutomationActor = "automation_system"

// PledgeEvent is the append-only lifecycle log. Rows are never updated or deleted.
type PledgeEvent struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	EventType         EventType `gorm:"size:50;not null;index" json:"event_type"`
	InfluencerID      *uint     `gorm:"index" json:"influencer_id,omitempty"`
	InfluencerAddress string    `gorm:"size:42;index" json:"influencer_address"`
	UserAddress       string    `gorm:"size:64" json:"user_address"`
	EventData         JSONB     `gorm:"type:jsonb" json:"event_data"`
	CreatedAt         time.Time `gorm:"index" json:"created_at"`
}

func (PledgeEvent) TableName() string {
	return "pledge_events"
}
