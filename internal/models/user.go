package models

import (
	"time"
)

type UserStatus string

const (
	UserStatusBrowser    UserStatus = "browser"
	UserStatusInvestor   UserStatus = "investor"
	UserStatusInfluencer UserStatus = "influencer"
	UserStatusAdmin      UserStatus = "admin"
)

var statusLevels = map[UserStatus]int{
	UserStatusBrowser:    1,
	UserStatusInvestor:   2,
	UserStatusInfluencer: 3,
	UserStatusAdmin:      4,
}

// Level returns the authorization level of a status; unknown statuses rank 0.
func (s UserStatus) Level() int {
	return statusLevels[s]
}

func (s UserStatus) Valid() bool {
	_, ok := statusLevels[s]
	return ok
}

// Permissions lists the dashboard capabilities unlocked at a status.
func (s UserStatus) Permissions() []string {
	perms := []string{"browse_influencers", "view_market_data"}
	if s.Level() >= UserStatusInvestor.Level() {
		perms = append(perms, "pledge", "view_portfolio")
	}
	if s.Level() >= UserStatusInfluencer.Level() {
		perms = append(perms, "view_influencer_dashboard", "view_pledgers")
	}
	if s.Level() >= UserStatusAdmin.Level() {
		perms = append(perms, "approve_influencers", "create_tokens", "manage_users", "manage_liquidity")
	}
	return perms
}

// User represents a user in the system
type User struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	FirebaseUID     *string    `gorm:"size:128;uniqueIndex" json:"firebase_uid,omitempty"`
	Email           string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	WalletAddress   *string    `gorm:"size:42;uniqueIndex" json:"wallet_address,omitempty"`
	DisplayName     string     `gorm:"size:255" json:"display_name"`
	AvatarURL       string     `gorm:"size:500" json:"avatar_url"`
	Status          UserStatus `gorm:"size:20;not null;default:browser;index" json:"status"`
	StatusUpdatedBy string     `gorm:"size:255" json:"status_updated_by"`
	StatusUpdatedAt *time.Time `json:"status_updated_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// UserStatusHistory records every authorization level change.
type UserStatusHistory struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	OldStatus UserStatus `gorm:"size:20" json:"old_status"`
	NewStatus UserStatus `gorm:"size:20;not null" json:"new_status"`
	ChangedBy string     `gorm:"size:255" json:"changed_by"`
	Reason    string     `gorm:"type:text" json:"reason"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}

func (UserStatusHistory) TableName() string {
	return "user_status_history"
}

// IdempotencyKey stores the first response produced for a client-supplied key.
type IdempotencyKey struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Scope       string    `gorm:"size:64;not null;uniqueIndex:idx_idempotency_scope_key" json:"scope"`
	Key         string    `gorm:"column:idempotency_key;size:255;not null;uniqueIndex:idx_idempotency_scope_key" json:"key"`
	RequestHash string    `gorm:"size:64;not null" json:"request_hash"`
	StatusCode  int       `gorm:"not null;default:200" json:"status_code"`
	Response    JSONB     `gorm:"type:jsonb" json:"response"`
	CreatedAt   time.Time `json:"created_at"`
}

func (IdempotencyKey) TableName() string {
	return "idempotency_keys"
}
