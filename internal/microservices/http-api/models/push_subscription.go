package models

import "time"

// PushSubscription is one registered Web Push endpoint for a user.
// (user_id, endpoint) is unique: re-registering the same endpoint updates
// the keys in place instead of creating a duplicate row.
type PushSubscription struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_push_user_endpoint" json:"user_id"`
	Endpoint  string    `gorm:"not null;uniqueIndex:idx_push_user_endpoint" json:"endpoint"`
	P256dh    string    `gorm:"not null" json:"-"` // client public key for payload encryption
	Auth      string    `gorm:"not null" json:"-"` // client auth secret
	CreatedAt time.Time `json:"created_at"`

	// Associations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (PushSubscription) TableName() string {
	return "push_subscriptions"
}
