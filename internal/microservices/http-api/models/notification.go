package models

import "time"

// NotificationType is the closed set of alert kinds the platform raises.
// Free-form type strings are rejected at creation time.
type NotificationType string

const (
	NotificationFollowAccept NotificationType = "FOLLOW_ACCEPT"
	NotificationNewMessage   NotificationType = "NEW_MESSAGE"
	NotificationMention      NotificationType = "MENTION"
	NotificationGroupInvite  NotificationType = "GROUP_INVITE"
)

// IsValid reports whether t is a known notification type
func (t NotificationType) IsValid() bool {
	switch t {
	case NotificationFollowAccept, NotificationNewMessage, NotificationMention, NotificationGroupInvite:
		return true
	}
	return false
}

type Notification struct {
	ID          int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	RecipientID string           `gorm:"type:uuid;not null;index" json:"recipient_id"`
	SenderID    string           `gorm:"type:uuid;not null" json:"sender_id"`
	Type        NotificationType `gorm:"not null" json:"type"`
	Content     string           `json:"content"`
	RelatedID   *string          `json:"related_id,omitempty"`   // id of the entity this alert points at (post, group, ...)
	RelatedKind *string          `json:"related_kind,omitempty"` // kind of that entity
	Read        bool             `gorm:"default:false" json:"read"`
	CreatedAt   time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`

	// Associations
	Recipient *User `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`
	Sender    *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (Notification) TableName() string {
	return "notifications"
}
