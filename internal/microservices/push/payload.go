package push

import (
	"encoding/json"
	"fmt"

	"linkup/internal/microservices/http-api/models"
)

// Payload is the small JSON object delivered to push endpoints.
type Payload struct {
	Title string      `json:"title"`
	Body  string      `json:"body"`
	Icon  string      `json:"icon,omitempty"`
	Data  PayloadData `json:"data"`
}

type PayloadData struct {
	URL string `json:"url"`
}

const defaultIcon = "/icons/notification-badge.png"

// PayloadFor builds the push payload for a stored notification.
func PayloadFor(n *models.Notification) Payload {
	var title string
	switch n.Type {
	case models.NotificationFollowAccept:
		title = "Follow request accepted"
	case models.NotificationNewMessage:
		title = "New message"
	case models.NotificationMention:
		title = "You were mentioned"
	case models.NotificationGroupInvite:
		title = "Group invitation"
	default:
		title = "New notification"
	}

	return Payload{
		Title: title,
		Body:  n.Content,
		Icon:  defaultIcon,
		Data:  PayloadData{URL: targetURL(n)},
	}
}

// targetURL points the client at the related entity when there is one,
// otherwise at the notification list.
func targetURL(n *models.Notification) string {
	if n.RelatedID != nil && n.RelatedKind != nil {
		return fmt.Sprintf("/%s/%s", *n.RelatedKind, *n.RelatedID)
	}
	return "/notifications"
}

// ToJSON marshals the payload for the wire
func (p Payload) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}
