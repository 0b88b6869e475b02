package dto

// Data Transfer Objects for push subscription management

// PushKeys: the client-side encryption keys of a Web Push subscription
type PushKeys struct {
	P256dh string `json:"p256dh" binding:"required"`
	Auth   string `json:"auth" binding:"required"`
}

// SubscribeRequest: payload for registering a push endpoint.
// Shape follows the browser PushSubscription.toJSON() output.
type SubscribeRequest struct {
	Endpoint string   `json:"endpoint" binding:"required,url"`
	Keys     PushKeys `json:"keys" binding:"required"`
}

// UnsubscribeRequest: payload for removing a push endpoint
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
}
