package shared

// shared types across the application
// 1st: profile summary published in presence snapshots
// 2nd: auth claims structure for JWT authentication in HTTP API and WebSocket
// 3rd: add more shared types as needed

// ProfileSummary is the projection of a user that presence snapshots carry.
// ShowOnlineStatus never leaves the server; it is only used to filter.
type ProfileSummary struct {
	UserID           string `json:"id"`
	Username         string `json:"display_name"`
	AvatarURL        string `json:"avatar"`
	ShowOnlineStatus bool   `json:"-"`
}

type AuthClaims struct {
	UserID   string `json:"user_id"`  // user identifier(UUID)
	Username string `json:"username"` // username
}
