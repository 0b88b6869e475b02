package handler

import (
	"context"
	"net/http"
	"time"

	"linkup/internal/microservices/presence"
	"linkup/internal/shared"

	"github.com/gin-gonic/gin"
)

type PresenceHandler struct {
	registry presence.Registry
	profiles presence.ProfileSource
}

func NewPresenceHandler(registry presence.Registry, profiles presence.ProfileSource) *PresenceHandler {
	return &PresenceHandler{registry: registry, profiles: profiles}
}

func (h *PresenceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/online", h.GetOnline)
}

// GetOnline returns the visible online users, same filtering as the
// broadcast snapshot: hidden users and failed lookups are omitted.
func (h *PresenceHandler) GetOnline(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	visible := make([]shared.ProfileSummary, 0)
	for _, userID := range h.registry.OnlineUserIDs() {
		profile, err := h.profiles.ProfileSummary(ctx, userID)
		if err != nil || !profile.ShowOnlineStatus {
			continue
		}
		visible = append(visible, *profile)
	}

	c.JSON(http.StatusOK, gin.H{"online": visible})
}
