package handler

import (
	"context"
	"net/http"
	"time"

	"linkup/internal/microservices/http-api/dto"
	"linkup/internal/microservices/http-api/models"
	"linkup/internal/microservices/http-api/repository"

	"github.com/gin-gonic/gin"
)

type PushHandler struct {
	repo           repository.PushSubscriptionRepository
	vapidPublicKey string
}

func NewPushHandler(repo repository.PushSubscriptionRepository, vapidPublicKey string) *PushHandler {
	return &PushHandler{repo: repo, vapidPublicKey: vapidPublicKey}
}

func (h *PushHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/subscribe", h.Subscribe)
	rg.DELETE("/subscribe", h.Unsubscribe)
}

// VAPIDPublicKey hands the client the key it needs to subscribe.
// Mounted unauthenticated: the key is public by definition.
func (h *PushHandler) VAPIDPublicKey(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"public_key": h.vapidPublicKey})
}

// Subscribe registers (or re-registers) a push endpoint for the user.
// Re-registering the same endpoint updates the keys in place.
func (h *PushHandler) Subscribe(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req dto.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	sub := &models.PushSubscription{
		UserID:   userID.(string),
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}
	if err := h.repo.Upsert(ctx, sub); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// Unsubscribe removes a push endpoint; removing an unknown one is fine
func (h *PushHandler) Unsubscribe(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req dto.UnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.repo.Delete(ctx, userID.(string), req.Endpoint); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}
