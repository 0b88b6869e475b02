package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"linkup/internal/microservices/http-api/dto"
	"linkup/internal/microservices/http-api/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockPushSubscriptionRepository mocks the PushSubscriptionRepository interface
type MockPushSubscriptionRepository struct {
	mock.Mock
}

func (m *MockPushSubscriptionRepository) Upsert(ctx context.Context, sub *models.PushSubscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockPushSubscriptionRepository) ListByUser(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.PushSubscription), args.Error(1)
}

func (m *MockPushSubscriptionRepository) Delete(ctx context.Context, userID, endpoint string) error {
	args := m.Called(ctx, userID, endpoint)
	return args.Error(0)
}

func setupPushRouter(repo *MockPushSubscriptionRepository, userID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewPushHandler(repo, "test-public-key")
	router.GET("/push/vapid-public-key", handler.VAPIDPublicKey)
	handler.RegisterRoutes(router.Group("/push", fakeAuth(userID)))
	return router
}

func TestSubscribe_Success(t *testing.T) {
	mockRepo := new(MockPushSubscriptionRepository)
	router := setupPushRouter(mockRepo, "user-123")

	mockRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(sub *models.PushSubscription) bool {
		return sub.UserID == "user-123" &&
			sub.Endpoint == "https://push.example/ep1" &&
			sub.P256dh == "client-key" &&
			sub.Auth == "client-secret"
	})).Return(nil)

	reqBody := dto.SubscribeRequest{
		Endpoint: "https://push.example/ep1",
		Keys:     dto.PushKeys{P256dh: "client-key", Auth: "client-secret"},
	}
	body, _ := json.Marshal(reqBody)

	req, _ := http.NewRequest("POST", "/push/subscribe", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockRepo.AssertExpectations(t)
}

func TestSubscribe_MissingKeys(t *testing.T) {
	mockRepo := new(MockPushSubscriptionRepository)
	router := setupPushRouter(mockRepo, "user-123")

	body := []byte(`{"endpoint": "https://push.example/ep1"}`)

	req, _ := http.NewRequest("POST", "/push/subscribe", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockRepo.AssertNotCalled(t, "Upsert")
}

func TestUnsubscribe_Success(t *testing.T) {
	mockRepo := new(MockPushSubscriptionRepository)
	router := setupPushRouter(mockRepo, "user-123")

	mockRepo.On("Delete", mock.Anything, "user-123", "https://push.example/ep1").Return(nil)

	body, _ := json.Marshal(dto.UnsubscribeRequest{Endpoint: "https://push.example/ep1"})

	req, _ := http.NewRequest("DELETE", "/push/subscribe", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockRepo.AssertExpectations(t)
}

func TestVAPIDPublicKey(t *testing.T) {
	mockRepo := new(MockPushSubscriptionRepository)
	router := setupPushRouter(mockRepo, "user-123")

	req, _ := http.NewRequest("GET", "/push/vapid-public-key", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "test-public-key", response["public_key"])
}
