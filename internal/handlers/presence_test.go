package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-chat-service/internal/mocks"
	"social-chat-service/internal/models"
	"social-chat-service/internal/repositories"
)

func setupPresenceRouter(handler *PresenceHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/presence/:user_id", handler.GetPresence)
	return r
}

func TestGetPresenceSuccess(t *testing.T) {
	presence := new(mocks.PresenceRepositoryMock)
	handler := NewPresenceHandler(presence)
	router := setupPresenceRouter(handler)

	lastSeen := time.Now().Add(-time.Minute)
	presence.On("Get", mock.Anything, 2).
		Return(models.Presence{UserID: 2, State: models.PresenceOffline, LastSeen: lastSeen}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/presence/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.Presence
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, models.PresenceOffline, resp.State)
	presence.AssertExpectations(t)
}

func TestGetPresenceNotFound(t *testing.T) {
	presence := new(mocks.PresenceRepositoryMock)
	handler := NewPresenceHandler(presence)
	router := setupPresenceRouter(handler)

	presence.On("Get", mock.Anything, 99).
		Return(models.Presence{}, repositories.ErrPresenceNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/presence/99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPresenceBadID(t *testing.T) {
	handler := NewPresenceHandler(new(mocks.PresenceRepositoryMock))
	router := setupPresenceRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/presence/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
