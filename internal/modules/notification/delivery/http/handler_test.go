package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chimu.app/backend/internal/entity"
	"chimu.app/backend/pkg/apperror"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	items     []entity.Notification
	limit     int
	offset    int
	markErr   error
	markedID  uuid.UUID
	markedAll bool
	unread    int64
}

func (s *stubService) Notify(context.Context, ...*entity.Notification) {}

func (s *stubService) GetNotifications(_ context.Context, _ uuid.UUID, limit, offset int) ([]entity.Notification, error) {
	s.limit, s.offset = limit, offset
	return s.items, nil
}

func (s *stubService) MarkAsRead(_ context.Context, id, _ uuid.UUID) error {
	s.markedID = id
	return s.markErr
}

func (s *stubService) MarkAllAsRead(context.Context, uuid.UUID) error {
	s.markedAll = true
	return nil
}

func (s *stubService) UnreadCount(context.Context, uuid.UUID) (int64, error) {
	return s.unread, nil
}

func newRouter(svc *stubService, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewNotificationHandler(svc, nil, []string{"http://localhost:3000"})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", userID.String())
		c.Next()
	})
	r.GET("/notifications", h.GetNotifications)
	r.GET("/notifications/unread-count", h.UnreadCount)
	r.PUT("/notifications/:id/read", h.MarkAsRead)
	r.PUT("/notifications/read-all", h.MarkAllAsRead)
	r.GET("/notifications/ws", h.HandleWebSocket)
	return r
}

func do(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestGetNotificationsPassesPaging(t *testing.T) {
	svc := &stubService{items: []entity.Notification{{Message: "Team Alpha was created"}}}
	r := newRouter(svc, uuid.New())

	w := do(r, http.MethodGet, "/notifications?limit=5&offset=10")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, svc.limit)
	assert.Equal(t, 10, svc.offset)

	var body struct {
		Data []entity.Notification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, 1)
}

func TestMarkAsRead(t *testing.T) {
	id := uuid.New()

	t.Run("ok", func(t *testing.T) {
		svc := &stubService{}
		w := do(newRouter(svc, uuid.New()), http.MethodPut, "/notifications/"+id.String()+"/read")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, id, svc.markedID)
	})

	t.Run("someone else's notification", func(t *testing.T) {
		svc := &stubService{markErr: apperror.NotFound("notification not found")}
		w := do(newRouter(svc, uuid.New()), http.MethodPut, "/notifications/"+id.String()+"/read")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		w := do(newRouter(&stubService{}, uuid.New()), http.MethodPut, "/notifications/abc/read")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMarkAllAndUnreadCount(t *testing.T) {
	svc := &stubService{unread: 3}
	r := newRouter(svc, uuid.New())

	w := do(r, http.MethodPut, "/notifications/read-all")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.markedAll)

	w = do(r, http.MethodGet, "/notifications/unread-count")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":3}`, w.Body.String())
}

func TestWebSocketWithoutRedis(t *testing.T) {
	w := do(newRouter(&stubService{}, uuid.New()), http.MethodGet, "/notifications/ws")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
