package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"chimu.app/backend/internal/modules/profile/dto"
	"chimu.app/backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProfileService struct {
	gotInput  dto.UpdateProfileInput
	gotAvatar []byte
	gotName   string
}

func (s *stubProfileService) GetCurrentProfile(_ context.Context, userID uuid.UUID) (*dto.ProfileResponse, error) {
	return &dto.ProfileResponse{ID: userID, Name: "Ada"}, nil
}

func (s *stubProfileService) UpdateProfile(_ context.Context, userID uuid.UUID, input dto.UpdateProfileInput, avatar *dto.AvatarFile) (*dto.ProfileResponse, error) {
	s.gotInput = input
	if avatar != nil {
		s.gotName = avatar.FileName
		s.gotAvatar, _ = io.ReadAll(avatar.Reader)
	}
	return &dto.ProfileResponse{ID: userID}, nil
}

func newRouter(svc *stubProfileService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", uuid.NewString())
		c.Next()
	})
	h := NewProfileHandler(svc)
	r.GET("/profile/me", h.GetCurrentProfile)
	r.PUT("/profile", h.UpdateProfile)
	return r
}

func TestGetCurrentProfileHandler(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(&stubProfileService{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/profile/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateProfileMultipart(t *testing.T) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("name", "Ada"))
	part, err := mw.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	svc := &stubProfileService{}
	req := httptest.NewRequest(http.MethodPut, "/profile", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, svc.gotInput.Name)
	assert.Equal(t, "Ada", *svc.gotInput.Name)
	assert.Equal(t, "me.png", svc.gotName)
	assert.Equal(t, []byte("png-bytes"), svc.gotAvatar)
}

func TestUpdateProfileJSONValidation(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/profile", bytes.NewBufferString(`{"email":"not-an-email"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	newRouter(&stubProfileService{}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
