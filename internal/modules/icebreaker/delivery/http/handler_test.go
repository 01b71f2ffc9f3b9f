package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"chimu.app/backend/internal/modules/icebreaker/dto"
	"chimu.app/backend/pkg/apperror"
	"chimu.app/backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type stubIcebreakerService struct {
	addErr    error
	lastQuery dto.SearchQuery
}

func (s *stubIcebreakerService) AddQuestion(_ context.Context, _, _ uuid.UUID, req dto.AddQuestionRequest) (*dto.QuestionResponse, error) {
	if s.addErr != nil {
		return nil, s.addErr
	}
	return &dto.QuestionResponse{ID: uuid.New(), Question: req.Question}, nil
}

func (s *stubIcebreakerService) RemoveQuestion(context.Context, uuid.UUID, uuid.UUID, uuid.UUID) error {
	return nil
}

func (s *stubIcebreakerService) ListClassQuestions(context.Context, uuid.UUID, uuid.UUID) ([]dto.QuestionResponse, error) {
	return []dto.QuestionResponse{}, nil
}

func (s *stubIcebreakerService) SearchCatalog(_ context.Context, q dto.SearchQuery) ([]dto.QuestionResponse, error) {
	s.lastQuery = q
	return []dto.QuestionResponse{}, nil
}

func (s *stubIcebreakerService) SubmitResponse(_ context.Context, _, teamID uuid.UUID, req dto.SubmitAnswerRequest) (*dto.AnswerResponse, error) {
	return &dto.AnswerResponse{TeamID: teamID, QuestionID: req.QuestionID, Response: req.Response}, nil
}

func newRouter(svc *stubIcebreakerService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("user_id", uuid.NewString())
		c.Next()
	})
	h := NewIcebreakerHandler(svc)
	r.POST("/classes/:classId/icebreakers", h.AddQuestion)
	r.GET("/classes/:classId/icebreakers", h.ListClassQuestions)
	r.DELETE("/classes/:classId/icebreakers/:questionId", h.RemoveQuestion)
	r.GET("/icebreakers/search", h.SearchCatalog)
	r.POST("/teams/:teamId/icebreakers", h.SubmitResponse)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestAddQuestionHandler(t *testing.T) {
	path := "/classes/" + uuid.NewString() + "/icebreakers"

	tests := []struct {
		name     string
		err      error
		body     string
		wantCode int
	}{
		{"created", nil, `{"question":"Pets?","category":"fun"}`, http.StatusCreated},
		{"missing question", nil, `{"category":"fun"}`, http.StatusBadRequest},
		{"already linked", apperror.Conflict("this question is already added to this class"), `{"question":"Pets?"}`, http.StatusConflict},
		{"not staff", apperror.Forbidden("nope"), `{"question":"Pets?"}`, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(newRouter(&stubIcebreakerService{addErr: tt.err}), http.MethodPost, path, tt.body)
			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
		})
	}
}

func TestSearchCatalogHandler(t *testing.T) {
	svc := &stubIcebreakerService{}
	w := do(newRouter(svc), http.MethodGet, "/icebreakers/search?q=pets&category=fun&limit=5", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.SearchQuery{Query: "pets", Category: "fun", Limit: 5}, svc.lastQuery)

	w = do(newRouter(svc), http.MethodGet, "/icebreakers/search?limit=500", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitIcebreakerHandler(t *testing.T) {
	path := "/teams/" + uuid.NewString() + "/icebreakers"

	w := do(newRouter(&stubIcebreakerService{}), http.MethodPost, path, `{"question_id":"`+uuid.NewString()+`","response":"A cat"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(newRouter(&stubIcebreakerService{}), http.MethodPost, path, `{"response":"A cat"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(newRouter(&stubIcebreakerService{}), http.MethodDelete, "/classes/"+uuid.NewString()+"/icebreakers/bad", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
