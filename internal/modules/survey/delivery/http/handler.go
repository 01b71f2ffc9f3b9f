package handler

import (
	"net/http"

	"chimu.app/backend/internal/modules/survey/dto"
	surveyService "chimu.app/backend/internal/modules/survey/service"
	"chimu.app/backend/pkg/response"
	"chimu.app/backend/pkg/validator"
	"github.com/gin-gonic/gin"
)

type SurveyHandler struct {
	surveyService surveyService.SurveyService
}

func NewSurveyHandler(surveyService surveyService.SurveyService) *SurveyHandler {
	return &SurveyHandler{surveyService: surveyService}
}

func (h *SurveyHandler) CreateSurvey(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	classID, ok := response.ParamUUID(c, "classId")
	if !ok {
		return
	}

	var req dto.CreateSurveyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, validator.FieldErrors(err))
		return
	}

	res, err := h.surveyService.CreateSurvey(c.Request.Context(), userID, classID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *SurveyHandler) ListSurveys(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	classID, ok := response.ParamUUID(c, "classId")
	if !ok {
		return
	}

	res, err := h.surveyService.ListSurveys(c.Request.Context(), userID, classID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *SurveyHandler) SubmitResponse(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	surveyID, ok := response.ParamUUID(c, "surveyId")
	if !ok {
		return
	}

	var req dto.SubmitResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, validator.FieldErrors(err))
		return
	}

	if err := h.surveyService.SubmitResponse(c.Request.Context(), userID, surveyID, req); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Response submitted"})
}
