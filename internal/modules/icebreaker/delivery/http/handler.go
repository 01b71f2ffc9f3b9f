package handler

import (
	"net/http"

	"chimu.app/backend/internal/modules/icebreaker/dto"
	icebreakerService "chimu.app/backend/internal/modules/icebreaker/service"
	"chimu.app/backend/pkg/response"
	"chimu.app/backend/pkg/validator"
	"github.com/gin-gonic/gin"
)

type IcebreakerHandler struct {
	icebreakerService icebreakerService.IcebreakerService
}

func NewIcebreakerHandler(icebreakerService icebreakerService.IcebreakerService) *IcebreakerHandler {
	return &IcebreakerHandler{icebreakerService: icebreakerService}
}

func (h *IcebreakerHandler) AddQuestion(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	classID, ok := response.ParamUUID(c, "classId")
	if !ok {
		return
	}

	var req dto.AddQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, validator.FieldErrors(err))
		return
	}

	res, err := h.icebreakerService.AddQuestion(c.Request.Context(), userID, classID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *IcebreakerHandler) RemoveQuestion(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	classID, ok := response.ParamUUID(c, "classId")
	if !ok {
		return
	}
	questionID, ok := response.ParamUUID(c, "questionId")
	if !ok {
		return
	}

	if err := h.icebreakerService.RemoveQuestion(c.Request.Context(), userID, classID, questionID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Question removed from class"})
}

func (h *IcebreakerHandler) ListClassQuestions(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	classID, ok := response.ParamUUID(c, "classId")
	if !ok {
		return
	}

	res, err := h.icebreakerService.ListClassQuestions(c.Request.Context(), userID, classID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *IcebreakerHandler) SearchCatalog(c *gin.Context) {
	var query dto.SearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ResponseError(c, validator.FieldErrors(err))
		return
	}

	res, err := h.icebreakerService.SearchCatalog(c.Request.Context(), query)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}

func (h *IcebreakerHandler) SubmitResponse(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	teamID, ok := response.ParamUUID(c, "teamId")
	if !ok {
		return
	}

	var req dto.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, validator.FieldErrors(err))
		return
	}

	res, err := h.icebreakerService.SubmitResponse(c.Request.Context(), userID, teamID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
