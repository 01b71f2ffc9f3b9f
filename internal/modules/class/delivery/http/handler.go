package handler

import (
	"net/http"

	"chimu.app/backend/internal/modules/class/dto"
	classService "chimu.app/backend/internal/modules/class/service"
	"chimu.app/backend/pkg/response"
	"chimu.app/backend/pkg/validator"
	"github.com/gin-gonic/gin"
)

type ClassHandler struct {
	classService classService.ClassService
}

func NewClassHandler(classService classService.ClassService) *ClassHandler {
	return &ClassHandler{classService: classService}
}

func (h *ClassHandler) CreateClass(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.CreateClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, validator.FieldErrors(err))
		return
	}

	res, err := h.classService.CreateClass(c.Request.Context(), userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *ClassHandler) ToggleArchive(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	classID, ok := response.ParamUUID(c, "classId")
	if !ok {
		return
	}

	var req dto.ToggleArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, validator.FieldErrors(err))
		return
	}

	res, err := h.classService.ToggleArchive(c.Request.Context(), userID, classID, *req.IsArchived)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ClassHandler) JoinClass(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req dto.JoinClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, validator.FieldErrors(err))
		return
	}

	res, err := h.classService.JoinClass(c.Request.Context(), userID, req.ClassCode)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

func (h *ClassHandler) GetClass(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	classID, ok := response.ParamUUID(c, "classId")
	if !ok {
		return
	}

	res, err := h.classService.GetClass(c.Request.Context(), userID, classID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ClassHandler) ListRoster(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	classID, ok := response.ParamUUID(c, "classId")
	if !ok {
		return
	}

	res, err := h.classService.ListRoster(c.Request.Context(), userID, classID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": res})
}
