package handler

import (
	"net/http"

	"chimu.app/backend/internal/modules/dashboard/dto"
	dashboardService "chimu.app/backend/internal/modules/dashboard/service"
	"chimu.app/backend/pkg/response"
	"chimu.app/backend/pkg/validator"
	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	dashboardService dashboardService.DashboardService
}

func NewDashboardHandler(dashboardService dashboardService.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

func (h *DashboardHandler) Instructor(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var query dto.DashboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ResponseError(c, validator.FieldErrors(err))
		return
	}

	res, err := h.dashboardService.InstructorDashboard(c.Request.Context(), userID, query.Status)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *DashboardHandler) Student(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var query dto.DashboardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ResponseError(c, validator.FieldErrors(err))
		return
	}

	res, err := h.dashboardService.StudentDashboard(c.Request.Context(), userID, query.Status)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
