package handler

import (
	"net/http"

	"chimu.app/backend/internal/modules/team/dto"
	teamService "chimu.app/backend/internal/modules/team/service"
	"chimu.app/backend/pkg/response"
	"chimu.app/backend/pkg/validator"
	"github.com/gin-gonic/gin"
)

type TeamHandler struct {
	teamService teamService.TeamService
}

func NewTeamHandler(teamService teamService.TeamService) *TeamHandler {
	return &TeamHandler{teamService: teamService}
}

// CreateTeam is the instructor/TA path.
func (h *TeamHandler) CreateTeam(c *gin.Context) {
	h.createTeam(c, true)
}

// CreateOwnTeam is the student self-service path.
func (h *TeamHandler) CreateOwnTeam(c *gin.Context) {
	h.createTeam(c, false)
}

func (h *TeamHandler) createTeam(c *gin.Context, asInstructor bool) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	classID, ok := response.ParamUUID(c, "classId")
	if !ok {
		return
	}

	var req dto.CreateTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, validator.FieldErrors(err))
		return
	}

	team, err := h.teamService.CreateTeam(c.Request.Context(), userID, classID, req.Name, asInstructor)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, team)
}

func (h *TeamHandler) JoinTeam(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	classID, ok := response.ParamUUID(c, "classId")
	if !ok {
		return
	}
	teamID, ok := response.ParamUUID(c, "teamId")
	if !ok {
		return
	}

	if err := h.teamService.JoinTeam(c.Request.Context(), userID, classID, teamID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "joined team"})
}

func (h *TeamHandler) ListTeams(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	classID, ok := response.ParamUUID(c, "classId")
	if !ok {
		return
	}

	teams, err := h.teamService.ListTeams(c.Request.Context(), userID, classID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": teams})
}

func (h *TeamHandler) DeleteTeam(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	classID, ok := response.ParamUUID(c, "classId")
	if !ok {
		return
	}
	teamID, ok := response.ParamUUID(c, "teamId")
	if !ok {
		return
	}

	if err := h.teamService.DeleteTeam(c.Request.Context(), userID, classID, teamID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "team deleted"})
}

func (h *TeamHandler) GetTeam(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	teamID, ok := response.ParamUUID(c, "teamId")
	if !ok {
		return
	}

	team, err := h.teamService.GetTeam(c.Request.Context(), userID, teamID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, team)
}

func (h *TeamHandler) AddMember(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	teamID, ok := response.ParamUUID(c, "teamId")
	if !ok {
		return
	}

	var req dto.MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, validator.FieldErrors(err))
		return
	}

	if err := h.teamService.AddMember(c.Request.Context(), userID, teamID, req.UserID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "member added"})
}

func (h *TeamHandler) RemoveMember(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	teamID, ok := response.ParamUUID(c, "teamId")
	if !ok {
		return
	}
	memberID, ok := response.ParamUUID(c, "userId")
	if !ok {
		return
	}

	if err := h.teamService.RemoveMember(c.Request.Context(), userID, teamID, memberID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "member removed"})
}

func (h *TeamHandler) MoveMember(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	fromTeamID, ok := response.ParamUUID(c, "teamId")
	if !ok {
		return
	}

	var req dto.MoveMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, validator.FieldErrors(err))
		return
	}

	if err := h.teamService.MoveMember(c.Request.Context(), userID, fromTeamID, req.ToTeamID, req.UserID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "member moved"})
}
