package handler

import (
	"context"
	"net/http"

	"chimu.app/backend/internal/modules/agreement/dto"
	agreementService "chimu.app/backend/internal/modules/agreement/service"
	"chimu.app/backend/pkg/response"
	"chimu.app/backend/pkg/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type AgreementHandler struct {
	agreementService agreementService.AgreementService
}

func NewAgreementHandler(agreementService agreementService.AgreementService) *AgreementHandler {
	return &AgreementHandler{agreementService: agreementService}
}

func (h *AgreementHandler) Save(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	teamID, ok := response.ParamUUID(c, "teamId")
	if !ok {
		return
	}

	var req dto.SaveAgreementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ResponseError(c, validator.FieldErrors(err))
		return
	}

	res, created, err := h.agreementService.Save(c.Request.Context(), userID, teamID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

func (h *AgreementHandler) Get(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	teamID, ok := response.ParamUUID(c, "teamId")
	if !ok {
		return
	}

	res, err := h.agreementService.Get(c.Request.Context(), userID, teamID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *AgreementHandler) Sign(c *gin.Context) {
	h.transition(c, h.agreementService.Sign)
}

func (h *AgreementHandler) Lock(c *gin.Context) {
	h.transition(c, h.agreementService.Lock)
}

type transitionFunc func(ctx context.Context, actorID, teamID, agreementID uuid.UUID) (*dto.AgreementResponse, error)

func (h *AgreementHandler) transition(c *gin.Context, fn transitionFunc) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}
	teamID, ok := response.ParamUUID(c, "teamId")
	if !ok {
		return
	}
	agreementID, ok := response.ParamUUID(c, "agreementId")
	if !ok {
		return
	}

	res, err := fn(c.Request.Context(), userID, teamID, agreementID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
