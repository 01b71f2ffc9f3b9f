package handler

import (
	"net/http"

	"chimu.app/backend/internal/modules/profile/dto"
	profileService "chimu.app/backend/internal/modules/profile/service"
	"chimu.app/backend/pkg/apperror"
	"chimu.app/backend/pkg/response"
	"chimu.app/backend/pkg/validator"
	"github.com/gin-gonic/gin"
)

const maxAvatarBytes = 5 << 20

type ProfileHandler struct {
	profileService profileService.ProfileService
}

func NewProfileHandler(profileService profileService.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

func (h *ProfileHandler) GetCurrentProfile(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	res, err := h.profileService.GetCurrentProfile(c.Request.Context(), userID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var input dto.UpdateProfileInput
	if err := c.ShouldBind(&input); err != nil {
		response.ResponseError(c, validator.FieldErrors(err))
		return
	}

	var avatar *dto.AvatarFile
	if fileHeader, err := c.FormFile("avatar"); err == nil && fileHeader != nil {
		if fileHeader.Size > maxAvatarBytes {
			response.ResponseError(c, apperror.NewValidationError("avatar", "Avatar must be at most 5 MB"))
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			response.ResponseError(c, apperror.BadRequest("failed to read avatar"))
			return
		}
		defer file.Close()

		avatar = &dto.AvatarFile{Reader: file, FileName: fileHeader.Filename}
	}

	res, err := h.profileService.UpdateProfile(c.Request.Context(), userID, input, avatar)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
