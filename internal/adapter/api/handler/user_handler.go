package handler

import (
	"github.com/labstack/echo/v4"

	"brokerdesk/internal/domain/entity"
	"brokerdesk/internal/domain/repository"
	"brokerdesk/pkg/response"
)

// UserHandler resolves participant profiles so the inbox UI can label
// threads with names and avatars instead of bare uids.
type UserHandler struct {
	userRepo repository.UserRepository
}

func NewUserHandler(userRepo repository.UserRepository) *UserHandler {
	return &UserHandler{
		userRepo: userRepo,
	}
}

type updateProfileRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Username  string `json:"username" validate:"required,min=2,max=64"`
	AvatarURL string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

// GetParticipant returns one user's public profile.
func (h *UserHandler) GetParticipant(c echo.Context) error {
	user, err := h.userRepo.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, user)
}

// UpdateProfile upserts the caller's own profile record.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	user := &entity.User{
		ID:        c.Get("uid").(string),
		Email:     req.Email,
		Username:  req.Username,
		AvatarURL: req.AvatarURL,
	}
	if err := h.userRepo.Upsert(c.Request().Context(), user); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, user)
}
