package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nvasquez/accounthub/internal/services"
	"github.com/nvasquez/accounthub/internal/storage"
	"github.com/nvasquez/accounthub/pkg/crypto"
	appErrors "github.com/nvasquez/accounthub/pkg/errors"
	"github.com/nvasquez/accounthub/pkg/response"
)

// ProfileHandler exposes the signed-in user's profile and dashboard.
type ProfileHandler struct {
	users    *services.UserService
	accounts *services.AccountService
	avatars  *storage.AvatarStore
}

func NewProfileHandler(users *services.UserService, accounts *services.AccountService, avatars *storage.AvatarStore) *ProfileHandler {
	return &ProfileHandler{users: users, accounts: accounts, avatars: avatars}
}

type updateProfileRequest struct {
	FirstName   *string `json:"first_name" validate:"omitempty,max=128"`
	LastName    *string `json:"last_name" validate:"omitempty,max=128"`
	DisplayName *string `json:"display_name" validate:"omitempty,max=128"`
	City        *string `json:"city" validate:"omitempty,max=128"`
	State       *string `json:"state" validate:"omitempty,max=128"`
	Country     *string `json:"country" validate:"omitempty,max=128"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// GET /api/profile
func (h *ProfileHandler) Get(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	user, err := h.users.GetByID(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	logins, err := h.users.RecentLogins(requestContext(c), userID, parseIntQuery(c, "logins", 5))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user":          toUserDTO(user),
		"recent_logins": logins,
	})
}

// GET /api/dashboard
func (h *ProfileHandler) Dashboard(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	ctx := requestContext(c)

	user, err := h.users.GetByID(ctx, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	logins, err := h.users.RecentLogins(ctx, userID, parseIntQuery(c, "logins", 5))
	if err != nil {
		response.Error(c, err)
		return
	}

	entries, err := h.accounts.ListForUser(ctx, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	accounts := make([]accountDTO, 0, len(entries))
	for i := range entries {
		accounts = append(accounts, toAccountDTO(&entries[i].Account, entries[i].Role))
	}

	response.Success(c, http.StatusOK, gin.H{
		"user":          toUserDTO(user),
		"recent_logins": logins,
		"accounts":      accounts,
	})
}

// PATCH /api/profile
func (h *ProfileHandler) Update(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req updateProfileRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.UpdateProfile(requestContext(c), userID, services.UpdateProfileInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DisplayName: req.DisplayName,
		City:        req.City,
		State:       req.State,
		Country:     req.Country,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"user": toUserDTO(user)})
}

// POST /api/profile/avatar
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if h.avatars == nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("avatar file is required"))
		return
	}

	user, err := h.users.GetByID(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	previous := user.Avatar

	name, err := h.avatars.Save(file)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUnsupportedImageType):
			response.Error(c, appErrors.NewBadRequest("avatar must be a png, jpg, gif, or webp image"))
		case errors.Is(err, storage.ErrImageTooLarge):
			response.Error(c, appErrors.NewBadRequest("avatar image is too large"))
		default:
			response.Error(c, appErrors.ErrInternalServer)
		}
		return
	}

	updated, err := h.users.UpdateProfile(requestContext(c), userID, services.UpdateProfileInput{Avatar: &name})
	if err != nil {
		_ = h.avatars.Remove(name)
		response.Error(c, err)
		return
	}

	// The old image is orphaned once the reference moves.
	if previous != "" && previous != name {
		_ = h.avatars.Remove(previous)
	}

	response.Success(c, http.StatusOK, gin.H{"user": toUserDTO(updated)})
}

// PUT /api/profile/password
func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.users.GetByID(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	// Re-verify the current password before applying the new one.
	if !crypto.VerifyPassword(user.Password, req.CurrentPassword) {
		response.Error(c, appErrors.ErrInvalidCredentials)
		return
	}

	if err := h.users.ChangePassword(requestContext(c), userID, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"changed": true})
}
