package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nvasquez/accounthub/internal/models"
	"github.com/nvasquez/accounthub/internal/services"
	appErrors "github.com/nvasquez/accounthub/pkg/errors"
	"github.com/nvasquez/accounthub/pkg/response"
)

// AccountHandler serves account and membership endpoints.
type AccountHandler struct {
	accounts    *services.AccountService
	invitations *services.InvitationService
}

func NewAccountHandler(accounts *services.AccountService, invitations *services.InvitationService) *AccountHandler {
	return &AccountHandler{accounts: accounts, invitations: invitations}
}

type accountDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	Role      string    `json:"role,omitempty"`
}

type memberDTO struct {
	UserID      string    `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	IsAdmin     bool      `json:"is_admin"`
	JoinedAt    time.Time `json:"joined_at"`
}

func toAccountDTO(account *models.Account, role services.Role) accountDTO {
	dto := accountDTO{
		ID:        account.ID,
		Name:      account.Name,
		OwnerID:   account.OwnerID,
		CreatedAt: account.CreatedAt,
	}
	if role != "" && role != services.RoleNone {
		dto.Role = string(role)
	}
	return dto
}

func toMemberDTO(member *models.AccountMember) memberDTO {
	dto := memberDTO{
		UserID:   member.UserID,
		IsAdmin:  member.IsAdmin,
		JoinedAt: member.JoinedAt,
	}
	if member.User != nil {
		dto.Username = member.User.Username
		dto.Email = member.User.Email
		dto.DisplayName = member.User.DisplayName
	}
	return dto
}

// GET /api/accounts
func (h *AccountHandler) List(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	entries, err := h.accounts.ListForUser(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]accountDTO, 0, len(entries))
	for i := range entries {
		items = append(items, toAccountDTO(&entries[i].Account, entries[i].Role))
	}

	response.Success(c, http.StatusOK, gin.H{"accounts": items})
}

// GET /api/accounts/:id
func (h *AccountHandler) Get(c *gin.Context) {
	userID := currentUserID(c)
	accountID := strings.TrimSpace(c.Param("id"))
	if accountID == "" {
		response.Error(c, appErrors.NewBadRequest("account ID is required"))
		return
	}

	account, role, err := h.accounts.Get(requestContext(c), accountID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"account": toAccountDTO(account, role)})
}

// GET /api/accounts/:id/dashboard
func (h *AccountHandler) Dashboard(c *gin.Context) {
	userID := currentUserID(c)
	accountID := strings.TrimSpace(c.Param("id"))
	if accountID == "" {
		response.Error(c, appErrors.NewBadRequest("account ID is required"))
		return
	}

	ctx := requestContext(c)

	account, role, err := h.accounts.Get(ctx, accountID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	members, err := h.accounts.ListMembers(ctx, accountID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	memberItems := make([]memberDTO, 0, len(members))
	for i := range members {
		memberItems = append(memberItems, toMemberDTO(&members[i]))
	}

	payload := gin.H{
		"account": toAccountDTO(account, role),
		"members": memberItems,
	}

	// Pending invitations are only part of the dashboard for managers.
	if role.CanManage() {
		pending, err := h.invitations.ListPendingForAccount(ctx, accountID, userID)
		if err != nil {
			response.Error(c, err)
			return
		}
		items := make([]invitationDTO, 0, len(pending))
		for i := range pending {
			items = append(items, toInvitationDTO(&pending[i]))
		}
		payload["pending_invitations"] = items
	}

	response.Success(c, http.StatusOK, payload)
}

type addMemberRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	IsAdmin bool   `json:"is_admin"`
}

// POST /api/accounts/:id/members
func (h *AccountHandler) AddMember(c *gin.Context) {
	callerID := currentUserID(c)
	accountID := strings.TrimSpace(c.Param("id"))
	if accountID == "" {
		response.Error(c, appErrors.NewBadRequest("account ID is required"))
		return
	}

	var req addMemberRequest
	if !bindAndValidate(c, &req) {
		return
	}

	ctx := requestContext(c)

	role, err := h.accounts.ResolveRole(ctx, accountID, callerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !role.CanManage() {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	member, err := h.accounts.AddMember(ctx, accountID, req.UserID, req.IsAdmin)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"member": toMemberDTO(member)})
}

// GET /api/accounts/:id/members
func (h *AccountHandler) ListMembers(c *gin.Context) {
	userID := currentUserID(c)
	accountID := strings.TrimSpace(c.Param("id"))
	if accountID == "" {
		response.Error(c, appErrors.NewBadRequest("account ID is required"))
		return
	}

	members, err := h.accounts.ListMembers(requestContext(c), accountID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]memberDTO, 0, len(members))
	for i := range members {
		items = append(items, toMemberDTO(&members[i]))
	}

	response.Success(c, http.StatusOK, gin.H{"members": items})
}

// DELETE /api/accounts/:id/members/:userId
func (h *AccountHandler) RemoveMember(c *gin.Context) {
	callerID := currentUserID(c)
	accountID := strings.TrimSpace(c.Param("id"))
	memberID := strings.TrimSpace(c.Param("userId"))
	if accountID == "" || memberID == "" {
		response.Error(c, appErrors.NewBadRequest("account ID and user ID are required"))
		return
	}

	if err := h.accounts.RemoveMember(requestContext(c), accountID, callerID, memberID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"removed": true})
}

// DELETE /api/accounts/:id
func (h *AccountHandler) Delete(c *gin.Context) {
	callerID := currentUserID(c)
	accountID := strings.TrimSpace(c.Param("id"))
	if accountID == "" {
		response.Error(c, appErrors.NewBadRequest("account ID is required"))
		return
	}

	if err := h.accounts.Delete(requestContext(c), accountID, callerID); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
