package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nvasquez/accounthub/internal/models"
	"github.com/nvasquez/accounthub/internal/services"
	appErrors "github.com/nvasquez/accounthub/pkg/errors"
	"github.com/nvasquez/accounthub/pkg/metrics"
	"github.com/nvasquez/accounthub/pkg/response"
)

// InvitationHandler serves the invitation workflow endpoints.
type InvitationHandler struct {
	invitations *services.InvitationService
	users       *services.UserService
}

func NewInvitationHandler(invitations *services.InvitationService, users *services.UserService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations, users: users}
}

type createInvitationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type invitationDTO struct {
	ID           string     `json:"id"`
	AccountID    string     `json:"account_id"`
	AccountName  string     `json:"account_name,omitempty"`
	InviterID    string     `json:"inviter_id"`
	InviterName  string     `json:"inviter_name,omitempty"`
	InviteeEmail string     `json:"invitee_email"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	RespondedAt  *time.Time `json:"responded_at,omitempty"`
}

func toInvitationDTO(invitation *models.Invitation) invitationDTO {
	dto := invitationDTO{
		ID:           invitation.ID,
		AccountID:    invitation.AccountID,
		InviterID:    invitation.InviterID,
		InviteeEmail: invitation.InviteeEmail,
		Status:       invitation.Status,
		CreatedAt:    invitation.CreatedAt,
		RespondedAt:  invitation.RespondedAt,
	}
	if invitation.Account != nil {
		dto.AccountName = invitation.Account.Name
	}
	if invitation.Inviter != nil {
		dto.InviterName = invitation.Inviter.Username
	}
	return dto
}

// POST /api/accounts/:id/invitations
func (h *InvitationHandler) Create(c *gin.Context) {
	userID := currentUserID(c)
	accountID := strings.TrimSpace(c.Param("id"))
	if accountID == "" {
		response.Error(c, appErrors.NewBadRequest("account ID is required"))
		return
	}

	var req createInvitationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	invitation, err := h.invitations.Create(requestContext(c), accountID, userID, req.Email)
	if err != nil {
		metrics.InvitationOutcomes.WithLabelValues("rejected").Inc()
		response.Error(c, err)
		return
	}

	metrics.InvitationOutcomes.WithLabelValues("created").Inc()

	response.Success(c, http.StatusCreated, gin.H{"invitation": toInvitationDTO(invitation)})
}

// GET /api/accounts/:id/invitations
func (h *InvitationHandler) ListForAccount(c *gin.Context) {
	userID := currentUserID(c)
	accountID := strings.TrimSpace(c.Param("id"))
	if accountID == "" {
		response.Error(c, appErrors.NewBadRequest("account ID is required"))
		return
	}

	invitations, err := h.invitations.ListPendingForAccount(requestContext(c), accountID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]invitationDTO, 0, len(invitations))
	for i := range invitations {
		items = append(items, toInvitationDTO(&invitations[i]))
	}

	response.Success(c, http.StatusOK, gin.H{"invitations": items})
}

// GET /api/invitations
func (h *InvitationHandler) ListMine(c *gin.Context) {
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

	invitations, err := h.invitations.ListPendingForInvitee(requestContext(c), user.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]invitationDTO, 0, len(invitations))
	for i := range invitations {
		items = append(items, toInvitationDTO(&invitations[i]))
	}

	response.Success(c, http.StatusOK, gin.H{"invitations": items})
}

// POST /api/invitations/:id/accept
func (h *InvitationHandler) Accept(c *gin.Context) {
	userID := currentUserID(c)
	invitationID := strings.TrimSpace(c.Param("id"))
	if invitationID == "" {
		response.Error(c, appErrors.NewBadRequest("invitation ID is required"))
		return
	}

	user, err := h.users.GetByID(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.invitations.Accept(requestContext(c), invitationID, user)
	if err != nil {
		response.Error(c, err)
		return
	}

	metrics.InvitationOutcomes.WithLabelValues("accepted").Inc()

	response.Success(c, http.StatusOK, gin.H{
		"account":        toAccountDTO(result.Account, result.Role),
		"already_member": result.AlreadyMember,
	})
}

// POST /api/invitations/:id/decline
func (h *InvitationHandler) Decline(c *gin.Context) {
	userID := currentUserID(c)
	invitationID := strings.TrimSpace(c.Param("id"))
	if invitationID == "" {
		response.Error(c, appErrors.NewBadRequest("invitation ID is required"))
		return
	}

	user, err := h.users.GetByID(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.invitations.Decline(requestContext(c), invitationID, user); err != nil {
		response.Error(c, err)
		return
	}

	metrics.InvitationOutcomes.WithLabelValues("declined").Inc()

	response.Success(c, http.StatusOK, gin.H{"declined": true})
}
