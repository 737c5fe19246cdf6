package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/nvasquez/accounthub/internal/models"
	apperrors "github.com/nvasquez/accounthub/pkg/errors"
	"github.com/nvasquez/accounthub/pkg/logger"
	"github.com/nvasquez/accounthub/pkg/mail"

	"go.uber.org/zap"
)

var (
	// ErrInvitationNotFound indicates the requested invitation does not exist.
	ErrInvitationNotFound = apperrors.New("INVITATION_NOT_FOUND", "Invitation not found", http.StatusNotFound)
	// ErrDuplicateInvitation signals a pending invitation already exists for the pair.
	ErrDuplicateInvitation = apperrors.New("DUPLICATE_INVITATION", "An invitation is already pending for this email", http.StatusConflict)
	// ErrAlreadyMember signals the invitee already holds a membership in the account.
	ErrAlreadyMember = apperrors.New("ALREADY_MEMBER", "This user is already a member of the account", http.StatusConflict)
	// ErrNotRecipient signals the responder is not the addressee of the invitation.
	ErrNotRecipient = apperrors.New("NOT_RECIPIENT", "This invitation is addressed to someone else", http.StatusForbidden)
	// ErrAlreadyResolved signals the invitation left the pending state earlier.
	ErrAlreadyResolved = apperrors.New("ALREADY_RESOLVED", "This invitation has already been responded to", http.StatusConflict)
)

// AcceptResult reports the outcome of accepting an invitation.
type AcceptResult struct {
	Account *models.Account `json:"account"`
	// Role is the responder's effective role after the accept. A pre-existing
	// admin membership stays admin; a fresh membership comes in as member.
	Role Role `json:"role"`
	// AlreadyMember is set when the responder held a membership before the
	// accept call; no new membership row was created in that case.
	AlreadyMember bool `json:"already_member"`
}

// InvitationService drives the invitation state machine:
// pending -> accepted | declined, both terminal.
type InvitationService struct {
	db           *gorm.DB
	accounts     *AccountService
	auditService *AuditService
	mailer       mail.Mailer
	now          func() time.Time
}

// NewInvitationService constructs an InvitationService. The mailer is
// optional; when nil no notification emails are attempted.
func NewInvitationService(db *gorm.DB, accounts *AccountService, auditService *AuditService, mailer mail.Mailer) (*InvitationService, error) {
	if db == nil {
		return nil, errors.New("invitation service: db is required")
	}
	if accounts == nil {
		return nil, errors.New("invitation service: account service is required")
	}
	return &InvitationService{
		db:           db,
		accounts:     accounts,
		auditService: auditService,
		mailer:       mailer,
		now:          time.Now,
	}, nil
}

// WithClock overrides the service clock, primarily for tests.
func (s *InvitationService) WithClock(clock func() time.Time) *InvitationService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Create issues a pending invitation for an email address. Any member of the
// account may invite, not only admins; this mirrors the product's intended
// behaviour and is flagged as a deliberate permission choice.
func (s *InvitationService) Create(ctx context.Context, accountID, inviterID, inviteeEmail string) (*models.Invitation, error) {
	ctx = ensureContext(ctx)

	email := normaliseEmail(inviteeEmail)
	if email == "" {
		return nil, apperrors.NewBadRequest("invitee email is required")
	}

	role, err := s.accounts.ResolveRole(ctx, accountID, inviterID)
	if err != nil {
		return nil, err
	}
	if !role.HasAccess() {
		return nil, apperrors.ErrForbidden
	}

	// Order matters: an existing membership wins over a pending invitation
	// so the caller sees the more specific condition.
	var invitee models.User
	err = s.db.WithContext(ctx).First(&invitee, "email = ?", email).Error
	if err == nil {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.AccountMember{}).
			Where("account_id = ? AND user_id = ?", accountID, invitee.ID).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("invitation service: check membership: %w", err)
		}
		if count > 0 {
			return nil, ErrAlreadyMember
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("invitation service: lookup invitee: %w", err)
	}

	var pending int64
	if err := s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("account_id = ? AND invitee_email = ? AND status = ?", accountID, email, models.InvitationPending).
		Count(&pending).Error; err != nil {
		return nil, fmt.Errorf("invitation service: check pending: %w", err)
	}
	if pending > 0 {
		return nil, ErrDuplicateInvitation
	}

	invitation := &models.Invitation{
		AccountID:    accountID,
		InviterID:    inviterID,
		InviteeEmail: email,
	}

	if err := s.db.WithContext(ctx).Create(invitation).Error; err != nil {
		if isUniqueConstraintError(err) {
			// A concurrent create won the pending-key index.
			return nil, ErrDuplicateInvitation
		}
		return nil, fmt.Errorf("invitation service: create invitation: %w", err)
	}

	s.notifyInvitee(ctx, invitation)

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &inviterID,
		Action:   "invitation.create",
		Resource: invitation.ID,
		Result:   "success",
		Metadata: map[string]any{"account_id": accountID, "invitee_email": email},
	})

	return invitation, nil
}

// ListPendingForAccount returns pending invitations for an account. Callers
// without any role are rejected; plain members get an empty list since they
// are not entitled to see others' invitations.
func (s *InvitationService) ListPendingForAccount(ctx context.Context, accountID, callerID string) ([]models.Invitation, error) {
	ctx = ensureContext(ctx)

	role, err := s.accounts.ResolveRole(ctx, accountID, callerID)
	if err != nil {
		return nil, err
	}
	if !role.HasAccess() {
		return nil, apperrors.ErrForbidden
	}
	if !role.CanManage() {
		return []models.Invitation{}, nil
	}

	var invitations []models.Invitation
	if err := s.db.WithContext(ctx).
		Preload("Inviter").
		Where("account_id = ? AND status = ?", accountID, models.InvitationPending).
		Order("created_at ASC").
		Find(&invitations).Error; err != nil {
		return nil, fmt.Errorf("invitation service: list for account: %w", err)
	}

	return invitations, nil
}

// ListPendingForInvitee returns every pending invitation addressed to the
// email. The invitee needs no pre-existing access to the accounts involved.
func (s *InvitationService) ListPendingForInvitee(ctx context.Context, email string) ([]models.Invitation, error) {
	ctx = ensureContext(ctx)

	var invitations []models.Invitation
	if err := s.db.WithContext(ctx).
		Preload("Account").
		Preload("Inviter").
		Where("invitee_email = ? AND status = ?", normaliseEmail(email), models.InvitationPending).
		Order("created_at ASC").
		Find(&invitations).Error; err != nil {
		return nil, fmt.Errorf("invitation service: list for invitee: %w", err)
	}

	return invitations, nil
}

// Accept resolves a pending invitation in the responder's favour. The status
// flip and the membership insert commit as one unit; a failure of either
// leaves both untouched.
func (s *InvitationService) Accept(ctx context.Context, invitationID string, responder *models.User) (*AcceptResult, error) {
	ctx = ensureContext(ctx)

	if responder == nil {
		return nil, apperrors.ErrUnauthorized
	}

	invitation, err := s.load(ctx, invitationID)
	if err != nil {
		return nil, err
	}

	if invitation.InviteeEmail != responder.Email {
		return nil, ErrNotRecipient
	}
	if invitation.Status != models.InvitationPending {
		return nil, ErrAlreadyResolved
	}

	now := s.now().UTC()
	result := &AcceptResult{}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Guarded update: only one racing responder can move the row out of
		// pending, the other observes zero affected rows.
		res := tx.Model(&models.Invitation{}).
			Where("id = ? AND status = ?", invitation.ID, models.InvitationPending).
			Updates(map[string]any{
				"status":       models.InvitationAccepted,
				"responded_at": now,
				"pending_key":  nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyResolved
		}

		var existing int64
		if err := tx.Model(&models.AccountMember{}).
			Where("account_id = ? AND user_id = ?", invitation.AccountID, responder.ID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			// Membership appeared through another path; tolerate it instead
			// of failing the accept.
			result.AlreadyMember = true
			return nil
		}

		member := &models.AccountMember{
			AccountID: invitation.AccountID,
			UserID:    responder.ID,
			IsAdmin:   false,
			JoinedAt:  now,
		}
		if err := tx.Create(member).Error; err != nil {
			if isUniqueConstraintError(err) {
				return ErrDuplicateMembership
			}
			return err
		}
		return nil
	})
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, apperrors.ErrPersistence.WithInternal(err)
	}

	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", invitation.AccountID).Error; err != nil {
		return nil, fmt.Errorf("invitation service: load account: %w", err)
	}
	result.Account = &account

	role, err := s.accounts.ResolveRole(ctx, invitation.AccountID, responder.ID)
	if err != nil {
		return nil, err
	}
	result.Role = role

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &responder.ID,
		Action:   "invitation.accept",
		Resource: invitation.ID,
		Result:   "success",
		Metadata: map[string]any{"account_id": invitation.AccountID, "already_member": result.AlreadyMember},
	})

	return result, nil
}

// Decline resolves a pending invitation without creating any membership.
func (s *InvitationService) Decline(ctx context.Context, invitationID string, responder *models.User) error {
	ctx = ensureContext(ctx)

	if responder == nil {
		return apperrors.ErrUnauthorized
	}

	invitation, err := s.load(ctx, invitationID)
	if err != nil {
		return err
	}

	if invitation.InviteeEmail != responder.Email {
		return ErrNotRecipient
	}
	if invitation.Status != models.InvitationPending {
		return ErrAlreadyResolved
	}

	res := s.db.WithContext(ctx).Model(&models.Invitation{}).
		Where("id = ? AND status = ?", invitation.ID, models.InvitationPending).
		Updates(map[string]any{
			"status":       models.InvitationDeclined,
			"responded_at": s.now().UTC(),
			"pending_key":  nil,
		})
	if res.Error != nil {
		return apperrors.ErrPersistence.WithInternal(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyResolved
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &responder.ID,
		Action:   "invitation.decline",
		Resource: invitation.ID,
		Result:   "success",
		Metadata: map[string]any{"account_id": invitation.AccountID},
	})

	return nil
}

func (s *InvitationService) load(ctx context.Context, id string) (*models.Invitation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvitationNotFound
	}

	var invitation models.Invitation
	err := s.db.WithContext(ctx).First(&invitation, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invitation service: load invitation: %w", err)
	}
	return &invitation, nil
}

// notifyInvitee sends the invitation email on a best-effort basis. Delivery
// problems never fail the create operation.
func (s *InvitationService) notifyInvitee(ctx context.Context, invitation *models.Invitation) {
	if s.mailer == nil {
		return
	}

	var account models.Account
	name := "an account"
	if err := s.db.WithContext(ctx).First(&account, "id = ?", invitation.AccountID).Error; err == nil {
		name = account.Name
	}

	msg := mail.InvitationMessage(name, invitation.InviteeEmail)
	if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		logger.WithModule("invitations").Warn("invitation email failed",
			zap.String("invitation_id", invitation.ID),
			zap.Error(err),
		)
	}
}
