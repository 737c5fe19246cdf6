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
)

// Role describes a caller's effective access level for an account.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleNone   Role = "none"
)

// CanManage reports whether the role may administer members and invitations.
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

// HasAccess reports whether the role grants any visibility into the account.
func (r Role) HasAccess() bool {
	return r != RoleNone
}

var (
	// ErrAccountNotFound indicates the requested account does not exist.
	ErrAccountNotFound = apperrors.New("ACCOUNT_NOT_FOUND", "Account not found", http.StatusNotFound)
	// ErrDuplicateMembership signals the user already holds a membership row in the account.
	ErrDuplicateMembership = apperrors.New("DUPLICATE_MEMBERSHIP", "User is already a member of the account", http.StatusConflict)
	// ErrMemberNotFound indicates the requested membership does not exist.
	ErrMemberNotFound = apperrors.New("MEMBER_NOT_FOUND", "User is not a member of the account", http.StatusNotFound)
	// ErrOwnerMembershipImmutable guards the owner's membership row from removal.
	ErrOwnerMembershipImmutable = apperrors.New("OWNER_MEMBERSHIP_IMMUTABLE", "The account owner cannot be removed", http.StatusBadRequest)
)

// AccountWithRole pairs an account with the requesting user's role in it.
type AccountWithRole struct {
	Account models.Account `json:"account"`
	Role    Role           `json:"role"`
}

// AccountService manages accounts, the membership ledger, and role resolution.
type AccountService struct {
	db           *gorm.DB
	auditService *AuditService
	now          func() time.Time
}

// NewAccountService constructs an AccountService instance.
func NewAccountService(db *gorm.DB, auditService *AuditService) (*AccountService, error) {
	if db == nil {
		return nil, errors.New("account service: db is required")
	}
	return &AccountService{
		db:           db,
		auditService: auditService,
		now:          time.Now,
	}, nil
}

// WithClock overrides the service clock, primarily for tests.
func (s *AccountService) WithClock(clock func() time.Time) *AccountService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// ResolveRole derives the caller's effective role for an account. It has no
// side effects and gates every account-scoped operation.
func (s *AccountService) ResolveRole(ctx context.Context, accountID, userID string) (Role, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(accountID) == "" || strings.TrimSpace(userID) == "" {
		return RoleNone, nil
	}

	var account models.Account
	err := s.db.WithContext(ctx).Select("id", "owner_id").
		First(&account, "id = ?", accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RoleNone, ErrAccountNotFound
	}
	if err != nil {
		return RoleNone, fmt.Errorf("account service: load account: %w", err)
	}

	if account.OwnerID == userID {
		return RoleOwner, nil
	}

	var member models.AccountMember
	err = s.db.WithContext(ctx).
		Where("account_id = ? AND user_id = ?", accountID, userID).
		Take(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return RoleNone, nil
	}
	if err != nil {
		return RoleNone, fmt.Errorf("account service: load membership: %w", err)
	}

	if member.IsAdmin {
		return RoleAdmin, nil
	}
	return RoleMember, nil
}

// Get returns the account when the caller holds any role in it.
func (s *AccountService) Get(ctx context.Context, accountID, callerID string) (*models.Account, Role, error) {
	ctx = ensureContext(ctx)

	role, err := s.ResolveRole(ctx, accountID, callerID)
	if err != nil {
		return nil, RoleNone, err
	}
	if !role.HasAccess() {
		return nil, RoleNone, apperrors.ErrForbidden
	}

	var account models.Account
	if err := s.db.WithContext(ctx).
		Preload("Owner").
		First(&account, "id = ?", accountID).Error; err != nil {
		return nil, RoleNone, fmt.Errorf("account service: get account: %w", err)
	}

	return &account, role, nil
}

// ListForUser returns every account the user owns or belongs to, with the
// user's role in each. Owned accounts are not duplicated by their membership row.
func (s *AccountService) ListForUser(ctx context.Context, userID string) ([]AccountWithRole, error) {
	ctx = ensureContext(ctx)

	var owned []models.Account
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", userID).
		Order("created_at ASC").
		Find(&owned).Error; err != nil {
		return nil, fmt.Errorf("account service: list owned accounts: %w", err)
	}

	results := make([]AccountWithRole, 0, len(owned))
	for _, account := range owned {
		results = append(results, AccountWithRole{Account: account, Role: RoleOwner})
	}

	var memberships []models.AccountMember
	if err := s.db.WithContext(ctx).
		Preload("Account").
		Where("user_id = ?", userID).
		Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("account service: list memberships: %w", err)
	}

	for _, membership := range memberships {
		if membership.Account == nil || membership.Account.OwnerID == userID {
			continue
		}
		role := RoleMember
		if membership.IsAdmin {
			role = RoleAdmin
		}
		results = append(results, AccountWithRole{Account: *membership.Account, Role: role})
	}

	return results, nil
}

// AddMember inserts a membership row. The storage-level unique index on
// (account_id, user_id) resolves racing inserts in favour of one writer.
func (s *AccountService) AddMember(ctx context.Context, accountID, userID string, isAdmin bool) (*models.AccountMember, error) {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(accountID) == "" || strings.TrimSpace(userID) == "" {
		return nil, apperrors.NewBadRequest("account id and user id are required")
	}

	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("account service: load account: %w", err)
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("account service: load user: %w", err)
	}

	member := &models.AccountMember{
		AccountID: accountID,
		UserID:    userID,
		IsAdmin:   isAdmin,
		JoinedAt:  s.now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(member).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrDuplicateMembership
		}
		return nil, fmt.Errorf("account service: add member: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "account.add_member",
		Resource: accountID,
		Result:   "success",
		Metadata: map[string]any{"user_id": userID, "is_admin": isAdmin},
	})

	return member, nil
}

// ListMembers returns the membership rows for an account. Any role including
// plain member may view the roster.
func (s *AccountService) ListMembers(ctx context.Context, accountID, callerID string) ([]models.AccountMember, error) {
	ctx = ensureContext(ctx)

	role, err := s.ResolveRole(ctx, accountID, callerID)
	if err != nil {
		return nil, err
	}
	if !role.HasAccess() {
		return nil, apperrors.ErrForbidden
	}

	var members []models.AccountMember
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("account_id = ?", accountID).
		Order("joined_at ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("account service: list members: %w", err)
	}

	return members, nil
}

// RemoveMember deletes a membership row. Only admins and the owner may
// remove members, and the owner's own membership is immutable.
func (s *AccountService) RemoveMember(ctx context.Context, accountID, callerID, userID string) error {
	ctx = ensureContext(ctx)

	role, err := s.ResolveRole(ctx, accountID, callerID)
	if err != nil {
		return err
	}
	if !role.CanManage() {
		return apperrors.ErrForbidden
	}

	var account models.Account
	if err := s.db.WithContext(ctx).First(&account, "id = ?", accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("account service: load account: %w", err)
	}
	if account.OwnerID == userID {
		return ErrOwnerMembershipImmutable
	}

	result := s.db.WithContext(ctx).
		Where("account_id = ? AND user_id = ?", accountID, userID).
		Delete(&models.AccountMember{})
	if result.Error != nil {
		return fmt.Errorf("account service: remove member: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrMemberNotFound
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &callerID,
		Action:   "account.remove_member",
		Resource: accountID,
		Result:   "success",
		Metadata: map[string]any{"user_id": userID},
	})

	return nil
}

// Delete removes an account and, atomically with it, its memberships and
// invitations. Only the owner may delete an account.
func (s *AccountService) Delete(ctx context.Context, accountID, callerID string) error {
	ctx = ensureContext(ctx)

	role, err := s.ResolveRole(ctx, accountID, callerID)
	if err != nil {
		return err
	}
	if role != RoleOwner {
		return apperrors.ErrForbidden
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).Delete(&models.AccountMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("account_id = ?", accountID).Delete(&models.Invitation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Account{}, "id = ?", accountID).Error
	})
	if err != nil {
		return apperrors.ErrPersistence.WithInternal(err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &callerID,
		Action:   "account.delete",
		Resource: accountID,
		Result:   "success",
	})

	return nil
}
