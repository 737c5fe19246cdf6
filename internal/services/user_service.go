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
	"github.com/nvasquez/accounthub/pkg/crypto"
	apperrors "github.com/nvasquez/accounthub/pkg/errors"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrDuplicateUsername signals the username is already registered.
	ErrDuplicateUsername = apperrors.New("DUPLICATE_USERNAME", "Username already taken", http.StatusConflict)
	// ErrDuplicateEmail signals the email address is already registered.
	ErrDuplicateEmail = apperrors.New("DUPLICATE_EMAIL", "Email already registered", http.StatusConflict)
)

// RegisterInput describes the fields accepted when registering a user.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// UpdateProfileInput enumerates mutable profile attributes.
type UpdateProfileInput struct {
	FirstName   *string
	LastName    *string
	DisplayName *string
	City        *string
	State       *string
	Country     *string
	Avatar      *string
}

// UserService manages identity lifecycle: registration, authentication,
// profile edits, and login history.
type UserService struct {
	db           *gorm.DB
	auditService *AuditService
	now          func() time.Time
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, auditService *AuditService) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{
		db:           db,
		auditService: auditService,
		now:          time.Now,
	}, nil
}

// WithClock overrides the service clock, primarily for tests.
func (s *UserService) WithClock(clock func() time.Time) *UserService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// Register provisions a new user together with their default account and an
// admin membership in it. The three rows are written in one transaction:
// either all exist afterwards or none do.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	username := strings.TrimSpace(input.Username)
	email := normaliseEmail(input.Email)
	if username == "" {
		return nil, apperrors.NewBadRequest("username is required")
	}
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	// Checked up front for a distinct error; the unique indexes still close
	// the race window if a concurrent writer slips in between.
	if err := s.checkAvailability(ctx, username, email); err != nil {
		return nil, err
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: hashed,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}

		account := &models.Account{
			Name:    fmt.Sprintf("%s's Account", user.Username),
			OwnerID: user.ID,
		}
		if err := tx.Create(account).Error; err != nil {
			return err
		}

		member := &models.AccountMember{
			AccountID: account.ID,
			UserID:    user.ID,
			IsAdmin:   true,
			JoinedAt:  s.now().UTC(),
		}
		return tx.Create(member).Error
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			// A concurrent registration won; report which field collided.
			if availErr := s.checkAvailability(ctx, username, email); availErr != nil {
				return nil, availErr
			}
			return nil, ErrDuplicateUsername
		}
		return nil, apperrors.ErrPersistence.WithInternal(err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &user.ID,
		Action:   "user.register",
		Resource: user.ID,
		Result:   "success",
		Metadata: map[string]any{"username": user.Username, "email": user.Email},
	})

	return user, nil
}

func (s *UserService) checkAvailability(ctx context.Context, username, email string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", username).Count(&count).Error; err != nil {
		return fmt.Errorf("user service: check username: %w", err)
	}
	if count > 0 {
		return ErrDuplicateUsername
	}

	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", email).Count(&count).Error; err != nil {
		return fmt.Errorf("user service: check email: %w", err)
	}
	if count > 0 {
		return ErrDuplicateEmail
	}
	return nil
}

// Authenticate verifies credentials by username or email and records the
// login event on success.
func (s *UserService) Authenticate(ctx context.Context, identifier, password, ipAddress string) (*models.User, error) {
	ctx = ensureContext(ctx)

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", identifier, normaliseEmail(identifier)).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("user service: query user: %w", err)
	}

	if !crypto.VerifyPassword(user.Password, password) {
		recordAudit(s.auditService, ctx, AuditEntry{
			UserID:    &user.ID,
			Action:    "user.login",
			Resource:  user.ID,
			Result:    "failure",
			IPAddress: ipAddress,
		})
		return nil, apperrors.ErrInvalidCredentials
	}

	now := s.now().UTC()
	entry := models.LoginHistory{
		UserID:    user.ID,
		LoginTime: now,
		IPAddress: strings.TrimSpace(ipAddress),
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, fmt.Errorf("user service: record login: %w", err)
	}

	user.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(&user).
		Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("user service: update last login: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:    &user.ID,
		Action:    "user.login",
		Resource:  user.ID,
		Result:    "success",
		IPAddress: ipAddress,
	})

	return &user, nil
}

// GetByID loads a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// GetByEmail loads a user by canonical email address.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", normaliseEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user by email: %w", err)
	}
	return &user, nil
}

// UpdateProfile persists mutable profile attributes for an existing user.
func (s *UserService) UpdateProfile(ctx context.Context, id string, input UpdateProfileInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	updates := map[string]any{}
	if input.FirstName != nil {
		updates["first_name"] = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		updates["last_name"] = strings.TrimSpace(*input.LastName)
	}
	if input.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*input.DisplayName)
	}
	if input.City != nil {
		updates["city"] = strings.TrimSpace(*input.City)
	}
	if input.State != nil {
		updates["state"] = strings.TrimSpace(*input.State)
	}
	if input.Country != nil {
		updates["country"] = strings.TrimSpace(*input.Country)
	}
	if input.Avatar != nil {
		updates["avatar"] = strings.TrimSpace(*input.Avatar)
	}

	if len(updates) == 0 {
		return &user, nil
	}

	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("user service: update profile: %w", err)
	}

	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("user service: reload user: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &user.ID,
		Action:   "user.update_profile",
		Resource: user.ID,
		Result:   "success",
	})

	return &user, nil
}

// ChangePassword replaces the stored password hash after hashing the new value.
func (s *UserService) ChangePassword(ctx context.Context, id, newPassword string) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(newPassword) == "" {
		return apperrors.NewBadRequest("password is required")
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("user service: load user: %w", err)
	}

	hashed, err := crypto.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("user service: hash password: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&user).
		Update("password", hashed).Error; err != nil {
		return fmt.Errorf("user service: update password: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &user.ID,
		Action:   "user.change_password",
		Resource: user.ID,
		Result:   "success",
	})

	return nil
}

// Delete removes a user; owned accounts, memberships, login history, and
// sent invitations go with them through the foreign-key cascades.
func (s *UserService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("user service: load user: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Owned accounts cascade their own members and invitations; deleting
		// them inside the same transaction keeps SQLite deployments without
		// recursive FK enforcement consistent too.
		if err := tx.Where("owner_id = ?", user.ID).Delete(&models.Account{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.AccountMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("inviter_id = ?", user.ID).Delete(&models.Invitation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.LoginHistory{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Session{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		return apperrors.ErrPersistence.WithInternal(err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "user.delete",
		Resource: user.ID,
		Result:   "success",
	})

	return nil
}

// RecentLogins returns the newest login records for a user, most recent first.
func (s *UserService) RecentLogins(ctx context.Context, userID string, limit int) ([]models.LoginHistory, error) {
	ctx = ensureContext(ctx)

	if limit <= 0 || limit > 100 {
		limit = 10
	}

	var entries []models.LoginHistory
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("login_time DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("user service: recent logins: %w", err)
	}
	return entries, nil
}

// RecentLoginCount counts logins within the trailing window.
func (s *UserService) RecentLoginCount(ctx context.Context, userID string, window time.Duration) (int64, error) {
	ctx = ensureContext(ctx)

	if window <= 0 {
		window = 30 * 24 * time.Hour
	}

	cutoff := s.now().UTC().Add(-window)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.LoginHistory{}).
		Where("user_id = ? AND login_time >= ?", userID, cutoff).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("user service: count logins: %w", err)
	}
	return count, nil
}

// PruneLoginHistory removes login records older than the cutoff.
func (s *UserService) PruneLoginHistory(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("login_time < ?", cutoff).
		Delete(&models.LoginHistory{})
	if result.Error != nil {
		return 0, fmt.Errorf("user service: prune login history: %w", result.Error)
	}
	return result.RowsAffected, nil
}
