package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nvasquez/accounthub/internal/database/testutil"
	"github.com/nvasquez/accounthub/internal/models"
	apperrors "github.com/nvasquez/accounthub/pkg/errors"
)

func newUserService(t *testing.T) (*UserService, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	auditSvc, err := NewAuditService(db)
	require.NoError(t, err)

	svc, err := NewUserService(db, auditSvc)
	require.NoError(t, err)
	return svc, db
}

func TestRegisterCreatesUserAccountAndMembership(t *testing.T) {
	svc, db := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Username: "alice",
		Email:    "Alice@Example.com",
		Password: "password1",
	})
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)
	require.Equal(t, "alice@example.com", user.Email)
	require.NotEqual(t, "password1", user.Password)

	var account models.Account
	require.NoError(t, db.First(&account, "owner_id = ?", user.ID).Error)
	require.Equal(t, "alice's Account", account.Name)

	var member models.AccountMember
	require.NoError(t, db.First(&member, "account_id = ? AND user_id = ?", account.ID, user.ID).Error)
	require.True(t, member.IsAdmin)
}

func TestRegisterDuplicateLeavesNoRows(t *testing.T) {
	svc, db := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "alice@example.com", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Username: "alice", Email: "other@example.com", Password: "password1"})
	require.ErrorIs(t, err, ErrDuplicateUsername)

	_, err = svc.Register(ctx, RegisterInput{Username: "alice2", Email: "alice@example.com", Password: "password1"})
	require.ErrorIs(t, err, ErrDuplicateEmail)

	var users, accounts, members int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Account{}).Count(&accounts).Error)
	require.NoError(t, db.Model(&models.AccountMember{}).Count(&members).Error)
	require.EqualValues(t, 1, users)
	require.EqualValues(t, 1, accounts)
	require.EqualValues(t, 1, members)
}

func TestRegisterValidatesInput(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "a@example.com", Password: "x"})
	require.Error(t, err)

	_, err = svc.Register(ctx, RegisterInput{Username: "a", Password: "x"})
	require.Error(t, err)

	_, err = svc.Register(ctx, RegisterInput{Username: "a", Email: "a@example.com"})
	require.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	svc, db := newUserService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password1",
	})
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, "alice", "password1", "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, registered.ID, user.ID)
	require.NotNil(t, user.LastLoginAt)

	// Email works as identifier too.
	_, err = svc.Authenticate(ctx, "alice@example.com", "password1", "")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "alice", "wrong", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "password1", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	var logins int64
	require.NoError(t, db.Model(&models.LoginHistory{}).Where("user_id = ?", user.ID).Count(&logins).Error)
	require.EqualValues(t, 2, logins)
}

func TestRecentLogins(t *testing.T) {
	svc, db := newUserService(t)
	ctx := context.Background()

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return current })

	user, err := svc.Register(ctx, RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password1",
	})
	require.NoError(t, err)

	// One old entry outside the window, two fresh ones.
	old := models.LoginHistory{UserID: user.ID, LoginTime: current.Add(-60 * 24 * time.Hour)}
	require.NoError(t, db.Create(&old).Error)

	_, err = svc.Authenticate(ctx, "alice", "password1", "")
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "alice", "password1", "")
	require.NoError(t, err)

	count, err := svc.RecentLoginCount(ctx, user.ID, 30*24*time.Hour)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	logins, err := svc.RecentLogins(ctx, user.ID, 2)
	require.NoError(t, err)
	require.Len(t, logins, 2)

	pruned, err := svc.PruneLoginHistory(ctx, current.Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, pruned)
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password1",
	})
	require.NoError(t, err)

	first := "Alice"
	display := " Ally "
	city := "Lisbon"
	updated, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileInput{
		FirstName:   &first,
		DisplayName: &display,
		City:        &city,
	})
	require.NoError(t, err)
	require.Equal(t, "Alice", updated.FirstName)
	require.Equal(t, "Ally", updated.DisplayName)
	require.Equal(t, "Lisbon", updated.City)
	require.Empty(t, updated.LastName)

	_, err = svc.UpdateProfile(ctx, "missing", UpdateProfileInput{FirstName: &first})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestChangePassword(t *testing.T) {
	svc, _ := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password1",
	})
	require.NoError(t, err)

	require.NoError(t, svc.ChangePassword(ctx, user.ID, "password2"))

	_, err = svc.Authenticate(ctx, "alice", "password1", "")
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "alice", "password2", "")
	require.NoError(t, err)
}

func TestDeleteUserCascades(t *testing.T) {
	svc, db := newUserService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password1",
	})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "alice", "password1", "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, user.ID))

	for _, model := range []any{&models.User{}, &models.Account{}, &models.AccountMember{}, &models.LoginHistory{}} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		require.Zero(t, count)
	}

	require.ErrorIs(t, svc.Delete(ctx, user.ID), ErrUserNotFound)
}
